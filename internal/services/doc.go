// Package services defines shared utilities consumed by the pipeline workers
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, worker names, pipeline types, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap/Details helpers that let the run
//     engine classify adapter failures (external, validation, not found,
//     timeout) without knowing which adapter raised them.
//
// The sub-packages hold one adapter per external collaborator (LLM,
// WordPress, Slack, ElevenLabs, Kie.ai, social webhook) and the shared async
// generation job contract.
package services
