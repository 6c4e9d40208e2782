// Package registry declares the pipeline workers: their identities,
// predecessors, external services, schedules and whether their output needs
// human approval. Definitions come from an embedded YAML manifest that an
// operator may override, and implementations are bound at startup.
//
// ResolveExecutionOrder turns a requested worker set into a deterministic
// order that honours every declared dependency inside that set.
package registry
