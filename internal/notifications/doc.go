// Package notifications delivers run events via pluggable notifiers.
//
// The default implementation posts to the Slack channel configured in
// config.toml and gracefully degrades to a no-op when no channel is
// configured. Enumerated event types cover the run milestones so the engine,
// the healer and the batch runner emit consistent messages without
// duplicating formatting.
//
// All callers depend only on the Service interface; publication is
// best-effort and never changes the outcome of a run.
package notifications
