// Package api defines wire-format types and converters for the daemon's HTTP
// API and the CLI's JSON output. It translates store records into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Run: a pipeline run with its resolved order, progress and typed artifacts.
//
// RunDetail: a run plus its user-visible log lines and approvals.
//
// Approval: a human-in-the-loop checkpoint and its response.
//
// DaemonStatus: lock, database, scheduler and run-count summary.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Status enums are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds. Artifacts are passed
// through as json.RawMessage to avoid double-encoding.
package api
