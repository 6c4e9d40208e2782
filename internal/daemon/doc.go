// Package daemon coordinates the long-running content factory process.
//
// It wires configuration, the record store, the run engine, the healer and
// the batch processor into a single lifecycle with flock-based locking to
// prevent multiple instances. On start it resumes runs interrupted by a
// previous process, then ticks a scheduler that fires each configured
// pipeline at most once per scheduled weekday, sweeps stale approvals, and
// serves the HTTP API including the Slack approval webhook.
//
// Keep orchestration logic here: pipeline behaviour lives in the pipeline,
// workers and healer packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
