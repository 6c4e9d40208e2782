// Package pipeline is the run engine. It resolves a worker order from the
// registry, executes workers strictly sequentially per run, persists every
// step to the record store, pauses for human approval, applies decisions
// (resume, rewind for revision, fail on rejection), expires stale approvals
// and resumes interrupted runs after a restart.
//
// Runs are independent state machines. A per-run mutex serializes mutations
// of the same run; different runs proceed concurrently.
//
// Entry points return a RunResult for every expected outcome, including
// worker failures and missing records. Go errors are reserved for
// configuration problems, terminal-state violations and store failures.
package pipeline
