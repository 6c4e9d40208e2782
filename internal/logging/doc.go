// Package logging assembles structured slog loggers and formatting helpers used
// across Content Factory.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can automatically
// tag log lines with run IDs, worker names, pipeline types, and correlation
// IDs. Per-worker level overrides from the [logging] config section are applied
// through ForWorker.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape and routing.
package logging
