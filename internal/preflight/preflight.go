package preflight

import (
	"context"

	"contentfactory/internal/config"
	"contentfactory/internal/registry"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.DataDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, "LLM", cfg.GetLLM()))
	}
	if cfg.WordPress.BaseURL != "" {
		results = append(results, CheckWordPress(ctx, cfg.WordPress.BaseURL, cfg.WordPress.Username, cfg.WordPress.AppPassword))
	}
	return results
}

// CheckWorkers runs every bound worker's HealthCheck in manifest order.
// Declared workers without an implementation fail.
func CheckWorkers(ctx context.Context, reg *registry.Registry) []Result {
	if reg == nil {
		return nil
	}
	defs := reg.Definitions()
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		worker, ok := reg.Worker(def.ID)
		if !ok {
			results = append(results, Result{Name: def.ID, Detail: "no implementation bound"})
			continue
		}
		health := worker.HealthCheck(ctx)
		detail := health.Detail
		if detail == "" && health.Ready {
			detail = "ready"
		}
		results = append(results, Result{Name: def.ID, Passed: health.Ready, Detail: detail})
	}
	return results
}

// Failed filters results down to the failing checks.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
