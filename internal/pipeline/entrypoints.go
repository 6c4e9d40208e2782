package pipeline

import (
	"context"
	"fmt"
	"slices"

	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// Pipeline names from the worker manifest.
const (
	PipelineContent = "content"
	PipelinePodcast = "podcast-autopilot"
	PipelineSEO     = "seo-optimizer"
)

// RunOptions configures a content pipeline run. An empty Workers list runs
// the manifest's content pipeline.
type RunOptions struct {
	Workers      []string
	TestMode     bool
	SkipFailures bool
	TopicID      string
	Trigger      store.TriggerType
}

// PodcastOptions configures a podcast autopilot run.
type PodcastOptions struct {
	TestMode bool
	Trigger  store.TriggerType
}

// SEOOptions configures an SEO optimizer run. Zero values fall back to
// workflow.seo_limit and workflow.seo_min_score.
type SEOOptions struct {
	Limit    int
	MinScore int
	TestMode bool
	Trigger  store.TriggerType
}

// RunContentPipeline resolves opts.Workers and executes them as one run.
func (o *Orchestrator) RunContentPipeline(ctx context.Context, opts RunOptions) (RunResult, error) {
	workers := slices.Clone(opts.Workers)
	if len(workers) == 0 {
		defaults, err := o.pipelineWorkers(PipelineContent)
		if err != nil {
			return RunResult{PipelineType: PipelineContent, Error: err.Error()}, err
		}
		workers = defaults
	}
	return o.start(ctx, runSpec{
		pipelineType: PipelineContent,
		trigger:      opts.Trigger,
		workers:      workers,
		options: stage.Options{
			TestMode:     opts.TestMode,
			SkipFailures: opts.SkipFailures,
			TopicID:      opts.TopicID,
		},
	})
}

// RunPodcastAutoPilot produces an episode for the newest published piece
// that has none.
func (o *Orchestrator) RunPodcastAutoPilot(ctx context.Context, opts PodcastOptions) (RunResult, error) {
	workers, err := o.pipelineWorkers(PipelinePodcast)
	if err != nil {
		return RunResult{PipelineType: PipelinePodcast, Error: err.Error()}, err
	}
	return o.start(ctx, runSpec{
		pipelineType: PipelinePodcast,
		trigger:      opts.Trigger,
		workers:      workers,
		options:      stage.Options{TestMode: opts.TestMode},
	})
}

// RunSEOOptimizer improves the lowest-scoring published pieces.
func (o *Orchestrator) RunSEOOptimizer(ctx context.Context, opts SEOOptions) (RunResult, error) {
	workers, err := o.pipelineWorkers(PipelineSEO)
	if err != nil {
		return RunResult{PipelineType: PipelineSEO, Error: err.Error()}, err
	}
	if opts.Limit <= 0 {
		opts.Limit = o.cfg.Workflow.SEOLimit
	}
	if opts.MinScore <= 0 {
		opts.MinScore = o.cfg.Workflow.SEOMinScore
	}
	return o.start(ctx, runSpec{
		pipelineType: PipelineSEO,
		trigger:      opts.Trigger,
		workers:      workers,
		options: stage.Options{
			TestMode:    opts.TestMode,
			SEOLimit:    opts.Limit,
			SEOMinScore: opts.MinScore,
		},
	})
}

func (o *Orchestrator) pipelineWorkers(name string) ([]string, error) {
	workers, ok := o.registry.Pipeline(name)
	if !ok || len(workers) == 0 {
		return nil, fmt.Errorf("pipeline %q is not defined in the worker manifest", name)
	}
	return workers, nil
}
