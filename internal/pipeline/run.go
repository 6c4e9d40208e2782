package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// RunResult is the outcome of an entry point call. CompletedWorkers,
// FailedWorkers and NotAttempted partition the resolved worker order.
type RunResult struct {
	Success          bool
	RunID            string
	PipelineType     string
	Status           store.RunStatus
	CompletedWorkers []string
	FailedWorkers    []string
	NotAttempted     []string
	Artifacts        stage.Artifacts
	ApprovalID       string
	Error            string
}

func resultFor(run *store.PipelineRun, artifacts stage.Artifacts) RunResult {
	res := RunResult{
		RunID:            run.ID,
		PipelineType:     run.PipelineType,
		Status:           run.Status,
		CompletedWorkers: slices.Clone(run.StagesCompleted),
		FailedWorkers:    slices.Clone(run.StagesFailed),
		Artifacts:        artifacts.Clone(),
		ApprovalID:       run.PendingApprovalID,
		Error:            run.ErrorMessage,
	}
	if run.Cursor < len(run.Order) {
		res.NotAttempted = slices.Clone(run.Order[run.Cursor:])
	}
	res.Success = len(res.FailedWorkers) == 0 && run.Status != store.RunFailed && run.Status != store.RunExpired
	return res
}

// ResultFor rebuilds the result of a persisted run.
func ResultFor(run *store.PipelineRun) (RunResult, error) {
	artifacts, err := stage.DecodeArtifacts(run.ArtifactsJSON)
	if err != nil {
		return RunResult{}, err
	}
	return resultFor(run, artifacts), nil
}

type runSpec struct {
	pipelineType string
	trigger      store.TriggerType
	workers      []string
	options      stage.Options
}

// start resolves the order, persists a new run and drives it.
func (o *Orchestrator) start(ctx context.Context, spec runSpec) (RunResult, error) {
	order, err := o.registry.ResolveExecutionOrder(spec.workers)
	if err != nil {
		o.logger.Error("worker order resolution failed",
			logging.String(logging.FieldPipeline, spec.pipelineType),
			logging.String(logging.FieldEventType, "run_config_invalid"),
			logging.String(logging.FieldErrorHint, "check the worker manifest and requested workers"),
			logging.Error(err),
		)
		return RunResult{PipelineType: spec.pipelineType, Error: err.Error(), NotAttempted: slices.Clone(spec.workers)}, err
	}
	if spec.trigger == "" {
		spec.trigger = store.TriggerManual
	}
	optionsJSON, err := stage.EncodeOptions(spec.options)
	if err != nil {
		return RunResult{}, err
	}
	run := &store.PipelineRun{
		TriggerType:   spec.trigger,
		PipelineType:  spec.pipelineType,
		Status:        store.RunPending,
		Order:         order,
		OptionsJSON:   optionsJSON,
		ArtifactsJSON: "{}",
		StartedAt:     o.now().UTC(),
	}
	if err := o.store.CreatePipelineRun(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("create pipeline run: %w", err)
	}

	unlock := o.locks.lock(run.ID)
	defer unlock()

	ctx = o.runContext(ctx, run)
	if err := transition(run, store.RunRunning); err != nil {
		return RunResult{}, err
	}
	if err := o.persist(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("persist run start: %w", err)
	}
	o.record(ctx, run, slog.LevelInfo, "", fmt.Sprintf("run started (%s): %v", run.TriggerType, order),
		logging.String(logging.FieldEventType, "run_start"),
		logging.Bool("test_mode", spec.options.TestMode),
	)
	o.notify(ctx, notifications.EventRunStarted, notifications.Payload{
		"runID": run.ID, "pipeline": run.PipelineType, "trigger": string(run.TriggerType),
	})
	return o.drive(ctx, run)
}

// drive executes workers from the cursor until the run pauses, fails or
// completes. The caller holds the run lock and run.Status is running.
func (o *Orchestrator) drive(ctx context.Context, run *store.PipelineRun) (RunResult, error) {
	artifacts, err := stage.DecodeArtifacts(run.ArtifactsJSON)
	if err != nil {
		return o.failRun(ctx, run, stage.Artifacts{}, err)
	}
	opts, err := stage.DecodeOptions(run.OptionsJSON)
	if err != nil {
		return o.failRun(ctx, run, artifacts, err)
	}

	for run.Cursor < len(run.Order) {
		if err := ctx.Err(); err != nil {
			// Left running; Resume picks it up after restart.
			return resultFor(run, artifacts), err
		}
		worker := run.Order[run.Cursor]
		run.CurrentStage = worker
		if err := o.persist(ctx, run); err != nil {
			return resultFor(run, artifacts), fmt.Errorf("persist current stage: %w", err)
		}

		res := o.execute(ctx, run, worker, opts, artifacts)
		run.Cursor++
		if !res.Success {
			run.StagesFailed = append(run.StagesFailed, worker)
			execErr := &WorkerExecutionError{Worker: worker, Message: res.Error, Err: res.Err}
			if !opts.SkipFailures {
				return o.failRun(ctx, run, artifacts, execErr)
			}
			if err := o.persist(ctx, run); err != nil {
				return resultFor(run, artifacts), fmt.Errorf("persist worker failure: %w", err)
			}
			continue
		}

		artifacts.Merge(res.Artifacts)
		run.StagesCompleted = append(run.StagesCompleted, worker)
		encoded, err := stage.EncodeArtifacts(artifacts)
		if err != nil {
			return o.failRun(ctx, run, artifacts, err)
		}
		run.ArtifactsJSON = encoded

		if res.RequiresApproval != nil {
			return o.pause(ctx, run, worker, artifacts, *res.RequiresApproval, opts)
		}
		if err := o.persist(ctx, run); err != nil {
			return resultFor(run, artifacts), fmt.Errorf("persist worker result: %w", err)
		}
	}
	return o.completeRun(ctx, run, artifacts)
}

// execute invokes one worker, converting panics into a failed result.
func (o *Orchestrator) execute(ctx context.Context, run *store.PipelineRun, worker string, opts stage.Options, artifacts stage.Artifacts) (res stage.Result) {
	workerCtx := services.WithWorker(ctx, worker)
	started := o.now()
	o.record(workerCtx, run, slog.LevelInfo, worker, "worker started",
		logging.String(logging.FieldEventType, "worker_start"))

	impl, ok := o.registry.Worker(worker)
	if !ok {
		res = stage.Failed(worker, services.Wrap(services.ErrConfiguration, worker, "execute", "no implementation bound for worker", nil))
	} else {
		res = o.invoke(workerCtx, impl, stage.Input{
			RunID:            run.ID,
			PipelineType:     run.PipelineType,
			Worker:           worker,
			Options:          opts,
			Artifacts:        artifacts.Clone(),
			RevisionFeedback: run.RevisionFeedback,
			Logger:           logging.ForWorker(o.runLogger(workerCtx), o.cfg.Logging.WorkerOverrides, worker),
		})
	}
	res.Worker = worker

	elapsed := o.now().Sub(started)
	if res.Success {
		o.record(workerCtx, run, slog.LevelInfo, worker, "worker completed",
			logging.String(logging.FieldEventType, "worker_complete"),
			logging.Duration("worker_duration", elapsed),
			logging.Any("artifacts", res.Artifacts.Keys()),
		)
		return res
	}
	attrs := append([]logging.Attr{
		logging.String(logging.FieldEventType, "worker_failure"),
		logging.Alert("worker_failure"),
		logging.Duration("worker_duration", elapsed),
	}, logging.FailureAttrs(res.Err)...)
	o.record(workerCtx, run, slog.LevelError, worker, "worker failed: "+res.Error, attrs...)
	return res
}

func (o *Orchestrator) invoke(ctx context.Context, impl stage.Worker, in stage.Input) (res stage.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = stage.Failed(in.Worker, services.Wrap(services.ErrExternalTool, in.Worker, "execute", fmt.Sprintf("worker panicked: %v", r), nil))
		}
	}()
	return impl.Execute(ctx, in)
}

func (o *Orchestrator) completeRun(ctx context.Context, run *store.PipelineRun, artifacts stage.Artifacts) (RunResult, error) {
	if err := transition(run, store.RunCompleted); err != nil {
		return resultFor(run, artifacts), err
	}
	finished := o.now().UTC()
	run.CompletedAt = &finished
	run.CurrentStage = ""
	run.RevisionFeedback = ""
	if err := o.persist(ctx, run); err != nil {
		return resultFor(run, artifacts), fmt.Errorf("persist run completion: %w", err)
	}
	o.record(ctx, run, slog.LevelInfo, "", fmt.Sprintf("run completed: %d succeeded, %d failed", len(run.StagesCompleted), len(run.StagesFailed)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	o.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"runID":     run.ID,
		"pipeline":  run.PipelineType,
		"completed": len(run.StagesCompleted),
		"failed":    len(run.StagesFailed),
		"duration":  finished.Sub(run.StartedAt),
	})
	return resultFor(run, artifacts), nil
}

// failRun marks the run failed, preserving artifacts and logs gathered so far.
func (o *Orchestrator) failRun(ctx context.Context, run *store.PipelineRun, artifacts stage.Artifacts, cause error) (RunResult, error) {
	if err := transition(run, store.RunFailed); err != nil {
		return resultFor(run, artifacts), err
	}
	finished := o.now().UTC()
	run.CompletedAt = &finished
	run.ErrorMessage = cause.Error()
	run.PendingApprovalID = ""
	if err := o.persist(ctx, run); err != nil {
		return resultFor(run, artifacts), fmt.Errorf("persist run failure: %w", err)
	}
	attrs := append([]logging.Attr{
		logging.String(logging.FieldEventType, "run_failed"),
		logging.Duration("run_duration", finished.Sub(run.StartedAt)),
	}, logging.FailureAttrs(cause)...)
	o.record(ctx, run, slog.LevelError, run.CurrentStage, "run failed: "+run.ErrorMessage, attrs...)
	o.notify(ctx, notifications.EventRunFailed, notifications.Payload{
		"runID": run.ID, "pipeline": run.PipelineType, "stage": run.CurrentStage, "error": run.ErrorMessage,
	})
	return resultFor(run, artifacts), nil
}
