package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contentfactory/internal/logging"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// Resume continues a run left running or pending by a previous process.
// Paused runs wait for a decision and terminal runs cannot be resumed.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (RunResult, error) {
	unlock := o.locks.lock(runID)
	defer unlock()

	run, err := o.store.GetPipelineRun(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	if run == nil {
		return RunResult{Error: "Pipeline run not found: " + runID}, &RecordNotFoundError{Kind: "Pipeline run", ID: runID}
	}
	if run.Status.IsTerminal() {
		res, _ := ResultFor(run)
		return res, &RunAlreadyTerminalError{RunID: run.ID, Status: run.Status}
	}
	if run.Status == store.RunPaused {
		res, _ := ResultFor(run)
		return res, &InvalidTransitionError{RunID: run.ID, From: run.Status, To: store.RunRunning}
	}
	if run.Status == store.RunPending {
		if err := transition(run, store.RunRunning); err != nil {
			return RunResult{}, err
		}
	}
	ctx = o.runContext(ctx, run)
	o.record(ctx, run, slog.LevelInfo, "", fmt.Sprintf("resuming at %d/%d", run.Cursor, len(run.Order)),
		logging.String(logging.FieldEventType, "run_resumed"),
	)
	return o.drive(ctx, run)
}

// ResumeInterrupted resumes every run a previous process left running.
func (o *Orchestrator) ResumeInterrupted(ctx context.Context) ([]RunResult, error) {
	runs, err := o.store.ListPipelineRuns(ctx, 0, store.RunPending, store.RunRunning)
	if err != nil {
		return nil, fmt.Errorf("list interrupted runs: %w", err)
	}
	results := make([]RunResult, 0, len(runs))
	var errs []error
	for _, run := range runs {
		res, err := o.Resume(ctx, run.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("resume %s: %w", run.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// CancelRun fails a non-terminal run and expires its pending approval.
func (o *Orchestrator) CancelRun(ctx context.Context, runID, reason string) (RunResult, error) {
	unlock := o.locks.lock(runID)
	defer unlock()

	run, err := o.store.GetPipelineRun(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	if run == nil {
		return RunResult{Error: "Pipeline run not found: " + runID}, &RecordNotFoundError{Kind: "Pipeline run", ID: runID}
	}
	artifacts, err := stage.DecodeArtifacts(run.ArtifactsJSON)
	if err != nil {
		return RunResult{}, err
	}
	if run.Status.IsTerminal() {
		return resultFor(run, artifacts), &RunAlreadyTerminalError{RunID: run.ID, Status: run.Status}
	}
	ctx = o.runContext(ctx, run)
	if run.PendingApprovalID != "" {
		appr, err := o.store.GetApproval(ctx, run.PendingApprovalID)
		if err != nil {
			return resultFor(run, artifacts), err
		}
		if appr != nil && appr.Status == store.ApprovalPending {
			at := o.now().UTC()
			appr.Status = store.ApprovalExpired
			appr.ResponseTimestamp = &at
			if err := o.store.UpdateApproval(context.WithoutCancel(ctx), appr); err != nil {
				return resultFor(run, artifacts), fmt.Errorf("expire approval: %w", err)
			}
		}
	}
	if reason == "" {
		reason = "cancelled"
	}
	return o.failRun(ctx, run, artifacts, errors.New(reason))
}

// Run loads a persisted run.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*store.PipelineRun, error) {
	run, err := o.store.GetPipelineRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &RecordNotFoundError{Kind: "Pipeline run", ID: runID}
	}
	return run, nil
}
