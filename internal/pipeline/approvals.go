package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"contentfactory/internal/approval"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// pause records an approval for the artifact worker just produced and
// suspends the run. The approval and the paused run are stored together
// before dispatch, so a paused run always has exactly one pending approval.
func (o *Orchestrator) pause(ctx context.Context, run *store.PipelineRun, worker string, artifacts stage.Artifacts, spec stage.ApprovalSpec, opts stage.Options) (RunResult, error) {
	if spec.Type == "" {
		spec.Type = worker
	}
	if spec.RewindTo == "" {
		spec.RewindTo = worker
	}
	appr := &store.Approval{
		RunID:        run.ID,
		Type:         spec.Type,
		Status:       store.ApprovalPending,
		Worker:       worker,
		RewindTo:     spec.RewindTo,
		RelatedID:    spec.RelatedID,
		RelatedTitle: spec.RelatedTitle,
		CreatedAt:    o.now().UTC(),
	}
	if err := transition(run, store.RunPaused); err != nil {
		return resultFor(run, artifacts), err
	}
	run.RevisionFeedback = ""
	if err := o.store.PauseRun(context.WithoutCancel(ctx), run, appr); err != nil {
		return resultFor(run, artifacts), fmt.Errorf("persist run pause: %w", err)
	}
	o.record(ctx, run, slog.LevelInfo, worker, "run paused for approval "+appr.ID,
		logging.String(logging.FieldEventType, "run_paused"),
		logging.String(logging.FieldApprovalID, appr.ID),
	)

	switch {
	case opts.TestMode:
		o.record(ctx, run, slog.LevelInfo, worker, "test mode: approval request not dispatched")
	default:
		ref, err := o.gateway.RequestApproval(ctx, approval.Request{ApprovalID: appr.ID, RunID: run.ID, Spec: spec})
		if err != nil {
			o.record(ctx, run, slog.LevelWarn, worker, "approval request not delivered; decide via API or CLI: "+err.Error(),
				logging.String(logging.FieldEventType, "approval_dispatch_failed"),
				logging.String(logging.FieldErrorHint, "check slack configuration"),
			)
			break
		}
		appr.MessageRef = ref
		if err := o.store.UpdateApproval(context.WithoutCancel(ctx), appr); err != nil {
			return resultFor(run, artifacts), fmt.Errorf("store approval message ref: %w", err)
		}
	}
	o.notify(ctx, notifications.EventRunPaused, notifications.Payload{
		"runID": run.ID, "pipeline": run.PipelineType, "stage": worker, "approvalID": appr.ID,
	})
	return resultFor(run, artifacts), nil
}

// ApplyDecision resolves a pending approval and continues the run:
// approve resumes after the producing worker, request_revision rewinds to
// the approval's rewind worker, reject fails the run. Deciding an approval
// that is no longer pending returns an error and changes nothing.
func (o *Orchestrator) ApplyDecision(ctx context.Context, approvalID string, decision approval.Decision) (RunResult, error) {
	appr, err := o.store.GetApproval(ctx, approvalID)
	if err != nil {
		return RunResult{}, err
	}
	if appr == nil {
		return RunResult{Error: "Approval not found: " + approvalID}, &RecordNotFoundError{Kind: "Approval", ID: approvalID}
	}

	unlock := o.locks.lock(appr.RunID)
	defer unlock()

	// Re-read under the lock; a concurrent decision may have won.
	if appr, err = o.store.GetApproval(ctx, approvalID); err != nil {
		return RunResult{}, err
	}
	run, err := o.store.GetPipelineRun(ctx, appr.RunID)
	if err != nil {
		return RunResult{}, err
	}
	if run == nil {
		return RunResult{Error: "Pipeline run not found: " + appr.RunID}, &RecordNotFoundError{Kind: "Pipeline run", ID: appr.RunID}
	}
	artifacts, err := stage.DecodeArtifacts(run.ArtifactsJSON)
	if err != nil {
		return RunResult{}, err
	}
	if run.Status.IsTerminal() {
		return resultFor(run, artifacts), &RunAlreadyTerminalError{RunID: run.ID, Status: run.Status}
	}
	if appr.Status != store.ApprovalPending {
		return resultFor(run, artifacts), &ApprovalResolvedError{ApprovalID: appr.ID, Status: appr.Status}
	}
	if run.Status != store.RunPaused || run.PendingApprovalID != appr.ID {
		return resultFor(run, artifacts), &InvalidTransitionError{RunID: run.ID, From: run.Status, To: store.RunRunning}
	}

	at := decision.At
	if at.IsZero() {
		at = o.now()
	}
	at = at.UTC()
	appr.Decision = string(decision.Kind)
	appr.ResponseUserID = strings.TrimSpace(decision.UserID)
	appr.ResponseTimestamp = &at
	appr.Feedback = strings.TrimSpace(decision.Feedback)

	ctx = o.runContext(ctx, run)
	switch decision.Kind {
	case approval.DecisionApprove:
		appr.Status = store.ApprovalApproved
	case approval.DecisionReject, approval.DecisionRequestRevision:
		appr.Status = store.ApprovalRejected
	default:
		return resultFor(run, artifacts), services.Wrap(services.ErrValidation, "orchestrator", "apply decision",
			fmt.Sprintf("unknown decision %q", decision.Kind), nil)
	}
	if err := o.store.UpdateApproval(context.WithoutCancel(ctx), appr); err != nil {
		return resultFor(run, artifacts), fmt.Errorf("update approval: %w", err)
	}
	run.PendingApprovalID = ""
	o.record(ctx, run, slog.LevelInfo, appr.Worker, fmt.Sprintf("approval %s: %s by %s", appr.ID, decision.Kind, orDash(appr.ResponseUserID)),
		logging.String(logging.FieldEventType, "approval_decided"),
		logging.String(logging.FieldApprovalID, appr.ID),
	)

	switch decision.Kind {
	case approval.DecisionReject:
		reason := "rejected by reviewer"
		if appr.Feedback != "" {
			reason += ": " + appr.Feedback
		}
		return o.failRun(ctx, run, artifacts, errors.New(reason))
	case approval.DecisionRequestRevision:
		return o.revise(ctx, run, appr, artifacts)
	default:
		if err := transition(run, store.RunRunning); err != nil {
			return resultFor(run, artifacts), err
		}
		return o.drive(ctx, run)
	}
}

// revise rewinds the run to the approval's rewind worker and re-runs from
// there with the reviewer's feedback.
func (o *Orchestrator) revise(ctx context.Context, run *store.PipelineRun, appr *store.Approval, artifacts stage.Artifacts) (RunResult, error) {
	run.RevisionCount++
	if limit := o.cfg.Workflow.MaxRevisions; limit > 0 && run.RevisionCount > limit {
		return o.failRun(ctx, run, artifacts, fmt.Errorf("revision limit reached (%d)", limit))
	}
	if err := rewind(run, appr.RewindTo, appr.Worker); err != nil {
		return o.failRun(ctx, run, artifacts, err)
	}
	if err := transition(run, store.RunRunning); err != nil {
		return resultFor(run, artifacts), err
	}
	run.RevisionFeedback = appr.Feedback
	if err := o.persist(ctx, run); err != nil {
		return resultFor(run, artifacts), fmt.Errorf("persist rewind: %w", err)
	}
	o.record(ctx, run, slog.LevelInfo, run.Order[run.Cursor], fmt.Sprintf("revision %d requested; rewinding", run.RevisionCount),
		logging.String(logging.FieldEventType, "run_rewound"),
	)

	opts, _ := stage.DecodeOptions(run.OptionsJSON)
	if !opts.TestMode {
		if err := o.gateway.RequestRevision(ctx, appr.ID, run.ID, appr.Feedback, appr.MessageRef); err != nil && !errors.Is(err, approval.ErrChannelUnavailable) {
			logging.WarnWithContext(o.runLogger(ctx), "revision acknowledgement not delivered", "revision_dispatch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check slack configuration"),
				logging.String(logging.FieldImpact, "reviewer not notified; revision proceeds"),
			)
		}
	}
	return o.drive(ctx, run)
}

// rewind moves the cursor back to target (or fallback when target is not
// in the order) and forgets the outcome of every worker from there on.
func rewind(run *store.PipelineRun, target, fallback string) error {
	idx := slices.Index(run.Order, target)
	if idx < 0 {
		idx = slices.Index(run.Order, fallback)
	}
	if idx < 0 {
		return fmt.Errorf("cannot rewind run %s: neither %q nor %q is in its order", run.ID, target, fallback)
	}
	keep := func(ids []string) []string {
		out := ids[:0:0]
		for _, id := range ids {
			if pos := slices.Index(run.Order, id); pos >= 0 && pos < idx {
				out = append(out, id)
			}
		}
		return out
	}
	run.Cursor = idx
	run.StagesCompleted = keep(run.StagesCompleted)
	run.StagesFailed = keep(run.StagesFailed)
	return nil
}

// HandleApprovalEvent applies an inbound channel event. It returns nil
// without touching any run when the message is not an approval request,
// the event is not a recognized decision, or the approval is already
// resolved.
func (o *Orchestrator) HandleApprovalEvent(ctx context.Context, messageRef, userID, reaction, replyText string) (*RunResult, error) {
	resp := o.gateway.ProcessApprovalResponse(messageRef, userID, reaction, replyText)
	if resp == nil {
		return nil, nil
	}
	appr, err := o.store.GetApprovalBySlackMessage(ctx, resp.MessageRef)
	if err != nil {
		return nil, err
	}
	if appr == nil {
		return nil, nil
	}
	if appr.Status != store.ApprovalPending {
		o.logger.Debug("ignoring response to resolved approval",
			logging.String(logging.FieldApprovalID, appr.ID),
			logging.String("status", string(appr.Status)),
		)
		return nil, nil
	}
	res, err := o.ApplyDecision(ctx, appr.ID, resp.AsDecision())
	if errors.Is(err, ErrApprovalResolved) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// PendingApprovals lists approvals awaiting a decision, oldest first.
func (o *Orchestrator) PendingApprovals(ctx context.Context) ([]*store.Approval, error) {
	return o.store.ListApprovals(ctx, store.ApprovalQuery{Status: store.ApprovalPending})
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
