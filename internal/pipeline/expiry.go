package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/store"
)

// ExpireStaleApprovals expires every pending approval older than the
// configured timeout and moves its paused run to expired. It returns the
// number of approvals expired. A zero timeout disables the sweep.
func (o *Orchestrator) ExpireStaleApprovals(ctx context.Context) (int, error) {
	timeout := o.cfg.ApprovalTimeout()
	if timeout <= 0 {
		return 0, nil
	}
	now := o.now().UTC()
	stale, err := o.store.ListApprovals(ctx, store.ApprovalQuery{
		Status:        store.ApprovalPending,
		CreatedBefore: now.Add(-timeout),
	})
	if err != nil {
		return 0, fmt.Errorf("list stale approvals: %w", err)
	}
	expired := 0
	for _, appr := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		ok, err := o.expireApproval(ctx, appr.ID, now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		o.logger.Info("expired stale approvals",
			logging.Int("count", expired),
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldEventType, "approvals_expired"),
		)
	}
	return expired, nil
}

func (o *Orchestrator) expireApproval(ctx context.Context, approvalID string, now time.Time) (bool, error) {
	appr, err := o.store.GetApproval(ctx, approvalID)
	if err != nil || appr == nil {
		return false, err
	}
	unlock := o.locks.lock(appr.RunID)
	defer unlock()

	if appr, err = o.store.GetApproval(ctx, approvalID); err != nil || appr == nil {
		return false, err
	}
	if appr.Status != store.ApprovalPending {
		return false, nil
	}
	appr.Status = store.ApprovalExpired
	appr.ResponseTimestamp = &now
	if err := o.store.UpdateApproval(context.WithoutCancel(ctx), appr); err != nil {
		return false, fmt.Errorf("expire approval %s: %w", appr.ID, err)
	}

	run, err := o.store.GetPipelineRun(ctx, appr.RunID)
	if err != nil {
		return true, err
	}
	if run == nil || run.Status != store.RunPaused || run.PendingApprovalID != appr.ID {
		return true, nil
	}
	cause := &ApprovalTimeoutError{ApprovalID: appr.ID, RunID: run.ID, Waited: now.Sub(appr.CreatedAt)}
	if err := transition(run, store.RunExpired); err != nil {
		return true, err
	}
	run.PendingApprovalID = ""
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &now
	ctx = o.runContext(ctx, run)
	if err := o.persist(ctx, run); err != nil {
		return true, fmt.Errorf("persist run expiry: %w", err)
	}
	o.record(ctx, run, slog.LevelWarn, appr.Worker, run.ErrorMessage,
		logging.String(logging.FieldEventType, "run_expired"),
		logging.String(logging.FieldApprovalID, appr.ID),
	)
	o.notify(ctx, notifications.EventRunExpired, notifications.Payload{
		"runID": run.ID, "pipeline": run.PipelineType, "approvalID": appr.ID,
	})
	return true, nil
}
