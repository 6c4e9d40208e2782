package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const approvalColumns = "id, run_id, type, status, worker, rewind_to, related_id, related_title, message_ref, decision, feedback, response_user_id, response_timestamp, created_at"

func scanApproval(row scanner) (*Approval, error) {
	var (
		approval                                   Approval
		status, createdRaw                         string
		worker, rewindTo, relatedID, relatedTitle  sql.NullString
		messageRef, decision, feedback, responseBy sql.NullString
		responseAt                                 sql.NullString
	)
	if err := row.Scan(
		&approval.ID, &approval.RunID, &approval.Type, &status, &worker, &rewindTo, &relatedID, &relatedTitle,
		&messageRef, &decision, &feedback, &responseBy, &responseAt, &createdRaw,
	); err != nil {
		return nil, err
	}
	approval.Status = ApprovalStatus(status)
	approval.Worker = worker.String
	approval.RewindTo = rewindTo.String
	approval.RelatedID = relatedID.String
	approval.RelatedTitle = relatedTitle.String
	approval.MessageRef = messageRef.String
	approval.Decision = decision.String
	approval.Feedback = feedback.String
	approval.ResponseUserID = responseBy.String
	if responseAt.Valid {
		approval.ResponseTimestamp = parseTimePtr(responseAt.String)
	}
	approval.CreatedAt, _ = parseTimeString(createdRaw)
	return &approval, nil
}

const insertApprovalSQL = `INSERT INTO approvals (` + approvalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func prepareApproval(approval *Approval) {
	approval.ID = newID(approval.ID)
	if approval.Status == "" {
		approval.Status = ApprovalPending
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
}

func approvalArgs(approval *Approval) []any {
	return []any{
		approval.ID, approval.RunID, approval.Type, string(approval.Status),
		nullableString(approval.Worker), nullableString(approval.RewindTo),
		nullableString(approval.RelatedID), nullableString(approval.RelatedTitle),
		nullableString(approval.MessageRef), nullableString(approval.Decision), nullableString(approval.Feedback),
		nullableString(approval.ResponseUserID), nullableTime(approval.ResponseTimestamp),
		formatTime(approval.CreatedAt),
	}
}

// PauseRun stores approval as the single pending approval of run and saves
// run with it in one transaction. Older pending approvals of the run are
// expired.
func (s *Store) PauseRun(ctx context.Context, run *PipelineRun, approval *Approval) error {
	if run == nil || approval == nil {
		return errors.New("run and approval are required")
	}
	ctx = ensureContext(ctx)
	approval.RunID = run.ID
	prepareApproval(approval)
	run.PendingApprovalID = approval.ID
	run.UpdatedAt = time.Now().UTC()
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin pause tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, updateRunSQL, runUpdateArgs(run)...)
		if err != nil {
			return fmt.Errorf("update pipeline run: %w", err)
		}
		if err := requireRow(res, "pipeline run", run.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE approvals SET status = ? WHERE run_id = ? AND status = ?`,
			string(ApprovalExpired), run.ID, string(ApprovalPending),
		); err != nil {
			return fmt.Errorf("expire superseded approvals: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertApprovalSQL, approvalArgs(approval)...); err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit pause: %w", err)
		}
		return nil
	})
}

// UpdateApproval persists the mutable approval fields.
func (s *Store) UpdateApproval(ctx context.Context, approval *Approval) error {
	if approval == nil {
		return errors.New("approval is nil")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE approvals SET status = ?, message_ref = ?, decision = ?, feedback = ?,
            response_user_id = ?, response_timestamp = ?
        WHERE id = ?`,
		string(approval.Status), nullableString(approval.MessageRef), nullableString(approval.Decision),
		nullableString(approval.Feedback), nullableString(approval.ResponseUserID),
		nullableTime(approval.ResponseTimestamp), approval.ID,
	)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	return requireRow(res, "approval", approval.ID)
}

// GetApproval returns the approval or nil when it does not exist.
func (s *Store) GetApproval(ctx context.Context, id string) (*Approval, error) {
	return s.getApprovalWhere(ctx, "id = ?", id)
}

// GetApprovalBySlackMessage returns the approval whose request was posted as
// messageRef, or nil.
func (s *Store) GetApprovalBySlackMessage(ctx context.Context, messageRef string) (*Approval, error) {
	if messageRef == "" {
		return nil, nil
	}
	return s.getApprovalWhere(ctx, "message_ref = ? ORDER BY created_at DESC", messageRef)
}

func (s *Store) getApprovalWhere(ctx context.Context, where string, args ...any) (*Approval, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+approvalColumns+` FROM approvals WHERE `+where+` LIMIT 1`, args...)
	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return approval, nil
}

// ApprovalQuery filters ListApprovals. Zero values mean no restriction.
type ApprovalQuery struct {
	RunID         string
	Status        ApprovalStatus
	CreatedBefore time.Time
}

// ListApprovals returns approvals oldest first.
func (s *Store) ListApprovals(ctx context.Context, q ApprovalQuery) ([]*Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE 1 = 1`
	var args []any
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(q.Status))
	}
	if !q.CreatedBefore.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(q.CreatedBefore))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()
	var approvals []*Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}
