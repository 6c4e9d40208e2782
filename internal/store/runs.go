package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = "id, trigger_type, pipeline_type, status, current_stage, order_json, cursor, stages_completed_json, stages_failed_json, artifacts_json, options_json, pending_approval_id, revision_count, revision_feedback, error_message, started_at, updated_at, completed_at"

func scanRun(row scanner) (*PipelineRun, error) {
	var (
		run                               PipelineRun
		trigger, status                   string
		currentStage, pendingApproval     sql.NullString
		revisionFeedback, errorMessage    sql.NullString
		orderRaw, completedRaw, failedRaw string
		startedRaw, updatedRaw            string
		finishedRaw                       sql.NullString
	)
	if err := row.Scan(
		&run.ID, &trigger, &run.PipelineType, &status, &currentStage, &orderRaw, &run.Cursor,
		&completedRaw, &failedRaw, &run.ArtifactsJSON, &run.OptionsJSON, &pendingApproval,
		&run.RevisionCount, &revisionFeedback, &errorMessage, &startedRaw, &updatedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	run.TriggerType = TriggerType(trigger)
	run.Status = RunStatus(status)
	run.CurrentStage = currentStage.String
	run.Order = decodeList(orderRaw)
	run.StagesCompleted = decodeList(completedRaw)
	run.StagesFailed = decodeList(failedRaw)
	run.PendingApprovalID = pendingApproval.String
	run.RevisionFeedback = revisionFeedback.String
	run.ErrorMessage = errorMessage.String
	run.StartedAt, _ = parseTimeString(startedRaw)
	run.UpdatedAt, _ = parseTimeString(updatedRaw)
	if finishedRaw.Valid {
		run.CompletedAt = parseTimePtr(finishedRaw.String)
	}
	return &run, nil
}

// CreatePipelineRun inserts run, assigning an id and timestamps when unset.
func (s *Store) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.ID = newID(run.ID)
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = RunPending
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO pipeline_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.TriggerType), run.PipelineType, string(run.Status), nullableString(run.CurrentStage),
		encodeList(run.Order), run.Cursor, encodeList(run.StagesCompleted), encodeList(run.StagesFailed),
		orDefault(run.ArtifactsJSON, "{}"), orDefault(run.OptionsJSON, "{}"), nullableString(run.PendingApprovalID),
		run.RevisionCount, nullableString(run.RevisionFeedback), nullableString(run.ErrorMessage),
		formatTime(run.StartedAt), formatTime(run.UpdatedAt), nullableTime(run.CompletedAt),
	); err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

const updateRunSQL = `UPDATE pipeline_runs SET
            status = ?, current_stage = ?, order_json = ?, cursor = ?,
            stages_completed_json = ?, stages_failed_json = ?, artifacts_json = ?, options_json = ?,
            pending_approval_id = ?, revision_count = ?, revision_feedback = ?, error_message = ?,
            updated_at = ?, completed_at = ?
        WHERE id = ?`

func runUpdateArgs(run *PipelineRun) []any {
	return []any{
		string(run.Status), nullableString(run.CurrentStage), encodeList(run.Order), run.Cursor,
		encodeList(run.StagesCompleted), encodeList(run.StagesFailed),
		orDefault(run.ArtifactsJSON, "{}"), orDefault(run.OptionsJSON, "{}"),
		nullableString(run.PendingApprovalID), run.RevisionCount, nullableString(run.RevisionFeedback),
		nullableString(run.ErrorMessage), formatTime(run.UpdatedAt), nullableTime(run.CompletedAt), run.ID,
	}
}

// UpdatePipelineRun persists every mutable field of run.
func (s *Store) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, updateRunSQL, runUpdateArgs(run)...)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	return requireRow(res, "pipeline run", run.ID)
}

// GetPipelineRun returns the run or nil when it does not exist.
func (s *Store) GetPipelineRun(ctx context.Context, id string) (*PipelineRun, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return run, nil
}

// GetPipelineRunByApproval returns the run an approval belongs to, or nil.
func (s *Store) GetPipelineRunByApproval(ctx context.Context, approvalID string) (*PipelineRun, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+prefixed("r.", runColumns)+` FROM pipeline_runs r JOIN approvals a ON a.run_id = r.id WHERE a.id = ?`,
		approvalID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline run by approval: %w", err)
	}
	return run, nil
}

// ListPipelineRuns returns runs newest first, optionally filtered by status.
func (s *Store) ListPipelineRuns(ctx context.Context, limit int, statuses ...RunStatus) ([]*PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY started_at DESC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()
	var runs []*PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRunsByStatus returns the number of runs per status.
func (s *Store) CountRunsByStatus(ctx context.Context) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM pipeline_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()
	counts := make(map[RunStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan run count: %w", err)
		}
		counts[RunStatus(status)] = count
	}
	return counts, rows.Err()
}

// AddPipelineLog appends a log entry to a run.
func (s *Store) AddPipelineLog(ctx context.Context, runID string, entry LogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO pipeline_logs (run_id, ts, level, worker, message) VALUES (?, ?, ?, ?, ?)`,
		runID, formatTime(ts), orDefault(entry.Level, "info"), nullableString(entry.Worker), entry.Message,
	); err != nil {
		return fmt.Errorf("insert pipeline log: %w", err)
	}
	return nil
}

// ListPipelineLogs returns a run's log entries in insertion order.
func (s *Store) ListPipelineLogs(ctx context.Context, runID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, ts, level, worker, message FROM pipeline_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline logs: %w", err)
	}
	defer rows.Close()
	var entries []LogEntry
	for rows.Next() {
		var (
			entry  LogEntry
			tsRaw  string
			worker sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.RunID, &tsRaw, &entry.Level, &worker, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan pipeline log: %w", err)
		}
		entry.Timestamp, _ = parseTimeString(tsRaw)
		entry.Worker = worker.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
