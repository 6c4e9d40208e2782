package api

import (
	"encoding/json"
	"strings"
	"time"

	"contentfactory/internal/store"
)

// FromRun converts a run record to its API representation.
func FromRun(run *store.PipelineRun) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:              run.ID,
		TriggerType:     string(run.TriggerType),
		PipelineType:    run.PipelineType,
		Status:          string(run.Status),
		CurrentStage:    run.CurrentStage,
		Order:           nonNil(run.Order),
		Progress:        progress(run.Cursor, len(run.Order)),
		StagesCompleted: nonNil(run.StagesCompleted),
		StagesFailed:    nonNil(run.StagesFailed),
		PendingApproval: run.PendingApprovalID,
		RevisionCount:   run.RevisionCount,
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       formatTime(run.StartedAt),
		UpdatedAt:       formatTime(run.UpdatedAt),
		Artifacts:       rawJSON(run.ArtifactsJSON),
		Options:         rawJSON(run.OptionsJSON),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	return dto
}

// FromRuns converts a run list.
func FromRuns(runs []*store.PipelineRun) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromLogs converts run log lines.
func FromLogs(entries []store.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntry{
			Timestamp: formatTime(e.Timestamp),
			Level:     strings.ToLower(e.Level),
			Worker:    e.Worker,
			Message:   e.Message,
		})
	}
	return out
}

// FromApproval converts an approval record.
func FromApproval(a *store.Approval) Approval {
	if a == nil {
		return Approval{}
	}
	dto := Approval{
		ID:             a.ID,
		RunID:          a.RunID,
		Type:           a.Type,
		Status:         string(a.Status),
		Worker:         a.Worker,
		RewindTo:       a.RewindTo,
		RelatedID:      a.RelatedID,
		RelatedTitle:   a.RelatedTitle,
		MessageRef:     a.MessageRef,
		Decision:       a.Decision,
		Feedback:       a.Feedback,
		ResponseUserID: a.ResponseUserID,
		CreatedAt:      formatTime(a.CreatedAt),
	}
	if a.ResponseTimestamp != nil {
		dto.ResponseTimestamp = formatTime(*a.ResponseTimestamp)
	}
	return dto
}

// FromApprovals converts an approval list.
func FromApprovals(approvals []*store.Approval) []Approval {
	out := make([]Approval, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, FromApproval(a))
	}
	return out
}

// FromRunCounts converts store status counts to string keys.
func FromRunCounts(counts map[store.RunStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

func progress(cursor, total int) RunProgress {
	p := RunProgress{Cursor: cursor, Total: total}
	if total > 0 {
		p.Percent = float64(min(cursor, total)) / float64(total) * 100
	}
	return p
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func rawJSON(value string) json.RawMessage {
	value = strings.TrimSpace(value)
	if value == "" || !json.Valid([]byte(value)) {
		return nil
	}
	return json.RawMessage(value)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
