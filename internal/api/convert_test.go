package api

import (
	"encoding/json"
	"testing"
	"time"

	"contentfactory/internal/store"
)

func TestFromRun(t *testing.T) {
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	done := started.Add(5 * time.Minute)
	run := &store.PipelineRun{
		ID:              "run-1",
		TriggerType:     store.TriggerManual,
		PipelineType:    "content",
		Status:          store.RunCompleted,
		Order:           []string{"topic-manager", "content-generator", "gutenberg-builder", "translator"},
		Cursor:          2,
		StagesCompleted: []string{"topic-manager", "content-generator"},
		ArtifactsJSON:   `{"content_piece_id":"c1"}`,
		OptionsJSON:     "not json",
		StartedAt:       started,
		CompletedAt:     &done,
	}

	dto := FromRun(run)
	if dto.Status != "completed" || dto.TriggerType != "manual" {
		t.Fatalf("unexpected status fields: %+v", dto)
	}
	if dto.Progress.Cursor != 2 || dto.Progress.Total != 4 || dto.Progress.Percent != 50 {
		t.Fatalf("unexpected progress: %+v", dto.Progress)
	}
	if dto.StartedAt != "2026-03-01T08:00:00.000Z" || dto.CompletedAt != "2026-03-01T08:05:00.000Z" {
		t.Fatalf("unexpected timestamps: %q %q", dto.StartedAt, dto.CompletedAt)
	}
	if string(dto.Artifacts) != `{"content_piece_id":"c1"}` {
		t.Fatalf("unexpected artifacts: %s", dto.Artifacts)
	}
	if dto.Options != nil {
		t.Fatalf("invalid options JSON should be dropped: %s", dto.Options)
	}
	if dto.StagesFailed == nil {
		t.Fatal("expected empty, non-nil stagesFailed")
	}

	encoded, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["pipelineType"] != "content" {
		t.Fatalf("expected camelCase keys, got %v", decoded)
	}
}

func TestFromApprovalAndLogs(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dto := FromApproval(&store.Approval{
		ID:                "a1",
		RunID:             "run-1",
		Status:            store.ApprovalApproved,
		Decision:          "approve",
		ResponseTimestamp: &at,
	})
	if dto.Status != "approved" || dto.ResponseTimestamp != "2026-03-01T09:00:00.000Z" || dto.CreatedAt != "" {
		t.Fatalf("unexpected approval: %+v", dto)
	}

	logs := FromLogs([]store.LogEntry{{Timestamp: at, Level: "WARN", Worker: "translator", Message: "retrying"}})
	if len(logs) != 1 || logs[0].Level != "warn" || logs[0].Worker != "translator" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestFromRunCounts(t *testing.T) {
	counts := FromRunCounts(map[store.RunStatus]int{store.RunPaused: 2, store.RunFailed: 1})
	if counts["paused"] != 2 || counts["failed"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
