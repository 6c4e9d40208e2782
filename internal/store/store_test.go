package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"contentfactory/internal/services"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if s.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path %q", s.Path())
	}
	testsupport.SeedTopic(t, s, store.Topic{Title: "Persisted"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	topics, err := reopened.GetTopics(ctx)
	if err != nil {
		t.Fatalf("GetTopics: %v", err)
	}
	if len(topics) != 1 || topics[0].Title != "Persisted" {
		t.Fatalf("expected persisted topic, got %+v", topics)
	}
}

func TestTopicsOrderedByPriorityThenAge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	low := testsupport.SeedTopic(t, s, store.Topic{Title: "low", Priority: 1})
	first := testsupport.SeedTopic(t, s, store.Topic{Title: "first high", Priority: 5, Keywords: []string{"ai", "automation"}})
	time.Sleep(2 * time.Millisecond)
	second := testsupport.SeedTopic(t, s, store.Topic{Title: "second high", Priority: 5})

	if first.Status != store.TopicPending {
		t.Fatalf("expected default pending status, got %q", first.Status)
	}
	if len(first.Keywords) != 2 || first.Keywords[1] != "automation" {
		t.Fatalf("keywords not round-tripped: %v", first.Keywords)
	}

	topics, err := s.GetTopics(ctx, store.TopicPending)
	if err != nil {
		t.Fatalf("GetTopics: %v", err)
	}
	want := []string{first.ID, second.ID, low.ID}
	if len(topics) != len(want) {
		t.Fatalf("expected %d topics, got %d", len(want), len(topics))
	}
	for i, id := range want {
		if topics[i].ID != id {
			t.Fatalf("position %d: got %q want %q", i, topics[i].Title, id)
		}
	}

	if err := s.UpdateTopicStatus(ctx, first.ID, store.TopicInProgress); err != nil {
		t.Fatalf("UpdateTopicStatus: %v", err)
	}
	pending, err := s.GetTopics(ctx, store.TopicPending)
	if err != nil {
		t.Fatalf("GetTopics pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending topics, got %d", len(pending))
	}

	err = s.UpdateTopicStatus(ctx, "missing", store.TopicDone)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing topic, got %v", err)
	}
	if missing, err := s.GetTopic(ctx, "missing"); err != nil || missing != nil {
		t.Fatalf("expected nil topic, got %+v err=%v", missing, err)
	}
}

func TestContentPiecePatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	piece := testsupport.SeedContentPiece(t, s, store.ContentPiece{
		TitleHE:   "כותרת",
		ContentHE: "<p>תוכן</p>",
		Keywords:  []string{"אוטומציה"},
		SEOScore:  40,
	})
	if piece.Status != store.ContentDraft {
		t.Fatalf("expected draft status, got %q", piece.Status)
	}

	updated, err := s.UpdateContentPiece(ctx, piece.ID, store.ContentPatch{
		TitleEN:      store.Ptr("Title"),
		SEOScore:     store.Ptr(85),
		Status:       store.Ptr(store.ContentPublished),
		HebrewPostID: store.Ptr(int64(9000001)),
	})
	if err != nil {
		t.Fatalf("UpdateContentPiece: %v", err)
	}
	if updated.TitleEN != "Title" || updated.SEOScore != 85 || updated.HebrewPostID != 9000001 {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.TitleHE != "כותרת" || updated.ContentHE != "<p>תוכן</p>" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.Status != store.ContentPublished {
		t.Fatalf("unexpected status %q", updated.Status)
	}

	published, err := s.GetContentPieces(ctx, store.ContentQuery{Statuses: []store.ContentStatus{store.ContentPublished}})
	if err != nil {
		t.Fatalf("GetContentPieces: %v", err)
	}
	if len(published) != 1 || published[0].ID != piece.ID {
		t.Fatalf("expected published piece, got %+v", published)
	}

	_, err = s.UpdateContentPiece(ctx, "nope", store.ContentPatch{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestContentPiecesHideTestModeByDefault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	live := testsupport.SeedContentPiece(t, s, store.ContentPiece{TitleHE: "אמיתי"})
	dry := testsupport.SeedContentPiece(t, s, store.ContentPiece{TitleHE: "ניסיון", TestMode: true})

	stored, err := s.GetContentPiece(ctx, dry.ID)
	if err != nil || stored == nil || !stored.TestMode {
		t.Fatalf("expected test mode flag round trip, got %+v err=%v", stored, err)
	}

	visible, err := s.GetContentPieces(ctx, store.ContentQuery{})
	if err != nil {
		t.Fatalf("GetContentPieces: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != live.ID {
		t.Fatalf("expected only the real piece, got %+v", visible)
	}

	all, err := s.GetContentPieces(ctx, store.ContentQuery{
		Statuses:        []store.ContentStatus{store.ContentDraft},
		IncludeTestMode: true,
	})
	if err != nil {
		t.Fatalf("GetContentPieces: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both pieces, got %d", len(all))
	}
}

func TestPipelineRunRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := &store.PipelineRun{
		TriggerType:  store.TriggerManual,
		PipelineType: "content",
		Status:       store.RunRunning,
		Order:        []string{"topic-manager", "content-writer", "translator"},
	}
	if err := s.CreatePipelineRun(ctx, run); err != nil {
		t.Fatalf("CreatePipelineRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected assigned id")
	}

	run.Cursor = 2
	run.CurrentStage = "translator"
	run.StagesCompleted = []string{"topic-manager", "content-writer"}
	run.ArtifactsJSON = `{"topicId":"t-1"}`
	run.Status = store.RunCompleted
	done := time.Now().UTC()
	run.CompletedAt = &done
	if err := s.UpdatePipelineRun(ctx, run); err != nil {
		t.Fatalf("UpdatePipelineRun: %v", err)
	}

	got, err := s.GetPipelineRun(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetPipelineRun: %+v %v", got, err)
	}
	if got.Cursor != 2 || got.CurrentStage != "translator" || len(got.Order) != 3 {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.ArtifactsJSON != `{"topicId":"t-1"}` || got.OptionsJSON != "{}" {
		t.Fatalf("unexpected documents: %q %q", got.ArtifactsJSON, got.OptionsJSON)
	}
	if got.CompletedAt == nil || !got.Status.IsTerminal() {
		t.Fatalf("expected completed terminal run, got %+v", got)
	}

	missing := &store.PipelineRun{ID: "ghost"}
	if err := s.UpdatePipelineRun(ctx, missing); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown run, got %v", err)
	}
}

func TestListPipelineRunsAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	statuses := []store.RunStatus{store.RunCompleted, store.RunFailed, store.RunFailed, store.RunPaused}
	for i, status := range statuses {
		run := &store.PipelineRun{
			ID:           fmt.Sprintf("run-%d", i),
			TriggerType:  store.TriggerCron,
			PipelineType: "content",
			Status:       status,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreatePipelineRun(ctx, run); err != nil {
			t.Fatalf("create run %d: %v", i, err)
		}
	}

	recent, err := s.ListPipelineRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListPipelineRuns: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "run-3" || recent[1].ID != "run-2" {
		t.Fatalf("expected newest first, got %v", runIDs(recent))
	}

	failed, err := s.ListPipelineRuns(ctx, 0, store.RunFailed)
	if err != nil {
		t.Fatalf("ListPipelineRuns failed: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed runs, got %d", len(failed))
	}

	counts, err := s.CountRunsByStatus(ctx)
	if err != nil {
		t.Fatalf("CountRunsByStatus: %v", err)
	}
	if counts[store.RunFailed] != 2 || counts[store.RunCompleted] != 1 || counts[store.RunPaused] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestPipelineLogsKeepInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := &store.PipelineRun{TriggerType: store.TriggerManual, PipelineType: "content"}
	if err := s.CreatePipelineRun(ctx, run); err != nil {
		t.Fatalf("CreatePipelineRun: %v", err)
	}
	for _, msg := range []string{"started", "topic selected", "draft written"} {
		if err := s.AddPipelineLog(ctx, run.ID, store.LogEntry{Worker: "content-writer", Message: msg}); err != nil {
			t.Fatalf("AddPipelineLog: %v", err)
		}
	}
	entries, err := s.ListPipelineLogs(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListPipelineLogs: %v", err)
	}
	if len(entries) != 3 || entries[0].Message != "started" || entries[2].Message != "draft written" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Level != "info" || entries[0].Worker != "content-writer" {
		t.Fatalf("unexpected defaults: %+v", entries[0])
	}
}

func TestPauseRunKeepsOnePendingApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := &store.PipelineRun{TriggerType: store.TriggerManual, PipelineType: "content", Status: store.RunRunning}
	if err := s.CreatePipelineRun(ctx, run); err != nil {
		t.Fatalf("CreatePipelineRun: %v", err)
	}
	run.Status = store.RunPaused
	first := &store.Approval{Type: "content", Worker: "content-generator"}
	if err := s.PauseRun(ctx, run, first); err != nil {
		t.Fatalf("PauseRun: %v", err)
	}
	second := &store.Approval{Type: "content", Worker: "content-generator"}
	if err := s.PauseRun(ctx, run, second); err != nil {
		t.Fatalf("PauseRun again: %v", err)
	}

	stored, err := s.GetPipelineRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetPipelineRun: %v", err)
	}
	if stored.Status != store.RunPaused || stored.PendingApprovalID != second.ID {
		t.Fatalf("unexpected run: %+v", stored)
	}
	pending, err := s.ListApprovals(ctx, store.ApprovalQuery{RunID: run.ID, Status: store.ApprovalPending})
	if err != nil {
		t.Fatalf("ListApprovals: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected one pending approval, got %+v", pending)
	}
	if got, _ := s.GetApproval(ctx, first.ID); got.Status != store.ApprovalExpired {
		t.Fatalf("superseded approval status = %s", got.Status)
	}
}

func TestPauseRunRollsBackWhenRunIsMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	appr := &store.Approval{Type: "content"}
	err := s.PauseRun(ctx, &store.PipelineRun{ID: "ghost", Status: store.RunPaused}, appr)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got, err := s.GetApproval(ctx, appr.ID); err != nil || got != nil {
		t.Fatalf("approval survived the rollback: %+v %v", got, err)
	}
}

func TestApprovalsLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pausedRun := func() *store.PipelineRun {
		run := &store.PipelineRun{TriggerType: store.TriggerManual, PipelineType: "content", Status: store.RunPaused}
		if err := s.CreatePipelineRun(ctx, run); err != nil {
			t.Fatalf("CreatePipelineRun: %v", err)
		}
		return run
	}

	old := &store.Approval{
		Type:      "content",
		Worker:    "content-writer",
		CreatedAt: time.Now().UTC().Add(-72 * time.Hour),
	}
	if err := s.PauseRun(ctx, pausedRun(), old); err != nil {
		t.Fatalf("PauseRun old: %v", err)
	}
	fresh := &store.Approval{Type: "content", MessageRef: "C1:1700000000.000100"}
	if err := s.PauseRun(ctx, pausedRun(), fresh); err != nil {
		t.Fatalf("PauseRun fresh: %v", err)
	}

	byRef, err := s.GetApprovalBySlackMessage(ctx, "C1:1700000000.000100")
	if err != nil || byRef == nil || byRef.ID != fresh.ID {
		t.Fatalf("GetApprovalBySlackMessage: %+v %v", byRef, err)
	}
	if none, err := s.GetApprovalBySlackMessage(ctx, ""); err != nil || none != nil {
		t.Fatalf("expected nil for empty ref, got %+v %v", none, err)
	}

	stale, err := s.ListApprovals(ctx, store.ApprovalQuery{
		Status:        store.ApprovalPending,
		CreatedBefore: time.Now().UTC().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("ListApprovals: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Fatalf("expected only the old approval, got %+v", stale)
	}

	now := time.Now().UTC()
	fresh.Status = store.ApprovalRejected
	fresh.Decision = "request_revision"
	fresh.Feedback = "shorter intro"
	fresh.ResponseUserID = "U123"
	fresh.ResponseTimestamp = &now
	if err := s.UpdateApproval(ctx, fresh); err != nil {
		t.Fatalf("UpdateApproval: %v", err)
	}
	got, err := s.GetApproval(ctx, fresh.ID)
	if err != nil || got == nil {
		t.Fatalf("GetApproval: %+v %v", got, err)
	}
	if got.Status != store.ApprovalRejected || got.Feedback != "shorter intro" || got.ResponseTimestamp == nil {
		t.Fatalf("approval not updated: %+v", got)
	}

	owner, err := s.GetPipelineRunByApproval(ctx, fresh.ID)
	if err != nil || owner == nil || owner.ID != run.ID {
		t.Fatalf("GetPipelineRunByApproval: %+v %v", owner, err)
	}

	all, err := s.ListApprovals(ctx, store.ApprovalQuery{RunID: run.ID})
	if err != nil {
		t.Fatalf("ListApprovals by run: %v", err)
	}
	if len(all) != 2 || all[0].ID != old.ID {
		t.Fatalf("expected oldest first, got %+v", all)
	}
}

func TestMarkScheduledOnlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now()
	first, err := s.MarkScheduled(ctx, "content:2026-10-12", now)
	if err != nil || !first {
		t.Fatalf("expected first mark to succeed, got %v %v", first, err)
	}
	second, err := s.MarkScheduled(ctx, "content:2026-10-12", now)
	if err != nil || second {
		t.Fatalf("expected duplicate mark to be ignored, got %v %v", second, err)
	}
	other, err := s.MarkScheduled(ctx, "healer:2026-10-12", now)
	if err != nil || !other {
		t.Fatalf("expected distinct key to mark, got %v %v", other, err)
	}
}

func runIDs(runs []*store.PipelineRun) []string {
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	return ids
}
