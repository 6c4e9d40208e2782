package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"contentfactory/internal/approval"
	"contentfactory/internal/config"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/registry"
	"contentfactory/internal/services/slack"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

var contentOrder = []string{
	"topic-manager", "content-generator", "gutenberg-builder",
	"translator", "media-processor", "social-publisher",
}

type scriptedWorker struct {
	id       string
	mu       sync.Mutex
	calls    int
	inputs   []stage.Input
	behavior func(call int, in stage.Input) stage.Result
}

func (w *scriptedWorker) Execute(_ context.Context, in stage.Input) stage.Result {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.inputs = append(w.inputs, in)
	w.mu.Unlock()
	if w.behavior != nil {
		return w.behavior(call, in)
	}
	return stage.Succeeded(w.id, stage.Artifacts{})
}

func (w *scriptedWorker) HealthCheck(context.Context) stage.Health { return stage.Healthy(w.id) }

func (w *scriptedWorker) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type fakeChannel struct {
	mu        sync.Mutex
	approvals []slack.ApprovalRequest
	revisions []slack.RevisionRequest
}

func (c *fakeChannel) Configured() bool { return true }

func (c *fakeChannel) SendNotification(context.Context, string, string, string) error { return nil }

func (c *fakeChannel) SendApprovalRequest(_ context.Context, req slack.ApprovalRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvals = append(c.approvals, req)
	return fmt.Sprintf("C1:%d.000", len(c.approvals)), nil
}

func (c *fakeChannel) SendRevisionRequest(_ context.Context, req slack.RevisionRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revisions = append(c.revisions, req)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	cfg     *config.Config
	store   *store.Store
	orch    *pipeline.Orchestrator
	workers map[string]*scriptedWorker
	channel *fakeChannel
	clock   *clock
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	h := &harness{
		cfg:     cfg,
		store:   st,
		workers: make(map[string]*scriptedWorker),
		channel: &fakeChannel{},
		clock:   &clock{now: time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)},
	}
	for _, def := range reg.Definitions() {
		w := &scriptedWorker{id: def.ID}
		h.workers[def.ID] = w
		if err := reg.Bind(def.ID, w); err != nil {
			t.Fatalf("bind %s: %v", def.ID, err)
		}
	}
	h.orch, err = pipeline.New(cfg, pipeline.Deps{
		Store:    st,
		Registry: reg,
		Gateway:  approval.NewGateway(h.channel, nil),
		Clock:    h.clock.Now,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return h
}

func (h *harness) worker(id string) *scriptedWorker { return h.workers[id] }

func (h *harness) run(t *testing.T, id string) *store.PipelineRun {
	t.Helper()
	run, err := h.store.GetPipelineRun(context.Background(), id)
	if err != nil || run == nil {
		t.Fatalf("GetPipelineRun(%s): %v %v", id, run, err)
	}
	return run
}

func failWith(message string) func(int, stage.Input) stage.Result {
	return func(_ int, in stage.Input) stage.Result {
		return stage.Failed(in.Worker, errors.New(message))
	}
}

func needsApproval(onCall func(int) bool) func(int, stage.Input) stage.Result {
	return func(call int, in stage.Input) stage.Result {
		res := stage.Succeeded(in.Worker, stage.Artifacts{Title: fmt.Sprintf("draft %d", call)})
		if onCall(call) {
			res.RequiresApproval = &stage.ApprovalSpec{Type: "content", RelatedTitle: "Draft", Preview: "<p>body</p>"}
		}
		return res
	}
}

func always(int) bool { return true }

func TestRunContentPipelineCompletesAllWorkers(t *testing.T) {
	h := newHarness(t)
	h.worker("topic-manager").behavior = func(_ int, in stage.Input) stage.Result {
		return stage.Succeeded(in.Worker, stage.Artifacts{TopicID: "t-1", ContentPieceID: "c-1"})
	}
	h.worker("gutenberg-builder").behavior = func(_ int, in stage.Input) stage.Result {
		if in.Artifacts.ContentPieceID != "c-1" {
			return stage.Failed(in.Worker, errors.New("missing content piece"))
		}
		return stage.Succeeded(in.Worker, stage.Artifacts{HebrewPostID: 11})
	}
	h.worker("translator").behavior = func(_ int, in stage.Input) stage.Result {
		return stage.Succeeded(in.Worker, stage.Artifacts{EnglishPostID: 12})
	}

	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if !res.Success || res.Status != store.RunCompleted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !slices.Equal(res.CompletedWorkers, contentOrder) {
		t.Fatalf("completed = %v", res.CompletedWorkers)
	}
	if len(res.FailedWorkers) != 0 || len(res.NotAttempted) != 0 {
		t.Fatalf("unexpected failures: %+v", res)
	}
	if res.Artifacts.HebrewPostID != 11 || res.Artifacts.EnglishPostID != 12 || res.Artifacts.TopicID != "t-1" {
		t.Fatalf("artifacts not merged: %+v", res.Artifacts)
	}

	run := h.run(t, res.RunID)
	if run.Status != store.RunCompleted || run.CompletedAt == nil || run.CurrentStage != "" {
		t.Fatalf("persisted run = %+v", run)
	}
	if !strings.Contains(run.ArtifactsJSON, `"hebrew_post_id":11`) {
		t.Fatalf("artifacts json = %s", run.ArtifactsJSON)
	}
	logs, err := h.store.ListPipelineLogs(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("ListPipelineLogs: %v", err)
	}
	if len(logs) < 2*len(contentOrder) {
		t.Fatalf("expected start/complete logs per worker, got %d", len(logs))
	}
}

func TestFailureStopsRunWithoutSkipFailures(t *testing.T) {
	h := newHarness(t)
	h.worker("translator").behavior = failWith("translation quota exceeded")

	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if res.Success || res.Status != store.RunFailed {
		t.Fatalf("expected failed run, got %+v", res)
	}
	if !slices.Equal(res.CompletedWorkers, contentOrder[:3]) {
		t.Fatalf("completed = %v", res.CompletedWorkers)
	}
	if !slices.Equal(res.FailedWorkers, []string{"translator"}) {
		t.Fatalf("failed = %v", res.FailedWorkers)
	}
	if !slices.Equal(res.NotAttempted, []string{"media-processor", "social-publisher"}) {
		t.Fatalf("not attempted = %v", res.NotAttempted)
	}
	if !strings.Contains(res.Error, "translation quota exceeded") {
		t.Fatalf("error = %q", res.Error)
	}
	if h.worker("media-processor").callCount() != 0 {
		t.Fatal("worker after failure must not run")
	}
}

func TestSkipFailuresAttemptsEveryWorker(t *testing.T) {
	h := newHarness(t)
	h.worker("translator").behavior = failWith("boom")

	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{SkipFailures: true})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if res.Success {
		t.Fatal("success must be false when a worker failed")
	}
	if res.Status != store.RunCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.CompletedWorkers)+len(res.FailedWorkers) != len(contentOrder) || len(res.NotAttempted) != 0 {
		t.Fatalf("workers not partitioned: %+v", res)
	}
	for _, id := range contentOrder {
		if got := h.worker(id).callCount(); got != 1 {
			t.Fatalf("%s ran %d times", id, got)
		}
	}
}

func TestUnknownWorkerIsReturnedAsError(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{Workers: []string{"topic-manager", "ghost-writer"}})
	if !errors.Is(err, pipeline.ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
	if res.Success || res.RunID != "" || res.Error == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.worker("topic-manager").callCount() != 0 {
		t.Fatal("no worker may run when resolution fails")
	}
}

func TestWorkerPanicBecomesFailure(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = func(int, stage.Input) stage.Result {
		panic("nil map")
	}
	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{Workers: []string{"topic-manager", "content-generator"}})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if res.Status != store.RunFailed || !slices.Equal(res.FailedWorkers, []string{"content-generator"}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Error, "panicked") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestApprovalPausesAndApproveResumes(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()

	res, err := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if res.Status != store.RunPaused || res.ApprovalID == "" || !res.Success {
		t.Fatalf("expected paused run, got %+v", res)
	}
	if !slices.Equal(res.NotAttempted, contentOrder[2:]) {
		t.Fatalf("not attempted = %v", res.NotAttempted)
	}
	if len(h.channel.approvals) != 1 || h.channel.approvals[0].Preview != "body" {
		t.Fatalf("approval request = %+v", h.channel.approvals)
	}
	appr, err := h.store.GetApproval(ctx, res.ApprovalID)
	if err != nil || appr == nil {
		t.Fatalf("GetApproval: %v", err)
	}
	if appr.MessageRef != "C1:1.000" || appr.Worker != "content-generator" || appr.Status != store.ApprovalPending {
		t.Fatalf("approval = %+v", appr)
	}

	done, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionApprove, UserID: "U1"})
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if done.Status != store.RunCompleted || !slices.Equal(done.CompletedWorkers, contentOrder) {
		t.Fatalf("unexpected result after approval: %+v", done)
	}
	if h.worker("content-generator").callCount() != 1 {
		t.Fatal("approved worker must not re-run")
	}
	appr, _ = h.store.GetApproval(ctx, res.ApprovalID)
	if appr.Status != store.ApprovalApproved || appr.ResponseUserID != "U1" || appr.ResponseTimestamp == nil {
		t.Fatalf("approval after decision = %+v", appr)
	}

	_, err = h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionReject})
	if !errors.Is(err, pipeline.ErrRunTerminal) {
		t.Fatalf("expected terminal error on second decision, got %v", err)
	}
	if run := h.run(t, res.RunID); run.Status != store.RunCompleted {
		t.Fatalf("second decision mutated run: %s", run.Status)
	}
}

func TestRejectFailsRun(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()

	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	done, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionReject, Feedback: "off topic"})
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if done.Status != store.RunFailed || done.Success {
		t.Fatalf("expected failed run: %+v", done)
	}
	if !strings.Contains(done.Error, "off topic") {
		t.Fatalf("error = %q", done.Error)
	}
	if h.worker("gutenberg-builder").callCount() != 0 {
		t.Fatal("rejected run must not continue")
	}
}

func TestRevisionRewindsWithFeedback(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(func(call int) bool { return call == 1 })
	ctx := context.Background()

	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	done, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{
		Kind:     approval.DecisionRequestRevision,
		Feedback: "shorter intro",
	})
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if done.Status != store.RunCompleted || !slices.Equal(done.CompletedWorkers, contentOrder) {
		t.Fatalf("unexpected result: %+v", done)
	}
	gen := h.worker("content-generator")
	if gen.callCount() != 2 {
		t.Fatalf("content-generator ran %d times", gen.callCount())
	}
	if gen.inputs[1].RevisionFeedback != "shorter intro" {
		t.Fatalf("feedback = %q", gen.inputs[1].RevisionFeedback)
	}
	if h.worker("topic-manager").callCount() != 1 {
		t.Fatal("workers before the rewind point must not re-run")
	}
	if h.worker("gutenberg-builder").inputs[0].RevisionFeedback != "shorter intro" {
		t.Fatal("feedback should reach every worker after the rewind")
	}
	if done.Artifacts.Title != "draft 2" {
		t.Fatalf("title = %q", done.Artifacts.Title)
	}
	if len(h.channel.revisions) != 1 || h.channel.revisions[0].ThreadRef != "C1:1.000" {
		t.Fatalf("revision requests = %+v", h.channel.revisions)
	}
	run := h.run(t, res.RunID)
	if run.RevisionCount != 1 || run.RevisionFeedback != "" {
		t.Fatalf("revision bookkeeping = %d %q", run.RevisionCount, run.RevisionFeedback)
	}
}

func TestPausedRunHasExactlyOnePendingApproval(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()

	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	again, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{
		Kind:     approval.DecisionRequestRevision,
		Feedback: "again",
	})
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if again.Status != store.RunPaused || again.ApprovalID == res.ApprovalID {
		t.Fatalf("expected a fresh pause: %+v", again)
	}
	pending, err := h.store.ListApprovals(ctx, store.ApprovalQuery{RunID: res.RunID, Status: store.ApprovalPending})
	if err != nil {
		t.Fatalf("ListApprovals: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != again.ApprovalID {
		t.Fatalf("pending approvals = %+v", pending)
	}
	if run := h.run(t, res.RunID); run.PendingApprovalID != again.ApprovalID {
		t.Fatalf("run points at %q, want %q", run.PendingApprovalID, again.ApprovalID)
	}
}

func TestRevisionLimitFailsRun(t *testing.T) {
	h := newHarness(t, testsupport.WithMutation(func(cfg *config.Config) {
		cfg.Workflow.MaxRevisions = 1
	}))
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()
	revise := approval.Decision{Kind: approval.DecisionRequestRevision, Feedback: "again"}

	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	second, err := h.orch.ApplyDecision(ctx, res.ApprovalID, revise)
	if err != nil {
		t.Fatalf("first revision: %v", err)
	}
	if second.Status != store.RunPaused || second.ApprovalID == res.ApprovalID {
		t.Fatalf("expected a fresh approval, got %+v", second)
	}
	final, err := h.orch.ApplyDecision(ctx, second.ApprovalID, revise)
	if err != nil {
		t.Fatalf("second revision: %v", err)
	}
	if final.Status != store.RunFailed || !strings.Contains(final.Error, "revision limit") {
		t.Fatalf("expected revision limit failure: %+v", final)
	}
}

func TestResolvedApprovalCannotBeDecidedAgain(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()

	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	next, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionRequestRevision, Feedback: "more"})
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}
	if next.Status != store.RunPaused {
		t.Fatalf("status = %s", next.Status)
	}
	_, err = h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionApprove})
	if !errors.Is(err, pipeline.ErrApprovalResolved) {
		t.Fatalf("expected ErrApprovalResolved, got %v", err)
	}
	if run := h.run(t, res.RunID); run.PendingApprovalID != next.ApprovalID || run.Status != store.RunPaused {
		t.Fatalf("run mutated: %+v", run)
	}
}

func TestApplyDecisionUnknownApproval(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.ApplyDecision(context.Background(), "nope", approval.Decision{Kind: approval.DecisionApprove})
	if !errors.Is(err, pipeline.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if res.Error != "Approval not found: nope" {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestHandleApprovalEvent(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()
	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})

	got, err := h.orch.HandleApprovalEvent(ctx, "C9:999.000", "U1", "white_check_mark", "")
	if err != nil || got != nil {
		t.Fatalf("unknown message ref should be ignored: %v %v", got, err)
	}
	got, err = h.orch.HandleApprovalEvent(ctx, "C1:1.000", "U1", "tada", "")
	if err != nil || got != nil {
		t.Fatalf("unrecognized reaction should be ignored: %v %v", got, err)
	}
	if run := h.run(t, res.RunID); run.Status != store.RunPaused {
		t.Fatalf("ignored events mutated run: %s", run.Status)
	}

	got, err = h.orch.HandleApprovalEvent(ctx, "C1:1.000", "U1", "+1", "")
	if err != nil || got == nil {
		t.Fatalf("HandleApprovalEvent: %v %v", got, err)
	}
	if got.Status != store.RunCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	got, err = h.orch.HandleApprovalEvent(ctx, "C1:1.000", "U2", "x", "")
	if err != nil || got != nil {
		t.Fatalf("resolved approval should be ignored: %v %v", got, err)
	}
}

func TestTestModeCreatesApprovalWithoutDispatch(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)

	res, err := h.orch.RunContentPipeline(context.Background(), pipeline.RunOptions{TestMode: true})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if res.Status != store.RunPaused || res.ApprovalID == "" {
		t.Fatalf("expected paused run: %+v", res)
	}
	if len(h.channel.approvals) != 0 {
		t.Fatal("test mode must not dispatch approval requests")
	}
	if !h.worker("topic-manager").inputs[0].Options.TestMode {
		t.Fatal("test mode not passed to workers")
	}
}

func TestExpireStaleApprovals(t *testing.T) {
	h := newHarness(t, testsupport.WithApprovalTimeout(1))
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()
	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})

	if n, err := h.orch.ExpireStaleApprovals(ctx); err != nil || n != 0 {
		t.Fatalf("fresh approval expired: %d %v", n, err)
	}
	h.clock.Advance(2 * time.Hour)
	n, err := h.orch.ExpireStaleApprovals(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStaleApprovals = %d, %v", n, err)
	}
	run := h.run(t, res.RunID)
	if run.Status != store.RunExpired || run.PendingApprovalID != "" || !strings.Contains(run.ErrorMessage, "expired") {
		t.Fatalf("run after expiry = %+v", run)
	}
	appr, _ := h.store.GetApproval(ctx, res.ApprovalID)
	if appr.Status != store.ApprovalExpired {
		t.Fatalf("approval status = %s", appr.Status)
	}
	result, err := pipeline.ResultFor(run)
	if err != nil || result.Success {
		t.Fatalf("expired run must not report success: %+v %v", result, err)
	}
	if _, err := h.orch.ApplyDecision(ctx, res.ApprovalID, approval.Decision{Kind: approval.DecisionApprove}); !errors.Is(err, pipeline.ErrRunTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestResumeContinuesInterruptedRun(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.worker("gutenberg-builder").behavior = func(_ int, in stage.Input) stage.Result {
		cancel()
		return stage.Succeeded(in.Worker, stage.Artifacts{HebrewPostID: 5})
	}

	res, err := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if run := h.run(t, res.RunID); run.Status != store.RunRunning || run.Cursor != 3 {
		t.Fatalf("interrupted run = %+v", run)
	}

	results, err := h.orch.ResumeInterrupted(context.Background())
	if err != nil || len(results) != 1 {
		t.Fatalf("ResumeInterrupted = %v, %v", results, err)
	}
	if results[0].Status != store.RunCompleted || results[0].Artifacts.HebrewPostID != 5 {
		t.Fatalf("resumed result = %+v", results[0])
	}
	if h.worker("gutenberg-builder").callCount() != 1 {
		t.Fatal("completed worker re-ran on resume")
	}
	if _, err := h.orch.Resume(context.Background(), res.RunID); !errors.Is(err, pipeline.ErrRunTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestCancelPausedRun(t *testing.T) {
	h := newHarness(t)
	h.worker("content-generator").behavior = needsApproval(always)
	ctx := context.Background()
	res, _ := h.orch.RunContentPipeline(ctx, pipeline.RunOptions{})

	done, err := h.orch.CancelRun(ctx, res.RunID, "operator abort")
	if err != nil {
		t.Fatalf("CancelRun: %v", err)
	}
	if done.Status != store.RunFailed || done.Error != "operator abort" {
		t.Fatalf("cancelled run = %+v", done)
	}
	appr, _ := h.store.GetApproval(ctx, res.ApprovalID)
	if appr.Status != store.ApprovalExpired {
		t.Fatalf("approval status = %s", appr.Status)
	}
}

func TestSEOOptimizerDefaultsFromConfig(t *testing.T) {
	h := newHarness(t, testsupport.WithMutation(func(cfg *config.Config) {
		cfg.Workflow.SEOLimit = 4
		cfg.Workflow.SEOMinScore = 65
	}))
	res, err := h.orch.RunSEOOptimizer(context.Background(), pipeline.SEOOptions{Trigger: store.TriggerCron})
	if err != nil || !res.Success {
		t.Fatalf("RunSEOOptimizer = %+v, %v", res, err)
	}
	in := h.worker("seo-optimizer").inputs[0]
	if in.Options.SEOLimit != 4 || in.Options.SEOMinScore != 65 || in.PipelineType != pipeline.PipelineSEO {
		t.Fatalf("input = %+v", in)
	}
	if run := h.run(t, res.RunID); run.TriggerType != store.TriggerCron {
		t.Fatalf("trigger = %s", run.TriggerType)
	}
}

func TestPodcastAutoPilotRunsProducerOnly(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.RunPodcastAutoPilot(context.Background(), pipeline.PodcastOptions{})
	if err != nil {
		t.Fatalf("RunPodcastAutoPilot: %v", err)
	}
	if !slices.Equal(res.CompletedWorkers, []string{"podcast-producer"}) || res.PipelineType != pipeline.PipelinePodcast {
		t.Fatalf("unexpected result: %+v", res)
	}
}
