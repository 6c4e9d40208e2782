package batch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"contentfactory/internal/batch"
	"contentfactory/internal/config"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/registry"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
	"contentfactory/internal/workers"
)

type scriptedExecutor struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	behavior map[string]string
}

func (s *scriptedExecutor) Execute(_ context.Context, req workers.BlogRequest) workers.BlogResult {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, req.TopicID)
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	switch s.behavior[req.TopicID] {
	case "panic":
		panic("boom")
	case "fail":
		return workers.BlogResult{Errors: []string{"generation failed"}}
	}
	return workers.BlogResult{Success: true, RunID: "run-" + req.TopicID}
}

type topicList struct {
	topics []*store.Topic
	err    error
}

func (l topicList) GetTopics(context.Context, ...store.TopicStatus) ([]*store.Topic, error) {
	return l.topics, l.err
}

func newConfig(t *testing.T, concurrency int) *config.Config {
	return testsupport.NewConfig(t, testsupport.WithMutation(func(c *config.Config) {
		c.Workflow.BatchConcurrency = concurrency
	}))
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	exec := &scriptedExecutor{behavior: map[string]string{"b": "fail"}}
	p := batch.New(newConfig(t, 2), exec, topicList{}, nil, nil)

	summary := p.ProcessBatch(context.Background(), []batch.Item{{TopicID: "a"}, {TopicID: "b"}, {TopicID: "c"}})
	if summary.Processed != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for i, want := range []struct {
		id      string
		success bool
	}{{"a", true}, {"b", false}, {"c", true}} {
		got := summary.Results[i]
		if got.TopicID != want.id || got.Success != want.success {
			t.Fatalf("result %d = %+v, want %s success=%t", i, got, want.id, want.success)
		}
	}
	if len(summary.Results[1].Errors) == 0 {
		t.Fatal("expected error for failed item")
	}
}

func TestProcessBatchRecoversPanics(t *testing.T) {
	exec := &scriptedExecutor{behavior: map[string]string{"a": "panic"}}
	p := batch.New(newConfig(t, 1), exec, topicList{}, nil, nil)

	summary := p.ProcessBatch(context.Background(), []batch.Item{{TopicID: "a"}, {TopicID: "b"}})
	if summary.Results[0].Success || len(summary.Results[0].Errors) != 1 {
		t.Fatalf("expected panic recorded as failure: %+v", summary.Results[0])
	}
	if !summary.Results[1].Success {
		t.Fatalf("expected second item to succeed: %+v", summary.Results[1])
	}
}

func TestProcessBatchHonoursConcurrencyLimit(t *testing.T) {
	exec := &scriptedExecutor{delay: 20 * time.Millisecond}
	p := batch.New(newConfig(t, 2), exec, topicList{}, nil, nil)

	items := make([]batch.Item, 6)
	for i := range items {
		items[i] = batch.Item{TopicID: string(rune('a' + i))}
	}
	summary := p.ProcessBatch(context.Background(), items)
	if summary.Succeeded != 6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if peak := exec.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	p := batch.New(newConfig(t, 2), &scriptedExecutor{}, topicList{}, nil, nil)
	summary := p.ProcessBatch(context.Background(), nil)
	if summary.Processed != 0 || len(summary.Results) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestProcessAllPendingUsesPendingTopics(t *testing.T) {
	exec := &scriptedExecutor{}
	topics := topicList{topics: []*store.Topic{{ID: "t1"}, {ID: "t2"}}}
	p := batch.New(newConfig(t, 2), exec, topics, nil, nil)

	summary, err := p.ProcessAllPending(context.Background(), true)
	if err != nil {
		t.Fatalf("ProcessAllPending: %v", err)
	}
	if summary.Processed != 2 || summary.Results[0].TopicID != "t1" || summary.Results[1].TopicID != "t2" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestProcessAllPendingListError(t *testing.T) {
	p := batch.New(newConfig(t, 2), &scriptedExecutor{}, topicList{err: errors.New("db locked")}, nil, nil)
	if _, err := p.ProcessAllPending(context.Background(), true); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcessBatchThroughBlogMaster(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithApprovals(false), testsupport.WithMutation(func(c *config.Config) {
		c.Workflow.BatchConcurrency = 1
	}))
	st := testsupport.MustOpenStore(t, cfg)
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	if err := workers.Bind(reg, workers.Deps{Config: cfg, Store: st}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	orch, err := pipeline.New(cfg, pipeline.Deps{Store: st, Registry: reg})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	topic := testsupport.SeedTopic(t, st, store.Topic{Title: "בינה מלאכותית בחינוך", Priority: 3})

	master := workers.NewBlogMaster(st, orch)
	summary := batch.New(cfg, master, st, nil, nil).ProcessBatch(context.Background(), []batch.Item{
		{TopicID: topic.ID, TestMode: true},
		{TopicID: "missing", TestMode: true},
	})
	if !summary.Results[0].Success || summary.Results[0].HebrewPostID == 0 {
		t.Fatalf("expected first item to publish: %+v", summary.Results[0])
	}
	if summary.Results[1].Success || summary.Results[1].Errors[0] != "Topic not found: missing" {
		t.Fatalf("unexpected second result: %+v", summary.Results[1])
	}
}
