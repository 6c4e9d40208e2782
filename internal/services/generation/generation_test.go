package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentfactory/internal/services"
	"contentfactory/internal/services/generation"
)

type scriptedJob struct {
	states []generation.Status
	errs   []error
	polls  int
}

func (s *scriptedJob) Submit(context.Context, generation.Request) (string, error) {
	return "task-1", nil
}

func (s *scriptedJob) PollStatus(context.Context, string) (generation.Status, error) {
	idx := s.polls
	s.polls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return generation.Status{}, s.errs[idx]
	}
	if idx >= len(s.states) {
		return generation.Status{State: generation.StateProcessing}, nil
	}
	return s.states[idx], nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestAwaitReturnsCompletedResult(t *testing.T) {
	job := &scriptedJob{states: []generation.Status{
		{State: generation.StateProcessing},
		{State: generation.StateCompleted, ResultURL: "https://cdn.example/img.png"},
	}}
	status, err := generation.Run(context.Background(), job, generation.Request{Prompt: "tax"}, generation.Policy{MaxAttempts: 5, Sleep: noSleep})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.ResultURL != "https://cdn.example/img.png" || job.polls != 2 {
		t.Fatalf("unexpected status %+v after %d polls", status, job.polls)
	}
}

func TestAwaitStopsAfterMaxAttempts(t *testing.T) {
	job := &scriptedJob{}
	var sleeps int
	policy := generation.Policy{MaxAttempts: 3, Interval: time.Second, Sleep: func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}}
	_, err := generation.Await(context.Background(), job, "task-1", policy)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if job.polls != 3 || sleeps != 2 {
		t.Fatalf("expected 3 polls and 2 sleeps, got %d/%d", job.polls, sleeps)
	}
}

func TestAwaitFailedJob(t *testing.T) {
	job := &scriptedJob{states: []generation.Status{{State: generation.StateFailed, Error: "content policy"}}}
	_, err := generation.Await(context.Background(), job, "task-1", generation.Policy{MaxAttempts: 3, Sleep: noSleep})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external marker, got %v", err)
	}
	if details := services.Details(err); details.Message != "content policy" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}

func TestAwaitToleratesPollErrors(t *testing.T) {
	job := &scriptedJob{
		errs:   []error{errors.New("502")},
		states: []generation.Status{{}, {State: generation.StateCompleted, ResultURL: "ok"}},
	}
	status, err := generation.Await(context.Background(), job, "task-1", generation.Policy{MaxAttempts: 3, Sleep: noSleep})
	if err != nil || status.ResultURL != "ok" {
		t.Fatalf("expected recovery after poll error, got %+v %v", status, err)
	}
}

func TestRequestParamFallback(t *testing.T) {
	req := generation.Request{Params: map[string]string{"aspect_ratio": " 16:9 "}}
	if req.Param("aspect_ratio", "1:1") != "16:9" || req.Param("voice", "default") != "default" {
		t.Fatal("unexpected param resolution")
	}
}
