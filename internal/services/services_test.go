package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"contentfactory/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithWorker(ctx, "translator")
	ctx = services.WithPipeline(ctx, "content")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != "translator" {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
	if pipeline, ok := services.PipelineFromContext(ctx); !ok || pipeline != "content" {
		t.Fatalf("unexpected pipeline: %v %v", pipeline, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithWorker(context.Background(), "")
	if _, ok := services.WorkerFromContext(ctx); ok {
		t.Fatal("expected no worker value")
	}
}

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "translator", "create post", "wordpress rejected post", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"translator", "create post", "wordpress rejected post", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsAndKind(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "topic-manager", "load topic", "Topic not found: t-9", nil)
	details := services.Details(err)
	if details.Kind != services.KindNotFound {
		t.Fatalf("unexpected kind: %s", details.Kind)
	}
	if details.Worker != "topic-manager" || details.Operation != "load topic" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Message != "Topic not found: t-9" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
	if services.Retryable(err) {
		t.Fatal("not-found errors must not be retryable")
	}

	timeout := services.Wrap(services.ErrTimeout, "media-processor", "await image", "", nil)
	if !services.Retryable(timeout) {
		t.Fatal("timeouts should be retryable")
	}
	if services.Kind(errors.New("plain")) != services.KindUnknown {
		t.Fatal("plain errors should be unknown kind")
	}
}
