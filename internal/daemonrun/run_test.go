package daemonrun

import (
	"context"
	"testing"

	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

func TestBuildWiresRuntime(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithApprovals(false))
	rt, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	for _, def := range rt.Registry.Definitions() {
		if _, ok := rt.Registry.Worker(def.ID); !ok {
			t.Fatalf("worker %s not bound", def.ID)
		}
	}

	topic := testsupport.SeedTopic(t, rt.Store, store.Topic{Title: "תחבורה ציבורית", Priority: 1})
	res, err := rt.Orchestrator.RunContentPipeline(context.Background(), pipeline.RunOptions{TestMode: true, TopicID: topic.ID})
	if err != nil {
		t.Fatalf("RunContentPipeline: %v", err)
	}
	if !res.Success || res.Status != store.RunCompleted {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBuildRejectsNilConfig(t *testing.T) {
	if _, err := Build(nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
