package registry_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/registry"
	"contentfactory/internal/stage"
	"contentfactory/internal/testsupport"
)

var contentWorkers = []string{
	"topic-manager", "content-generator", "gutenberg-builder",
	"translator", "media-processor", "social-publisher",
}

func mustDefault(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return reg
}

func assertRespectsDependencies(t *testing.T, reg *registry.Registry, order []string) {
	t.Helper()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		def, _ := reg.Definition(id)
		for _, dep := range def.Requires {
			if depPos, ok := pos[dep]; ok && depPos > pos[id] {
				t.Fatalf("%s placed before its predecessor %s in %v", id, dep, order)
			}
		}
	}
}

func TestDefaultManifest(t *testing.T) {
	reg := mustDefault(t)
	if got := len(reg.Definitions()); got != 8 {
		t.Fatalf("expected 8 workers, got %d", got)
	}
	def, ok := reg.Definition("content-generator")
	if !ok || !def.Approval || !slices.Equal(def.Requires, []string{"topic-manager"}) {
		t.Fatalf("unexpected content-generator definition: %+v", def)
	}
	pipeline, ok := reg.Pipeline("content")
	if !ok || !slices.Equal(pipeline, contentWorkers) {
		t.Fatalf("unexpected content pipeline: %v", pipeline)
	}
	podcast, _ := reg.Definition("podcast-producer")
	if !podcast.Schedule.OnDemand || !podcast.Schedule.RunsOn(time.Wednesday) {
		t.Fatalf("unexpected podcast schedule: %+v", podcast.Schedule)
	}
}

func TestResolveExecutionOrderRespectsDependencies(t *testing.T) {
	reg := mustDefault(t)
	requests := [][]string{
		contentWorkers,
		{"social-publisher", "translator", "topic-manager", "media-processor"},
		{"translator", "topic-manager"},
		{"seo-optimizer", "podcast-producer", "gutenberg-builder", "content-generator"},
	}
	for _, requested := range requests {
		order, err := reg.ResolveExecutionOrder(requested)
		if err != nil {
			t.Fatalf("ResolveExecutionOrder(%v): %v", requested, err)
		}
		if len(order) != len(requested) {
			t.Fatalf("expected %d workers, got %v", len(requested), order)
		}
		assertRespectsDependencies(t, reg, order)
	}
}

func TestResolveExecutionOrderTransitiveAndStable(t *testing.T) {
	reg := mustDefault(t)

	order, err := reg.ResolveExecutionOrder([]string{"translator", "topic-manager"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !slices.Equal(order, []string{"topic-manager", "translator"}) {
		t.Fatalf("expected transitive dependency honoured, got %v", order)
	}

	requested := []string{"seo-optimizer", "media-processor", "topic-manager", "seo-optimizer"}
	first, err := reg.ResolveExecutionOrder(requested)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, _ := reg.ResolveExecutionOrder(requested)
	if !slices.Equal(first, second) {
		t.Fatalf("resolution not deterministic: %v vs %v", first, second)
	}
	if !slices.Equal(first, []string{"seo-optimizer", "topic-manager", "media-processor"}) {
		t.Fatalf("unexpected tie-break order: %v", first)
	}
}

func TestResolveUnknownWorker(t *testing.T) {
	reg := mustDefault(t)
	_, err := reg.ResolveExecutionOrder([]string{"topic-manager", "ghost-writer"})
	if !errors.Is(err, registry.ErrUnknownWorker) {
		t.Fatalf("expected unknown worker error, got %v", err)
	}
	var unknown *registry.UnknownWorkerError
	if !errors.As(err, &unknown) || unknown.ID != "ghost-writer" {
		t.Fatalf("expected UnknownWorkerError for ghost-writer, got %v", err)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	reg := registry.New()
	for _, def := range []registry.Definition{
		{ID: "a", Requires: []string{"c"}},
		{ID: "b", Requires: []string{"a"}},
		{ID: "c", Requires: []string{"b"}},
		{ID: "d"},
	} {
		if err := reg.Register(def); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	_, err := reg.ResolveExecutionOrder([]string{"d"})
	var cyclic *registry.CyclicDependencyError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if !slices.Equal(cyclic.Cycle, []string{"a", "c", "b", "a"}) {
		t.Fatalf("unexpected cycle path: %v", cyclic.Cycle)
	}
	if !errors.Is(err, registry.ErrCyclicDependency) {
		t.Fatal("expected sentinel match")
	}
}

func TestRegisterAndBind(t *testing.T) {
	reg := registry.New()
	if err := reg.Register(registry.Definition{ID: " "}); err == nil {
		t.Fatal("expected empty id rejection")
	}
	if err := reg.Register(registry.Definition{ID: "x"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(registry.Definition{ID: "x"}); err == nil {
		t.Fatal("expected duplicate rejection")
	}
	if err := reg.Bind("y", nopWorker{}); !errors.Is(err, registry.ErrUnknownWorker) {
		t.Fatalf("expected unknown worker on bind, got %v", err)
	}
	if err := reg.Bind("x", nopWorker{}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, ok := reg.Worker("x"); !ok {
		t.Fatal("expected bound worker")
	}
}

func TestEligibleOn(t *testing.T) {
	reg := mustDefault(t)
	var ids []string
	for _, def := range reg.EligibleOn(time.Monday) {
		ids = append(ids, def.ID)
	}
	if !slices.Equal(ids, []string{"seo-optimizer"}) {
		t.Fatalf("unexpected monday workers: %v", ids)
	}
	if got := len(reg.EligibleOn(time.Tuesday)); got != 6 {
		t.Fatalf("expected 6 tuesday workers, got %d", got)
	}
}

func TestFromConfigAppliesOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "workers.yaml")
	testsupport.WriteFile(t, path, strings.TrimSpace(`
workers:
  - id: media-processor
    description: Images only on Fridays
    requires: [content-generator]
    schedule:
      days: [fri]
  - id: newsletter
    requires: [translator]
pipelines:
  content: [topic-manager, content-generator, newsletter]
`))
	cfg.Paths.WorkersManifest = path

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	media, _ := reg.Definition("media-processor")
	if !media.Schedule.RunsOn(time.Friday) || media.Schedule.RunsOn(time.Sunday) {
		t.Fatalf("override not applied: %+v", media.Schedule)
	}
	if _, ok := reg.Definition("newsletter"); !ok {
		t.Fatal("expected appended worker")
	}
	pipeline, _ := reg.Pipeline("content")
	if !slices.Equal(pipeline, []string{"topic-manager", "content-generator", "newsletter"}) {
		t.Fatalf("unexpected overridden pipeline: %v", pipeline)
	}
}

func TestFromConfigRejectsUnknownPredecessor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "workers.yaml")
	testsupport.WriteFile(t, path, "workers:\n  - id: orphan\n    requires: [missing]\n")
	cfg.Paths.WorkersManifest = path

	_, err := registry.FromConfig(cfg)
	var unknown *registry.UnknownWorkerError
	if !errors.As(err, &unknown) || unknown.ID != "missing" || unknown.RequiredBy != "orphan" {
		t.Fatalf("expected unknown predecessor error, got %v", err)
	}
}

type nopWorker struct{}

func (nopWorker) Execute(context.Context, stage.Input) stage.Result { return stage.Succeeded("x", stage.Artifacts{}) }

func (nopWorker) HealthCheck(context.Context) stage.Health { return stage.Healthy("x") }
