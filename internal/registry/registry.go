package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"contentfactory/internal/stage"
)

// Schedule is the trigger metadata of a worker. The trigger layer consults
// it; workers never do.
type Schedule struct {
	OnDemand bool
	Days     []time.Weekday
}

// RunsOn reports whether the worker is scheduled on day.
func (s Schedule) RunsOn(day time.Weekday) bool {
	return slices.Contains(s.Days, day)
}

// Definition declares one worker.
type Definition struct {
	ID          string
	Description string
	Requires    []string
	Services    []string
	Schedule    Schedule
	Approval    bool
}

// Registry holds worker definitions in registration order plus their bound
// implementations. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]Definition
	order     []string
	workers   map[string]stage.Worker
	pipelines map[string][]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		defs:      make(map[string]Definition),
		workers:   make(map[string]stage.Worker),
		pipelines: make(map[string][]string),
	}
}

// Register adds a definition. Empty and duplicate ids are rejected.
// Predecessors may be registered later; they are checked at resolution time.
func (r *Registry) Register(def Definition) error {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return errors.New("worker id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("worker %q already registered", def.ID)
	}
	def.Requires = slices.Clone(def.Requires)
	def.Services = slices.Clone(def.Services)
	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// replace swaps an existing definition in place or appends a new one.
func (r *Registry) replace(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; !exists {
		r.order = append(r.order, def.ID)
	}
	r.defs[def.ID] = def
}

// Bind attaches an implementation to a registered worker.
func (r *Registry) Bind(id string, worker stage.Worker) error {
	if worker == nil {
		return fmt.Errorf("bind %q: worker is nil", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return &UnknownWorkerError{ID: id}
	}
	r.workers[id] = worker
	return nil
}

// Worker returns the bound implementation for id.
func (r *Registry) Worker(id string) (stage.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

// Definition returns the definition for id.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Definitions lists every definition in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// EligibleOn lists the workers scheduled on day, in registration order.
func (r *Registry) EligibleOn(day time.Weekday) []Definition {
	var out []Definition
	for _, def := range r.Definitions() {
		if def.Schedule.RunsOn(day) {
			out = append(out, def)
		}
	}
	return out
}

// SetPipeline names an ordered worker list.
func (r *Registry) SetPipeline(name string, workers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[name] = slices.Clone(workers)
}

// Pipeline returns the worker list registered under name.
func (r *Registry) Pipeline(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workers, ok := r.pipelines[name]
	return slices.Clone(workers), ok
}
