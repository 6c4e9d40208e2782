package registry

import "slices"

// Validate checks that every declared predecessor is registered, every
// pipeline names registered workers, and the graph is acyclic.
func (r *Registry) Validate() error {
	defs := r.snapshot()
	for _, id := range defs.order {
		for _, dep := range defs.byID[id].Requires {
			if _, ok := defs.byID[dep]; !ok {
				return &UnknownWorkerError{ID: dep, RequiredBy: id}
			}
		}
	}
	r.mu.RLock()
	for _, workers := range r.pipelines {
		for _, id := range workers {
			if _, ok := defs.byID[id]; !ok {
				r.mu.RUnlock()
				return &UnknownWorkerError{ID: id}
			}
		}
	}
	r.mu.RUnlock()
	if cycle := findCycle(defs); cycle != nil {
		return &CyclicDependencyError{Cycle: cycle}
	}
	return nil
}

// ResolveExecutionOrder returns requested in an order where every worker
// follows the requested workers it depends on, directly or through
// unrequested intermediaries. Predecessors outside the request count as
// satisfied. Duplicates collapse and ties keep request order, so the result
// is deterministic.
func (r *Registry) ResolveExecutionOrder(requested []string) ([]string, error) {
	defs := r.snapshot()
	ids := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			continue
		}
		if _, ok := defs.byID[id]; !ok {
			return nil, &UnknownWorkerError{ID: id}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if cycle := findCycle(defs); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	// before[id] holds the requested workers id must follow.
	before := make(map[string][]string, len(ids))
	for _, id := range ids {
		for _, other := range ids {
			if other != id && defs.dependsOn(id, other) {
				before[id] = append(before[id], other)
			}
		}
	}

	placed := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))
	for len(order) < len(ids) {
		for _, id := range ids {
			if placed[id] {
				continue
			}
			ready := true
			for _, dep := range before[id] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				order = append(order, id)
				break
			}
		}
	}
	return order, nil
}

type graph struct {
	order []string
	byID  map[string]Definition
}

func (r *Registry) snapshot() graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g := graph{order: slices.Clone(r.order), byID: make(map[string]Definition, len(r.defs))}
	for id, def := range r.defs {
		g.byID[id] = def
	}
	return g
}

// dependsOn reports whether id transitively requires target. The graph must
// be acyclic.
func (g graph) dependsOn(id, target string) bool {
	visited := make(map[string]bool)
	stack := slices.Clone(g.byID[id].Requires)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == target {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		stack = append(stack, g.byID[next].Requires...)
	}
	return false
}

// findCycle runs a colored depth-first search in registration order and
// returns the first cycle found as a closed path, or nil.
func findCycle(g graph) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = grey
		path = append(path, id)
		for _, dep := range g.byID[id].Requires {
			if _, ok := g.byID[dep]; !ok {
				continue
			}
			switch color[dep] {
			case grey:
				start := slices.Index(path, dep)
				cycle := slices.Clone(path[start:])
				return append(cycle, dep)
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}
	for _, id := range g.order {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
