package orchestrator

import (
	"fmt"

	"github.com/parleyhq/parley/internal/capability"
)

// DependencyGraph represents a directed acyclic graph over the capabilities
// selected for one turn. Capabilities are nodes, and edges represent
// "requires the success of" relationships.
type DependencyGraph struct {
	// order preserves selection order for deterministic iteration.
	order []string
	// nodes maps capability name to the capability itself.
	nodes map[string]capability.Capability
	// edges maps capability name to the names it depends on.
	edges map[string][]string
}

// BuildBatches builds the dependency graph for the selected capabilities
// and partitions it into ordered execution batches: batch k contains
// exactly the capabilities whose dependencies are all satisfied by batches
// 0..k-1. Within a batch, iteration order is selection order, not map
// order. A cycle is a *ConfigurationError.
//
// A declared dependency that was not selected for this turn induces no
// edge: dependency declarations bind only within the turn's selection.
func BuildBatches(selected []capability.Capability) ([][]capability.Capability, error) {
	g := newDependencyGraph(selected)
	if g.hasCycle() {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("among capabilities %v", g.order),
			Err:    ErrCycleDetected,
		}
	}
	return g.batches(), nil
}

// newDependencyGraph constructs the graph, deduplicating repeated
// selections (first occurrence wins the ordering slot).
func newDependencyGraph(selected []capability.Capability) *DependencyGraph {
	g := &DependencyGraph{
		nodes: make(map[string]capability.Capability, len(selected)),
		edges: make(map[string][]string, len(selected)),
	}

	for _, c := range selected {
		name := c.Name()
		if _, exists := g.nodes[name]; exists {
			continue
		}
		g.nodes[name] = c
		g.order = append(g.order, name)
	}

	for _, name := range g.order {
		for _, dep := range g.nodes[name].DependsOn() {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			g.edges[name] = append(g.edges[name], dep)
		}
	}

	return g
}

// hasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = 1

		for _, dep := range g.edges[name] {
			switch colors[dep] {
			case 1:
				// Back edge - cycle detected.
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}

		colors[name] = 2
		return false
	}

	for _, name := range g.order {
		if colors[name] == 0 {
			if visit(name) {
				return true
			}
		}
	}

	return false
}

// batches partitions the acyclic graph into Kahn-style layers: repeatedly
// collect every node whose dependencies are all already layered.
// Must be called after hasCycle returned false.
func (g *DependencyGraph) batches() [][]capability.Capability {
	done := make(map[string]bool, len(g.order))
	remaining := len(g.order)

	var batches [][]capability.Capability
	for remaining > 0 {
		var batch []capability.Capability
		for _, name := range g.order {
			if done[name] {
				continue
			}
			ready := true
			for _, dep := range g.edges[name] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, g.nodes[name])
			}
		}

		for _, c := range batch {
			done[c.Name()] = true
		}
		remaining -= len(batch)
		batches = append(batches, batch)
	}

	return batches
}
