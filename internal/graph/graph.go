// Package graph orders source units so that every dependency precedes its
// dependents, breaking cycles deterministically.
package graph

import (
	"sort"

	"github.com/phobologic/codescribe/internal/model"
)

// CycleWarning records one dependency edge removed to break a cycle.
type CycleWarning struct {
	Source string
	Target string
}

// Order computes a topological order over units via depth-first postorder:
// dependencies first, dependents after. The raw edge set may contain cycles;
// each detected cycle is broken by removing the participating edge whose
// source path is lexicographically greatest (ties: greatest target), and one
// warning is emitted per removed edge. Edges pointing at units not present
// in the input are ignored.
//
// The result is deterministic for a given edge set: roots and neighbors are
// always visited in sorted path order.
func Order(units []*model.SourceUnit) ([]*model.SourceUnit, []CycleWarning) {
	byPath := make(map[string]*model.SourceUnit, len(units))
	paths := make([]string, 0, len(units))
	for _, u := range units {
		byPath[u.Path] = u
		paths = append(paths, u.Path)
	}
	sort.Strings(paths)

	// adj[u] = sorted dependency targets of u that exist in the input.
	adj := make(map[string][]string, len(units))
	for _, u := range units {
		var targets []string
		for _, dep := range u.Deps {
			if _, ok := byPath[dep]; ok {
				targets = append(targets, dep)
			}
		}
		sort.Strings(targets)
		adj[u.Path] = targets
	}

	var warnings []CycleWarning
	for {
		cycle := findCycle(paths, adj)
		if cycle == nil {
			break
		}
		drop := pickEdge(cycle)
		removeEdge(adj, drop.Source, drop.Target)
		warnings = append(warnings, drop)
	}

	order := make([]*model.SourceUnit, 0, len(units))
	state := make(map[string]int, len(units)) // 0 unvisited, 2 finished
	var visit func(p string)
	visit = func(p string) {
		if state[p] != 0 {
			return
		}
		state[p] = 1
		for _, dep := range adj[p] {
			visit(dep)
		}
		state[p] = 2
		order = append(order, byPath[p])
	}
	for _, p := range paths {
		visit(p)
	}

	return order, warnings
}

type edge = CycleWarning

// findCycle returns the edges of one cycle, or nil if the graph is acyclic.
// DFS in sorted order so the same cycle is found on every run.
func findCycle(paths []string, adj map[string][]string) []edge {
	const (
		unvisited = 0
		onStack   = 1
		finished  = 2
	)
	state := make(map[string]int, len(paths))

	var stack []string
	var cycle []edge

	var visit func(p string) bool
	visit = func(p string) bool {
		state[p] = onStack
		stack = append(stack, p)
		for _, dep := range adj[p] {
			switch state[dep] {
			case unvisited:
				if visit(dep) {
					return true
				}
			case onStack:
				// Back edge: the cycle runs from dep through the stack to p.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				for i := start; i < len(stack)-1; i++ {
					cycle = append(cycle, edge{Source: stack[i], Target: stack[i+1]})
				}
				cycle = append(cycle, edge{Source: p, Target: dep})
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[p] = finished
		return false
	}

	for _, p := range paths {
		if state[p] == unvisited {
			if visit(p) {
				return cycle
			}
		}
	}
	return nil
}

// pickEdge selects the cycle edge to remove: lexicographically greatest
// source, ties broken by greatest target. Stable across runs.
func pickEdge(cycle []edge) edge {
	best := cycle[0]
	for _, e := range cycle[1:] {
		if e.Source > best.Source || (e.Source == best.Source && e.Target > best.Target) {
			best = e
		}
	}
	return best
}

func removeEdge(adj map[string][]string, source, target string) {
	targets := adj[source]
	for i, t := range targets {
		if t == target {
			adj[source] = append(targets[:i:i], targets[i+1:]...)
			return
		}
	}
}
