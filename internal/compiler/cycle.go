package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/recordkit/internal/model"
)

// CycleWarning reports models whose dependent deletes cascade back into
// each other.
//
// Cycles are warnings, not errors: Delete loads dependents before removing
// them, so a cascade over a cycle terminates once rows are gone. It still
// issues one lookup per visited row, which is rarely intended.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["Author", "Article", "Author"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles finds cycles in the dependent-delete graph of specs.
//
// The algorithm:
//  1. Add an edge Owner -> Target for every dependent has_one/has_many
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Warnings are sorted by path so output is stable.
func AnalyzeCycles(specs []Spec) []CycleWarning {
	graph := buildCascadeGraph(specs)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	if warnings == nil {
		return []CycleWarning{}
	}
	return warnings
}

// dependencyGraph maps model -> models its deletes cascade into.
type dependencyGraph map[string][]string

func buildCascadeGraph(specs []Spec) dependencyGraph {
	graph := make(dependencyGraph)
	for _, s := range specs {
		def := s.Definition
		if graph[def.Name] == nil {
			graph[def.Name] = []string{}
		}
		for _, assocs := range []map[string]model.AssociationOptions{def.HasOne, def.HasMany} {
			for _, alias := range sortedKeys(assocs) {
				opts := assocs[alias]
				if !opts.Dependent {
					continue
				}
				target := opts.ClassName
				if target == "" {
					target = alias
				}
				graph[def.Name] = append(graph[def.Name], target)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// root of an SCC: pop it
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. The path starts at
// the alphabetically first member.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-cascading delete detected: %s → %s", name, name),
			Level:   "warning",
		}
	}

	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)
	path := reconstructCyclePath(sorted, graph)

	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Cascading delete cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to it.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
