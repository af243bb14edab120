// Package graph builds the manifest dependency DAG and produces a
// topological order: Kahn's algorithm with lexicographic tie-breaking for
// reproducible output, and DFS-based cycle chain reporting when it isn't
// acyclic.
package graph

import (
	"sort"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/manifest"
)

// Build returns manifests ordered so that for every edge a depends_on b,
// b precedes a. manifests need not be pre-sorted; the tie-break among
// equally-ready nodes is by ManifestId lexicographic order.
func Build(manifests []*manifest.Manifest) ([]*manifest.Manifest, error) {
	byID := make(map[manifest.ID]*manifest.Manifest, len(manifests))
	for _, m := range manifests {
		byID[m.ID] = m
	}

	// forward[b] = the manifests that declared depends_on b; popping b
	// decrements indegree for each of them.
	forward := make(map[manifest.ID][]manifest.ID, len(manifests))
	indegree := make(map[manifest.ID]int, len(manifests))
	for _, m := range manifests {
		if _, ok := indegree[m.ID]; !ok {
			indegree[m.ID] = 0
		}
		for _, dep := range m.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, keronerr.New(keronerr.UnknownDependency, string(m.ID)+" -> "+string(dep))
			}
			indegree[m.ID]++
			forward[dep] = append(forward[dep], m.ID)
		}
	}

	ready := make([]manifest.ID, 0, len(manifests))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]*manifest.Manifest, 0, len(manifests))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, byID[next])

		var newlyReady []manifest.ID
		for _, succ := range forward[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				newlyReady = append(newlyReady, succ)
			}
		}
		if len(newlyReady) > 0 {
			ready = append(ready, newlyReady...)
			sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		}
	}

	if len(order) < len(manifests) {
		chain := findCycle(manifests, order)
		return nil, keronerr.New(keronerr.CycleDetected, formatChain(chain))
	}

	return order, nil
}

// findCycle DFS-walks the induced subgraph of manifests not present in
// resolved to produce one concrete cycle chain.
func findCycle(manifests []*manifest.Manifest, resolved []*manifest.Manifest) []manifest.ID {
	done := make(map[manifest.ID]bool, len(resolved))
	for _, m := range resolved {
		done[m.ID] = true
	}
	byID := make(map[manifest.ID]*manifest.Manifest, len(manifests))
	remaining := make([]manifest.ID, 0)
	for _, m := range manifests {
		byID[m.ID] = m
		if !done[m.ID] {
			remaining = append(remaining, m.ID)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[manifest.ID]int, len(remaining))
	var path []manifest.ID

	var visit func(id manifest.ID) []manifest.ID
	visit = func(id manifest.ID) []manifest.ID {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range byID[id].DependsOn {
			if done[dep] {
				continue
			}
			switch state[dep] {
			case visiting:
				// Found the back edge closing the cycle: trim path to the
				// segment from dep's first occurrence onward.
				for i, p := range path {
					if p == dep {
						return append(append([]manifest.ID{}, path[i:]...), dep)
					}
				}
			case unvisited:
				if chain := visit(dep); chain != nil {
					return chain
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = visited
		return nil
	}

	for _, id := range remaining {
		if state[id] == unvisited {
			if chain := visit(id); chain != nil {
				return chain
			}
		}
	}
	// Unreachable when len(order) < len(manifests): a non-empty remainder
	// always contains a cycle.
	return remaining
}

func formatChain(chain []manifest.ID) string {
	s := ""
	for i, id := range chain {
		if i > 0 {
			s += " -> "
		}
		s += string(id)
	}
	return s
}
