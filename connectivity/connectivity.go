// Package connectivity implements C2: it builds an undirected graph over
// text ids from the effective verdicts (one edge per judged pair,
// regardless of outcome) and reports connectivity via a union-find
// (disjoint-set) structure with path compression and union by rank — the
// same technique prim_kruskal.Kruskal uses for cycle detection, applied
// here to component counting instead of MST construction.
package connectivity

import (
	"sort"

	"github.com/cmpjudge/engine/cohort"
)

// Report is the result of analysing one cohort's comparison graph.
type Report struct {
	// Connected is true when Components <= 1 (0 or 1 texts count as
	// connected, per spec.md §4.2).
	Connected bool
	// Components is the number of connected components.
	Components int
	// ComponentOf maps each text id to its component index (0-based,
	// arbitrary but stable for one call).
	ComponentOf map[int64]int
}

// disjointSet is an inline union-find keyed by text id, mirroring the
// parent/rank maps in prim_kruskal.Kruskal.
type disjointSet struct {
	parent map[int64]int64
	rank   map[int64]int
}

func newDisjointSet(ids []int64) *disjointSet {
	ds := &disjointSet{
		parent: make(map[int64]int64, len(ids)),
		rank:   make(map[int64]int, len(ids)),
	}
	for _, id := range ids {
		ds.parent[id] = id
		ds.rank[id] = 0
	}
	return ds
}

// find walks to the root with path compression.
func (ds *disjointSet) find(u int64) int64 {
	for ds.parent[u] != u {
		ds.parent[u] = ds.parent[ds.parent[u]]
		u = ds.parent[u]
	}
	return u
}

// union merges the sets containing u and v by rank; returns true when a
// merge actually happened (u and v were in different sets).
func (ds *disjointSet) union(u, v int64) bool {
	ru, rv := ds.find(u), ds.find(v)
	if ru == rv {
		return false
	}
	if ds.rank[ru] < ds.rank[rv] {
		ds.parent[ru] = rv
	} else {
		ds.parent[rv] = ru
		if ds.rank[ru] == ds.rank[rv] {
			ds.rank[ru]++
		}
	}
	return true
}

// Analyze computes connectivity over the comparison graph induced by the
// effective verdicts. 0 or 1 texts are always connected. Verdicts
// referencing text ids outside texts are ignored (callers are expected to
// have already run the verdicts through verdict.EffectiveVerdicts against
// the same texts slice).
//
// Complexity: O((n + |verdicts|) * alpha(n)).
func Analyze(texts []cohort.Text, verdicts []cohort.Verdict) Report {
	ids := make([]int64, 0, len(texts))
	known := make(map[int64]struct{}, len(texts))
	for _, t := range texts {
		ids = append(ids, t.ID)
		known[t.ID] = struct{}{}
	}

	ds := newDisjointSet(ids)
	for _, v := range verdicts {
		if _, ok := known[v.TextAID]; !ok {
			continue
		}
		if _, ok := known[v.TextBID]; !ok {
			continue
		}
		ds.union(v.TextAID, v.TextBID)
	}

	// Assign dense 0-based component indices in a deterministic order
	// (ascending text id) so repeated calls on the same input agree.
	sortedIDs := make([]int64, len(ids))
	copy(sortedIDs, ids)
	sort.Slice(sortedIDs, func(i, j int) bool { return sortedIDs[i] < sortedIDs[j] })

	rootIndex := make(map[int64]int)
	componentOf := make(map[int64]int, len(ids))
	for _, id := range sortedIDs {
		root := ds.find(id)
		idx, ok := rootIndex[root]
		if !ok {
			idx = len(rootIndex)
			rootIndex[root] = idx
		}
		componentOf[id] = idx
	}

	components := len(rootIndex)
	return Report{
		Connected:   components <= 1,
		Components:  components,
		ComponentOf: componentOf,
	}
}
