// Package deps turns pass1 import edges into per-file dependency records.
package deps

import (
	"sort"
	"strings"

	"snapshotter/internal/repoindex"
)

// Record is the derived dependency view of a single file. Built once from
// the repo index and never mutated afterward.
type Record struct {
	// ResolvedInternal holds resolved in-repo import targets, sorted
	// and deduplicated.
	ResolvedInternal []string
	// ImportEdges keeps the raw internal edges that produced
	// ResolvedInternal.
	ImportEdges []repoindex.ImportEdge
	// Flags is the sorted set of pass1 file flags.
	Flags []string
	// Language is the recorded language, empty when unknown.
	Language string
	// TopLevelDefs lists top-level definition names in pass1 order.
	TopLevelDefs []string
	// UnresolvedSpecs lists import specs pass1 judged internal but
	// could not resolve.
	UnresolvedSpecs []string
}

// Extract derives a dependency record per indexed path. Pure and
// deterministic: the same index always yields the same map. File records
// without a path or a deps block are skipped.
func Extract(idx *repoindex.Index) map[string]Record {
	out := make(map[string]Record, len(idx.Files))
	for _, f := range idx.Files {
		if f.Path == "" || f.Deps == nil {
			continue
		}

		resolvedSet := map[string]bool{}
		var edges []repoindex.ImportEdge
		for _, e := range f.Deps.ImportEdges {
			spec := strings.TrimSpace(e.Spec)
			target := strings.TrimSpace(e.ResolvedPath)
			if spec == "" || target == "" || e.IsExternal {
				continue
			}
			edges = append(edges, e)
			resolvedSet[target] = true
		}
		resolved := make([]string, 0, len(resolvedSet))
		for p := range resolvedSet {
			resolved = append(resolved, p)
		}
		sort.Strings(resolved)

		out[f.Path] = Record{
			ResolvedInternal: resolved,
			ImportEdges:      edges,
			Flags:            cleanSorted(f.Flags),
			Language:         strings.TrimSpace(f.Language),
			TopLevelDefs:     cleanInOrder(f.TopLevelDefs),
			UnresolvedSpecs:  cleanInOrder(f.Deps.InternalUnresolvedSpecs),
		}
	}
	return out
}

func cleanSorted(in []string) []string {
	set := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func cleanInOrder(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
