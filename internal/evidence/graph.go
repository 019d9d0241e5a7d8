package evidence

import (
	"sort"

	"snapshotter/internal/deps"
)

// depGraph holds forward and reverse adjacency restricted to the paths
// present in the evidence universe.
type depGraph struct {
	out map[string]map[string]bool
	in  map[string]map[string]bool
}

func buildDepGraph(available map[string]bool, depsByFile map[string]deps.Record) depGraph {
	g := depGraph{
		out: make(map[string]map[string]bool, len(available)),
		in:  make(map[string]map[string]bool, len(available)),
	}
	for p := range available {
		g.out[p] = map[string]bool{}
		g.in[p] = map[string]bool{}
	}
	for p := range available {
		for _, dep := range depsByFile[p].ResolvedInternal {
			if available[dep] {
				g.out[p][dep] = true
				g.in[dep][p] = true
			}
		}
	}
	return g
}

func (g depGraph) inDegree(p string) int  { return len(g.in[p]) }
func (g depGraph) outDegree(p string) int { return len(g.out[p]) }

// expandSeeds runs a bounded breadth-first expansion from seeds: exactly
// hops rounds, at most maxPerFile sorted dependency targets per frontier
// file, visited paths skipped, stopping early on an empty frontier. The
// returned order starts with the seeds themselves.
func expandSeeds(seeds []string, g depGraph, hops, maxPerFile int) []string {
	if hops <= 0 {
		return seeds
	}
	seen := map[string]bool{}
	var order []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
	}
	for _, s := range seeds {
		add(s)
	}

	frontier := append([]string(nil), seeds...)
	for i := 0; i < hops; i++ {
		var next []string
		for _, p := range frontier {
			targets := make([]string, 0, len(g.out[p]))
			for d := range g.out[p] {
				targets = append(targets, d)
			}
			sort.Strings(targets)
			if maxPerFile > 0 && len(targets) > maxPerFile {
				targets = targets[:maxPerFile]
			}
			for _, d := range targets {
				if !seen[d] {
					add(d)
					next = append(next, d)
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return order
}
