// Package evidence deterministically ranks repository files and
// materializes the bounded packs that feed the LLM call. All ordering is
// explicit: no map iteration order ever reaches an output.
package evidence

import (
	"errors"
	"sort"
	"strings"

	"snapshotter/internal/caps"
	"snapshotter/internal/deps"
	"snapshotter/internal/repoindex"
)

// ErrNoContents reports an empty file-contents map: there is no valid
// partial evidence pack to build from nothing.
var ErrNoContents = errors.New("evidence: file contents map is empty")

// SelectionDebug records how the architecture ordering was assembled.
type SelectionDebug struct {
	AvailableFiles    int `json:"available_files"`
	ClosureSeedsCount int `json:"closure_seeds_count"`
	ReadPlanCount     int `json:"read_plan_count"`
	EntrypointsCount  int `json:"entrypoints_count"`
	SpinesCount       int `json:"spines_count"`
	DepHops           int `json:"dep_hops"`
	DepEdgesPerFile   int `json:"dep_edges_per_file"`
	ExpandedCount     int `json:"expanded_count"`
}

// ArchitectureOrder produces the deterministic file ordering for the
// architecture pack: dependency-expanded seeds first, then every
// available path ranked by (-score, path).
func ArchitectureOrder(
	fileContents map[string]string,
	idx *repoindex.Index,
	depsByFile map[string]deps.Record,
	c caps.SemanticCaps,
) ([]string, SelectionDebug, error) {
	if len(fileContents) == 0 {
		return nil, SelectionDebug{}, ErrNoContents
	}
	available := availableSet(fileContents)

	entrypoints := idx.Entrypoints(available)
	closureSeeds := filterAvailable(idx.ClosureSeeds(), available)
	readPlan := filterAvailable(idx.Candidates(), available)
	spines := candidateSpines(available)

	// Strict seed order: closure seeds, read plan, entrypoints, spines.
	// Later duplicates are dropped.
	var seeds []string
	seen := map[string]bool{}
	push := func(ps []string) {
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				seeds = append(seeds, p)
			}
		}
	}
	push(closureSeeds)
	push(readPlan)
	push(entrypoints)
	push(spines)

	g := buildDepGraph(available, depsByFile)
	expanded := expandSeeds(seeds, g, c.PackDepHops, c.PackMaxDepEdgesPerFile)

	scorer := archScorer{
		closureSeeds: toSet(closureSeeds),
		readPlan:     toSet(readPlan),
		entrypoints:  toSet(entrypoints),
		spines:       toSet(spines),
		langByPath:   idx.LanguageByPath(),
		graph:        g,
	}
	ranked := rankPaths(available, scorer.score)

	ordered := make([]string, 0, len(available))
	pushed := map[string]bool{}
	for _, p := range expanded {
		if !pushed[p] {
			pushed[p] = true
			ordered = append(ordered, p)
		}
	}
	for _, p := range ranked {
		if !pushed[p] {
			pushed[p] = true
			ordered = append(ordered, p)
		}
	}

	dbg := SelectionDebug{
		AvailableFiles:    len(available),
		ClosureSeedsCount: len(closureSeeds),
		ReadPlanCount:     len(readPlan),
		EntrypointsCount:  len(entrypoints),
		SpinesCount:       len(spines),
		DepHops:           c.PackDepHops,
		DepEdgesPerFile:   c.PackMaxDepEdgesPerFile,
		ExpandedCount:     len(expanded),
	}
	return ordered, dbg, nil
}

type archScorer struct {
	closureSeeds map[string]bool
	readPlan     map[string]bool
	entrypoints  map[string]bool
	spines       map[string]bool
	langByPath   map[string]string
	graph        depGraph
}

// score is a deterministic sum of weighted signals; seed-source weights
// are strictly ordered by trust in the signal.
func (a archScorer) score(p string) int {
	pl := strings.ToLower(p)
	s := 0

	if a.closureSeeds[p] {
		s += 1200
	}
	if a.readPlan[p] {
		s += 900
	}
	if a.entrypoints[p] {
		s += 800
	}
	if a.spines[p] {
		s += 650
	}

	if hasSuffixAny(pl, "main.py", "app.py", "server.py") {
		s += 240
	}
	if hasSuffixAny(pl, "/route.ts", "/route.js", "/page.tsx", "/layout.tsx") {
		s += 220
	}
	if hasSuffixAny(pl, "middleware.ts", "middleware.js") {
		s += 240
	}
	if strings.Contains(pl, "security") || strings.Contains(pl, "auth") {
		s += 220
	}

	s += minInt(80, 10*a.graph.inDegree(p))
	s += minInt(40, 5*a.graph.outDegree(p))

	if strings.HasPrefix(pl, "backend/routers/") {
		s += 220
	}
	if strings.HasPrefix(pl, "backend/") {
		s += 60
	}
	if strings.Contains(pl, "/app/api/") && hasSuffixAny(pl, "/route.ts", "/route.js") {
		s += 180
	}

	if hasPrefixAny(pl, "frontend/lib/", "apps/web/lib/", "apps/frontend/lib/") {
		s += 140
	}
	if hasPrefixAny(pl, "frontend/components/", "apps/web/components/", "apps/frontend/components/") {
		s += 120
	}

	if strings.HasSuffix(pl, "readme.md") {
		s += 200
	}
	if strings.HasPrefix(pl, "docs/") {
		s += 120
	}
	if hasSuffixAny(pl, "pyproject.toml", "alembic.ini", "package.json", "next.config.ts", "next.config.js") {
		s += 160
	}

	switch a.langByPath[p] {
	case "python", "typescript", "javascript":
		s += 10
	}
	return s
}

// rankPaths sorts every available path by (-score, path) for a fully
// deterministic total order.
func rankPaths(available map[string]bool, score func(string) int) []string {
	paths := make([]string, 0, len(available))
	for p := range available {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	scores := make(map[string]int, len(paths))
	for _, p := range paths {
		scores[p] = score(p)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		if scores[paths[i]] != scores[paths[j]] {
			return scores[paths[i]] > scores[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths
}

func availableSet(fileContents map[string]string) map[string]bool {
	out := make(map[string]bool, len(fileContents))
	for p := range fileContents {
		out[p] = true
	}
	return out
}

func filterAvailable(paths []string, available map[string]bool) []string {
	var out []string
	for _, p := range paths {
		if available[p] {
			out = append(out, p)
		}
	}
	return out
}

func toSet(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func hasPrefixAny(s string, prefixes ...string) bool {
	for _, pre := range prefixes {
		if strings.HasPrefix(s, pre) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
