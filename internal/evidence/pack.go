package evidence

import (
	"strings"

	"snapshotter/internal/caps"
	"snapshotter/internal/repoindex"
)

// archBreadthFloor and archBreadthCeil bound the top-up pass that
// guarantees minimum evidence breadth when seed signals were sparse.
const (
	archBreadthFloor = 12
	archBreadthCeil  = 24
)

// BuildArchPack materializes the architecture pack by walking the ordered
// paths until the file-count cap or the aggregate character budget is hit.
// Oversized contents are head+tail truncated rather than dropped.
func BuildArchPack(ordered []string, fileContents map[string]string, c caps.SemanticCaps) map[string]string {
	out := map[string]string{}
	total := 0

	for _, p := range ordered {
		if len(out) >= c.MaxArchFiles {
			break
		}
		content := fileContents[p]
		if content == "" {
			continue
		}
		remaining := c.MaxArchInputChars - total
		if remaining <= 0 {
			break
		}
		t := TruncateWithTail(content, c.MaxArchCharsPerFile)
		if len(t) > remaining {
			t = TruncateWithTail(t, remaining)
		}
		if t == "" {
			continue
		}
		out[p] = t
		total += len(t)
	}

	// Top-up pass: guarantee minimum breadth even when the primary walk
	// exhausted its budget on a few large seeds.
	floor := minInt(archBreadthFloor, c.MaxArchFiles)
	if len(out) < floor {
		ceil := minInt(archBreadthCeil, c.MaxArchFiles)
		for _, p := range ordered {
			if len(out) >= ceil {
				break
			}
			if _, done := out[p]; done {
				continue
			}
			content := fileContents[p]
			if content == "" {
				continue
			}
			remaining := c.MaxArchInputChars - total
			if remaining <= 0 {
				break
			}
			t := TruncateWithTail(content, minInt(c.MaxArchCharsPerFile, remaining))
			if t == "" {
				continue
			}
			out[p] = t
			total += len(t)
		}
	}
	return out
}

// BuildSupportPack selects and materializes the supporting pack
// (documentation, manifests, onboarding-relevant files) under its own
// caps. Weights favor docs and manifests over code-structure signals.
func BuildSupportPack(
	fileContents map[string]string,
	idx *repoindex.Index,
	maxFiles, maxTotalChars, maxCharsPerFile int,
) map[string]string {
	available := availableSet(fileContents)

	entrypoints := toSet(idx.Entrypoints(available))
	closureSeeds := filterAvailable(idx.ClosureSeeds(), available)
	readPlan := filterAvailable(idx.Candidates(), available)
	spines := candidateSpines(available)

	scorer := supportScorer{
		closureSeeds: toSet(closureSeeds),
		readPlan:     toSet(readPlan),
		entrypoints:  entrypoints,
		spines:       toSet(spines),
	}
	ranked := rankPaths(available, scorer.score)

	var ordered []string
	seen := map[string]bool{}
	push := func(ps []string) {
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				ordered = append(ordered, p)
			}
		}
	}
	push(closureSeeds)
	push(readPlan)
	push(spines)
	push(ranked)

	out := map[string]string{}
	total := 0
	for _, p := range ordered {
		if len(out) >= maxFiles {
			break
		}
		content := fileContents[p]
		if content == "" {
			continue
		}
		remaining := maxTotalChars - total
		if remaining <= 0 {
			break
		}
		t := TruncateWithTail(content, maxCharsPerFile)
		if len(t) > remaining {
			t = TruncateWithTail(t, remaining)
		}
		if t == "" {
			continue
		}
		out[p] = t
		total += len(t)
	}
	return out
}

type supportScorer struct {
	closureSeeds map[string]bool
	readPlan     map[string]bool
	entrypoints  map[string]bool
	spines       map[string]bool
}

func (s supportScorer) score(p string) int {
	pl := strings.ToLower(p)
	n := 0
	if s.closureSeeds[p] {
		n += 1100
	}
	if s.readPlan[p] {
		n += 900
	}
	if s.entrypoints[p] {
		n += 800
	}
	if s.spines[p] {
		n += 650
	}
	if strings.HasSuffix(pl, "readme.md") {
		n += 260
	}
	if strings.HasPrefix(pl, "docs/") || strings.Contains(pl, "/docs/") {
		n += 200
	}
	if strings.HasSuffix(pl, ".md") {
		n += 150
	}
	if hasSuffixAny(pl, "pyproject.toml", "alembic.ini", "uv.lock") {
		n += 140
	}
	if strings.Contains(pl, "next.config") || strings.Contains(pl, "eslint") {
		n += 110
	}
	if hasSuffixAny(pl, "package.json", "tsconfig.json", "jsconfig.json") {
		n += 85
	}
	if hasSuffixAny(pl, ".ts", ".tsx", ".py") {
		n += 10
	}
	return n
}
