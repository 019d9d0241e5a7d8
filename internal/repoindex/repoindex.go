// Package repoindex consumes the structural artifact produced by pass1.
// Decode is intentionally strict: contract violations in the upstream
// artifact fail fast instead of threading optional values through the
// rest of the pipeline.
package repoindex

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SchemaVersion is the exact pass1 artifact tag this package accepts.
const SchemaVersion = "pass1_repo_index.v1"

// PlaceholderCommit is the value pass1 writes when no commit could be
// resolved; it is rejected as a contract violation.
const PlaceholderCommit = "unknown"

// ContractError reports a malformed upstream artifact. It indicates a bug
// in a prior pass, never a transient condition.
type ContractError struct {
	Msg string
}

func (e *ContractError) Error() string { return "repoindex: contract violation: " + e.Msg }

func contractErr(format string, args ...any) error {
	return &ContractError{Msg: fmt.Sprintf(format, args...)}
}

// ImportEdge is one recorded import from a pass1 file record.
type ImportEdge struct {
	Spec         string `json:"spec"`
	ResolvedPath string `json:"resolved_path"`
	IsExternal   bool   `json:"is_external"`
}

// DepsBlock carries the dependency portion of a file record.
type DepsBlock struct {
	ImportEdges             []ImportEdge `json:"import_edges"`
	InternalUnresolvedSpecs []string     `json:"internal_unresolved_specs"`
}

// FileRecord is one indexed repository file.
type FileRecord struct {
	Path         string     `json:"path"`
	Language     string     `json:"language"`
	Deps         *DepsBlock `json:"deps"`
	Flags        []string   `json:"flags"`
	TopLevelDefs []string   `json:"top_level_defs"`
}

// Candidate is one ordered read-plan entry.
type Candidate struct {
	Path string `json:"path"`
}

// ReadPlan is the upstream-produced file reading plan.
type ReadPlan struct {
	ClosureSeeds []string    `json:"closure_seeds"`
	Candidates   []Candidate `json:"candidates"`
}

// JobBlock is the job metadata recorded by pass1.
type JobBlock struct {
	RepoURL        string `json:"repo_url"`
	ResolvedCommit string `json:"resolved_commit"`
}

type entrypoint struct {
	Path string `json:"path"`
}

type signalsBlock struct {
	Entrypoints []entrypoint `json:"entrypoints"`
}

// Index is a decoded, contract-checked pass1 repo index.
type Index struct {
	SchemaVersion  string          `json:"schema_version"`
	Job            JobBlock        `json:"job"`
	ReadPlan       ReadPlan        `json:"read_plan"`
	Signals        json.RawMessage `json:"signals"`
	ResolverInputs json.RawMessage `json:"resolver_inputs"`
	Files          []FileRecord    `json:"files"`

	raw []byte
}

// Decode parses and contract-checks a pass1 repo index. Any violation of
// the pass1 contract (schema version, missing commit, malformed blocks)
// is fatal.
func Decode(data []byte) (*Index, error) {
	// Presence checks first: a typed unmarshal cannot distinguish an
	// absent block from an empty one.
	var shape struct {
		SchemaVersion *string         `json:"schema_version"`
		Job           json.RawMessage `json:"job"`
		ReadPlan      json.RawMessage `json:"read_plan"`
		Files         json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, contractErr("repo_index is not a JSON object: %v", err)
	}
	if shape.SchemaVersion == nil || *shape.SchemaVersion != SchemaVersion {
		got := "<missing>"
		if shape.SchemaVersion != nil {
			got = *shape.SchemaVersion
		}
		return nil, contractErr("repo_index.schema_version mismatch: expected %s, got %s", SchemaVersion, got)
	}
	if !isJSONObject(shape.Job) {
		return nil, contractErr("repo_index.job must be an object")
	}
	if !isJSONObject(shape.ReadPlan) {
		return nil, contractErr("repo_index.read_plan must be an object")
	}
	if !isJSONArray(shape.Files) {
		return nil, contractErr("repo_index.files must be a list")
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, contractErr("repo_index failed to decode: %v", err)
	}
	rc := strings.TrimSpace(idx.Job.ResolvedCommit)
	if rc == "" || rc == PlaceholderCommit {
		return nil, contractErr("job.resolved_commit missing/invalid")
	}
	idx.Job.ResolvedCommit = rc
	idx.raw = data
	return &idx, nil
}

// Raw returns the original artifact bytes the index was decoded from.
func (idx *Index) Raw() []byte { return idx.raw }

// Candidates returns the deduplicated read-plan candidate paths in plan order.
func (idx *Index) Candidates() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range idx.ReadPlan.Candidates {
		p := strings.TrimSpace(c.Path)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ClosureSeeds returns the deduplicated closure seed paths in plan order.
func (idx *Index) ClosureSeeds() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range idx.ReadPlan.ClosureSeeds {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Entrypoints returns the detected entry point paths that are present in
// available, sorted for determinism.
func (idx *Index) Entrypoints(available map[string]bool) []string {
	var sig signalsBlock
	if len(idx.Signals) > 0 {
		// Malformed signals degrade to no entrypoints; signals are a
		// hint, not part of the pass1 contract.
		_ = json.Unmarshal(idx.Signals, &sig)
	}
	seen := map[string]bool{}
	var out []string
	for _, ep := range sig.Entrypoints {
		p := strings.TrimSpace(ep.Path)
		if p == "" || seen[p] || !available[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LanguageByPath maps each indexed path to its recorded language.
func (idx *Index) LanguageByPath() map[string]string {
	out := make(map[string]string, len(idx.Files))
	for _, f := range idx.Files {
		if f.Path == "" || f.Language == "" {
			continue
		}
		out[f.Path] = strings.TrimSpace(f.Language)
	}
	return out
}

func isJSONObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}

func isJSONArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}
