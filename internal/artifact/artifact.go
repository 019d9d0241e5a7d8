// Package artifact defines the pass2 output records, their schema tags
// and filenames, canonical JSON fingerprinting, and atomic persistence.
package artifact

import (
	"snapshotter/internal/caps"
	"snapshotter/internal/evidence"
	"snapshotter/internal/semantic"
)

// Artifact filenames are part of the pipeline contract.
const (
	SemanticFilename    = "PASS2_SEMANTIC.json"
	ArchPackFilename    = "PASS2_ARCH_PACK.json"
	SupportPackFilename = "PASS2_SUPPORT_PACK.json"
	LLMRawFilename      = "PASS2_LLM_RAW.txt"
	LLMRepairedFilename = "PASS2_LLM_REPAIRED.txt"
)

// Schema version tags must match exactly; no ranges, no back-compat.
const (
	SemanticSchemaVersion    = "pass2_semantic.v1"
	ArchPackSchemaVersion    = "pass2_arch_pack.v1"
	SupportPackSchemaVersion = "pass2_support_pack.v1"
)

// RepoMeta identifies the analyzed repository snapshot. RepoURL may be
// null when the repo was supplied as a bare directory.
type RepoMeta struct {
	RepoURL        *string `json:"repo_url"`
	ResolvedCommit string  `json:"resolved_commit"`
}

// Pack is a bounded evidence pack artifact. The fingerprint covers only
// {repo, caps, files}; debug metadata and formatting never affect it.
type Pack[C any] struct {
	SchemaVersion  string                   `json:"schema_version"`
	GeneratedAt    string                   `json:"generated_at"`
	Repo           RepoMeta                 `json:"repo"`
	Caps           C                        `json:"caps"`
	SelectionDebug *evidence.SelectionDebug `json:"selection_debug,omitempty"`
	Files          map[string]string        `json:"files"`
	Fingerprint    string                   `json:"fingerprint_sha256"`
}

type packFingerprintView[C any] struct {
	Repo  RepoMeta          `json:"repo"`
	Caps  C                 `json:"caps"`
	Files map[string]string `json:"files"`
}

// NewArchPack assembles and fingerprints the architecture pack artifact.
func NewArchPack(repo RepoMeta, c caps.SemanticCaps, dbg evidence.SelectionDebug, files map[string]string) (Pack[caps.ArchPackCaps], error) {
	p := Pack[caps.ArchPackCaps]{
		SchemaVersion:  ArchPackSchemaVersion,
		GeneratedAt:    UTCTimestamp(),
		Repo:           repo,
		Caps:           c.ArchPack(),
		SelectionDebug: &dbg,
		Files:          files,
	}
	fp, err := Fingerprint(packFingerprintView[caps.ArchPackCaps]{Repo: p.Repo, Caps: p.Caps, Files: p.Files})
	if err != nil {
		return p, err
	}
	p.Fingerprint = fp
	return p, nil
}

// NewSupportPack assembles and fingerprints the support pack artifact.
func NewSupportPack(repo RepoMeta, c caps.SemanticCaps, files map[string]string) (Pack[caps.SupportPackCaps], error) {
	p := Pack[caps.SupportPackCaps]{
		SchemaVersion: SupportPackSchemaVersion,
		GeneratedAt:   UTCTimestamp(),
		Repo:          repo,
		Caps:          c.SupportPack(),
		Files:         files,
	}
	fp, err := Fingerprint(packFingerprintView[caps.SupportPackCaps]{Repo: p.Repo, Caps: p.Caps, Files: p.Files})
	if err != nil {
		return p, err
	}
	p.Fingerprint = fp
	return p, nil
}

// Inputs records the fingerprints of every upstream artifact this run
// consumed, for reproducibility and downstream caching.
type Inputs struct {
	RepoIndexSchemaVersion string `json:"pass1_repo_index_schema_version"`
	RepoIndexFingerprint   string `json:"pass1_repo_index_fingerprint_sha256"`
	ArchPackFingerprint    string `json:"arch_pack_fingerprint_sha256"`
	SupportPackFingerprint string `json:"support_pack_fingerprint_sha256"`
}

// RawPaths points at the raw (and, when repair ran, repaired) LLM text
// files written beside the semantic artifact.
type RawPaths struct {
	RawText      string  `json:"raw_text"`
	RepairedText *string `json:"repaired_text"`
}

// Semantic is the final pass2 artifact. Caps are added deterministically
// by the pipeline, never trusted from the model.
type Semantic struct {
	SchemaVersion string            `json:"schema_version"`
	GeneratedAt   string            `json:"generated_at"`
	Repo          RepoMeta          `json:"repo"`
	Caps          caps.SemanticCaps `json:"caps"`
	Inputs        Inputs            `json:"inputs"`
	LLMOutput     semantic.Output   `json:"llm_output"`
	LLMRawPaths   RawPaths          `json:"llm_raw_paths"`
	Fingerprint   string            `json:"fingerprint_sha256"`
}

type semanticFingerprintView struct {
	Repo      RepoMeta          `json:"repo"`
	Caps      caps.SemanticCaps `json:"caps"`
	Inputs    Inputs            `json:"inputs"`
	LLMOutput semantic.Output   `json:"llm_output"`
}

// NewSemantic assembles and fingerprints the final semantic artifact.
func NewSemantic(repo RepoMeta, c caps.SemanticCaps, in Inputs, out semantic.Output, rawPaths RawPaths) (Semantic, error) {
	s := Semantic{
		SchemaVersion: SemanticSchemaVersion,
		GeneratedAt:   UTCTimestamp(),
		Repo:          repo,
		Caps:          c,
		Inputs:        in,
		LLMOutput:     out,
		LLMRawPaths:   rawPaths,
	}
	fp, err := Fingerprint(semanticFingerprintView{Repo: s.Repo, Caps: s.Caps, Inputs: s.Inputs, LLMOutput: s.LLMOutput})
	if err != nil {
		return s, err
	}
	s.Fingerprint = fp
	return s, nil
}
