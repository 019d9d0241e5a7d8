// Package prompt constructs the system and user prompts for the semantic
// generation call and the narrowly-scoped JSON repair call. Only samples
// of the evidence packs go into the prompt; the full packs are written to
// disk separately to keep token cost bounded.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"

	"snapshotter/internal/artifact"
	"snapshotter/internal/deps"
	"snapshotter/internal/evidence"
	"snapshotter/internal/repoindex"
)

// Prompt-size caps for the embedded summaries and samples.
const (
	maxDepSummaryPaths  = 50
	maxResolvedSample   = 5
	maxUnresolvedSample = 5
	maxFlagsSample      = 5
	maxDefsSample       = 10
	maxArchSampleFiles  = 10
	maxSupportSamples   = 5
	maxSampleChars      = 1000
)

// System returns the fixed system prompt for the generation call.
func System() string {
	return "You are Snapshotter Pass2 Semantic - an expert software architect analyzing codebases.\n" +
		"You must output ONLY a single JSON object (no markdown, no commentary).\n" +
		"The JSON must follow the requested schema strictly.\n" +
		"\n" +
		"**CRITICAL RULES:**\n" +
		"1. For 'generated_at', use the exact string 'ISO8601' (do not replace it).\n" +
		"2. DO NOT include a 'caps' field in your output.\n" +
		"3. For 'repo', use the provided repo metadata.\n" +
		"4. Be concise but insightful in your analysis.\n" +
		"5. Reference only files present in the provided packs.\n" +
		"\n" +
		"If you are unsure about something, use nulls and empty arrays, but keep all required keys present."
}

// RepairSystem returns the system prompt for the JSON repair call.
func RepairSystem() string {
	return "You are a JSON repair tool. Output JSON only."
}

// Repair returns the user prompt asking the model to fix JSON syntax
// without altering structure or semantics, embedding the bad text
// verbatim.
func Repair(badText string) string {
	return "You are a JSON repair tool.\n" +
		"You will be given text that is intended to be a single JSON object, but may contain minor JSON syntax errors.\n" +
		"Your task: output ONLY a valid JSON object that preserves the SAME structure and content as closely as possible.\n" +
		"Rules:\n" +
		"- Output JSON only. No markdown, no commentary.\n" +
		"- Do not change top-level keys or semantics.\n" +
		"- Only fix syntax (missing commas, quotes, escaping, trailing commas, etc.).\n\n" +
		"INPUT (verbatim):\n" + badText
}

// UserInput bundles everything the user prompt embeds.
type UserInput struct {
	RepoMeta     artifact.RepoMeta
	Index        *repoindex.Index
	ArchFiles    map[string]string
	SupportFiles map[string]string
	DepsByFile   map[string]deps.Record
}

// User renders the user prompt: a canonical (sorted-key) JSON payload of
// the repo metadata, the literal output schema template, pass1 signals,
// a capped dependency summary, pack samples, and an explicit rules list.
func User(in UserInput) (string, error) {
	payload := map[string]any{
		"repo_meta":             in.RepoMeta,
		"schema":                schemaTemplate(),
		"pass1_signals":         rawOrEmpty(in.Index.Signals),
		"pass1_resolver_inputs": rawOrEmpty(in.Index.ResolverInputs),
		"deps_summary":          depSummary(in.DepsByFile),
		"arch_pack_sample":      packSample(in.ArchFiles, maxArchSampleFiles),
		"support_pack_sample":   packSample(in.SupportFiles, maxSupportSamples),
		"rules": []string{
			"Output JSON only - no markdown, no commentary.",
			"Reference only files present in the packs (arch_pack_paths and support_pack_paths).",
			"For 'generated_at', use exactly 'ISO8601' (do not replace with a timestamp).",
			"DO NOT include a 'caps' field in your output.",
			"Be concise: key_components, data_flows, etc. should be bullet-point style strings.",
			"Focus on architecture, data flows, auth/routing patterns, and risks/gaps.",
			"Use the provided repo metadata for the 'repo' field.",
		},
	}
	b, err := artifact.MarshalIndentCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("prompt: render user payload: %w", err)
	}
	return string(b), nil
}

// schemaTemplate is the literal output schema the model must follow.
// It deliberately has no caps field.
func schemaTemplate() map[string]any {
	return map[string]any{
		"schema_version": artifact.SemanticSchemaVersion,
		"generated_at":   "ISO8601",
		"repo":           map[string]any{"repo_url": "string|null", "resolved_commit": "string"},
		"summary": map[string]any{
			"primary_stack":          "string|null",
			"architecture_overview":  "string",
			"key_components":         []string{"string"},
			"data_flows":             []string{"string"},
			"auth_and_routing_notes": []string{"string"},
			"risks_or_gaps":          []string{"string"},
		},
		"evidence": map[string]any{
			"arch_pack_paths":    []string{"string"},
			"support_pack_paths": []string{"string"},
			"notable_files":      []map[string]any{{"path": "string", "why": "string"}},
		},
	}
}

func depSummary(depsByFile map[string]deps.Record) map[string]any {
	paths := make([]string, 0, len(depsByFile))
	for p := range depsByFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > maxDepSummaryPaths {
		paths = paths[:maxDepSummaryPaths]
	}

	out := make(map[string]any, len(paths))
	for _, p := range paths {
		rec := depsByFile[p]
		var lang any
		if rec.Language != "" {
			lang = rec.Language
		}
		out[p] = map[string]any{
			"resolved_internal_count":   len(rec.ResolvedInternal),
			"resolved_internal_sample":  capList(rec.ResolvedInternal, maxResolvedSample),
			"internal_unresolved_specs": capList(rec.UnresolvedSpecs, maxUnresolvedSample),
			"flags":                     capList(rec.Flags, maxFlagsSample),
			"language":                  lang,
			"top_level_defs":            capList(rec.TopLevelDefs, maxDefsSample),
		}
	}
	return out
}

func packSample(files map[string]string, maxFiles int) map[string]string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > maxFiles {
		paths = paths[:maxFiles]
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		c := files[p]
		if len(c) > maxSampleChars {
			c = c[:evidence.CutAtRune(c, maxSampleChars)] + "..."
		}
		out[p] = c
	}
	return out
}

func capList(in []string, max int) []string {
	if in == nil {
		return []string{}
	}
	if len(in) > max {
		return in[:max]
	}
	return in
}

func rawOrEmpty(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return map[string]any{}
	}
	return v
}
