// Package semantic coerces whatever JSON object survived LLM recovery
// into the exact expected schema shape. Coercion is a total function: it
// never fails, trading information loss for pipeline robustness.
package semantic

import (
	"strings"
	"unicode/utf8"
)

// Limits applied during coercion.
const (
	maxListItems  = 50
	maxPathItems  = 100
	maxWhyChars   = 500
	maxNotableLen = 50
)

// Summary is the model's architecture analysis.
type Summary struct {
	PrimaryStack         *string  `json:"primary_stack"`
	ArchitectureOverview string   `json:"architecture_overview"`
	KeyComponents        []string `json:"key_components"`
	DataFlows            []string `json:"data_flows"`
	AuthAndRoutingNotes  []string `json:"auth_and_routing_notes"`
	RisksOrGaps          []string `json:"risks_or_gaps"`
}

// NotableFile names a file the model judged significant and why.
type NotableFile struct {
	Path string `json:"path"`
	Why  string `json:"why"`
}

// Evidence records which pack files the model actually referenced.
type Evidence struct {
	ArchPackPaths    []string      `json:"arch_pack_paths"`
	SupportPackPaths []string      `json:"support_pack_paths"`
	NotableFiles     []NotableFile `json:"notable_files"`
}

// Output is the validated llm_output block of the semantic artifact. It
// never carries a caps key: the pipeline, not the model, is the sole
// authority on caps, and a hallucinated caps block is dropped here.
type Output struct {
	Summary  Summary  `json:"summary"`
	Evidence Evidence `json:"evidence"`
}

// summaryListFields drives the declarative coercion of the string-list
// summary fields: field key -> destination.
var summaryListFields = []struct {
	key string
	dst func(*Summary) *[]string
}{
	{"key_components", func(s *Summary) *[]string { return &s.KeyComponents }},
	{"data_flows", func(s *Summary) *[]string { return &s.DataFlows }},
	{"auth_and_routing_notes", func(s *Summary) *[]string { return &s.AuthAndRoutingNotes }},
	{"risks_or_gaps", func(s *Summary) *[]string { return &s.RisksOrGaps }},
}

// Coerce maps an arbitrary JSON object onto the output schema. Missing or
// wrong-typed fields get safe defaults; list entries are filtered to
// non-empty strings and length-capped; malformed notable_files entries
// are dropped.
func Coerce(obj map[string]any) Output {
	out := Output{
		Summary: Summary{
			KeyComponents:       []string{},
			DataFlows:           []string{},
			AuthAndRoutingNotes: []string{},
			RisksOrGaps:         []string{},
		},
		Evidence: Evidence{
			ArchPackPaths:    []string{},
			SupportPackPaths: []string{},
			NotableFiles:     []NotableFile{},
		},
	}
	if obj == nil {
		return out
	}

	if summary, ok := obj["summary"].(map[string]any); ok {
		if ps, ok := summary["primary_stack"].(string); ok {
			out.Summary.PrimaryStack = &ps
		}
		if overview, ok := summary["architecture_overview"].(string); ok {
			out.Summary.ArchitectureOverview = strings.TrimSpace(overview)
		}
		for _, f := range summaryListFields {
			*f.dst(&out.Summary) = stringList(summary[f.key], maxListItems)
		}
	}

	if evidence, ok := obj["evidence"].(map[string]any); ok {
		out.Evidence.ArchPackPaths = stringList(evidence["arch_pack_paths"], maxPathItems)
		out.Evidence.SupportPackPaths = stringList(evidence["support_pack_paths"], maxPathItems)
		out.Evidence.NotableFiles = notableFiles(evidence["notable_files"])
	}
	return out
}

func stringList(v any, max int) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := []string{}
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= max {
			break
		}
	}
	return out
}

func notableFiles(v any) []NotableFile {
	items, ok := v.([]any)
	if !ok {
		return []NotableFile{}
	}
	if len(items) > maxNotableLen {
		items = items[:maxNotableLen]
	}
	out := []NotableFile{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		path, _ := m["path"].(string)
		why, _ := m["why"].(string)
		path = strings.TrimSpace(path)
		why = strings.TrimSpace(why)
		if path == "" || why == "" {
			continue
		}
		if len(why) > maxWhyChars {
			cut := maxWhyChars
			for cut > 0 && !utf8.RuneStart(why[cut]) {
				cut--
			}
			why = why[:cut]
		}
		out = append(out, NotableFile{Path: path, Why: why})
	}
	return out
}
