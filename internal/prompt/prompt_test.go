package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"snapshotter/internal/artifact"
	"snapshotter/internal/deps"
	"snapshotter/internal/repoindex"
)

func TestSchemaTemplateHasNoCapsField(t *testing.T) {
	tmpl := schemaTemplate()
	if _, ok := tmpl["caps"]; ok {
		t.Fatalf("schema template must not offer a caps slot")
	}
	if tmpl["generated_at"] != "ISO8601" {
		t.Fatalf("generated_at placeholder = %v", tmpl["generated_at"])
	}
	if tmpl["schema_version"] != artifact.SemanticSchemaVersion {
		t.Fatalf("schema_version = %v", tmpl["schema_version"])
	}
}

func TestUserPayloadIsJSON(t *testing.T) {
	url := "https://example.com/repo.git"
	in := UserInput{
		RepoMeta: artifact.RepoMeta{RepoURL: &url, ResolvedCommit: "abc123"},
		Index: &repoindex.Index{
			Signals:        json.RawMessage(`{"entrypoints": [{"path": "main.py"}]}`),
			ResolverInputs: json.RawMessage(`{"hints": []}`),
		},
		ArchFiles:    map[string]string{"main.py": "import lib"},
		SupportFiles: map[string]string{"README.md": "readme"},
		DepsByFile: map[string]deps.Record{
			"main.py": {Language: "python", ResolvedInternal: []string{"lib.py"}},
		},
	}

	text, err := User(in)
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("user prompt is not valid JSON: %v", err)
	}
	for _, key := range []string{"repo_meta", "schema", "pass1_signals", "pass1_resolver_inputs", "deps_summary", "arch_pack_sample", "support_pack_sample", "rules"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("payload missing %s", key)
		}
	}
	meta := payload["repo_meta"].(map[string]any)
	if meta["resolved_commit"] != "abc123" {
		t.Fatalf("repo_meta = %v", meta)
	}
	sample := payload["arch_pack_sample"].(map[string]any)
	if sample["main.py"] != "import lib" {
		t.Fatalf("arch sample = %v", sample)
	}
}

func TestUserHandlesMissingSignals(t *testing.T) {
	in := UserInput{
		RepoMeta: artifact.RepoMeta{ResolvedCommit: "abc123"},
		Index:    &repoindex.Index{},
	}
	text, err := User(in)
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatal(err)
	}
	if sig, ok := payload["pass1_signals"].(map[string]any); !ok || len(sig) != 0 {
		t.Fatalf("pass1_signals = %v, want empty object", payload["pass1_signals"])
	}
}

func TestPackSampleCapsFilesAndChars(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 8; i++ {
		files[fmt.Sprintf("f%d.py", i)] = "short"
	}
	files["big.py"] = strings.Repeat("x", 3000)

	sample := packSample(files, 5)
	if len(sample) != 5 {
		t.Fatalf("sample has %d files, want 5", len(sample))
	}
	// Sorted path order makes the selection deterministic: big.py sorts
	// before f*.py.
	got, ok := sample["big.py"]
	if !ok {
		t.Fatalf("big.py missing from sample: %v", sample)
	}
	if len(got) != 1003 || !strings.HasSuffix(got, "...") {
		t.Fatalf("oversized sample = %d chars, want 1000 + ellipsis", len(got))
	}
}

func TestPackSampleCutsOnRuneBoundary(t *testing.T) {
	files := map[string]string{
		"i18n.py": strings.Repeat("ü", 2000), // 2 bytes per rune
	}
	sample := packSample(files, 5)
	got := sample["i18n.py"]
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("oversized sample not marked: %q", got[len(got)-8:])
	}
	if !utf8.ValidString(got) {
		t.Fatalf("sample cut split a rune")
	}
	if len(got) > 1003 {
		t.Fatalf("sample = %d chars, want at most 1000 + ellipsis", len(got))
	}
}

func TestDepSummaryCapsAndShapes(t *testing.T) {
	depsByFile := map[string]deps.Record{}
	for i := 0; i < 60; i++ {
		depsByFile[fmt.Sprintf("p%02d.py", i)] = deps.Record{
			ResolvedInternal: []string{"a", "b", "c", "d", "e", "f", "g"},
		}
	}
	out := depSummary(depsByFile)
	if len(out) != 50 {
		t.Fatalf("summary has %d paths, want capped at 50", len(out))
	}
	entry := out["p00.py"].(map[string]any)
	if entry["resolved_internal_count"] != 7 {
		t.Fatalf("count = %v", entry["resolved_internal_count"])
	}
	if got := entry["resolved_internal_sample"].([]string); len(got) != 5 {
		t.Fatalf("sample len = %d, want 5", len(got))
	}
	if entry["language"] != nil {
		t.Fatalf("blank language should render null, got %v", entry["language"])
	}
}

func TestRepairEmbedsBadTextVerbatim(t *testing.T) {
	bad := `{oops: "no quotes",}`
	p := Repair(bad)
	if !strings.HasSuffix(p, bad) {
		t.Fatalf("repair prompt must end with the bad text verbatim:\n%s", p)
	}
	if !strings.Contains(p, "INPUT (verbatim):") {
		t.Fatalf("repair prompt missing input header")
	}
}

func TestSystemPromptRules(t *testing.T) {
	s := System()
	if !strings.Contains(s, "DO NOT include a 'caps' field") {
		t.Fatalf("system prompt must forbid caps")
	}
	if !strings.Contains(s, "'ISO8601'") {
		t.Fatalf("system prompt must pin the generated_at placeholder")
	}
}
