package pass2

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"snapshotter/internal/artifact"
	"snapshotter/internal/job"
	llmclient "snapshotter/internal/llm/client"
	"snapshotter/internal/llmjson"
)

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"main.py":  "import lib\n\nprint(lib.f())\n",
		"lib.py":   "def f():\n    return 1\n",
		"misc.txt": "assorted notes\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func indexJSON() []byte {
	return []byte(`{
		"schema_version": "pass1_repo_index.v1",
		"job": {"repo_url": "https://example.com/r.git", "resolved_commit": "abc123"},
		"read_plan": {"closure_seeds": [], "candidates": []},
		"signals": {"entrypoints": [{"path": "main.py"}]},
		"files": [
			{"path": "main.py", "language": "python", "deps": {"import_edges": [
				{"spec": "lib", "resolved_path": "lib.py", "is_external": false}
			]}},
			{"path": "lib.py", "language": "python", "deps": {"import_edges": []}},
			{"path": "misc.txt", "language": "", "deps": {"import_edges": []}}
		]
	}`)
}

const goodResponse = `{
	"schema_version": "pass2_semantic.v1",
	"generated_at": "ISO8601",
	"repo": {"repo_url": "https://example.com/r.git", "resolved_commit": "abc123"},
	"summary": {
		"primary_stack": "Python",
		"architecture_overview": "single script importing one library module",
		"key_components": ["main.py"],
		"data_flows": ["main.py -> lib.py"],
		"auth_and_routing_notes": [],
		"risks_or_gaps": ["no tests"]
	},
	"evidence": {
		"arch_pack_paths": ["main.py", "lib.py"],
		"support_pack_paths": [],
		"notable_files": [{"path": "main.py", "why": "entrypoint"}]
	},
	"caps": {"max_output_tokens": 999999}
}`

func intPtr(n int) *int { return &n }

func readJSONFile(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return obj
}

func TestGenerateEndToEnd(t *testing.T) {
	repoDir := writeRepo(t)
	outDir := t.TempDir()
	client := llmclient.NewScripted([]string{goodResponse}, nil)

	res, err := Generate(context.Background(), Options{
		RepoDir:   repoDir,
		OutDir:    outDir,
		Job:       &job.Job{RepoURL: "https://example.com/r.git", Pass2: &job.Pass2Config{MaxArchFiles: intPtr(2)}},
		RepoIndex: indexJSON(),
		Client:    client,
	})
	if err != nil {
		t.Fatal(err)
	}
	if client.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", client.Calls())
	}

	// The arch pack holds exactly the entrypoint and its one-hop import;
	// the file cap of 2 excludes misc.txt.
	archPack := readJSONFile(t, res.ArchPackPath)
	files := archPack["files"].(map[string]any)
	if len(files) != 2 {
		t.Fatalf("arch pack files = %v", files)
	}
	for _, p := range []string{"main.py", "lib.py"} {
		if _, ok := files[p]; !ok {
			t.Fatalf("arch pack missing %s: %v", p, files)
		}
	}
	if archPack["schema_version"] != artifact.ArchPackSchemaVersion {
		t.Fatalf("arch schema = %v", archPack["schema_version"])
	}

	supportPack := readJSONFile(t, res.SupportPackPath)
	if supportPack["schema_version"] != artifact.SupportPackSchemaVersion {
		t.Fatalf("support schema = %v", supportPack["schema_version"])
	}

	sem := readJSONFile(t, res.SemanticPath)
	if sem["schema_version"] != artifact.SemanticSchemaVersion {
		t.Fatalf("semantic schema = %v", sem["schema_version"])
	}
	semCaps := sem["caps"].(map[string]any)
	if semCaps["max_arch_files"] != float64(2) {
		t.Fatalf("caps.max_arch_files = %v, want the job override", semCaps["max_arch_files"])
	}
	llmOut := sem["llm_output"].(map[string]any)
	if _, ok := llmOut["caps"]; ok {
		t.Fatalf("hallucinated caps survived coercion: %v", llmOut)
	}
	summary := llmOut["summary"].(map[string]any)
	if summary["primary_stack"] != "Python" {
		t.Fatalf("summary = %v", summary)
	}
	repo := sem["repo"].(map[string]any)
	if repo["repo_url"] != "https://example.com/r.git" || repo["resolved_commit"] != "abc123" {
		t.Fatalf("repo = %v", repo)
	}

	// Input fingerprints tie the semantic artifact to the exact packs on
	// disk.
	inputs := sem["inputs"].(map[string]any)
	if inputs["arch_pack_fingerprint_sha256"] != archPack["fingerprint_sha256"] {
		t.Fatalf("arch fingerprint mismatch")
	}
	if inputs["support_pack_fingerprint_sha256"] != supportPack["fingerprint_sha256"] {
		t.Fatalf("support fingerprint mismatch")
	}
	if fp, _ := inputs["pass1_repo_index_fingerprint_sha256"].(string); len(fp) != 64 {
		t.Fatalf("repo index fingerprint = %v", inputs["pass1_repo_index_fingerprint_sha256"])
	}

	rawPaths := sem["llm_raw_paths"].(map[string]any)
	if rawPaths["raw_text"] != artifact.LLMRawFilename || rawPaths["repaired_text"] != nil {
		t.Fatalf("llm_raw_paths = %v", rawPaths)
	}
	raw, err := os.ReadFile(filepath.Join(outDir, artifact.LLMRawFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != goodResponse+"\n" {
		t.Fatalf("raw text does not round-trip the model output")
	}
	if _, err := os.Stat(filepath.Join(outDir, artifact.LLMRepairedFilename)); !os.IsNotExist(err) {
		t.Fatalf("repaired file written without a repair")
	}
}

func TestGenerateRepairPathWritesRepairedText(t *testing.T) {
	repoDir := writeRepo(t)
	outDir := t.TempDir()
	client := llmclient.NewScripted([]string{`{bad json}`, goodResponse}, nil)

	res, err := Generate(context.Background(), Options{
		RepoDir:   repoDir,
		OutDir:    outDir,
		Job:       &job.Job{},
		RepoIndex: indexJSON(),
		Client:    client,
	})
	if err != nil {
		t.Fatal(err)
	}
	if client.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", client.Calls())
	}

	raw, err := os.ReadFile(filepath.Join(outDir, artifact.LLMRawFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "{bad json}\n" {
		t.Fatalf("raw = %q, want the original bad text", raw)
	}
	repaired, err := os.ReadFile(filepath.Join(outDir, artifact.LLMRepairedFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(repaired) != goodResponse+"\n" {
		t.Fatalf("repaired text does not round-trip")
	}

	sem := readJSONFile(t, res.SemanticPath)
	rawPaths := sem["llm_raw_paths"].(map[string]any)
	if rawPaths["repaired_text"] != artifact.LLMRepairedFilename {
		t.Fatalf("llm_raw_paths = %v", rawPaths)
	}
}

func TestGenerateTruncationIsFatalButAudited(t *testing.T) {
	repoDir := writeRepo(t)
	outDir := t.TempDir()
	truncated := `{"summary": {"architecture_overview": "cut off mid`
	client := llmclient.NewScripted([]string{truncated}, nil)

	_, err := Generate(context.Background(), Options{
		RepoDir:   repoDir,
		OutDir:    outDir,
		Job:       &job.Job{},
		RepoIndex: indexJSON(),
		Client:    client,
	})
	var te *llmjson.TruncatedError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TruncatedError", err)
	}
	if client.Calls() != 1 {
		t.Fatalf("truncation must not trigger repair; calls = %d", client.Calls())
	}

	// Packs and the raw text land on disk even though the run failed.
	for _, name := range []string{artifact.ArchPackFilename, artifact.SupportPackFilename, artifact.LLMRawFilename} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s after failed run: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, artifact.SemanticFilename)); !os.IsNotExist(err) {
		t.Fatalf("semantic artifact must not exist after a failed run")
	}
}

func TestGenerateRejectsBadIndex(t *testing.T) {
	_, err := Generate(context.Background(), Options{
		RepoDir:   t.TempDir(),
		OutDir:    t.TempDir(),
		RepoIndex: []byte(`{"schema_version": "wrong.v9"}`),
		Client:    llmclient.NewScripted([]string{goodResponse}, nil),
	})
	if err == nil {
		t.Fatal("expected contract error")
	}
}

func TestGenerateRepoURLOverride(t *testing.T) {
	repoDir := writeRepo(t)
	outDir := t.TempDir()

	res, err := Generate(context.Background(), Options{
		RepoDir:   repoDir,
		OutDir:    outDir,
		Job:       &job.Job{RepoURL: "https://example.com/job-url.git"},
		RepoIndex: indexJSON(),
		RepoURL:   "https://example.com/override.git",
		Client:    llmclient.NewScripted([]string{goodResponse}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Semantic.Repo.RepoURL == nil || *res.Semantic.Repo.RepoURL != "https://example.com/override.git" {
		t.Fatalf("repo_url = %v", res.Semantic.Repo.RepoURL)
	}
}
