package repoindex

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validIndexJSON() string {
	return `{
		"schema_version": "pass1_repo_index.v1",
		"job": {"repo_url": "https://example.com/r.git", "resolved_commit": "abc123"},
		"read_plan": {
			"closure_seeds": ["a.py", "a.py", ""],
			"candidates": [{"path": "b.py"}, {"path": " b.py "}, {"path": ""}]
		},
		"signals": {"entrypoints": [{"path": "a.py"}, {"path": "missing.py"}]},
		"files": [
			{"path": "a.py", "language": "python", "deps": {"import_edges": []}},
			{"path": "b.py", "language": "", "deps": {"import_edges": []}}
		]
	}`
}

func TestDecodeValid(t *testing.T) {
	idx, err := Decode([]byte(validIndexJSON()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if idx.Job.ResolvedCommit != "abc123" {
		t.Fatalf("resolved_commit = %q", idx.Job.ResolvedCommit)
	}
	if len(idx.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(idx.Files))
	}
	if string(idx.Raw()) != validIndexJSON() {
		t.Fatalf("Raw() does not round-trip the input bytes")
	}
}

func TestDecodeContractViolations(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "nope"},
		{"wrong schema", `{"schema_version":"pass1_repo_index.v2","job":{"resolved_commit":"x"},"read_plan":{},"files":[]}`},
		{"missing schema", `{"job":{"resolved_commit":"x"},"read_plan":{},"files":[]}`},
		{"job not object", `{"schema_version":"pass1_repo_index.v1","job":[],"read_plan":{},"files":[]}`},
		{"read_plan missing", `{"schema_version":"pass1_repo_index.v1","job":{"resolved_commit":"x"},"files":[]}`},
		{"files not list", `{"schema_version":"pass1_repo_index.v1","job":{"resolved_commit":"x"},"read_plan":{},"files":{}}`},
		{"missing commit", `{"schema_version":"pass1_repo_index.v1","job":{},"read_plan":{},"files":[]}`},
		{"placeholder commit", `{"schema_version":"pass1_repo_index.v1","job":{"resolved_commit":"unknown"},"read_plan":{},"files":[]}`},
		{"blank commit", `{"schema_version":"pass1_repo_index.v1","job":{"resolved_commit":"   "},"read_plan":{},"files":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			if err == nil {
				t.Fatalf("Decode accepted %s", tc.name)
			}
			var ce *ContractError
			if !errors.As(err, &ce) {
				t.Fatalf("error type = %T, want *ContractError", err)
			}
		})
	}
}

func TestDecodeSchemaMismatchNamesBothVersions(t *testing.T) {
	_, err := Decode([]byte(`{"schema_version":"pass1_repo_index.v9","job":{"resolved_commit":"x"},"read_plan":{},"files":[]}`))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, SchemaVersion) || !strings.Contains(msg, "pass1_repo_index.v9") {
		t.Fatalf("message %q should name expected and got versions", msg)
	}
}

func TestReadPlanAccessorsDedupeAndTrim(t *testing.T) {
	idx, err := Decode([]byte(validIndexJSON()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	seeds := idx.ClosureSeeds()
	if fmt.Sprint(seeds) != "[a.py]" {
		t.Fatalf("closure seeds = %v", seeds)
	}
	cands := idx.Candidates()
	if fmt.Sprint(cands) != "[b.py]" {
		t.Fatalf("candidates = %v", cands)
	}
}

func TestEntrypointsFilteredToAvailable(t *testing.T) {
	idx, err := Decode([]byte(validIndexJSON()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	eps := idx.Entrypoints(map[string]bool{"a.py": true})
	if len(eps) != 1 || eps[0] != "a.py" {
		t.Fatalf("entrypoints = %v, want [a.py]", eps)
	}
}

func TestEntrypointsMalformedSignalsDegrade(t *testing.T) {
	data := strings.Replace(validIndexJSON(), `{"entrypoints": [{"path": "a.py"}, {"path": "missing.py"}]}`, `"bogus"`, 1)
	idx, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if eps := idx.Entrypoints(map[string]bool{"a.py": true}); len(eps) != 0 {
		t.Fatalf("entrypoints = %v, want none", eps)
	}
}

func TestLanguageByPathSkipsUnknown(t *testing.T) {
	idx, err := Decode([]byte(validIndexJSON()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	langs := idx.LanguageByPath()
	if langs["a.py"] != "python" {
		t.Fatalf("language for a.py = %q", langs["a.py"])
	}
	if _, ok := langs["b.py"]; ok {
		t.Fatalf("b.py has empty language, should be absent")
	}
}
