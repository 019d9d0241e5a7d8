// Package validate checks that a run's core artifacts satisfy their
// locked contracts and agree with each other. No back-compat, no
// fallback shapes: a schema_version mismatch is fatal.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"snapshotter/internal/artifact"
	"snapshotter/internal/repoindex"
)

// Schema versions the validator locks against.
const (
	ArchitectureSnapshotSchemaVersion = "architecture_snapshot.v1"
	GapsSchemaVersion                 = "gaps.v1"
)

// Caps keys the model sometimes hallucinates into summaries. Their
// presence means configuration leaked into analysis output.
var forbiddenSummaryCaps = []string{"model", "max_output_tokens", "max_arch_files", "max_support_files"}

// requiredKeys are the artifact names every run must provide paths for.
var requiredKeys = []string{
	"repo_index",
	"artifact_manifest",
	"architecture_snapshot",
	"gaps",
	"onboarding",
	"pass2_semantic",
}

// coreFingerprints must all appear in the manifest's stable_fingerprints.
var coreFingerprints = []string{
	"pass1_repo_index",
	"dependency_graph",
	"architecture_snapshot",
	"gaps",
	"onboarding",
	"pass2_semantic",
}

// Artifacts validates every core artifact and their cross-consistency.
// paths maps artifact names to file paths. A nil logger disables the
// non-fatal warnings.
func Artifacts(paths map[string]string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, k := range requiredKeys {
		p, ok := paths[k]
		if !ok {
			return fmt.Errorf("validation: missing required key %q in paths", k)
		}
		if p == "" {
			return fmt.Errorf("validation: empty path for key %q", k)
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("validation: file does not exist for key %q: %s", k, p)
		}
	}

	repoIndex, err := loadObject(paths["repo_index"])
	if err != nil {
		return err
	}
	manifest, err := loadObject(paths["artifact_manifest"])
	if err != nil {
		return err
	}
	archSnapshot, err := loadObject(paths["architecture_snapshot"])
	if err != nil {
		return err
	}
	gaps, err := loadObject(paths["gaps"])
	if err != nil {
		return err
	}
	pass2Semantic, err := loadObject(paths["pass2_semantic"])
	if err != nil {
		return err
	}

	if err := validateRepoIndex(repoIndex); err != nil {
		return err
	}
	if err := validateArchitectureSnapshot(archSnapshot); err != nil {
		return err
	}
	if err := validatePass2Semantic(pass2Semantic); err != nil {
		return err
	}
	if err := validateGaps(gaps); err != nil {
		return err
	}
	if err := validateManifest(manifest); err != nil {
		return err
	}
	if err := validateOnboarding(paths["onboarding"]); err != nil {
		return err
	}

	// Evidence packs are optional inputs; when given, their embedded
	// fingerprints must recompute.
	for _, k := range []string{"pass2_arch_pack", "pass2_support_pack"} {
		p, ok := paths[k]
		if !ok || p == "" {
			continue
		}
		if err := validatePackFingerprint(k, p); err != nil {
			return err
		}
	}

	return crossConsistency(repoIndex, archSnapshot, pass2Semantic, gaps, logger)
}

func loadObject(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("validation: read %s: %w", path, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("validation: expected JSON object at %s", path)
	}
	return obj, nil
}

func validateRepoIndex(obj map[string]any) error {
	if sv, _ := obj["schema_version"].(string); sv != repoindex.SchemaVersion {
		return fmt.Errorf("validation: repo_index schema_version mismatch: expected %s, got %v", repoindex.SchemaVersion, obj["schema_version"])
	}

	jb, ok := obj["job"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: repo_index.job missing/invalid")
	}
	rc, _ := jb["resolved_commit"].(string)
	rc = strings.TrimSpace(rc)
	if rc == "" || rc == repoindex.PlaceholderCommit {
		return fmt.Errorf("validation: repo_index.job.resolved_commit missing/invalid")
	}

	counts, ok := obj["counts"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: repo_index.counts missing/invalid")
	}
	for _, k := range []string{"files_scanned", "files_included", "files_skipped", "total_bytes_included"} {
		v, ok := counts[k]
		if !ok {
			return fmt.Errorf("validation: repo_index.counts missing key %q", k)
		}
		if !isJSONInt(v) {
			return fmt.Errorf("validation: repo_index.counts.%s must be int", k)
		}
	}

	rp, ok := obj["read_plan"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: repo_index.read_plan missing/invalid")
	}
	if _, ok := rp["closure_seeds"].([]any); !ok {
		return fmt.Errorf("validation: repo_index.read_plan.closure_seeds missing/invalid")
	}
	if _, ok := rp["candidates"].([]any); !ok {
		return fmt.Errorf("validation: repo_index.read_plan.candidates missing/invalid")
	}

	files, ok := obj["files"].([]any)
	if !ok {
		return fmt.Errorf("validation: repo_index.files missing/invalid")
	}
	for _, f := range files {
		rec, ok := f.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: repo_index.files entry must be object")
		}
		p, _ := rec["path"].(string)
		if p == "" {
			return fmt.Errorf("validation: repo_index.files entry missing/invalid 'path'")
		}
		depsBlock, ok := rec["deps"].(map[string]any)
		if !ok {
			return fmt.Errorf("validation: repo_index.files[%s].deps missing/invalid", p)
		}
		if _, ok := depsBlock["import_edges"].([]any); !ok {
			return fmt.Errorf("validation: repo_index.files[%s].deps.import_edges missing/invalid", p)
		}
	}
	return nil
}

func validateArchitectureSnapshot(obj map[string]any) error {
	if sv, _ := obj["schema_version"].(string); sv != ArchitectureSnapshotSchemaVersion {
		return fmt.Errorf("validation: architecture_snapshot schema_version mismatch: expected %s, got %v", ArchitectureSnapshotSchemaVersion, obj["schema_version"])
	}

	for _, k := range []string{"generated_at", "repo", "summary", "modules", "uncertainties", "coverage", "files_read", "files_not_read"} {
		if _, ok := obj[k]; !ok {
			return fmt.Errorf("validation: architecture_snapshot missing required key %q", k)
		}
	}

	repo, ok := obj["repo"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.repo missing/invalid")
	}
	for _, k := range []string{"repo_url", "resolved_commit", "job_id"} {
		if err := requireNonEmptyString(repo, k, "architecture_snapshot.repo"); err != nil {
			return err
		}
	}

	summary, ok := obj["summary"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.summary missing/invalid")
	}
	for _, k := range forbiddenSummaryCaps {
		if _, ok := summary[k]; ok {
			return fmt.Errorf("validation: architecture_snapshot.summary contains hallucinated cap %q; summary must not carry configuration", k)
		}
	}
	for _, k := range []string{"architecture_overview", "key_components", "data_flows", "auth_and_routing_notes", "risks_or_gaps"} {
		v, ok := summary[k]
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.summary missing key %q", k)
		}
		if k == "architecture_overview" {
			s, _ := v.(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.summary.architecture_overview must be non-empty string")
			}
			continue
		}
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("validation: architecture_snapshot.summary.%s must be list", k)
		}
	}

	modules, ok := obj["modules"].([]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.modules must be list")
	}
	uncertainties, ok := obj["uncertainties"].([]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.uncertainties must be list")
	}
	if len(modules) == 0 && len(uncertainties) == 0 {
		return fmt.Errorf("validation: architecture_snapshot must have non-empty modules or populated uncertainties explaining their absence")
	}

	for i, m := range modules {
		mod, ok := m.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.modules[%d] must be object", i)
		}
		for _, k := range []string{"name", "type", "evidence_paths", "responsibilities", "dependencies"} {
			if _, ok := mod[k]; !ok {
				return fmt.Errorf("validation: architecture_snapshot.modules[%d] missing key %q", i, k)
			}
		}
		for _, k := range []string{"name", "type"} {
			s, _ := mod[k].(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.modules[%d].%s must be non-empty string", i, k)
			}
		}
		for _, k := range []string{"evidence_paths", "responsibilities"} {
			if err := requireNonEmptyStringList(mod[k], fmt.Sprintf("architecture_snapshot.modules[%d].%s", i, k)); err != nil {
				return err
			}
		}
		if _, ok := mod["dependencies"].([]any); !ok {
			return fmt.Errorf("validation: architecture_snapshot.modules[%d].dependencies must be list", i)
		}
	}

	for i, u := range uncertainties {
		un, ok := u.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.uncertainties[%d] must be object", i)
		}
		for _, k := range []string{"type", "description", "files_involved", "suggested_questions"} {
			if _, ok := un[k]; !ok {
				return fmt.Errorf("validation: architecture_snapshot.uncertainties[%d] missing key %q", i, k)
			}
		}
		for _, k := range []string{"type", "description"} {
			s, _ := un[k].(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.uncertainties[%d].%s must be non-empty string", i, k)
			}
		}
		for _, k := range []string{"files_involved", "suggested_questions"} {
			if _, ok := un[k].([]any); !ok {
				return fmt.Errorf("validation: architecture_snapshot.uncertainties[%d].%s must be list", i, k)
			}
		}
	}

	coverage, ok := obj["coverage"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.coverage missing/invalid")
	}
	for _, k := range []string{"files_scanned", "files_read", "files_not_read", "files_included_from_pass1"} {
		v, ok := coverage[k]
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.coverage missing key %q", k)
		}
		if !isNonNegativeInt(v) {
			return fmt.Errorf("validation: architecture_snapshot.coverage.%s must be non-negative int", k)
		}
	}

	filesRead, ok := obj["files_read"].([]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.files_read must be list")
	}
	for i, f := range filesRead {
		fr, ok := f.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.files_read[%d] must be object", i)
		}
		for _, k := range []string{"path", "chars", "truncated"} {
			if _, ok := fr[k]; !ok {
				return fmt.Errorf("validation: architecture_snapshot.files_read[%d] missing key %q", i, k)
			}
		}
		if s, _ := fr["path"].(string); strings.TrimSpace(s) == "" {
			return fmt.Errorf("validation: architecture_snapshot.files_read[%d].path must be non-empty string", i)
		}
		if !isNonNegativeInt(fr["chars"]) {
			return fmt.Errorf("validation: architecture_snapshot.files_read[%d].chars must be non-negative int", i)
		}
		if _, ok := fr["truncated"].(bool); !ok {
			return fmt.Errorf("validation: architecture_snapshot.files_read[%d].truncated must be bool", i)
		}
	}

	filesNotRead, ok := obj["files_not_read"].([]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.files_not_read must be list")
	}
	for i, f := range filesNotRead {
		fnr, ok := f.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.files_not_read[%d] must be object", i)
		}
		for _, k := range []string{"path", "reason"} {
			s, _ := fnr[k].(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.files_not_read[%d].%s must be non-empty string", i, k)
			}
		}
	}

	return validateOptionalEvidence(obj["evidence"])
}

func validateOptionalEvidence(v any) error {
	if v == nil {
		return nil
	}
	ev, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.evidence must be object when present")
	}
	for _, k := range []string{"arch_pack_paths", "support_pack_paths"} {
		pv, ok := ev[k]
		if !ok {
			continue
		}
		list, ok := pv.([]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.evidence.%s must be list when present", k)
		}
		for i, item := range list {
			s, _ := item.(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.evidence.%s[%d] must be non-empty string", k, i)
			}
		}
	}
	nv, ok := ev["notable_files"]
	if !ok {
		return nil
	}
	list, ok := nv.([]any)
	if !ok {
		return fmt.Errorf("validation: architecture_snapshot.evidence.notable_files must be list when present")
	}
	for i, item := range list {
		nf, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: architecture_snapshot.evidence.notable_files[%d] must be object", i)
		}
		for _, k := range []string{"path", "why"} {
			s, _ := nf[k].(string)
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("validation: architecture_snapshot.evidence.notable_files[%d].%s must be non-empty string", i, k)
			}
		}
	}
	return nil
}

func validatePass2Semantic(obj map[string]any) error {
	if sv, _ := obj["schema_version"].(string); sv != artifact.SemanticSchemaVersion {
		return fmt.Errorf("validation: pass2_semantic schema_version mismatch: expected %s, got %v", artifact.SemanticSchemaVersion, obj["schema_version"])
	}

	repo, ok := obj["repo"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: pass2_semantic.repo missing/invalid")
	}
	rc, _ := repo["resolved_commit"].(string)
	if strings.TrimSpace(rc) == "" {
		return fmt.Errorf("validation: pass2_semantic.repo.resolved_commit missing/invalid")
	}

	llmOutput, ok := obj["llm_output"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: pass2_semantic.llm_output missing/invalid")
	}
	summary, ok := llmOutput["summary"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: pass2_semantic.llm_output.summary missing/invalid")
	}
	for _, k := range []string{"primary_stack", "architecture_overview", "key_components", "data_flows", "auth_and_routing_notes", "risks_or_gaps"} {
		if _, ok := summary[k]; !ok {
			return fmt.Errorf("validation: pass2_semantic.llm_output.summary missing key %q", k)
		}
	}
	// A caps key inside llm_output would mean coercion was bypassed.
	if _, ok := llmOutput["caps"]; ok {
		return fmt.Errorf("validation: pass2_semantic.llm_output must not contain a 'caps' key")
	}
	return nil
}

func validateGaps(obj map[string]any) error {
	if sv, _ := obj["schema_version"].(string); sv != GapsSchemaVersion {
		return fmt.Errorf("validation: gaps schema_version mismatch: expected %s, got %v", GapsSchemaVersion, obj["schema_version"])
	}
	for _, k := range []string{"generated_at", "repo", "risks_or_gaps"} {
		if _, ok := obj[k]; !ok {
			return fmt.Errorf("validation: gaps missing required key %q", k)
		}
	}
	repo, ok := obj["repo"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: gaps.repo missing/invalid")
	}
	for _, k := range []string{"repo_url", "resolved_commit"} {
		if err := requireNonEmptyString(repo, k, "gaps.repo"); err != nil {
			return err
		}
	}
	risks, ok := obj["risks_or_gaps"].([]any)
	if !ok {
		return fmt.Errorf("validation: gaps.risks_or_gaps must be list")
	}
	for i, item := range risks {
		s, _ := item.(string)
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("validation: gaps.risks_or_gaps[%d] must be non-empty string", i)
		}
	}
	return nil
}

func validateManifest(obj map[string]any) error {
	if _, ok := obj["items"].([]any); !ok {
		return fmt.Errorf("validation: artifact_manifest.items must be list")
	}
	stable, ok := obj["stable_fingerprints"].(map[string]any)
	if !ok {
		return fmt.Errorf("validation: artifact_manifest.stable_fingerprints must be object")
	}
	runFP, _ := obj["run_fingerprint_sha256"].(string)
	if strings.TrimSpace(runFP) == "" {
		return fmt.Errorf("validation: artifact_manifest.run_fingerprint_sha256 missing/invalid")
	}
	for _, name := range coreFingerprints {
		if _, ok := stable[name]; !ok {
			return fmt.Errorf("validation: artifact_manifest missing fingerprint for core artifact %q", name)
		}
	}
	return nil
}

func validateOnboarding(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("validation: onboarding file does not exist: %s", path)
	}
	content := strings.TrimSpace(string(b))
	if len(content) < 50 {
		return fmt.Errorf("validation: onboarding.md too short (%d chars), minimum 50", len(content))
	}
	return nil
}

// validatePackFingerprint re-derives a pack's fingerprint from its
// {repo, caps, files} and compares against the embedded one.
func validatePackFingerprint(name, path string) error {
	obj, err := loadObject(path)
	if err != nil {
		return err
	}
	embedded, _ := obj["fingerprint_sha256"].(string)
	if strings.TrimSpace(embedded) == "" {
		return fmt.Errorf("validation: %s.fingerprint_sha256 missing/invalid", name)
	}
	got, err := artifact.Fingerprint(map[string]any{
		"repo":  obj["repo"],
		"caps":  obj["caps"],
		"files": obj["files"],
	})
	if err != nil {
		return err
	}
	if got != embedded {
		return fmt.Errorf("validation: %s fingerprint mismatch: embedded %s, recomputed %s", name, embedded, got)
	}
	return nil
}

func crossConsistency(repoIndex, archSnapshot, pass2Semantic, gaps map[string]any, logger *zap.Logger) error {
	urls := map[string]bool{}
	addRepoField(urls, repoIndex, "job", "repo_url")
	addRepoField(urls, archSnapshot, "repo", "repo_url")
	addRepoField(urls, pass2Semantic, "repo", "repo_url")
	addRepoField(urls, gaps, "repo", "repo_url")
	if len(urls) > 1 {
		return fmt.Errorf("validation: repo_url mismatch across artifacts: %s", strings.Join(sortedKeys(urls), " vs "))
	}

	commits := map[string]bool{}
	addCommitField(commits, repoIndex, "job")
	addCommitField(commits, archSnapshot, "repo")
	addCommitField(commits, pass2Semantic, "repo")
	addCommitField(commits, gaps, "repo")
	if len(commits) > 1 {
		return fmt.Errorf("validation: resolved_commit mismatch across artifacts: %s", strings.Join(sortedKeys(commits), " vs "))
	}

	// Gaps is extracted from the pass2 summary; divergence is worth a
	// signal but gaps may be a cleaned version, so it never fails.
	pass2Risks := riskSet(dig(pass2Semantic, "llm_output", "summary"), "risks_or_gaps")
	gapsRisks := riskSet(gaps, "risks_or_gaps")
	if !equalSets(pass2Risks, gapsRisks) {
		logger.Warn("risks_or_gaps diverge between gaps artifact and pass2 summary",
			zap.Strings("pass2", sortedKeys(pass2Risks)),
			zap.Strings("gaps", sortedKeys(gapsRisks)),
		)
	}
	return nil
}

func addRepoField(set map[string]bool, obj map[string]any, block, key string) {
	b, _ := obj[block].(map[string]any)
	if b == nil {
		return
	}
	s, _ := b[key].(string)
	s = strings.TrimSpace(s)
	if s != "" {
		set[s] = true
	}
}

func addCommitField(set map[string]bool, obj map[string]any, block string) {
	b, _ := obj[block].(map[string]any)
	if b == nil {
		return
	}
	s, _ := b["resolved_commit"].(string)
	s = strings.TrimSpace(s)
	if s != "" && s != repoindex.PlaceholderCommit {
		set[s] = true
	}
}

func riskSet(obj map[string]any, key string) map[string]bool {
	out := map[string]bool{}
	if obj == nil {
		return out
	}
	list, _ := obj[key].([]any)
	for _, item := range list {
		s, _ := item.(string)
		s = strings.TrimSpace(s)
		if s != "" {
			out[s] = true
		}
	}
	return out
}

func dig(obj map[string]any, keys ...string) map[string]any {
	cur := obj
	for _, k := range keys {
		next, _ := cur[k].(map[string]any)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func equalSets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func requireNonEmptyString(obj map[string]any, key, where string) error {
	s, _ := obj[key].(string)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("validation: %s.%s must be non-empty string", where, key)
	}
	return nil
}

func requireNonEmptyStringList(v any, where string) error {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return fmt.Errorf("validation: %s must be non-empty list", where)
	}
	for i, item := range list {
		s, _ := item.(string)
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("validation: %s[%d] must be non-empty string", where, i)
		}
	}
	return nil
}

func isJSONInt(v any) bool {
	f, ok := v.(float64)
	return ok && f == float64(int64(f))
}

func isNonNegativeInt(v any) bool {
	f, ok := v.(float64)
	return ok && f >= 0 && f == float64(int64(f))
}
