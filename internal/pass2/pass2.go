// Package pass2 orchestrates the semantic pass: evidence pack assembly,
// the model call with JSON recovery, output coercion, and artifact
// persistence. Every artifact is written deterministically; only the
// model text itself is nondeterministic, and it is quarantined inside
// llm_output and the raw text files.
package pass2

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"snapshotter/internal/artifact"
	"snapshotter/internal/caps"
	"snapshotter/internal/contents"
	"snapshotter/internal/deps"
	"snapshotter/internal/evidence"
	"snapshotter/internal/job"
	llmclient "snapshotter/internal/llm/client"
	"snapshotter/internal/llmjson"
	"snapshotter/internal/prompt"
	"snapshotter/internal/repoindex"
	"snapshotter/internal/semantic"
)

// Options configures a single semantic run.
type Options struct {
	RepoDir   string
	OutDir    string
	Job       *job.Job
	RepoIndex []byte
	// RepoURL overrides the job's repo_url when non-empty.
	RepoURL string
	Client  llmclient.Client
	Logger  *zap.Logger
}

// Result reports where the artifacts were written.
type Result struct {
	SemanticPath    string
	ArchPackPath    string
	SupportPackPath string
	Semantic        artifact.Semantic
}

// Generate runs the full semantic pass against a snapshotted repo.
func Generate(ctx context.Context, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	idx, err := repoindex.Decode(opts.RepoIndex)
	if err != nil {
		return Result{}, err
	}

	c := caps.Resolve(opts.Job)
	repoMeta := resolveRepoMeta(opts, idx)

	depsByFile := deps.Extract(idx)

	reader, err := contents.NewReader(opts.RepoDir)
	if err != nil {
		return Result{}, fmt.Errorf("pass2: open repo dir: %w", err)
	}
	maxFileBytes := contents.DefaultMaxFileBytes
	if opts.Job != nil && opts.Job.Limits.MaxFileBytes > 0 {
		maxFileBytes = opts.Job.Limits.MaxFileBytes
	}
	fileContents := reader.BuildMap(idx, maxFileBytes)

	ordered, dbg, err := evidence.ArchitectureOrder(fileContents, idx, depsByFile, c)
	if err != nil {
		return Result{}, err
	}
	archFiles := evidence.BuildArchPack(ordered, fileContents, c)
	supportFiles := evidence.BuildSupportPack(
		fileContents, idx,
		c.MaxSupportFiles, c.MaxSupportChars, c.MaxSupportCharsPerFile,
	)

	archPack, err := artifact.NewArchPack(repoMeta, c, dbg, archFiles)
	if err != nil {
		return Result{}, err
	}
	supportPack, err := artifact.NewSupportPack(repoMeta, c, supportFiles)
	if err != nil {
		return Result{}, err
	}

	// Packs are persisted before the model call so a failed call still
	// leaves the deterministic evidence on disk.
	archPath := filepath.Join(opts.OutDir, artifact.ArchPackFilename)
	supportPath := filepath.Join(opts.OutDir, artifact.SupportPackFilename)
	if err := artifact.WriteJSON(archPath, archPack); err != nil {
		return Result{}, err
	}
	if err := artifact.WriteJSON(supportPath, supportPack); err != nil {
		return Result{}, err
	}
	log.Info("evidence packs written",
		zap.Int("arch_files", len(archFiles)),
		zap.Int("support_files", len(supportFiles)),
	)

	userPrompt, err := prompt.User(prompt.UserInput{
		RepoMeta:     repoMeta,
		Index:        idx,
		ArchFiles:    archFiles,
		SupportFiles: supportFiles,
		DepsByFile:   depsByFile,
	})
	if err != nil {
		return Result{}, err
	}

	res, err := llmjson.GenerateObject(ctx, opts.Client, prompt.System(), userPrompt, llmjson.Prompts{
		RepairSystem: prompt.RepairSystem(),
		Repair:       prompt.Repair,
	})
	if err != nil {
		// The raw (and any repaired) text still goes to disk so the
		// failure can be diagnosed offline.
		persistFailedTexts(opts.OutDir, err, log)
		return Result{}, err
	}

	rawPath := filepath.Join(opts.OutDir, artifact.LLMRawFilename)
	if err := artifact.WriteText(rawPath, res.Raw); err != nil {
		return Result{}, err
	}
	rawPaths := artifact.RawPaths{RawText: artifact.LLMRawFilename}
	if res.RepairUsed {
		if err := artifact.WriteText(filepath.Join(opts.OutDir, artifact.LLMRepairedFilename), res.Repaired); err != nil {
			return Result{}, err
		}
		name := artifact.LLMRepairedFilename
		rawPaths.RepairedText = &name
		log.Info("llm output repaired")
	}

	out := semantic.Coerce(res.Object)

	idxFingerprint, err := artifact.FingerprintRaw(idx.Raw())
	if err != nil {
		return Result{}, err
	}
	sem, err := artifact.NewSemantic(repoMeta, c, artifact.Inputs{
		RepoIndexSchemaVersion: repoindex.SchemaVersion,
		RepoIndexFingerprint:   idxFingerprint,
		ArchPackFingerprint:    archPack.Fingerprint,
		SupportPackFingerprint: supportPack.Fingerprint,
	}, out, rawPaths)
	if err != nil {
		return Result{}, err
	}

	semPath := filepath.Join(opts.OutDir, artifact.SemanticFilename)
	if err := artifact.WriteJSON(semPath, sem); err != nil {
		return Result{}, err
	}
	log.Info("semantic artifact written",
		zap.String("path", semPath),
		zap.String("fingerprint", sem.Fingerprint),
	)

	return Result{
		SemanticPath:    semPath,
		ArchPackPath:    archPath,
		SupportPackPath: supportPath,
		Semantic:        sem,
	}, nil
}

func resolveRepoMeta(opts Options, idx *repoindex.Index) artifact.RepoMeta {
	url := strings.TrimSpace(opts.RepoURL)
	if url == "" && opts.Job != nil {
		url = strings.TrimSpace(opts.Job.RepoURL)
	}
	meta := artifact.RepoMeta{ResolvedCommit: idx.Job.ResolvedCommit}
	if url != "" {
		meta.RepoURL = &url
	}
	return meta
}

// persistFailedTexts best-effort writes the model texts attached to
// recovery errors.
func persistFailedTexts(outDir string, err error, log *zap.Logger) {
	var trunc *llmjson.TruncatedError
	var rep *llmjson.RepairError
	switch {
	case errors.As(err, &trunc):
		writeOrWarn(outDir, artifact.LLMRawFilename, trunc.Raw, log)
	case errors.As(err, &rep):
		writeOrWarn(outDir, artifact.LLMRawFilename, rep.Raw, log)
		if rep.Repaired != "" {
			writeOrWarn(outDir, artifact.LLMRepairedFilename, rep.Repaired, log)
		}
	}
}

func writeOrWarn(outDir, name, text string, log *zap.Logger) {
	if text == "" {
		return
	}
	if err := artifact.WriteText(filepath.Join(outDir, name), text); err != nil {
		log.Warn("failed to persist llm text", zap.String("file", name), zap.Error(err))
	}
}
