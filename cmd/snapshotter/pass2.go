package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapshotter/internal/artifact"
	"snapshotter/internal/caps"
	"snapshotter/internal/job"
	llmclient "snapshotter/internal/llm/client"
	llm "snapshotter/internal/llm/middleware"
	"snapshotter/internal/pass2"
)

func pass2Cmd(logger *zap.Logger) *cobra.Command {
	var (
		repoDir   string
		outDir    string
		jobPath   string
		indexPath string
		repoURL   string
		runID     string
		mirror    bool
	)

	cmd := &cobra.Command{
		Use:   "pass2",
		Short: "Run the semantic pass against a snapshotted repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			j, err := job.Load(jobPath)
			if err != nil {
				return err
			}
			indexBytes, err := os.ReadFile(indexPath)
			if err != nil {
				return fmt.Errorf("read repo index: %w", err)
			}

			if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) == "" {
				return fmt.Errorf("GEMINI_API_KEY is not set")
			}
			resolved := caps.Resolve(j)
			base, err := llmclient.NewGemini(ctx, os.Getenv("GEMINI_API_KEY"), resolved.Model, resolved.MaxOutputTokens)
			if err != nil {
				return err
			}
			client := llm.Chain(base,
				llm.WithLogging(logger),
				llm.RateLimitFromEnv("SNAPSHOTTER_LLM", "GEMINI"),
			)
			defer func() { _ = client.Close() }()

			res, err := pass2.Generate(ctx, pass2.Options{
				RepoDir:   repoDir,
				OutDir:    outDir,
				Job:       j,
				RepoIndex: indexBytes,
				RepoURL:   repoURL,
				Client:    client,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			logger.Info("pass2 complete",
				zap.String("semantic", res.SemanticPath),
				zap.String("arch_pack", res.ArchPackPath),
				zap.String("support_pack", res.SupportPackPath),
			)

			if mirror {
				return mirrorArtifacts(ctx, outDir, runID, logger)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "path to the repository root")
	cmd.Flags().StringVar(&outDir, "out", "out", "output directory for artifacts")
	cmd.Flags().StringVar(&jobPath, "job", "job.yaml", "path to the job YAML file")
	cmd.Flags().StringVar(&indexPath, "index", "", "path to PASS1_REPO_INDEX.json")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "repository URL recorded in artifacts (overrides job)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier used as the mirror object prefix")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "upload artifacts to the configured S3-compatible store")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func mirrorArtifacts(ctx context.Context, outDir, runID string, logger *zap.Logger) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("--run-id is required with --mirror")
	}
	m, err := artifact.NewMirror(mirrorConfigFromEnv())
	if err != nil {
		return err
	}
	if err := m.PutDir(ctx, runID, outDir); err != nil {
		return fmt.Errorf("mirror artifacts: %w", err)
	}
	logger.Info("artifacts mirrored", zap.String("run_id", runID))
	return nil
}

func mirrorConfigFromEnv() artifact.MirrorConfig {
	return artifact.MirrorConfig{
		Endpoint:  os.Getenv("ARTIFACT_S3_ENDPOINT"),
		Region:    firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(os.Getenv("ARTIFACT_S3_BUCKET"), "snapshotter-artifacts"),
		UseSSL:    strings.EqualFold(strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL")), "true"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
