package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapshotter/internal/validate"
)

// Default artifact filenames inside a run directory, by validator key.
var defaultArtifactFiles = map[string]string{
	"repo_index":            "PASS1_REPO_INDEX.json",
	"artifact_manifest":     "ARTIFACT_MANIFEST.json",
	"architecture_snapshot": "ARCHITECTURE_SUMMARY_SNAPSHOT.json",
	"gaps":                  "GAPS.json",
	"onboarding":            "ONBOARDING.md",
	"pass2_semantic":        "PASS2_SEMANTIC.json",
	"pass2_arch_pack":       "PASS2_ARCH_PACK.json",
	"pass2_support_pack":    "PASS2_SUPPORT_PACK.json",
}

func validateCmd(logger *zap.Logger) *cobra.Command {
	var runDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run's artifacts against their contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make(map[string]string, len(defaultArtifactFiles))
			for key, name := range defaultArtifactFiles {
				paths[key] = filepath.Join(runDir, name)
			}
			// The evidence packs are optional; drop them when absent so
			// validation of pack-less runs still passes.
			for _, key := range []string{"pass2_arch_pack", "pass2_support_pack"} {
				if !fileExists(paths[key]) {
					delete(paths, key)
				}
			}
			if err := validate.Artifacts(paths, logger); err != nil {
				return err
			}
			logger.Info("all artifacts valid", zap.String("run_dir", runDir))
			return nil
		},
	}

	cmd.Flags().StringVar(&runDir, "run-dir", "", "directory holding the run's artifacts")
	_ = cmd.MarkFlagRequired("run-dir")

	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
