// Package main provides the snapshotter binary: the pass2 semantic
// generation run and the cross-artifact validation check.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := rootCmd(logger).Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func rootCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapshotter",
		Short:         "Repository snapshot semantic analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(pass2Cmd(logger))
	cmd.AddCommand(validateCmd(logger))
	return cmd
}
