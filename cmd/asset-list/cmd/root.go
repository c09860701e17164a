package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
	"github.com/oshokin/runtime-bundler/internal/service/assets"
	"github.com/oshokin/runtime-bundler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// envFile is loaded before CI variables are read.
	envFile string
	// logLevel is one of debug, info, warn, error.
	logLevel string
	// language selects the output directory under assets.dist_root.
	language string

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command for generating the precache manifest.
	rootCmd = &cobra.Command{
		Use:   "asset-list --lang <language>",
		Short: "Write the precache asset list of one compiled application language.",
		Long: `Walks <dist_root>/<language>, lists every file except blacklisted ones as a
root-relative URL path, appends the pinned external assets and writes the list,
tagged with the commit hash and the UTC build time, into the same directory.

The commit hash is read from GIT_COMMIT_SHA, GITHUB_SHA or CI_COMMIT_SHA, then from
the enclosing git repository.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.WithName(cmd.Context(), "asset-list")

			if err := config.LoadEnv(envFile); err != nil {
				return err
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return failure.Configuration("parse flags", "--log-level "+logLevel, errUnknownLogLevel)
			}

			logger.SetLevel(level)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if err = config.ValidateAssets(cfg, language); err != nil {
				return err
			}

			_, err = assets.Run(ctx, assets.NewOptions(&cfg.Assets, language))

			return err
		},
	}
)

// Execute runs the asset-list CLI and exits with the status matching the failure kind.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(ctx, err)
		os.Exit(failure.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default bundler.yaml when present)")
	rootCmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFilename, "KEY=VALUE file loaded into the environment")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVar(&language, "lang", "", "application language, one of assets.languages")
}
