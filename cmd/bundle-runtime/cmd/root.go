package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
	"github.com/oshokin/runtime-bundler/internal/service/packager"
	"github.com/oshokin/runtime-bundler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// envFile is loaded into the environment before anything else.
	envFile string
	// logLevel is one of debug, info, warn, error.
	logLevel string
	// indexURL overrides package.index_url.
	indexURL string
	// bundleDir overrides runtime.bundle_dir.
	bundleDir string
	// resolveMode overrides package.resolve_mode.
	resolveMode string

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command for packaging the guest runtime.
	rootCmd = &cobra.Command{
		Use:   "bundle-runtime",
		Short: "Bundle the guest runtime and the target library for the web application.",
		Long: `Recreates the bundle directory from the runtime distribution archive, builds the
target library into it, classifies every artifact as shipped locally or fetched
from the runtime CDN using the runtime lock file, and writes the package manifest
read by the application loader.

Settings come from the configuration file (bundler.yaml when present) and can be
overridden with flags. Exit codes: 2 configuration, 3 network, 4 filesystem,
5 inconsistent manifest, 1 anything else.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			return packager.Run(ctx, &packager.Options{Config: cfg})
		},
	}

	// initConfigCmd writes the default settings so they can be edited.
	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write the default settings to the configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(path); statErr == nil && !force {
				return failure.Configuration("init config", path, os.ErrExist)
			}

			if err = config.Save(path, config.Default()); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Default settings written", "path", path)

			return nil
		},
	}
)

// loadSettings applies the environment file, the log level, the configuration file and the flags, in that order.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}

	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return nil, failure.Configuration("parse flags", "--log-level "+logLevel, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("index-url") {
		cfg.Package.IndexURL = indexURL
	}

	if flags.Changed("bundle-dir") {
		cfg.Runtime.BundleDir = bundleDir
	}

	if flags.Changed("resolve-mode") {
		cfg.Package.ResolveMode = resolveMode
	}

	return cfg, nil
}

// Execute runs the bundle-runtime CLI and exits with the status matching the failure kind.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(ctx, err)
		os.Exit(failure.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default bundler.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFilename, "KEY=VALUE file loaded into the environment")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().StringVar(&indexURL, "index-url", "", "custom package index used to build the target library")
	rootCmd.Flags().StringVarP(&bundleDir, "bundle-dir", "o", "", "bundle directory, recreated on every run")
	rootCmd.Flags().StringVar(&resolveMode, "resolve-mode", "", "dependency expansion: transitive or shallow")
	initConfigCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration file")
}
