package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vcpkg-tools/vcpkgman/internal/config"
	"github.com/vcpkg-tools/vcpkgman/internal/logger"
	"github.com/vcpkg-tools/vcpkgman/internal/service/setup"
	"github.com/vcpkg-tools/vcpkgman/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// logLevel is the minimum level for console logging.
	logLevel string

	// options collects the flag values shared by the subcommands.
	options setup.Options

	// rootCmd represents the base command managing vcpkg installations.
	rootCmd = &cobra.Command{
		Use:   "vcpkgman",
		Short: "Manage per-project, versioned vcpkg installations",
		Long: "vcpkgman maintains a content-addressed local installation of the vcpkg dependency manager: " +
			"it bootstraps the tool, overlays the project's custom ports, installs dependency sets and " +
			"emits the CMake toolchain config consumed by the build system.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	// setupCmd reconciles the installation and writes the toolchain config.
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap the installation, install dependencies and write the toolchain config",
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.ConfigPath = configPath

			return setup.Run(ctx, &options)
		},
	}

	// cleanCmd removes the managed installation root.
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the managed installation root",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.ConfigPath = configPath

			return setup.Clean(ctx, &options)
		},
	}
)

// Execute runs the vcpkgman CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	persistent.StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	persistent.StringVar(&options.PortsDir, "ports-path", "", "path to the custom ports overlay directory")
	persistent.StringVar(&options.BuildRoot, "build-root", "", "directory the toolchain config is written into")
	persistent.StringVar(&options.BasePath, "base-path", "",
		"base directory for managed installations (also "+config.BaseEnvVar+")")
	persistent.StringVar(&options.RootOverride, "vcpkg-root", "",
		"use an externally managed vcpkg root (never cleaned or re-tagged)")
	persistent.BoolVar(&options.Android, "android", false, "target arm64-android and pull prebuilt binary sets")
	persistent.StringVar(&options.AndroidPrecompiled, "android-precompiled", "",
		"directory for Android prebuilt archives (also "+config.AndroidPrecompiledEnvVar+")")

	setupCmd.Flags().BoolVar(&options.ForceRebuild, "force-rebuild", false,
		"treat the installation as stale regardless of its tag")
	setupCmd.Flags().BoolVar(&options.ForceBootstrap, "force-bootstrap", false,
		"re-download the vcpkg archive even if it looks intact")

	rootCmd.AddCommand(setupCmd, cleanCmd)
}
