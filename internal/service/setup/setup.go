package setup

import (
	"context"
	"fmt"
	"os"

	"github.com/vcpkg-tools/vcpkgman/internal/config"
	"github.com/vcpkg-tools/vcpkgman/internal/lockfile"
	"github.com/vcpkg-tools/vcpkgman/internal/logger"
	"github.com/vcpkg-tools/vcpkgman/internal/repository/vcpkg"
)

// Options are the command-line inputs accepted by the setup entry points.
// Non-empty fields override values loaded from the settings file.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// PortsDir is the custom ports overlay directory.
	PortsDir string
	// BuildRoot is where the toolchain config file is written.
	BuildRoot string
	// BasePath overrides where managed installations live.
	BasePath string
	// RootOverride pins the installation to an unmanaged external path.
	RootOverride string
	// AndroidPrecompiled overrides where Android prebuilt archives unpack.
	AndroidPrecompiled string
	// Android selects the arm64-android target.
	Android bool
	// ForceRebuild treats the installation as stale regardless of its tag.
	ForceRebuild bool
	// ForceBootstrap re-downloads the base archive even if it looks intact.
	ForceBootstrap bool
}

// Run reconciles the installation with the current overlay and emits the
// toolchain config. The advisory lock is held from the staleness check
// through the tag write, so parallel invocations cannot race on clean/copy.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "setup")

	cfg, err := buildConfig(ctx, opts)
	if err != nil {
		return err
	}

	repo, err := vcpkg.New(ctx, cfg)
	if err != nil {
		return err
	}

	lock, err := lockfile.Acquire(ctx, repo.LockPath())
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release installation lock", "error", releaseErr)
		}
	}()

	if repo.UpToDate(ctx) {
		logger.Info(ctx, "Installation is up to date")
	} else {
		if err = repo.Bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}

		if err = repo.InstallDependencies(ctx); err != nil {
			return fmt.Errorf("install dependencies: %w", err)
		}

		// The commit point: only a fully installed root gets tagged valid.
		if err = repo.WriteTag(ctx); err != nil {
			return fmt.Errorf("write tag: %w", err)
		}

		// Best effort, outcome deliberately ignored.
		_ = repo.CleanBuilds(ctx)
	}

	if err = repo.WriteToolchainConfig(ctx); err != nil {
		return fmt.Errorf("write toolchain config: %w", err)
	}

	logger.Info(ctx, "Setup complete")

	return nil
}

// Clean removes the managed installation root.
func Clean(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "clean")

	cfg, err := buildConfig(ctx, opts)
	if err != nil {
		return err
	}

	repo, err := vcpkg.New(ctx, cfg)
	if err != nil {
		return err
	}

	lock, err := lockfile.Acquire(ctx, repo.LockPath())
	if err != nil {
		return err
	}

	defer func() {
		_ = lock.Release()
	}()

	if result := repo.Clean(ctx); result.Err != nil {
		logger.WarnKV(ctx, "Cleanup incomplete", "error", result.Err)
	}

	return nil
}

// buildConfig merges the settings file (when given) with command-line
// overrides and resolves the base path.
func buildConfig(ctx context.Context, opts *Options) (*config.Config, error) {
	cfg := new(config.Config)

	configPath := opts.ConfigPath
	if configPath == "" {
		// The default settings file is picked up only when it exists.
		if _, err := os.Stat(config.DefaultConfigFilename); err == nil {
			configPath = config.DefaultConfigFilename
		}
	}

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = loaded
	}

	if opts.PortsDir != "" {
		cfg.PortsDir = opts.PortsDir
	}

	if opts.BuildRoot != "" {
		cfg.BuildRoot = opts.BuildRoot
	}

	if opts.BasePath != "" {
		cfg.BasePath = opts.BasePath
	}

	if opts.RootOverride != "" {
		cfg.RootOverride = opts.RootOverride
	}

	if opts.AndroidPrecompiled != "" {
		cfg.AndroidPrecompiled = opts.AndroidPrecompiled
	}

	if opts.Android {
		cfg.Android = true
	}

	cfg.ForceRebuild = opts.ForceRebuild
	cfg.ForceBootstrap = opts.ForceBootstrap

	if cfg.AndroidPrecompiled == "" {
		cfg.AndroidPrecompiled = os.Getenv(config.AndroidPrecompiledEnvVar)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.RootOverride == "" {
		if usedDefault := config.ResolveBasePath(cfg); usedDefault {
			logger.Warnf(ctx, "Environment variable %s not set, using %s",
				config.BaseEnvVar, cfg.BasePath)
		}
	}

	return cfg, nil
}
