package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds the inputs the repository manager needs for one invocation.
// It is constructed once at startup and passed by reference; the core never
// reads ambient process state on its own.
type Config struct {
	// PortsDir is the directory holding the custom port overlay.
	PortsDir string `yaml:"ports_dir"`
	// BuildRoot is the directory the toolchain config file is written into.
	BuildRoot string `yaml:"build_root"`
	// BasePath is where managed installations live. When empty it is resolved
	// from the VCPKGMAN_BASE environment variable or a platform default.
	BasePath string `yaml:"base_path"`
	// RootOverride pins the installation root to an explicit, externally
	// managed path. An overridden root is never cleaned or re-tagged.
	RootOverride string `yaml:"vcpkg_root"`
	// Android selects the arm64-android target and its prebuilt binary sets.
	Android bool `yaml:"android"`
	// AndroidPrecompiled is where Android prebuilt archives are unpacked.
	// When empty it is resolved from VCPKGMAN_ANDROID_PRECOMPILED or derived
	// from the installation root.
	AndroidPrecompiled string `yaml:"android_precompiled"`
	// ForceRebuild treats the installation as stale regardless of its tag.
	// Set from the command line, never persisted.
	ForceRebuild bool `yaml:"-"`
	// ForceBootstrap re-downloads the vcpkg archive even if it looks intact.
	// Set from the command line, never persisted.
	ForceBootstrap bool `yaml:"-"`
}

const (
	// DefaultConfigFilename is the default filename for tool settings.
	DefaultConfigFilename = "vcpkgman.yaml"

	// BaseEnvVar overrides the base path for managed installations.
	BaseEnvVar = "VCPKGMAN_BASE"

	// AndroidPrecompiledEnvVar overrides where Android prebuilt archives land.
	AndroidPrecompiledEnvVar = "VCPKGMAN_ANDROID_PRECOMPILED"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPortsDirRequired is returned when the ports overlay path is missing.
	errPortsDirRequired = errors.New("ports directory must be provided")
	// errBuildRootRequired is returned when the build root path is missing.
	errBuildRootRequired = errors.New("build root must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided configuration for required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.PortsDir == "" {
		return errPortsDirRequired
	}

	if cfg.BuildRoot == "" {
		return errBuildRootRequired
	}

	return nil
}

// ResolveBasePath fills in Config.BasePath when it was not supplied
// explicitly, preferring the environment override and falling back to the
// platform default. It reports whether the fallback default was used, so
// callers can warn that builds will not share a base across projects.
func ResolveBasePath(cfg *Config) (usedDefault bool) {
	if cfg.BasePath != "" {
		return false
	}

	if fromEnv := os.Getenv(BaseEnvVar); fromEnv != "" {
		cfg.BasePath = fromEnv
		return false
	}

	cfg.BasePath = DefaultBasePath()

	return true
}

// DefaultBasePath returns the platform default location for managed
// installations: a stable per-user path on macOS, the system temp
// directory elsewhere.
func DefaultBasePath() string {
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "vcpkgman", "vcpkg")
		}
	}

	return filepath.Join(os.TempDir(), "vcpkgman", "vcpkg")
}
