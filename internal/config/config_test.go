package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing ports directory.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Missing build root.
	cfg = &Config{
		PortsDir: "cmake/ports",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Complete.
	cfg = &Config{
		PortsDir:  "cmake/ports",
		BuildRoot: "build",
	}

	err = Validate(cfg)
	require.NoError(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		PortsDir:  "cmake/ports",
		BuildRoot: "build",
		Android:   true,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.PortsDir, loaded.PortsDir)
	require.Equal(t, cfg.BuildRoot, loaded.BuildRoot)
	require.Equal(t, cfg.Android, loaded.Android)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestResolveBasePath covers explicit, environment and default resolution.
func TestResolveBasePath(t *testing.T) { //nolint:paralleltest // Mutates process environment.
	cfg := &Config{BasePath: "/opt/vcpkg"}
	require.False(t, ResolveBasePath(cfg))
	require.Equal(t, "/opt/vcpkg", cfg.BasePath)

	t.Setenv(BaseEnvVar, "/srv/vcpkg-base")

	cfg = new(Config)
	require.False(t, ResolveBasePath(cfg))
	require.Equal(t, "/srv/vcpkg-base", cfg.BasePath)

	t.Setenv(BaseEnvVar, "")

	cfg = new(Config)
	require.True(t, ResolveBasePath(cfg))
	require.Equal(t, DefaultBasePath(), cfg.BasePath)
}
