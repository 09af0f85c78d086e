package vcpkg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/vcpkg-tools/vcpkgman/internal/logger"
)

// toolchainFilename is the config file consumed by the external build system.
const toolchainFilename = "vcpkg.cmake"

// toolchainData is the typed substitution record for the toolchain template.
// All paths are absolute and slash-normalized before rendering.
type toolchainData struct {
	// ToolchainFile is written twice: once cached, once uncached, enabling
	// the guard below to detect a moved toolchain between configures.
	ToolchainFile string
	InstallRoot   string
	ToolsDir      string
	// GuardEnabled appends the stale-toolchain check for desktop targets.
	GuardEnabled bool
	// AndroidPrecompiled and QtCMakePrefix are emitted for Android targets.
	AndroidPrecompiled string
	QtCMakePrefix      string
}

// toolchainTemplateText is the integration contract with the build system;
// variable names and structure must stay stable.
const toolchainTemplateText = `
get_filename_component(CMAKE_TOOLCHAIN_FILE "{{.ToolchainFile}}" ABSOLUTE CACHE)
get_filename_component(CMAKE_TOOLCHAIN_FILE_UNCACHED "{{.ToolchainFile}}" ABSOLUTE)
set(VCPKG_INSTALL_ROOT "{{.InstallRoot}}")
set(VCPKG_TOOLS_DIR "{{.ToolsDir}}")
{{- if .GuardEnabled}}

# If the cached cmake toolchain path is different from the computed one, exit
if(NOT (CMAKE_TOOLCHAIN_FILE_UNCACHED STREQUAL CMAKE_TOOLCHAIN_FILE))
    message(FATAL_ERROR "CMAKE_TOOLCHAIN_FILE has changed, please wipe the build directory and rerun cmake")
endif()
{{- end}}
{{- if .AndroidPrecompiled}}
set(VCPKG_ANDROID_PRECOMPILED "{{.AndroidPrecompiled}}")
set(QT_CMAKE_PREFIX_PATH "{{.QtCMakePrefix}}")
{{- end}}
`

//nolint:gochecknoglobals // Parsed once; the template is a compile-time constant.
var toolchainTemplate = template.Must(template.New("toolchain").Parse(toolchainTemplateText))

// ToolchainConfigPath returns where the config file is written.
func (r *Repository) ToolchainConfigPath() string {
	return filepath.Join(r.cfg.BuildRoot, toolchainFilename)
}

// WriteToolchainConfig renders the build-system config file. Output is
// deterministic for identical inputs.
func (r *Repository) WriteToolchainConfig(ctx context.Context) error {
	data := toolchainData{
		ToolchainFile: filepath.ToSlash(filepath.Join(r.root, "scripts", "buildsystems", "vcpkg.cmake")),
		InstallRoot:   filepath.ToSlash(filepath.Join(r.root, installedDirname, r.triplet)),
		ToolsDir:      filepath.ToSlash(filepath.Join(r.root, installedDirname, r.hostTriplet, "tools")),
		GuardEnabled:  !r.cfg.Android,
	}

	if r.cfg.Android {
		precompiled, err := filepath.Abs(r.androidPath)
		if err != nil {
			return fmt.Errorf("resolve android precompiled path: %w", err)
		}

		data.AndroidPrecompiled = filepath.ToSlash(precompiled)
		data.QtCMakePrefix = filepath.ToSlash(filepath.Join(precompiled, "qt", "lib", "cmake"))
	}

	var rendered bytes.Buffer
	if err := toolchainTemplate.Execute(&rendered, data); err != nil {
		return fmt.Errorf("render toolchain config: %w", err)
	}

	if err := os.MkdirAll(r.cfg.BuildRoot, 0o755); err != nil {
		return fmt.Errorf("create build root: %w", err)
	}

	outputPath := r.ToolchainConfigPath()

	logger.InfoKV(ctx, "Writing toolchain config", "path", outputPath)

	if err := os.WriteFile(outputPath, rendered.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write toolchain config: %w", err)
	}

	return nil
}
