// Package paths computes the canonical on-disk locations asdf reads and
// writes, honouring the ASDF_* environment overrides documented in the
// environment variable contract.
package paths

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
)

// Env holds the subset of the environment this system reads directly, bound
// via envconfig so the precedence rules live in one struct instead of
// scattered os.Getenv calls.
type Env struct {
	AsdfDir                      string `env:"ASDF_DIR"`
	DataDir                      string `env:"ASDF_DATA_DIR"`
	ConfigFile                   string `env:"ASDF_CONFIG_FILE"`
	DefaultToolVersionsFilename  string `env:"ASDF_DEFAULT_TOOL_VERSIONS_FILENAME"`
}

// LoadEnv binds the current process environment onto Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process(context.Background(), &e); err != nil {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return e, nil
}

// AsdfDir returns the directory asdf itself is installed under. ASDF_DIR
// wins when set; otherwise it is derived from the running binary's location
// by taking three parent directories of the executable path, so a binary at
// <root>/a/b/asdf yields <root>. This mirrors the precedence observed in the
// original implementation: env wins, else derive from the binary.
func AsdfDir() (string, error) {
	env, err := LoadEnv()
	if err != nil {
		return "", err
	}
	if env.AsdfDir != "" {
		return env.AsdfDir, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating asdf binary: %w", err)
	}
	dir := filepath.Dir(exe)
	for i := 0; i < 2; i++ {
		dir = filepath.Dir(dir)
	}
	return dir, nil
}

// DataDir returns <ASDF_DATA_DIR> or <home>/.asdf. Fails if no home
// directory can be discovered.
func DataDir() (string, error) {
	env, err := LoadEnv()
	if err != nil {
		return "", err
	}
	if env.DataDir != "" {
		return env.DataDir, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("cannot find asdf data directory: %w", err)
	}
	return filepath.Join(home, ".asdf"), nil
}

// ConfigFile returns <ASDF_CONFIG_FILE> or <home>/.asdfrc.
func ConfigFile() (string, error) {
	env, err := LoadEnv()
	if err != nil {
		return "", err
	}
	if env.ConfigFile != "" {
		return env.ConfigFile, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("cannot find asdf config file: %w", err)
	}
	return filepath.Join(home, ".asdfrc"), nil
}

// DefaultToolVersionsFilename returns ASDF_DEFAULT_TOOL_VERSIONS_FILENAME, or
// "" if unset.
func DefaultToolVersionsFilename() (string, error) {
	env, err := LoadEnv()
	if err != nil {
		return "", err
	}
	return env.DefaultToolVersionsFilename, nil
}

// PluginsDir returns <data_dir>/plugins, the read-only-to-this-system
// directory managed by the plugin collaborator.
func PluginsDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "plugins"), nil
}

// PluginDir returns <data_dir>/plugins/<tool>.
func PluginDir(tool string) (string, error) {
	pluginsDir, err := PluginsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(pluginsDir, tool), nil
}

// InstallsDir returns <data_dir>/installs, creating it on first access.
func InstallsDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, "installs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating installs directory: %w", err)
	}
	return dir, nil
}

// ToolInstallsDir returns <data_dir>/installs/<tool>, creating it on first
// access.
func ToolInstallsDir(tool string) (string, error) {
	installsDir, err := InstallsDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(installsDir, tool)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating installs directory for %s: %w", tool, err)
	}
	return dir, nil
}

// DownloadsDir returns <data_dir>/downloads, creating it on first access.
func DownloadsDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, "downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating downloads directory: %w", err)
	}
	return dir, nil
}

// ToolDownloadsDir returns <data_dir>/downloads/<tool>, creating it on first
// access.
func ToolDownloadsDir(tool string) (string, error) {
	downloadsDir, err := DownloadsDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(downloadsDir, tool)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating downloads directory for %s: %w", tool, err)
	}
	return dir, nil
}

// ShimsDir returns <data_dir>/shims, creating it on demand.
func ShimsDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, "shims")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating shims directory: %w", err)
	}
	return dir, nil
}
