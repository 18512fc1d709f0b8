package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataDirHonoursEnvOverride(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", "/tmp/custom-asdf")
	dir, err := DataDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-asdf", dir)
}

func TestDataDirFallsBackToHome(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err := DataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".asdf"), dir)
}

func TestConfigFileHonoursEnvOverride(t *testing.T) {
	t.Setenv("ASDF_CONFIG_FILE", "/tmp/custom.asdfrc")
	file, err := ConfigFile()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.asdfrc", file)
}

func TestToolInstallsDirCreatesParent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", home)
	dir, err := ToolInstallsDir("dummy")
	require.NoError(t, err)
	require.DirExists(t, dir)
	require.Equal(t, filepath.Join(home, "installs", "dummy"), dir)
}

func TestToolDownloadsDirCreatesParent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", home)
	dir, err := ToolDownloadsDir("dummy")
	require.NoError(t, err)
	require.DirExists(t, dir)
}

func TestShimsDirCreatesOnDemand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", home)
	dir, err := ShimsDir()
	require.NoError(t, err)
	require.DirExists(t, dir)
	require.Equal(t, filepath.Join(home, "shims"), dir)
}
