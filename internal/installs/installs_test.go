package installs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonathanmorley/asdf/internal/toolversions"
)

func TestInstallPathLiteral(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", t.TempDir())
	spec := toolversions.Specifier{Kind: toolversions.Literal, Value: "1.2.3"}
	path, err := InstallPath("dummy", spec, "1.2.3")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(path))
	require.Equal(t, "1.2.3", filepath.Base(path))
}

func TestInstallPathRef(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", t.TempDir())
	spec := toolversions.Specifier{Kind: toolversions.Ref, Value: "main"}
	path, err := InstallPath("dummy", spec, "main")
	require.NoError(t, err)
	require.Equal(t, "ref-main", filepath.Base(path))
}

func TestInstallPathPathIsVerbatim(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", t.TempDir())
	spec := toolversions.Specifier{Kind: toolversions.Path, Value: "/opt/custom"}
	path, err := InstallPath("dummy", spec, "")
	require.NoError(t, err)
	require.Equal(t, "/opt/custom", path)
}

func TestDownloadPathAbsentForPath(t *testing.T) {
	t.Setenv("ASDF_DATA_DIR", t.TempDir())
	spec := toolversions.Specifier{Kind: toolversions.Path, Value: "/opt/custom"}
	_, ok, err := DownloadPath("dummy", spec, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInstalledListsDirectoriesSorted(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)

	toolDir := filepath.Join(dataDir, "installs", "dummy")
	require.NoError(t, os.MkdirAll(filepath.Join(toolDir, "0.2.0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(toolDir, "0.1.0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(toolDir, "ref-main"), 0o755))

	versions, err := Installed("dummy")
	require.NoError(t, err)
	require.Equal(t, []string{"0.1.0", "0.2.0", "ref:main"}, versions)
}

func TestFullVersionName(t *testing.T) {
	require.Equal(t, "ref:main", FullVersionName("ref-main"))
	require.Equal(t, "1.2.3", FullVersionName("1.2.3"))
}
