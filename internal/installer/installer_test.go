package installer

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/plugins"
)

// newFakePlugin writes a plugin directory with install/download callbacks
// that append an ordered marker to logPath and, on install, drop a single
// executable named after the plugin into $ASDF_INSTALL_PATH/bin.
func newFakePlugin(t *testing.T, dataDir, name, logPath string, failInstall bool) plugins.Plugin {
	t.Helper()
	pluginDir := filepath.Join(dataDir, "plugins", name)
	binDir := filepath.Join(pluginDir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))

	download := "#!/usr/bin/env bash\nset -e\n" +
		"echo \"download $ASDF_INSTALL_VERSION\" >> " + logPath + "\n" +
		"mkdir -p \"$ASDF_DOWNLOAD_PATH\"\n" +
		"touch \"$ASDF_DOWNLOAD_PATH/archive\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "download"), []byte(download), 0o755))

	installBody := "echo \"install $ASDF_INSTALL_VERSION\" >> " + logPath + "\n" +
		"mkdir -p \"$ASDF_INSTALL_PATH/bin\"\n" +
		"printf '#!/bin/sh\\n' > \"$ASDF_INSTALL_PATH/bin/" + name + "\"\n" +
		"chmod +x \"$ASDF_INSTALL_PATH/bin/" + name + "\"\n"
	if failInstall {
		installBody = "echo \"install $ASDF_INSTALL_VERSION\" >> " + logPath + "\nexit 1\n"
	}
	install := "#!/usr/bin/env bash\nset -e\n" + installBody
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "install"), []byte(install), 0o755))

	return plugins.Plugin{Name: name, Dir: pluginDir}
}

func loadTestConfig(t *testing.T, rcContents string) config.Config {
	t.Helper()
	if rcContents == "" {
		t.Setenv("ASDF_CONFIG_FILE", filepath.Join(t.TempDir(), "missing"))
		cfg, err := config.Load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	rc := filepath.Join(t.TempDir(), ".asdfrc")
	require.NoError(t, os.WriteFile(rc, []byte(rcContents), 0o644))
	t.Setenv("ASDF_CONFIG_FILE", rc)
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestInstallRunsDownloadInstallAndReshim(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, "")

	err := Install(context.Background(), cfg, plugin, "1.2.3", Options{})
	require.NoError(t, err)

	installDir := filepath.Join(dataDir, "installs", "dummy", "1.2.3")
	require.DirExists(t, filepath.Join(installDir, "bin"))
	require.FileExists(t, filepath.Join(installDir, "bin", "dummy"))

	// Download staging is cleaned up by default after a successful install.
	require.NoDirExists(t, filepath.Join(dataDir, "downloads", "dummy", "1.2.3"))

	// Reshim ran and generated a shim for the installed executable.
	require.FileExists(t, filepath.Join(dataDir, "shims", "dummy"))

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	require.Equal(t, []string{"download 1.2.3", "install 1.2.3"}, lines)
}

func TestInstallIsIdempotent(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, "")

	require.NoError(t, Install(context.Background(), cfg, plugin, "1.2.3", Options{}))
	require.NoError(t, Install(context.Background(), cfg, plugin, "1.2.3", Options{}))

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	require.Equal(t, []string{"download 1.2.3", "install 1.2.3"}, lines, "second Install must be a no-op")
}

func TestInstallKeepDownloadOption(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, "")

	require.NoError(t, Install(context.Background(), cfg, plugin, "1.2.3", Options{KeepDownload: true}))
	require.DirExists(t, filepath.Join(dataDir, "downloads", "dummy", "1.2.3"))
}

func TestInstallAlwaysKeepDownloadConfig(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, "always_keep_download = yes\n")

	require.NoError(t, Install(context.Background(), cfg, plugin, "1.2.3", Options{}))
	require.DirExists(t, filepath.Join(dataDir, "downloads", "dummy", "1.2.3"))
}

func TestInstallFiresHooksInOrder(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, strings.Join([]string{
		`pre_asdf_install_dummy = echo "pre-install $1" >> ` + logPath,
		`post_asdf_install_dummy = echo "post-install $1" >> ` + logPath,
	}, "\n")+"\n")

	require.NoError(t, Install(context.Background(), cfg, plugin, "1.2.3", Options{}))

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	require.Equal(t, []string{"pre-install 1.2.3", "download 1.2.3", "install 1.2.3", "post-install 1.2.3"}, lines)
}

func TestInstallSystemAndPathAreNoOps(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	plugin := newFakePlugin(t, dataDir, "dummy", logPath, false)
	cfg := loadTestConfig(t, "")

	require.NoError(t, Install(context.Background(), cfg, plugin, "system", Options{}))
	require.NoError(t, Install(context.Background(), cfg, plugin, "path:/opt/dummy", Options{}))

	_, err := os.ReadFile(logPath)
	require.True(t, os.IsNotExist(err), "neither system nor path installs should invoke plugin callbacks")
}

func writeTarXZ(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	xzWriter, err := xz.NewWriter(f)
	require.NoError(t, err)
	tarWriter := tar.NewWriter(xzWriter)

	for name, contents := range files {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}))
		_, err := tarWriter.Write([]byte(contents))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, xzWriter.Close())
}

func TestAssistArchiveExtractionUnpacksLoneArchive(t *testing.T) {
	downloadDir := t.TempDir()
	archivePath := filepath.Join(downloadDir, "release.tar.xz")
	writeTarXZ(t, archivePath, map[string]string{
		"bin/tool":  "#!/bin/sh\necho hi\n",
		"README.md": "hello\n",
	})

	require.NoError(t, assistArchiveExtraction(downloadDir))

	require.NoFileExists(t, archivePath)
	contents, err := os.ReadFile(filepath.Join(downloadDir, "bin", "tool"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho hi\n", string(contents))
}

func TestAssistArchiveExtractionIgnoresAmbiguousDirectory(t *testing.T) {
	downloadDir := t.TempDir()
	writeTarXZ(t, filepath.Join(downloadDir, "a.tar.xz"), map[string]string{"x": "1"})
	writeTarXZ(t, filepath.Join(downloadDir, "b.tar.xz"), map[string]string{"y": "2"})

	require.NoError(t, assistArchiveExtraction(downloadDir))

	require.FileExists(t, filepath.Join(downloadDir, "a.tar.xz"))
	require.FileExists(t, filepath.Join(downloadDir, "b.tar.xz"))
}

func TestInstallAllLocalNoPluginsInstalled(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	cfg := loadTestConfig(t, "")

	err := InstallAllLocal(context.Background(), cfg, t.TempDir(), Options{})
	require.ErrorContains(t, err, "install plugins first")
}

func TestInstallAllLocalInstallsResolvedToolsAndAggregatesFailures(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ASDF_DATA_DIR", dataDir)
	logPath := filepath.Join(dataDir, "log")
	newFakePlugin(t, dataDir, "good", logPath, false)
	newFakePlugin(t, dataDir, "bad", logPath, true)
	cfg := loadTestConfig(t, "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tool-versions"), []byte("good 1.0.0\nbad 2.0.0\n"), 0o644))

	err := InstallAllLocal(context.Background(), cfg, dir, Options{})
	require.ErrorContains(t, err, "bad")

	require.FileExists(t, filepath.Join(dataDir, "installs", "good", "1.0.0", "bin", "good"))
	require.NoDirExists(t, filepath.Join(dataDir, "installs", "bad", "2.0.0"))
}
