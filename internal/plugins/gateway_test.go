package plugins

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListAllSplitsOnWhitespace(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	writeScript(t, p, "list-all", `echo "0.1.0 0.2.0 0.3.0"`)

	versions, err := p.ListAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0.1.0", "0.2.0", "0.3.0"}, versions)
}

func TestListAllFailurePropagatesStderr(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	writeScript(t, p, "list-all", `echo "boom" >&2; exit 1`)

	_, err := p.ListAll(context.Background())
	require.Error(t, err)
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	require.Contains(t, cbErr.Stderr, "boom")
}

func TestLatestStableUnsupported(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	_, err := p.LatestStable(context.Background(), "")
	require.ErrorIs(t, err, ErrCallbackUnsupported)
}

func TestListBinPathsDefaultsToBin(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	paths, err := p.ListBinPaths(context.Background(), InstallEnv{})
	require.NoError(t, err)
	require.Equal(t, []string{"bin"}, paths)
}

func TestListBinPathsUsesCallback(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	writeScript(t, p, "list-bin-paths", `echo "bin libexec"`)

	paths, err := p.ListBinPaths(context.Background(), InstallEnv{InstallType: "version", Version: "1.0.0"})
	require.NoError(t, err)
	require.Equal(t, []string{"bin", "libexec"}, paths)
}

func TestInstallReceivesEnvContract(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	writeScript(t, p, "install", `[ "$ASDF_INSTALL_TYPE $ASDF_INSTALL_VERSION $ASDF_INSTALL_PATH $ASDF_CONCURRENCY" = "version 1.2.3 /tmp/install 4" ]`)

	err := p.Install(context.Background(), InstallEnv{
		InstallType: "version",
		Version:     "1.2.3",
		InstallPath: "/tmp/install",
		Concurrency: 4,
	})
	require.NoError(t, err)
}

func TestParseLegacyFileFallsBackToVerbatimRead(t *testing.T) {
	p := newFixturePlugin(t, "dummy")
	dir := t.TempDir()
	path := dir + "/.dummy-version"
	require.NoError(t, os.WriteFile(path, []byte("1.2.3\n"), 0o644))

	version, err := p.ParseLegacyFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "1.2.3", version)
}
