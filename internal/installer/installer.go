// Package installer orchestrates the install lifecycle of one (tool,
// version): computing paths, running the plugin's download/install
// callbacks under the documented environment contract, firing pre/post
// hooks, applying the download-cleanup policy, and regenerating shims.
package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ulikunitz/xz"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/hooks"
	"github.com/jonathanmorley/asdf/internal/installs"
	"github.com/jonathanmorley/asdf/internal/plugins"
	"github.com/jonathanmorley/asdf/internal/resolve"
	"github.com/jonathanmorley/asdf/internal/shimgen"
	"github.com/jonathanmorley/asdf/internal/toolversions"
)

// ErrVersionNotInstalled is returned when an operation requires an installed
// version that does not exist on disk.
var ErrVersionNotInstalled = errors.New("version not installed")

// Options controls install behaviour not implied by the specifier itself.
type Options struct {
	// KeepDownload forces download_path to survive cleanup, equivalent to
	// the --keep-download flag.
	KeepDownload bool
}

// Install orchestrates installing one (tool, fullVersion) pair. fullVersion
// is a version specifier token as found in a .tool-versions file (e.g.
// "3.11.4", "ref:main", "system", "latest"). Returns nil without side
// effects for "system" and for an already-installed directory (idempotent).
func Install(ctx context.Context, conf config.Config, plugin plugins.Plugin, fullVersion string, opts Options) error {
	spec, err := toolversions.ParseSpecifier(fullVersion)
	if err != nil {
		return fmt.Errorf("parsing version %q for %s: %w", fullVersion, plugin.Name, err)
	}

	if spec.Kind == toolversions.System {
		return nil
	}
	if spec.Kind == toolversions.Path {
		// No directory is owned by this system for path installs.
		return nil
	}

	installType := spec.InstallType()
	literalVersion := spec.Value
	if spec.Kind == toolversions.Latest {
		literalVersion, err = resolveLatest(ctx, plugin, spec.Value)
		if err != nil {
			return err
		}
	}

	installPath, err := installs.InstallPath(plugin.Name, spec, literalVersion)
	if err != nil {
		return err
	}

	if installs.IsInstalled(installPath) {
		fmt.Printf("%s %s is already installed\n", plugin.Name, fullVersion)
		return nil
	}

	downloadPath, hasDownload, err := installs.DownloadPath(plugin.Name, spec, literalVersion)
	if err != nil {
		return err
	}

	cancel := installWithCancellation(ctx, installPath)
	defer cancel()

	env := plugins.InstallEnv{
		InstallType: installType,
		Version:     literalVersion,
		InstallPath: installPath,
		Concurrency: plugins.Concurrency(),
	}

	if plugin.HasCallback("download") {
		if !hasDownload {
			return fmt.Errorf("plugin %s declared a download callback but install type %s has no download path", plugin.Name, installType)
		}
		env.DownloadPath = downloadPath

		if err := os.MkdirAll(downloadPath, 0o755); err != nil {
			return fmt.Errorf("creating download directory: %w", err)
		}

		if err := hooks.Run(ctx, conf, hooks.InstallHookName("pre", plugin.Name), []string{fullVersion}, map[string]string{
			"concurrency":   fmt.Sprint(env.Concurrency),
			"download_path": downloadPath,
			"install_path":  installPath,
			"version":       literalVersion,
			"full_version":  fullVersion,
			"install_type":  installType,
			"keep_download": keepDownloadFlag(opts.KeepDownload),
			"plugin_path":   plugin.Dir,
			"flags":         keepDownloadFlagArg(opts.KeepDownload),
			"plugin_name":   plugin.Name,
		}); err != nil {
			return err
		}

		if err := plugin.Download(ctx, env); err != nil {
			return fmt.Errorf("downloading %s %s: %w", plugin.Name, fullVersion, err)
		}

		if err := assistArchiveExtraction(downloadPath); err != nil {
			return fmt.Errorf("extracting download for %s %s: %w", plugin.Name, fullVersion, err)
		}
	}

	if err := os.MkdirAll(installPath, 0o755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}

	if err := plugin.Install(ctx, env); err != nil {
		_ = os.RemoveAll(installPath)
		return fmt.Errorf("installing %s %s: %w", plugin.Name, fullVersion, err)
	}

	alwaysKeep := conf.AlwaysKeepDownload()
	if !opts.KeepDownload && !alwaysKeep && hasDownload {
		if _, err := os.Stat(downloadPath); err == nil {
			_ = os.RemoveAll(downloadPath)
		}
	}

	if err := shimgen.ReshimVersion(ctx, conf, plugin, fullVersion); err != nil {
		return fmt.Errorf("reshimming %s %s: %w", plugin.Name, fullVersion, err)
	}

	return hooks.Run(ctx, conf, hooks.InstallHookName("post", plugin.Name), []string{fullVersion}, map[string]string{
		"always_keep_download": yesNo(alwaysKeep),
		"install_exit_code":    "0",
		"download_exit_code":   "0",
		"concurrency":          fmt.Sprint(env.Concurrency),
		"download_path":        downloadPath,
		"install_path":         installPath,
		"version":              literalVersion,
		"full_version":         fullVersion,
		"install_type":         installType,
		"keep_download":        keepDownloadFlag(opts.KeepDownload),
		"plugin_path":          plugin.Dir,
		"flags":                keepDownloadFlagArg(opts.KeepDownload),
		"plugin_name":          plugin.Name,
	})
}

// InstallAllLocal installs every declared specifier for every installed
// plugin with a resolvable version in dir's nearest .tool-versions (or
// resolution chain). Unresolved tools are skipped. A failing install does not
// stop the run: every tool is attempted, and the returned error joins every
// failure with a newline.
func InstallAllLocal(ctx context.Context, conf config.Config, dir string, opts Options) error {
	names, err := plugins.ListInstalled()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("install plugins first to be able to install tools")
	}

	someInstalled := false
	var failures []string

	for _, name := range names {
		plugin, err := plugins.Load(name)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}

		resolved, found, err := resolve.Version(ctx, conf, plugin, dir)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		if !found {
			continue
		}

		someInstalled = true
		for _, spec := range resolved.Specifiers {
			if err := Install(ctx, conf, plugin, spec.String(), opts); err != nil {
				failures = append(failures, fmt.Sprintf("%s %s: %s", name, spec.String(), err))
			}
		}
	}

	if !someInstalled {
		return errors.New("either specify a tool & version in the command\nor add .tool-versions file in this directory\nor in a parent directory")
	}
	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "\n"))
	}
	return nil
}

// assistArchiveExtraction extracts a lone ".tar.xz" file left in
// downloadPath by a plugin's download callback, so plugins that only fetch
// an archive (rather than unpack it themselves) still hand install a ready
// source tree. A download directory with zero or more-than-one archives is
// left untouched; the plugin's install step is assumed to know what to do
// with it.
func assistArchiveExtraction(downloadPath string) error {
	entries, err := os.ReadDir(downloadPath)
	if err != nil {
		return nil
	}

	var archive string
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tar.xz") {
			continue
		}
		archive = filepath.Join(downloadPath, e.Name())
		count++
	}
	if count != 1 {
		return nil
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	xzReader, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading xz stream: %w", err)
	}
	tarReader := tar.NewReader(xzReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target := filepath.Join(downloadPath, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tarReader); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}

	return os.Remove(archive)
}

func resolveLatest(ctx context.Context, plugin plugins.Plugin, query string) (string, error) {
	if version, err := plugin.LatestStable(ctx, query); err == nil {
		if version == "" {
			return "", fmt.Errorf("no compatible versions available (%s %s)", plugin.Name, query)
		}
		return version, nil
	} else if !errors.Is(err, plugins.ErrCallbackUnsupported) {
		return "", err
	}

	all, err := plugin.ListAll(ctx)
	if err != nil {
		return "", err
	}
	stable := toolversions.FilterStable(all, query)
	if len(stable) == 0 {
		return "", fmt.Errorf("no compatible versions available (%s %s)", plugin.Name, query)
	}
	return toolversions.BestStable(stable), nil
}

// installWithCancellation arranges for a SIGINT during the returned
// function's lifetime to best-effort delete installPath before the process
// proceeds to re-raise. Call the returned function to stop watching.
func installWithCancellation(ctx context.Context, installPath string) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			_ = os.RemoveAll(installPath)
			signal.Stop(sigCh)
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGINT)
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

func keepDownloadFlag(keep bool) string {
	if keep {
		return "true"
	}
	return ""
}

func keepDownloadFlagArg(keep bool) string {
	if keep {
		return "--keep-download"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
