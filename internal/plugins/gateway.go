package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrCallbackUnsupported is returned by optional callbacks the plugin does
// not implement. Callers treat this as "feature unsupported", not failure.
var ErrCallbackUnsupported = errors.New("plugin callback unsupported")

// CallbackError wraps a non-zero exit from a plugin callback script,
// carrying the tool, callback name, and captured stderr/stdout for
// diagnostics.
type CallbackError struct {
	Tool     string
	Callback string
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("plugin %s callback %q failed: %s\n%s", e.Tool, e.Callback, e.Stderr, e.Stdout)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// InstallEnv is the environment contract exported to install/download/
// list-bin-paths callbacks.
type InstallEnv struct {
	InstallType  string // "version", "ref", or "path"
	Version      string
	InstallPath  string
	DownloadPath string // empty when not applicable
	Concurrency  int    // install only; host CPU count
}

func (e InstallEnv) toOSEnv() []string {
	env := append(os.Environ(),
		"ASDF_INSTALL_TYPE="+e.InstallType,
		"ASDF_INSTALL_VERSION="+e.Version,
		"ASDF_INSTALL_PATH="+e.InstallPath,
	)
	if e.DownloadPath != "" {
		env = append(env, "ASDF_DOWNLOAD_PATH="+e.DownloadPath)
	}
	if e.Concurrency > 0 {
		env = append(env, fmt.Sprintf("ASDF_CONCURRENCY=%d", e.Concurrency))
	}
	return env
}

// Concurrency returns the value exported as ASDF_CONCURRENCY: the host CPU
// count.
func Concurrency() int {
	return runtime.NumCPU()
}

// run executes callback with args and the given environment, capturing
// stdout, trimming all trailing newlines, and decoding as UTF-8. A
// non-zero exit produces a *CallbackError.
func run(ctx context.Context, p Plugin, callback string, args []string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath(callback), args...)
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CallbackError{
			Tool:     p.Name,
			Callback: callback,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

// ListAll runs the mandatory list-all callback, returning space-delimited
// versions split into a slice.
func (p Plugin) ListAll(ctx context.Context) ([]string, error) {
	out, err := run(ctx, p, "list-all", nil, nil)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// LatestStable runs the optional latest-stable callback with query as
// argv[1]. Returns ErrCallbackUnsupported if the plugin has no such script.
func (p Plugin) LatestStable(ctx context.Context, query string) (string, error) {
	if !p.HasCallback("latest-stable") {
		return "", ErrCallbackUnsupported
	}

	var args []string
	if query != "" {
		args = []string{query}
	}
	return run(ctx, p, "latest-stable", args, nil)
}

// Download runs the optional download callback under the install
// environment contract.
func (p Plugin) Download(ctx context.Context, env InstallEnv) error {
	_, err := run(ctx, p, "download", nil, env.toOSEnv())
	return err
}

// Install runs the mandatory install callback under the install environment
// contract.
func (p Plugin) Install(ctx context.Context, env InstallEnv) error {
	_, err := run(ctx, p, "install", nil, env.toOSEnv())
	return err
}

// ListBinPaths runs the optional list-bin-paths callback under the install
// environment contract, defaulting to ["bin"] when the plugin has no such
// script.
func (p Plugin) ListBinPaths(ctx context.Context, env InstallEnv) ([]string, error) {
	if !p.HasCallback("list-bin-paths") {
		return []string{"bin"}, nil
	}

	out, err := run(ctx, p, "list-bin-paths", nil, env.toOSEnv())
	if err != nil {
		return nil, err
	}
	if out == "" {
		return []string{"bin"}, nil
	}
	return strings.Fields(out), nil
}

// ListLegacyFilenames runs the optional list-legacy-filenames callback,
// returning an empty slice (not an error) if unsupported.
func (p Plugin) ListLegacyFilenames(ctx context.Context) ([]string, error) {
	if !p.HasCallback("list-legacy-filenames") {
		return nil, nil
	}

	out, err := run(ctx, p, "list-legacy-filenames", nil, nil)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// ParseLegacyFile runs the optional parse-legacy-file callback with path as
// argv[1], or reads the file verbatim (trimmed) if the plugin has no such
// script.
func (p Plugin) ParseLegacyFile(ctx context.Context, path string) (string, error) {
	if !p.HasCallback("parse-legacy-file") {
		contents, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading legacy version file %s: %w", path, err)
		}
		return strings.TrimSpace(string(contents)), nil
	}

	return run(ctx, p, "parse-legacy-file", []string{path}, nil)
}
