// Package shimexec implements the runtime dispatch a generated shim
// invokes: given the original executable basename and argv, it resolves a
// concrete plugin + version + binary via the Resolver and the Plugin
// Gateway, then execs the real binary with the plugin's install
// environment.
package shimexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/installs"
	"github.com/jonathanmorley/asdf/internal/paths"
	"github.com/jonathanmorley/asdf/internal/plugins"
	"github.com/jonathanmorley/asdf/internal/resolve"
	"github.com/jonathanmorley/asdf/internal/toolversions"
)

const metadataPrefix = "# asdf-plugin: "

// ErrUnknownShim is returned when no shim file exists for the requested
// name. Exit code 126, per the error taxonomy.
var ErrUnknownShim = errors.New("unknown command, reshim?")

// ErrNoVersionSet is returned when a shim's claiming plugins all failed to
// resolve a usable version. Exit code 126.
var ErrNoVersionSet = errors.New("no version set")

// claim is one "<tool> <version>" metadata line parsed from a shim.
type claim struct {
	tool    string
	version string
}

// Dispatch resolves name (the shim's basename) in cwd and execs the real
// binary with args, replacing the current process's stdio. It never returns
// on success; on failure it returns an error and the caller should exit
// non-zero (126 for ErrUnknownShim/ErrNoVersionSet).
func Dispatch(ctx context.Context, conf config.Config, cwd, name string, args []string) error {
	shimsDir, err := paths.ShimsDir()
	if err != nil {
		return err
	}

	shimPath := filepath.Join(shimsDir, name)
	claims, err := readClaims(shimPath)
	if err != nil {
		return err
	}

	plugin, version, err := selectVersion(ctx, conf, cwd, claims)
	if err != nil {
		return err
	}
	if plugin == "" {
		return guidance(claims)
	}

	if version == "system" {
		return execSystem(name, args)
	}

	return execInstalled(ctx, plugin, version, name, args)
}

// readClaims parses a shim's "# asdf-plugin: <tool> <version>" lines,
// returning ErrUnknownShim if the file doesn't exist.
func readClaims(shimPath string) ([]claim, error) {
	f, err := os.Open(shimPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUnknownShim
		}
		return nil, err
	}
	defer f.Close()

	var claims []claim
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, metadataPrefix) {
			continue
		}
		rest := strings.TrimPrefix(line, metadataPrefix)
		tool, version, ok := strings.Cut(rest, " ")
		if !ok {
			continue
		}
		claims = append(claims, claim{tool: tool, version: version})
	}
	return claims, scanner.Err()
}

// selectVersion walks the shim's claiming plugins in metadata order,
// resolving each in cwd and accepting the first resolved version that is
// either one of the versions that plugin declared in the shim, or a "path:"
// specifier. When that finds nothing, it calls selectFromPreset.
func selectVersion(ctx context.Context, conf config.Config, cwd string, claims []claim) (tool, version string, err error) {
	seen := map[string]bool{}
	var orderedTools []string
	byTool := map[string][]string{}
	for _, c := range claims {
		if !seen[c.tool] {
			seen[c.tool] = true
			orderedTools = append(orderedTools, c.tool)
		}
		byTool[c.tool] = append(byTool[c.tool], c.version)
	}

	for _, t := range orderedTools {
		plugin, loadErr := plugins.Load(t)
		if loadErr != nil {
			continue
		}

		resolved, found, resolveErr := resolve.Version(ctx, conf, plugin, cwd)
		if resolveErr != nil {
			return "", "", resolveErr
		}
		if !found {
			continue
		}

		for _, spec := range resolved.Specifiers {
			v := spec.String()
			if spec.Kind == toolversions.Path || containsString(byTool[t], v) {
				return t, v, nil
			}
		}
	}

	return selectFromPreset(ctx, conf, cwd, orderedTools, byTool)
}

// selectFromPreset resolves each claiming plugin in cwd again and returns the
// first resolved specifier that equals one of the versions that plugin
// declared in the shim. It uses the same resolver as selectVersion, so it
// finds no version that selectVersion's own loop did not already accept, and
// a plugin with no resolver hit yields nothing here either.
func selectFromPreset(ctx context.Context, conf config.Config, cwd string, orderedTools []string, byTool map[string][]string) (string, string, error) {
	for _, t := range orderedTools {
		plugin, err := plugins.Load(t)
		if err != nil {
			continue
		}
		resolved, found, err := resolve.Version(ctx, conf, plugin, cwd)
		if err != nil {
			return "", "", err
		}
		if !found {
			continue
		}
		for _, spec := range resolved.Specifiers {
			for _, declared := range byTool[t] {
				if spec.String() == declared {
					return t, declared, nil
				}
			}
		}
	}
	return "", "", nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// guidance formats the "no version set" failure with install suggestions
// for every plugin that claims the shim.
func guidance(claims []claim) error {
	if len(claims) == 0 {
		return ErrUnknownShim
	}

	suggestions := make([]string, 0, len(claims))
	for _, c := range claims {
		suggestions = append(suggestions, fmt.Sprintf("  asdf install %s %s", c.tool, c.version))
	}
	return fmt.Errorf("%w\n%s", ErrNoVersionSet, strings.Join(suggestions, "\n"))
}

// execSystem locates name on PATH with the shims directory filtered out and
// execs it.
func execSystem(name string, args []string) error {
	shimsDir, err := paths.ShimsDir()
	if err != nil {
		return err
	}

	filtered := filterPath(os.Getenv("PATH"), shimsDir)
	path, err := lookupInDirs(name, filtered)
	if err != nil {
		return fmt.Errorf("cannot find binary path: %w", err)
	}

	return execBinary(path, name, args, os.Environ())
}

func filterPath(path, exclude string) string {
	parts := strings.Split(path, string(os.PathListSeparator))
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != exclude {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, string(os.PathListSeparator))
}

func lookupInDirs(name, pathList string) (string, error) {
	for _, dir := range strings.Split(pathList, string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found on PATH", name)
}

// execInstalled locates name under tool/version's bin paths and execs it
// with the plugin install environment.
func execInstalled(ctx context.Context, tool, fullVersion, name string, args []string) error {
	plugin, err := plugins.Load(tool)
	if err != nil {
		return err
	}

	spec, err := toolversions.ParseSpecifier(fullVersion)
	if err != nil {
		return err
	}

	literalVersion := fullVersion
	if spec.Kind == toolversions.Ref {
		literalVersion = spec.Value
	}

	installPath, err := installs.InstallPath(tool, spec, literalVersion)
	if err != nil {
		return err
	}
	if spec.Kind != toolversions.Path && !installs.IsInstalled(installPath) {
		return fmt.Errorf("version %s is not installed for %s", fullVersion, tool)
	}

	env := plugins.InstallEnv{
		InstallType: spec.InstallType(),
		Version:     literalVersion,
		InstallPath: installPath,
	}

	binPaths, err := plugin.ListBinPaths(ctx, env)
	if err != nil {
		return err
	}

	for _, bp := range binPaths {
		candidate := filepath.Join(installPath, bp, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return execBinary(candidate, name, args, installEnviron(env))
		}
	}

	return fmt.Errorf("cannot find binary path for %s in %s %s", name, tool, fullVersion)
}

func installEnviron(env plugins.InstallEnv) []string {
	out := append(os.Environ(),
		"ASDF_INSTALL_TYPE="+env.InstallType,
		"ASDF_INSTALL_VERSION="+env.Version,
		"ASDF_INSTALL_PATH="+env.InstallPath,
	)
	return out
}

// execBinary replaces the current process image via execve, so the
// dispatcher's own exit code becomes the child's.
var execBinary = func(path, argv0 string, args []string, env []string) error {
	argv := append([]string{argv0}, args...)
	return syscall.Exec(path, argv, env)
}
