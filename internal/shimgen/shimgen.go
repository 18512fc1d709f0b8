// Package shimgen creates, updates, and reaps the per-executable shim
// scripts under <data_dir>/shims. Each shim carries one or more
// "# asdf-plugin: <tool> <version>" metadata lines; that metadata is the
// only authoritative record of which versions a shim covers, so
// regeneration always starts from the currently installed executables.
package shimgen

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/hooks"
	"github.com/jonathanmorley/asdf/internal/installs"
	"github.com/jonathanmorley/asdf/internal/paths"
	"github.com/jonathanmorley/asdf/internal/plugins"
	"github.com/jonathanmorley/asdf/internal/toolversions"
)

const metadataPrefix = "# asdf-plugin: "

// ReshimAll regenerates shims for every installed version of plugin,
// reaping obsolete entries after each version.
func ReshimAll(ctx context.Context, conf config.Config, plugin plugins.Plugin) error {
	versions, err := installs.Installed(plugin.Name)
	if err != nil {
		return err
	}

	for _, fullVersion := range versions {
		if err := hooks.Run(ctx, conf, hooks.ReshimHookName("pre", plugin.Name), []string{fullVersion}, map[string]string{
			"plugin_name":  plugin.Name,
			"full_version": fullVersion,
		}); err != nil {
			return err
		}

		if err := generateForVersion(ctx, plugin, fullVersion); err != nil {
			return err
		}
		if err := removeObsoleteShims(ctx, plugin, fullVersion); err != nil {
			return err
		}

		if err := hooks.Run(ctx, conf, hooks.ReshimHookName("post", plugin.Name), []string{fullVersion}, map[string]string{
			"plugin_name":  plugin.Name,
			"full_version": fullVersion,
		}); err != nil {
			return err
		}
	}

	return nil
}

// ReshimVersion regenerates shims for exactly one already-installed version,
// firing pre/post reshim hooks but not reaping (reaping only happens in the
// "all versions" form, where the full set of live executables is known).
func ReshimVersion(ctx context.Context, conf config.Config, plugin plugins.Plugin, fullVersion string) error {
	if err := hooks.Run(ctx, conf, hooks.ReshimHookName("pre", plugin.Name), []string{fullVersion}, map[string]string{
		"plugin_name":  plugin.Name,
		"full_version": fullVersion,
	}); err != nil {
		return err
	}

	if err := generateForVersion(ctx, plugin, fullVersion); err != nil {
		return err
	}

	return hooks.Run(ctx, conf, hooks.ReshimHookName("post", plugin.Name), []string{fullVersion}, map[string]string{
		"plugin_name":  plugin.Name,
		"full_version": fullVersion,
	})
}

// executablePaths returns every executable entry across the plugin's own
// shims directory override and its list-bin-paths directories for
// fullVersion.
func executablePaths(ctx context.Context, plugin plugins.Plugin, fullVersion string) ([]string, error) {
	spec, err := toolversions.ParseSpecifier(fullVersion)
	if err != nil {
		return nil, err
	}

	literalVersion := fullVersion
	if spec.Kind == toolversions.Ref {
		literalVersion = spec.Value
	}

	installPath, err := installs.InstallPath(plugin.Name, spec, literalVersion)
	if err != nil {
		return nil, err
	}

	env := plugins.InstallEnv{
		InstallType: spec.InstallType(),
		Version:     literalVersion,
		InstallPath: installPath,
	}

	binPaths, err := plugin.ListBinPaths(ctx, env)
	if err != nil {
		return nil, err
	}

	var dirs []string
	if shimsDir, ok := plugin.ShimsDir(); ok {
		dirs = append(dirs, shimsDir)
	}
	for _, bp := range binPaths {
		dirs = append(dirs, filepath.Join(installPath, bp))
	}

	var executables []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // directory may legitimately not exist
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			full := filepath.Join(dir, e.Name())
			if isExecutable(full) {
				executables = append(executables, full)
			}
		}
	}
	return executables, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func generateForVersion(ctx context.Context, plugin plugins.Plugin, fullVersion string) error {
	executables, err := executablePaths(ctx, plugin, fullVersion)
	if err != nil {
		return err
	}

	shimsDir, err := paths.ShimsDir()
	if err != nil {
		return err
	}

	for _, exe := range executables {
		if err := writeShim(shimsDir, plugin.Name, fullVersion, exe); err != nil {
			return err
		}
	}
	return nil
}

func writeShim(shimsDir, tool, fullVersion, executablePath string) error {
	name := filepath.Base(executablePath)
	shimPath := filepath.Join(shimsDir, name)
	metadataLine := metadataPrefix + tool + " " + fullVersion

	existing, err := os.ReadFile(shimPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading shim %s: %w", shimPath, err)
	}

	var contents string
	if len(existing) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating asdf binary: %w", err)
		}
		contents = fmt.Sprintf("#!/usr/bin/env bash\n%s\nexec %s exec %q \"$@\"\n", metadataLine, exe, name)
	} else {
		lines := strings.Split(string(existing), "\n")
		if containsLine(lines, metadataLine) {
			contents = string(existing)
		} else {
			contents = insertMetadataBeforeExec(lines, metadataLine)
		}
	}

	if err := os.WriteFile(shimPath, []byte(contents), 0o755); err != nil {
		return fmt.Errorf("writing shim %s: %w", shimPath, err)
	}
	return unix.Chmod(shimPath, 0o755)
}

// insertMetadataBeforeExec prepends a new metadata line immediately above
// the exec line, preserving every other line (including other metadata
// lines) in place.
func insertMetadataBeforeExec(lines []string, metadataLine string) string {
	out := make([]string, 0, len(lines)+1)
	inserted := false
	for _, line := range lines {
		if !inserted && strings.HasPrefix(line, "exec ") {
			out = append(out, metadataLine)
			inserted = true
		}
		out = append(out, line)
	}
	if !inserted {
		out = append(out, metadataLine)
	}
	return strings.Join(out, "\n")
}

func containsLine(lines []string, target string) bool {
	for _, l := range lines {
		if l == target {
			return true
		}
	}
	return false
}

func removeObsoleteShims(ctx context.Context, plugin plugins.Plugin, fullVersion string) error {
	shimsDir, err := paths.ShimsDir()
	if err != nil {
		return err
	}

	liveExecs, err := executablePaths(ctx, plugin, fullVersion)
	if err != nil {
		return err
	}
	liveNames := map[string]bool{}
	for _, e := range liveExecs {
		liveNames[filepath.Base(e)] = true
	}

	shimmedNames, err := shimsClaiming(shimsDir, plugin.Name, fullVersion)
	if err != nil {
		return err
	}

	installedCount, err := installedVersionCount(plugin.Name)
	if err != nil {
		return err
	}

	for name := range shimmedNames {
		if liveNames[name] {
			continue
		}
		if err := removeShimMetadata(shimsDir, name, plugin.Name, fullVersion, installedCount); err != nil {
			return err
		}
	}
	return nil
}

// shimsClaiming returns the set of shim basenames whose file currently
// contains the metadata line for (tool, fullVersion).
func shimsClaiming(shimsDir, tool, fullVersion string) (map[string]bool, error) {
	entries, err := os.ReadDir(shimsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	target := metadataPrefix + tool + " " + fullVersion
	claiming := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(shimsDir, e.Name())
		if fileContainsLine(path, target) {
			claiming[e.Name()] = true
		}
	}
	return claiming, nil
}

func fileContainsLine(path, target string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() == target {
			return true
		}
	}
	return false
}

func installedVersionCount(tool string) (int, error) {
	versions, err := installs.Installed(tool)
	if err != nil {
		return 0, err
	}
	return len(versions), nil
}

// removeShimMetadata removes the single metadata line for (tool,
// fullVersion) from the named shim. If no "# asdf-plugin:" line remains, or
// the tool has zero installed versions, the shim file is deleted entirely.
func removeShimMetadata(shimsDir, shimName, tool, fullVersion string, installedCount int) error {
	shimPath := filepath.Join(shimsDir, shimName)
	contents, err := os.ReadFile(shimPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading shim %s: %w", shimPath, err)
	}

	target := metadataPrefix + tool + " " + fullVersion
	lines := strings.Split(string(contents), "\n")
	kept := make([]string, 0, len(lines))
	anyMetadataLeft := false
	for _, line := range lines {
		if line == target {
			continue
		}
		if strings.HasPrefix(line, metadataPrefix) {
			anyMetadataLeft = true
		}
		kept = append(kept, line)
	}

	if !anyMetadataLeft || installedCount == 0 {
		return os.Remove(shimPath)
	}

	return os.WriteFile(shimPath, []byte(strings.Join(kept, "\n")), 0o755)
}
