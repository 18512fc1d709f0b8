// Package resolve implements version resolution: given a tool and a working
// directory, it determines the active version specifier(s) by searching
// declared config files, parent directories, environment variables, the
// default-tool-versions fallback, and legacy per-tool version files. This is
// a core feature of asdf as asdf must be able to resolve a tool version in
// any directory if set.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/jonathanmorley/asdf/internal/config"
	"github.com/jonathanmorley/asdf/internal/installs"
	"github.com/jonathanmorley/asdf/internal/paths"
	"github.com/jonathanmorley/asdf/internal/plugins"
	"github.com/jonathanmorley/asdf/internal/toolversions"
)

// Source tags the provenance of a Resolved version.
type Source struct {
	Kind string // "tool-versions-file", "legacy", or "env-var"
	// Path is the file the version came from, for tool-versions-file and
	// legacy sources.
	Path string
	// EnvVar is the environment variable name, for env-var sources.
	EnvVar string
}

func (s Source) String() string {
	if s.Kind == "env-var" {
		return s.EnvVar
	}
	return s.Path
}

// Resolved is the outcome of resolving a tool's version in a directory.
type Resolved struct {
	Tool       string
	Specifiers []toolversions.Specifier
	Source     Source
}

// Version resolves the active specifier(s) for plugin starting from
// directory, short-circuiting on the first hit: env var, then (legacy +
// .tool-versions) while walking upward from directory to the filesystem
// root, then once more at $HOME, then the default-tool-versions-filename
// override.
func Version(ctx context.Context, conf config.Config, plugin plugins.Plugin, directory string) (Resolved, bool, error) {
	if specs, envVar, found, err := findVersionsInEnv(plugin.Name); err != nil {
		return Resolved{}, false, err
	} else if found {
		return Resolved{Tool: plugin.Name, Specifiers: specs, Source: Source{Kind: "env-var", EnvVar: envVar}}, true, nil
	}

	legacyNames, err := legacyFilenames(ctx, conf, plugin)
	if err != nil {
		return Resolved{}, false, err
	}

	for current := directory; ; {
		resolved, found, err := findVersionsInDir(ctx, plugin, current, legacyNames)
		if err != nil {
			return Resolved{}, false, err
		}
		if found {
			return resolved, true, nil
		}

		nextDir := filepath.Dir(current)
		// If current dir and next dir are the same it means we've reached `/`
		// and have no more parent directories to search.
		if nextDir == current {
			break
		}
		current = nextDir
	}

	// If no version found, try the current user's home directory.
	if homeDir, err := homedir.Dir(); err == nil {
		resolved, found, err := findVersionsInDir(ctx, plugin, homeDir, legacyNames)
		if err != nil {
			return Resolved{}, false, err
		}
		if found {
			return resolved, true, nil
		}
	}

	if resolved, found, err := findVersionsInDefaultFile(plugin.Name); err != nil {
		return Resolved{}, false, err
	} else if found {
		return resolved, true, nil
	}

	return Resolved{}, false, nil
}

// FindBestMatchingVersion returns the best matching installed version for a
// plugin based on the versions specified in .tool-versions, relaxed by the
// environment variables ASDF_IGNORE_PATCH, ASDF_IGNORE_MINOR,
// ASDF_IGNORE_VERSION. These let a user ignore .tool-versions constraints.
// If ASDF_IGNORE_VERSION is set, returns the latest installed version of the
// plugin. If ASDF_IGNORE_PATCH is set, returns the latest installed version
// matching the major.minor version. If ASDF_IGNORE_MINOR is set, returns the
// latest installed version matching the major version. Each variable may be
// set to "*" to apply to every plugin.
// Example:
//
//	ASDF_IGNORE_PATCH=* # ignores all patch versions
//	ASDF_IGNORE_MINOR="nodejs golang" # ignores minor/patch versions for nodejs and golang
func FindBestMatchingVersion(plugin plugins.Plugin, declared []string) string {
	available, err := installs.Installed(plugin.Name)
	if err != nil || len(available) == 0 {
		return ""
	}

	ignorePatches := strings.Fields(os.Getenv("ASDF_IGNORE_PATCH"))
	ignoreMinors := strings.Fields(os.Getenv("ASDF_IGNORE_MINOR"))
	ignoreVersions := strings.Fields(os.Getenv("ASDF_IGNORE_VERSION"))

	sort.Sort(sort.Reverse(sort.StringSlice(available)))

	if contains(ignoreVersions, plugin.Name) || contains(ignoreVersions, "*") {
		return available[0]
	}

	if len(ignorePatches) == 0 && len(ignoreMinors) == 0 {
		return ""
	}

	declaredSorted := append([]string(nil), declared...)
	sort.Sort(sort.Reverse(sort.StringSlice(declaredSorted)))

	for _, version := range available {
		if contains(ignorePatches, plugin.Name) || contains(ignorePatches, "*") {
			majorMinor := majorMinorOf(version)
			for _, v := range declaredSorted {
				if strings.HasPrefix(v, majorMinor) {
					return version
				}
			}
		}
		if contains(ignoreMinors, plugin.Name) || contains(ignoreMinors, "*") {
			major := strings.SplitN(version, ".", 2)[0]
			for _, v := range declaredSorted {
				if strings.HasPrefix(v, major) {
					return version
				}
			}
		}
	}
	return ""
}

// findVersionsInDir checks one directory for a .tool-versions declaration of
// the tool, then for each legacy filename in order.
func findVersionsInDir(ctx context.Context, plugin plugins.Plugin, directory string, legacyNames []string) (Resolved, bool, error) {
	toolVersionsPath := filepath.Join(directory, ".tool-versions")
	if _, err := os.Stat(toolVersionsPath); err == nil {
		specs, found, err := toolversions.FindToolVersions(toolVersionsPath, plugin.Name)
		if err != nil {
			return Resolved{}, false, err
		}
		if found {
			return Resolved{
				Tool:       plugin.Name,
				Specifiers: specs,
				Source:     Source{Kind: "tool-versions-file", Path: toolVersionsPath},
			}, true, nil
		}
	}

	return findVersionsInLegacyFile(ctx, plugin, directory, legacyNames)
}

// findVersionsInEnv returns the version from ASDF_<TOOL>_VERSION if present.
func findVersionsInEnv(pluginName string) (specs []toolversions.Specifier, envVar string, found bool, err error) {
	envVar = variableVersionName(pluginName)
	raw, ok := os.LookupEnv(envVar)
	if !ok || raw == "" {
		return nil, envVar, false, nil
	}

	for _, tok := range strings.Fields(raw) {
		spec, parseErr := toolversions.ParseSpecifier(tok)
		if parseErr != nil {
			return nil, envVar, false, fmt.Errorf("parsing %s=%q: %w", envVar, raw, parseErr)
		}
		specs = append(specs, spec)
	}
	return specs, envVar, true, nil
}

// legacyFilenames collects the plugin's list-legacy-filenames output, if
// legacy_version_file is enabled and the plugin supports the callback.
func legacyFilenames(ctx context.Context, conf config.Config, plugin plugins.Plugin) ([]string, error) {
	if !conf.LegacyVersionFile() {
		return nil, nil
	}
	if !plugin.HasCallback("list-legacy-filenames") {
		return nil, nil
	}

	names, err := plugin.ListLegacyFilenames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing legacy filenames for %s: %w", plugin.Name, err)
	}
	return names, nil
}

// findVersionsInLegacyFile looks up a legacy version in directory for each
// candidate filename in order, parsing it via the plugin's
// parse-legacy-file callback (or reading it verbatim if unsupported).
func findVersionsInLegacyFile(ctx context.Context, plugin plugins.Plugin, directory string, legacyNames []string) (Resolved, bool, error) {
	for _, name := range legacyNames {
		legacyPath := filepath.Join(directory, name)
		if _, err := os.Stat(legacyPath); err != nil {
			continue
		}

		version, err := plugin.ParseLegacyFile(ctx, legacyPath)
		if err != nil {
			return Resolved{}, false, err
		}
		version = strings.TrimSpace(version)
		if version == "" {
			continue
		}

		specs, err := parseVersionTokens(version)
		if err != nil {
			return Resolved{}, false, err
		}

		return Resolved{
			Tool:       plugin.Name,
			Specifiers: specs,
			Source:     Source{Kind: "legacy", Path: legacyPath},
		}, true, nil
	}

	return Resolved{}, false, nil
}

// findVersionsInDefaultFile checks ASDF_DEFAULT_TOOL_VERSIONS_FILENAME.
func findVersionsInDefaultFile(tool string) (Resolved, bool, error) {
	filename, err := paths.DefaultToolVersionsFilename()
	if err != nil {
		return Resolved{}, false, err
	}
	if filename == "" {
		return Resolved{}, false, nil
	}
	if info, err := os.Stat(filename); err != nil || info.IsDir() {
		return Resolved{}, false, nil
	}

	specs, found, err := toolversions.FindToolVersions(filename, tool)
	if err != nil {
		return Resolved{}, false, err
	}
	if !found {
		return Resolved{}, false, nil
	}

	return Resolved{
		Tool:       tool,
		Specifiers: specs,
		Source:     Source{Kind: "tool-versions-file", Path: filename},
	}, true, nil
}

func parseVersionTokens(raw string) ([]toolversions.Specifier, error) {
	var specs []toolversions.Specifier
	for _, tok := range strings.Fields(raw) {
		spec, err := toolversions.ParseSpecifier(tok)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func majorMinorOf(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func variableVersionName(toolName string) string {
	return fmt.Sprintf("ASDF_%s_VERSION", strings.ToUpper(toolName))
}
