// Package plugins models an installed plugin directory and exposes the
// Gateway that runs its callback scripts (list-all, download, install,
// latest-stable, list-bin-paths, list-legacy-filenames, parse-legacy-file)
// as documented in the plugin environment contract. Plugins themselves are
// managed by an external collaborator; this package only reads the
// directory the collaborator maintains.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/jonathanmorley/asdf/internal/paths"
)

// ErrNoSuchPlugin is returned when a plugin directory does not exist.
var ErrNoSuchPlugin = errors.New("no such plugin")

// ErrNoPluginGiven is returned when an empty plugin name is used.
var ErrNoPluginGiven = errors.New("no plugin given")

// Plugin identifies an installed plugin by name and its on-disk directory.
type Plugin struct {
	Name string
	Dir  string
}

// Load resolves name to its plugin directory and checks that it exists.
func Load(name string) (Plugin, error) {
	if name == "" {
		return Plugin{}, ErrNoPluginGiven
	}

	dir, err := paths.PluginDir(name)
	if err != nil {
		return Plugin{}, err
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Plugin{}, fmt.Errorf("%w: %s", ErrNoSuchPlugin, name)
	}

	return Plugin{Name: name, Dir: dir}, nil
}

// ListInstalled returns the names of every plugin directory under
// <data_dir>/plugins, sorted.
func ListInstalled() ([]string, error) {
	pluginsDir, err := paths.PluginsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing plugins: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// binPath returns the path to <plugin>/bin/<callback>.
func (p Plugin) binPath(callback string) string {
	return filepath.Join(p.Dir, "bin", callback)
}

// HasCallback reports whether the plugin implements the named optional
// callback script.
func (p Plugin) HasCallback(callback string) bool {
	info, err := os.Stat(p.binPath(callback))
	return err == nil && !info.IsDir()
}

// ShimsDir returns <plugin>/shims if the plugin declares one (executables it
// contributes that don't live in a standard bin path).
func (p Plugin) ShimsDir() (string, bool) {
	dir := filepath.Join(p.Dir, "shims")
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}

// SourceRef reports the checked-out git ref of the plugin's source
// checkout, when the plugin directory is a git working tree. Plugin
// management (clone/update) is out of scope; this is a read-only diagnostic
// used by external "plugin info" tooling. Returns ("", false) when the
// directory isn't a git repository.
func (p Plugin) SourceRef() (string, bool) {
	repo, err := git.PlainOpen(p.Dir)
	if err != nil {
		return "", false
	}

	head, err := repo.Head()
	if err != nil {
		return "", false
	}
	return head.Name().Short(), true
}

// DeprecatedLegacyAPI reports whether the plugin still uses the deprecated
// get-version-from-legacy-file callback instead of list-legacy-filenames,
// so external "current" tooling can warn the user to update it.
func (p Plugin) DeprecatedLegacyAPI() bool {
	return p.HasCallback("get-version-from-legacy-file") && !p.HasCallback("list-legacy-filenames")
}
