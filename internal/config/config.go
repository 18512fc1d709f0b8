// Package config reads the user's .asdfrc file: whitespace-trimmed
// "key = value" pairs, blank lines and "#" comments ignored, with an upward
// search for a project-local override before falling back to the user rc.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/jonathanmorley/asdf/internal/paths"
)

// ErrKeyMissing is returned by Value when a key has no configured value and
// no documented default.
var ErrKeyMissing = errors.New("config key missing")

// defaults holds the documented fallback values for known keys.
var defaults = map[string]string{
	"legacy_version_file":  "no",
	"always_keep_download": "no",
}

// Config is a parsed .asdfrc file, along with the path it was read from (for
// diagnostics).
type Config struct {
	Path   string
	values map[string]string
}

// Load reads the effective configuration for the given search directory: the
// nearest .asdfrc found by walking upward from dir, or the user rc file
// (ASDF_CONFIG_FILE or ~/.asdfrc) if none is found.
func Load(dir string) (Config, error) {
	if local, ok, err := findUpwards(dir, ".asdfrc"); err != nil {
		return Config{}, err
	} else if ok {
		return readFile(local)
	}

	rcPath, err := paths.ConfigFile()
	if err != nil {
		return Config{}, err
	}
	if _, err := os.Stat(rcPath); err != nil {
		return Config{Path: rcPath, values: map[string]string{}}, nil
	}
	return readFile(rcPath)
}

// Value returns the value for key, falling back to the documented default.
// Returns ErrKeyMissing if the key is absent and has no default.
func (c Config) Value(key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	if v, ok := defaults[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrKeyMissing, key)
}

// LegacyVersionFile reports whether legacy_version_file = yes.
func (c Config) LegacyVersionFile() bool {
	v, _ := c.Value("legacy_version_file")
	return v == "yes"
}

// AlwaysKeepDownload reports whether always_keep_download = yes.
func (c Config) AlwaysKeepDownload() bool {
	v, _ := c.Value("always_keep_download")
	return v == "yes"
}

func readFile(path string) (Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:        true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	values := map[string]string{}
	for _, key := range f.Section(ini.DefaultSection).Keys() {
		values[key.Name()] = key.Value()
	}
	return Config{Path: path, values: values}, nil
}

// findUpwards walks from dir to the filesystem root looking for a file named
// name, returning its path if found.
func findUpwards(dir string, name string) (string, bool, error) {
	search := dir
	for {
		candidate := filepath.Join(search, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}

		parent := filepath.Dir(search)
		if parent == search {
			return "", false, nil
		}
		search = parent
	}
}
