// Package installs locates and enumerates installation directories: the
// ground truth for "is (tool, version) installed" is simply whether its
// directory exists.
package installs

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jonathanmorley/asdf/internal/paths"
	"github.com/jonathanmorley/asdf/internal/toolversions"
)

// InstallPath returns the directory a specifier's install lives under (or,
// for Path specifiers, the verbatim path). literalVersion is the resolved
// literal for Latest specifiers (already resolved by the caller); it is
// ignored for Path/System.
func InstallPath(tool string, spec toolversions.Specifier, literalVersion string) (string, error) {
	switch spec.Kind {
	case toolversions.Path:
		return spec.Value, nil
	case toolversions.System:
		return "", fmt.Errorf("system version has no install path")
	}

	dir, err := paths.ToolInstallsDir(tool)
	if err != nil {
		return "", err
	}

	switch spec.Kind {
	case toolversions.Ref:
		return dir + "/ref-" + spec.Value, nil
	default:
		return dir + "/" + literalVersion, nil
	}
}

// DownloadPath returns the download staging directory for a specifier, or
// ("", false) for Path installs which have none.
func DownloadPath(tool string, spec toolversions.Specifier, literalVersion string) (string, bool, error) {
	if spec.Kind == toolversions.Path {
		return "", false, nil
	}

	dir, err := paths.ToolDownloadsDir(tool)
	if err != nil {
		return "", false, err
	}

	switch spec.Kind {
	case toolversions.Ref:
		return dir + "/ref-" + spec.Value, true, nil
	default:
		return dir + "/" + literalVersion, true, nil
	}
}

// IsInstalled reports whether path exists as a directory.
func IsInstalled(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Installed lists the full version names (e.g. "1.2.3", "ref:main") of
// every version currently installed for tool, sorted.
func Installed(tool string) ([]string, error) {
	dir, err := paths.ToolInstallsDir(tool)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing installs for %s: %w", tool, err)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		versions = append(versions, FullVersionName(e.Name()))
	}
	sort.Strings(versions)
	return versions, nil
}

// FullVersionName translates an on-disk install directory name back to its
// displayable full-version form: a leading "ref-" becomes "ref:".
func FullVersionName(dirName string) string {
	if strings.HasPrefix(dirName, "ref-") {
		return "ref:" + dirName[len("ref-"):]
	}
	return dirName
}
