// Package toolversions implements the version specifier grammar and the
// .tool-versions file format: parsing a single token into a tagged variant,
// stripping comments from a line, and parsing a whole file into an ordered
// tool -> specifiers mapping.
package toolversions

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags the variant held by a Specifier.
type Kind int

const (
	// System selects whatever the OS provides on PATH, minus the shims dir.
	System Kind = iota
	// Literal is a plugin-defined version string, e.g. "3.11.4".
	Literal
	// Ref is a VCS ref; installs live under ref-<ref>.
	Ref
	// Path points at an existing directory of binaries; no install.
	Path
	// Latest resolves to a literal via the plugin's latest-stable callback.
	Latest
)

// ErrEmptySpecifier is returned when parsing an empty string.
var ErrEmptySpecifier = errors.New("cannot parse empty string as a tool version")

// Specifier is the parsed, tagged form of a single version token.
type Specifier struct {
	Kind  Kind
	Value string // the ref, path, literal version, or latest query (may be empty for Latest/System)
}

// ParseSpecifier parses a single token per the grammar in order: "system",
// "ref:...", "path:..." (remainder may contain spaces), "latest"/"latest:Q",
// otherwise a literal. Empty input fails.
func ParseSpecifier(s string) (Specifier, error) {
	if s == "" {
		return Specifier{}, ErrEmptySpecifier
	}

	switch {
	case s == "system":
		return Specifier{Kind: System}, nil
	case strings.HasPrefix(s, "ref:"):
		return Specifier{Kind: Ref, Value: s[len("ref:"):]}, nil
	case strings.HasPrefix(s, "path:"):
		return Specifier{Kind: Path, Value: s[len("path:"):]}, nil
	case s == "latest":
		return Specifier{Kind: Latest}, nil
	case strings.HasPrefix(s, "latest:"):
		return Specifier{Kind: Latest, Value: s[len("latest:"):]}, nil
	default:
		return Specifier{Kind: Literal, Value: s}, nil
	}
}

// String renders a Specifier back to its canonical token form, the inverse
// of ParseSpecifier.
func (s Specifier) String() string {
	switch s.Kind {
	case System:
		return "system"
	case Ref:
		return "ref:" + s.Value
	case Path:
		return "path:" + s.Value
	case Latest:
		if s.Value == "" {
			return "latest"
		}
		return "latest:" + s.Value
	default:
		return s.Value
	}
}

// InstallType returns the install_type exported to plugin scripts for this
// specifier kind: "version", "ref", or "path". System and unresolved Latest
// specifiers have no install type of their own.
func (s Specifier) InstallType() string {
	switch s.Kind {
	case Ref:
		return "ref"
	case Path:
		return "path"
	default:
		return "version"
	}
}

// StripComment removes everything from the first "#" onward (the
// pound sign and any whitespace immediately preceding it), returning ("",
// false) if nothing but a comment remains.
func StripComment(line string) (string, bool) {
	var uncommented string
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		uncommented = strings.TrimRight(line[:idx], " \t")
	} else {
		uncommented = strings.TrimRight(line, " \t\r\n")
	}

	if uncommented == "" {
		return "", false
	}
	return uncommented, true
}

// ParseLine splits a single, already-uncommented .tool-versions line into
// its tool name and specifier tokens. rest is whitespace-split into tokens
// unless it begins with "path:", in which case the whole remainder is one
// token (so paths containing spaces survive).
func ParseLine(line string) (tool string, specifiers []Specifier, err error) {
	tool, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", nil, fmt.Errorf("cannot parse .tool-versions line: %q", line)
	}
	rest = strings.TrimLeft(rest, " \t")

	var tokens []string
	if strings.HasPrefix(rest, "path:") {
		tokens = []string{rest}
	} else {
		tokens = strings.Fields(rest)
	}

	specifiers = make([]Specifier, 0, len(tokens))
	for _, tok := range tokens {
		spec, err := ParseSpecifier(tok)
		if err != nil {
			return "", nil, fmt.Errorf("parsing %q for tool %s: %w", tok, tool, err)
		}
		specifiers = append(specifiers, spec)
	}
	return tool, specifiers, nil
}
