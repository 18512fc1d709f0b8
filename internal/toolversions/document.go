package toolversions

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Document is an ordered mapping tool -> specifiers, preserving the order
// tools were first declared. Later duplicate lines for the same tool
// override earlier ones (last wins), per the file format.
type Document struct {
	order  []string
	byTool map[string][]Specifier
}

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{byTool: map[string][]Specifier{}}
}

// Tools returns the declared tool names in insertion order.
func (d *Document) Tools() []string {
	return append([]string(nil), d.order...)
}

// Versions returns the specifiers declared for tool, and whether it was
// declared at all.
func (d *Document) Versions(tool string) ([]Specifier, bool) {
	v, ok := d.byTool[tool]
	return v, ok
}

// set records specifiers for tool, overriding any prior entry for the same
// tool but preserving its original position in Tools().
func (d *Document) set(tool string, specs []Specifier) {
	if _, exists := d.byTool[tool]; !exists {
		d.order = append(d.order, tool)
	}
	d.byTool[tool] = specs
}

// ParseDocument parses the contents of a .tool-versions file.
func ParseDocument(contents string) (*Document, error) {
	doc := NewDocument()

	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		raw := scanner.Text()
		stripped, ok := StripComment(raw)
		if !ok {
			continue
		}

		tool, specs, err := ParseLine(stripped)
		if err != nil {
			return nil, err
		}
		doc.set(tool, specs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading .tool-versions: %w", err)
	}

	return doc, nil
}

// ParseDocumentFile reads and parses a .tool-versions file at path.
func ParseDocumentFile(path string) (*Document, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDocument(string(contents))
}

// FindToolVersions parses the .tool-versions file at path and returns the
// specifiers declared for tool, if any.
func FindToolVersions(path string, tool string) ([]Specifier, bool, error) {
	doc, err := ParseDocumentFile(path)
	if err != nil {
		return nil, false, err
	}
	specs, ok := doc.Versions(tool)
	return specs, ok, nil
}
