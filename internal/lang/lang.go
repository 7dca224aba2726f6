// Package lang provides the comment-marker table mapping file extensions to
// line-comment prefixes, and the tree-sitter grammars used to list the
// definitions inside a region.
package lang

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language holds the comment style and optional tree-sitter configuration
// for a supported language.
type Language struct {
	Name          string
	Extensions    []string
	CommentPrefix string
	lang          *sitter.Language

	// Definitions maps node types that introduce a definition to the field
	// holding the definition's name. Empty when lang is nil.
	Definitions map[string]string

	// Container returns the enclosing type name for a definition node
	// (Go receiver, Python/Ruby class). Returns "" if not applicable.
	Container func(node *sitter.Node, source []byte) string
}

// GetLanguage returns the tree-sitter Language pointer, or nil when the
// language is only known by its comment style.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// HasGrammar reports whether definitions can be parsed for this language.
func (l *Language) HasGrammar() bool {
	return l.lang != nil
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// Marker is the comment style used to find region markers in a file.
type Marker struct {
	Language string
	Prefix   string
}

// Table maps file extensions (with the leading dot) to comment markers.
// It is a plain value: callers build one per run and may extend it freely.
type Table map[string]Marker

var (
	defaultTable     Table
	defaultTableOnce sync.Once
)

// DefaultTable returns a fresh copy of the built-in extension table.
// The built-in table is assembled lazily after all init() functions have run.
func DefaultTable() Table {
	defaultTableOnce.Do(func() {
		defaultTable = make(Table)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				defaultTable[ext] = Marker{Language: l.Name, Prefix: l.CommentPrefix}
			}
		}
	})
	t := make(Table, len(defaultTable))
	for ext, m := range defaultTable {
		t[ext] = m
	}
	return t
}

// With returns a copy of t extended with extension → prefix overrides.
// An override for an extension the table already knows keeps its language
// name; unknown extensions are named after the extension itself.
func (t Table) With(prefixes map[string]string) Table {
	out := make(Table, len(t)+len(prefixes))
	for ext, m := range t {
		out[ext] = m
	}
	for ext, prefix := range prefixes {
		ext = NormalizeExt(ext)
		m, ok := out[ext]
		if !ok {
			m.Language = strings.TrimPrefix(ext, ".")
		}
		m.Prefix = prefix
		out[ext] = m
	}
	return out
}

// Lookup returns the marker for ext, and whether one is configured.
func (t Table) Lookup(ext string) (Marker, bool) {
	m, ok := t[NormalizeExt(ext)]
	if !ok || m.Prefix == "" {
		return Marker{}, false
	}
	return m, true
}

// ForPath returns the marker for the extension of path.
func (t Table) ForPath(path string) (Marker, bool) {
	return t.Lookup(filepath.Ext(path))
}

// Extensions returns the configured extensions in sorted order.
func (t Table) Extensions() []string {
	exts := make([]string, 0, len(t))
	for ext := range t {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NormalizeExt lowercases ext and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ForName returns the language registered under name, or nil.
func ForName(name string) *Language {
	return Languages[name]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// childOfType returns the first direct child of node with the given type.
func childOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == typ {
			return child
		}
	}
	return nil
}
