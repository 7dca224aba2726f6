// Package model defines core data structures for livedoc.
package model

import "fmt"

// Visibility controls how much of a repo is exposed in rendered output.
type Visibility string

const (
	Public   Visibility = "public"
	Unlisted Visibility = "unlisted"
	Private  Visibility = "private"
)

// Repo is a watched source tree.
type Repo struct {
	ID         string
	Root       string // Absolute
	Name       string
	Visibility Visibility
	Default    bool
	Docs       []string // Document paths relative to Root; empty means the whole tree
}

// DisplayName returns Name, falling back to ID.
func (r Repo) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Key identifies a region within one registry snapshot.
// Path is only set for references written in explicit form and holds the
// repo-relative source path the region was read from.
type Key struct {
	RepoID string
	Name   string
	Path   string
}

func (k Key) String() string {
	if k.Path != "" {
		return k.Path + "#" + k.Name
	}
	return k.RepoID + "/" + k.Name
}

// Region is a named span of a source file split into leading prose and code.
type Region struct {
	Name       string
	RepoID     string
	SourcePath string // Relative to the repo root
	Language   string
	StartLine  int // Line of the @region marker, 1-based
	EndLine    int // Line of the @endregion marker
	Prose      string
	Code       string
	Symbols    []string
}

// Key returns the region's registry key.
func (r Region) Key() Key {
	return Key{RepoID: r.RepoID, Name: r.Name}
}

// Form is the syntactic form of a written reference.
type Form string

const (
	Bare      Form = "bare"
	Qualified Form = "qualified"
	Explicit  Form = "explicit"
)

// FailureReason explains why a reference did not resolve.
type FailureReason string

const (
	UnknownRepo         FailureReason = "UnknownRepo"
	UnknownTag          FailureReason = "UnknownTag"
	UnresolvedAmbiguous FailureReason = "UnresolvedAmbiguous"
)

// Reference records one directive occurrence in a document.
type Reference struct {
	DocumentPath  string
	WrittenSpec   string
	Form          Form
	ResolvedKey   *Key
	FailureReason FailureReason
}

// Resolved reports whether the reference resolved when it was created.
func (r Reference) Resolved() bool {
	return r.ResolvedKey != nil && r.FailureReason == ""
}

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	MalformedRegion     DiagnosticKind = "MalformedRegion"
	UnmappedExtension   DiagnosticKind = "UnmappedExtension"
	ReadFailure         DiagnosticKind = "ReadFailure"
	UnresolvedDirective DiagnosticKind = "UnresolvedDirective"
	Drifted             DiagnosticKind = "Drifted"
)

// MalformedRegion reasons.
const (
	ReasonNested       = "nested"
	ReasonUnterminated = "unterminated"
	ReasonDuplicate    = "duplicate"
	ReasonUnmatched    = "unmatched"
	ReasonEmpty        = "empty"
	ReasonName         = "name"
)

// Diagnostic is a non-fatal finding surfaced to the caller.
type Diagnostic struct {
	Kind   DiagnosticKind
	File   string
	Line   int // 0 when not tied to a line
	Detail string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Kind, d.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.Kind, d.Detail)
}

// Usage is an edge from a document to a source file it embeds regions from.
type Usage struct {
	Document string
	Source   string // repo-id/relative-path
	Tags     []string
}

// Index is the complete result of one collection run, ready for serialization.
type Index struct {
	Repos        []Repo
	Regions      []Region
	References   []Reference
	Usage        []Usage
	Unreferenced []Region
	Diagnostics  []Diagnostic
}
