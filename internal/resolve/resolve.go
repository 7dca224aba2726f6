// Package resolve turns a reference written in a document into exactly one
// region, or a typed failure.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/region"
	"github.com/phobologic/livedoc/internal/registry"
)

const defaultFileCacheSize = 256

// Failure explains why a reference did not resolve.
type Failure struct {
	Reason model.FailureReason
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func fail(reason model.FailureReason, format string, args ...any) *Failure {
	return &Failure{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Spec is a parsed reference.
type Spec struct {
	Raw  string
	Form model.Form
	Repo string // Qualified form only
	Path string // Explicit form only
	Name string
}

// ParseSpec classifies a written reference: anything containing '#' is
// explicit, exactly one '/' is qualified, everything else is bare.
func ParseSpec(raw string) Spec {
	s := Spec{Raw: raw}
	switch {
	case strings.Contains(raw, "#"):
		i := strings.LastIndex(raw, "#")
		s.Form = model.Explicit
		s.Path, s.Name = raw[:i], raw[i+1:]
	case strings.Count(raw, "/") == 1:
		i := strings.Index(raw, "/")
		s.Form = model.Qualified
		s.Repo, s.Name = raw[:i], raw[i+1:]
	default:
		s.Form = model.Bare
		s.Name = raw
	}
	return s
}

// fileResult is a cached explicit-form extraction.
type fileResult struct {
	regions []model.Region
	err     error
}

// Resolver resolves references against one registry snapshot. It is safe
// for concurrent use.
type Resolver struct {
	reg   *registry.Registry
	repos []model.Repo
	table lang.Table
	files *lru.Cache[string, fileResult]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFileCacheSize bounds the number of explicitly referenced files kept
// in memory.
func WithFileCacheSize(n int) Option {
	return func(r *Resolver) {
		if n <= 0 {
			return
		}
		if c, err := lru.New[string, fileResult](n); err == nil {
			r.files = c
		}
	}
}

// New returns a Resolver over reg.
func New(reg *registry.Registry, repos []model.Repo, table lang.Table, opts ...Option) *Resolver {
	files, _ := lru.New[string, fileResult](defaultFileCacheSize)
	r := &Resolver{
		reg:   reg,
		repos: repos,
		table: table,
		files: files,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the snapshot the resolver reads from.
func (r *Resolver) Registry() *registry.Registry {
	return r.reg
}

// Repos returns the configured repos.
func (r *Resolver) Repos() []model.Repo {
	return r.repos
}

// Resolve resolves spec written in the document at documentPath.
func (r *Resolver) Resolve(spec, documentPath string) (model.Region, *Failure) {
	return r.ResolveSpec(ParseSpec(spec), documentPath)
}

// ResolveSpec resolves an already parsed reference.
func (r *Resolver) ResolveSpec(s Spec, documentPath string) (model.Region, *Failure) {
	switch s.Form {
	case model.Explicit:
		return r.resolveExplicit(s, documentPath)
	case model.Qualified:
		return r.resolveQualified(s)
	default:
		return r.resolveBare(s.Name, documentPath)
	}
}

func (r *Resolver) resolveQualified(s Spec) (model.Region, *Failure) {
	if _, ok := r.repo(s.Repo); !ok {
		return model.Region{}, fail(model.UnknownRepo, "no repo with id %q", s.Repo)
	}
	if reg, ok := r.reg.LookupInRepo(s.Repo, s.Name); ok {
		return reg, nil
	}
	return model.Region{}, fail(model.UnknownTag, "no region %q in repo %q", s.Name, s.Repo)
}

// bareStep is one rule of the bare-name precedence chain.
type bareStep struct {
	name string
	fn   func(r *Resolver, name, documentPath string) (model.Region, bool)
}

// bareSteps is the bare-name precedence, first match wins.
var bareSteps = []bareStep{
	{"proximity", (*Resolver).byProximity},
	{"default", (*Resolver).byDefault},
	{"singleton", (*Resolver).bySingleton},
}

func (r *Resolver) resolveBare(name, documentPath string) (model.Region, *Failure) {
	for _, step := range bareSteps {
		if reg, ok := step.fn(r, name, documentPath); ok {
			return reg, nil
		}
	}

	matches := r.reg.LookupGlobal(name)
	if len(matches) >= 2 {
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.RepoID
		}
		return model.Region{}, fail(model.UnresolvedAmbiguous,
			"%q is defined in repos %s; qualify it as <repo>/%s", name, strings.Join(ids, ", "), name)
	}
	return model.Region{}, fail(model.UnknownTag, "no region named %q", name)
}

// byProximity looks the name up in the repo containing the document.
func (r *Resolver) byProximity(name, documentPath string) (model.Region, bool) {
	repo, ok := r.ContainingRepo(documentPath)
	if !ok {
		return model.Region{}, false
	}
	return r.reg.LookupInRepo(repo.ID, name)
}

// byDefault looks the name up in the default repo.
func (r *Resolver) byDefault(name, _ string) (model.Region, bool) {
	for _, repo := range r.repos {
		if repo.Default {
			return r.reg.LookupInRepo(repo.ID, name)
		}
	}
	return model.Region{}, false
}

// bySingleton accepts the name when exactly one repo defines it.
func (r *Resolver) bySingleton(name, _ string) (model.Region, bool) {
	matches := r.reg.LookupGlobal(name)
	if len(matches) != 1 {
		return model.Region{}, false
	}
	return matches[0], true
}

// ContainingRepo returns the repo with the longest root that contains path.
func (r *Resolver) ContainingRepo(path string) (model.Repo, bool) {
	return ContainingRepo(r.repos, path)
}

// ContainingRepo returns the repo with the longest root that contains path.
// Roots match whole path components only: /r/a does not contain /r/ab.
func ContainingRepo(repos []model.Repo, path string) (model.Repo, bool) {
	path = filepath.Clean(path)
	var (
		best  model.Repo
		found bool
	)
	for _, repo := range repos {
		root := filepath.Clean(repo.Root)
		if !Within(root, path) {
			continue
		}
		if !found || len(root) > len(filepath.Clean(best.Root)) {
			best, found = repo, true
		}
	}
	return best, found
}

// Within reports whether path is root or lies beneath it. Both must be clean.
func Within(root, path string) bool {
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}

func (r *Resolver) repo(id string) (model.Repo, bool) {
	for _, repo := range r.repos {
		if repo.ID == id {
			return repo, true
		}
	}
	return model.Repo{}, false
}

// resolveExplicit reads the named file directly, bypassing the registry.
// The path is tried relative to the document first, then relative to the
// root of the repo containing the document.
func (r *Resolver) resolveExplicit(s Spec, documentPath string) (model.Region, *Failure) {
	if s.Path == "" || s.Name == "" {
		return model.Region{}, fail(model.UnknownTag, "malformed explicit reference %q", s.Raw)
	}

	path := filepath.FromSlash(s.Path)
	var candidates []string
	if filepath.IsAbs(path) {
		candidates = append(candidates, filepath.Clean(path))
	} else {
		candidates = append(candidates, filepath.Join(filepath.Dir(documentPath), path))
		if repo, ok := r.ContainingRepo(documentPath); ok {
			candidates = append(candidates, filepath.Join(repo.Root, path))
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		res := r.extractFile(candidate)
		var unmapped errUnmapped
		if errors.As(res.err, &unmapped) {
			return model.Region{}, fail(model.UnknownTag, "%s: %v", s.Path, res.err)
		}
		if res.err != nil {
			lastErr = res.err
			continue
		}
		for _, reg := range res.regions {
			if reg.Name == s.Name {
				return reg, nil
			}
		}
		return model.Region{}, fail(model.UnknownTag, "no region %q in %s", s.Name, s.Path)
	}
	return model.Region{}, fail(model.UnknownTag, "cannot read %s: %v", s.Path, lastErr)
}

// errUnmapped reports a file whose extension has no comment prefix.
type errUnmapped struct{ ext string }

func (e errUnmapped) Error() string {
	return fmt.Sprintf("no comment prefix configured for %q files", e.ext)
}

func (r *Resolver) extractFile(path string) fileResult {
	if res, ok := r.files.Get(path); ok {
		return res
	}

	res := r.readAndExtract(path)
	r.files.Add(path, res)
	return res
}

func (r *Resolver) readAndExtract(path string) fileResult {
	marker, ok := r.table.ForPath(path)
	if !ok {
		if _, err := os.Stat(path); err != nil {
			return fileResult{err: err}
		}
		return fileResult{err: errUnmapped{ext: filepath.Ext(path)}}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fileResult{err: err}
	}

	repoID, rel := "", path
	if repo, ok := r.ContainingRepo(path); ok {
		if p, err := filepath.Rel(repo.Root, path); err == nil {
			repoID, rel = repo.ID, filepath.ToSlash(p)
		}
	}

	regions, _ := region.Extract(rel, src, marker.Prefix)
	for i := range regions {
		regions[i].RepoID = repoID
		regions[i].Language = marker.Language
	}
	return fileResult{regions: regions}
}

// Contains reports whether key still names a region. Keys recorded by
// explicit references are checked against their source file, which may hold
// regions the registry does not index; all others are checked against the
// registry snapshot.
func (r *Resolver) Contains(key model.Key) bool {
	if key.Path == "" {
		return r.reg.Contains(key)
	}
	repo, ok := r.repo(key.RepoID)
	if !ok {
		return false
	}
	res := r.extractFile(filepath.Join(repo.Root, filepath.FromSlash(key.Path)))
	if res.err != nil {
		return false
	}
	for _, reg := range res.regions {
		if reg.Name == key.Name && reg.RepoID == key.RepoID {
			return true
		}
	}
	return false
}

// KeyFor returns the key a reference of the given form records for reg.
// Explicit references remember the file they were read from.
func KeyFor(form model.Form, reg model.Region) model.Key {
	key := reg.Key()
	if form == model.Explicit {
		key.Path = reg.SourcePath
	}
	return key
}
