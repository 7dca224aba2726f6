// Package collect runs the two build phases: parallel region extraction
// into a registry, then parallel expansion of documents against it.
package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/livedoc/internal/cache"
	"github.com/phobologic/livedoc/internal/discover"
	"github.com/phobologic/livedoc/internal/expand"
	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/parse"
	"github.com/phobologic/livedoc/internal/region"
	"github.com/phobologic/livedoc/internal/registry"
)

// DefaultMaxFileSize is the largest source file read when Options leaves
// MaxFileSize unset.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// ErrNoSources is returned when no repo root could be listed.
var ErrNoSources = errors.New("no readable repo roots")

// Options tunes a collection run.
type Options struct {
	Jobs        int         // <= 0 uses GOMAXPROCS
	Cache       *cache.Disk // nil disables caching
	MaxFileSize int64       // <= 0 uses DefaultMaxFileSize

	// DocExtensions are prose extensions; such files are never reported as
	// unmapped sources even when they mention a marker.
	DocExtensions []string
}

func (o Options) jobs(n int) int {
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, n))
}

// Collection is the result of phase one.
type Collection struct {
	Registry    *registry.Registry
	Diagnostics []model.Diagnostic
	Files       int // Source files scanned
}

type sourceFile struct {
	repo  model.Repo
	entry discover.FileEntry
}

type fileResult struct {
	regions []model.Region
	diags   []model.Diagnostic
}

// Collect extracts regions from every source file of every repo and builds
// the registry. Per-file results are merged in discovery order, so the
// outcome does not depend on scheduling.
func Collect(ctx context.Context, repos []model.Repo, table lang.Table, opts Options) (*Collection, error) {
	var (
		files []sourceFile
		diags []model.Diagnostic
		roots int
	)
	for _, repo := range repos {
		entries, err := discover.Sources(repo.Root)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Kind:   model.ReadFailure,
				File:   repo.Root,
				Detail: fmt.Sprintf("repo %q: %v", repo.ID, err),
			})
			continue
		}
		roots++
		for _, e := range entries {
			files = append(files, sourceFile{repo: repo, entry: e})
		}
	}
	if roots == 0 && len(repos) > 0 {
		return &Collection{Registry: registry.Build(nil), Diagnostics: diags}, ErrNoSources
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	docExts := make(map[string]bool, len(opts.DocExtensions))
	for _, ext := range opts.DocExtensions {
		docExts[lang.NormalizeExt(ext)] = true
	}

	symbolizers := sync.Pool{New: func() any { return parse.NewSymbolizer() }}
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs(len(files)))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if docExts[lang.NormalizeExt(filepath.Ext(f.entry.Path))] {
				if _, mapped := table.ForPath(f.entry.Path); !mapped {
					return nil
				}
			}
			sym := symbolizers.Get().(*parse.Symbolizer)
			defer symbolizers.Put(sym)
			results[i] = extractFile(f, table, opts.Cache, maxSize, sym)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var regions []model.Region
	for _, r := range results {
		regions = append(regions, r.regions...)
		diags = append(diags, r.diags...)
	}
	reg := registry.Build(regions)
	diags = append(diags, reg.Diagnostics()...)

	return &Collection{Registry: reg, Diagnostics: diags, Files: len(files)}, nil
}

func extractFile(f sourceFile, table lang.Table, c *cache.Disk, maxSize int64, sym *parse.Symbolizer) fileResult {
	rel := f.entry.Path
	marker, mapped := table.ForPath(rel)

	info, err := os.Stat(f.entry.Abs)
	if err != nil {
		return readFailure(rel, err)
	}
	if info.Size() > maxSize {
		// Oversized files only matter when they could hold regions.
		if !mapped {
			return fileResult{}
		}
		return fileResult{diags: []model.Diagnostic{{
			Kind:   model.ReadFailure,
			File:   rel,
			Detail: fmt.Sprintf("skipped (>%d bytes)", maxSize),
		}}}
	}

	src, err := os.ReadFile(f.entry.Abs)
	if err != nil {
		return readFailure(rel, err)
	}

	if !mapped {
		if !region.HasMarker(src) {
			return fileResult{}
		}
		return fileResult{diags: []model.Diagnostic{{
			Kind:   model.UnmappedExtension,
			File:   rel,
			Detail: fmt.Sprintf("no comment prefix configured for %q files", filepath.Ext(rel)),
		}}}
	}

	key := cache.KeyFor(rel, marker.Language, marker.Prefix, src)
	if e, ok, err := c.Get(key); err == nil && ok {
		return fileResult{regions: withRepo(e.Regions, f.repo.ID), diags: e.Diagnostics}
	}

	regions, diags := region.Extract(rel, src, marker.Prefix)
	for i := range regions {
		regions[i].Language = marker.Language
		regions[i].Symbols = sym.Symbols(marker.Language, regions[i].Code)
	}
	// A failed write only costs a future miss.
	_ = c.Put(key, regions, diags)

	return fileResult{regions: withRepo(regions, f.repo.ID), diags: diags}
}

func withRepo(regions []model.Region, repoID string) []model.Region {
	for i := range regions {
		regions[i].RepoID = repoID
	}
	return regions
}

func readFailure(rel string, err error) fileResult {
	return fileResult{diags: []model.Diagnostic{{
		Kind:   model.ReadFailure,
		File:   rel,
		Detail: err.Error(),
	}}}
}

// Document is a prose file to expand.
type Document struct {
	Repo model.Repo
	Rel  string // Slash-separated, relative to Repo.Root
	Abs  string
}

// Documents lists the prose documents of every repo, in repo then path order.
// A repo whose documents cannot be listed is reported and skipped.
func Documents(repos []model.Repo, exts []string) ([]Document, []model.Diagnostic) {
	var (
		docs  []Document
		diags []model.Diagnostic
	)
	for _, repo := range repos {
		entries, err := discover.Documents(repo.Root, repo.Docs, exts)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Kind:   model.ReadFailure,
				File:   repo.Root,
				Detail: fmt.Sprintf("repo %q documents: %v", repo.ID, err),
			})
			continue
		}
		for _, e := range entries {
			docs = append(docs, Document{Repo: repo, Rel: e.Path, Abs: e.Abs})
		}
	}
	return docs, diags
}

// ExpandAll expands docs in parallel. Results are returned in docs order;
// a document that cannot be read yields a result with a ReadFailure
// diagnostic and no text.
func ExpandAll(ctx context.Context, e *expand.Expander, docs []Document, jobs int) ([]expand.Result, error) {
	results := make([]expand.Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Options{Jobs: jobs}.jobs(len(docs)))
	for i, d := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(d.Abs)
			if err != nil {
				results[i] = expand.Result{
					DocumentPath: d.Abs,
					Diagnostics: []model.Diagnostic{{
						Kind:   model.ReadFailure,
						File:   d.Abs,
						Detail: err.Error(),
					}},
				}
				return nil
			}
			results[i] = e.Expand(d.Abs, string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
