// livedoc links prose documentation to named regions of source code and
// reports when those links drift.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/livedoc/internal/cache"
	"github.com/phobologic/livedoc/internal/collect"
	"github.com/phobologic/livedoc/internal/config"
	"github.com/phobologic/livedoc/internal/expand"
	"github.com/phobologic/livedoc/internal/graph"
	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/resolve"
)

var version = "dev"

// errFindings is returned when a command ran but found problems that must
// fail the process. The findings have already been reported.
var errFindings = errors.New("findings reported")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	jobs       int
	cacheMode  string
	colorMode  string
	verbose    bool
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "livedoc",
		Short:         "Embed tagged source regions in prose documents",
		Long:          "livedoc expands {@region: name} directives in documents with the matching\n@region blocks from source files, and reports references that no longer resolve.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("livedoc {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to livedoc.toml (default: search upward from the working directory)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "parallel workers (default: config value or number of CPUs)")
	flags.StringVar(&opts.cacheMode, "cache", "auto", "extraction cache: auto|off|clear")
	flags.StringVar(&opts.colorMode, "color", "auto", "colorize output: auto|on|off")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print phase timings and counts")

	root.AddCommand(
		newBuildCmd(opts, stdout, stderr),
		newTagsCmd(opts, stdout, stderr),
		newDriftCmd(opts, stdout, stderr),
		newInitCmd(stdout, stderr),
	)
	return root
}

// session holds what every command needs once configuration is loaded.
type session struct {
	opts  *globalOptions
	cfg   *config.Config
	table lang.Table
	rep   *reporter
	start time.Time
}

func openSession(opts *globalOptions, stderr io.Writer) (*session, error) {
	rep, err := newReporter(stderr, opts.colorMode)
	if err != nil {
		return nil, err
	}

	path := opts.configPath
	if path == "" {
		path, err = config.Find(".")
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				return nil, fmt.Errorf("%w (run `livedoc init` to create one)", err)
			}
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.jobs > 0 {
		cfg.Jobs = opts.jobs
	}
	return &session{opts: opts, cfg: cfg, table: cfg.Table(), rep: rep, start: time.Now()}, nil
}

func (s *session) openCache() (*cache.Disk, error) {
	switch s.opts.cacheMode {
	case "off":
		return nil, nil
	case "auto", "clear":
	default:
		return nil, fmt.Errorf("invalid --cache value %q (want auto, off or clear)", s.opts.cacheMode)
	}
	if s.cfg.CacheDir == "" {
		return nil, nil
	}
	c, err := cache.Open(s.cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if s.opts.cacheMode == "clear" {
		if err := c.Clear(); err != nil {
			return nil, fmt.Errorf("clearing cache: %w", err)
		}
	}
	return c, nil
}

// collectRegions runs phase one.
func (s *session) collectRegions(ctx context.Context) (*collect.Collection, error) {
	c, err := s.openCache()
	if err != nil {
		return nil, err
	}
	col, err := collect.Collect(ctx, s.cfg.Repos, s.table, collect.Options{
		Jobs:          s.cfg.Jobs,
		Cache:         c,
		DocExtensions: s.cfg.DocExtensions,
	})
	if err != nil {
		if col != nil {
			s.rep.diagnostics(s.display(col.Diagnostics))
		}
		return nil, fmt.Errorf("collecting regions: %w", err)
	}
	s.verbosef("collected %d regions from %d files in %s", col.Registry.Len(), col.Files, time.Since(s.start).Round(time.Millisecond))
	return col, nil
}

// expansion is the outcome of both phases.
type expansion struct {
	col         *collect.Collection
	resolver    *resolve.Resolver
	docs        []collect.Document
	results     []expand.Result
	references  []model.Reference
	diagnostics []model.Diagnostic
}

// expandDocuments runs phase two against a collected registry.
func (s *session) expandDocuments(ctx context.Context, col *collect.Collection) (*expansion, error) {
	all, docDiags := collect.Documents(s.cfg.Repos, s.cfg.DocExtensions)
	// Expanded copies from earlier builds are not sources of truth.
	docs := all[:0:0]
	for _, d := range all {
		if !resolve.Within(s.cfg.OutDir, d.Abs) {
			docs = append(docs, d)
		}
	}

	resolver := resolve.New(col.Registry, s.cfg.Repos, s.table)
	results, err := collect.ExpandAll(ctx, expand.New(resolver), docs, s.cfg.Jobs)
	if err != nil {
		return nil, fmt.Errorf("expanding documents: %w", err)
	}

	x := &expansion{col: col, resolver: resolver, docs: docs, results: results}
	x.diagnostics = append(x.diagnostics, col.Diagnostics...)
	x.diagnostics = append(x.diagnostics, docDiags...)
	for _, res := range results {
		x.references = append(x.references, res.References...)
		x.diagnostics = append(x.diagnostics, res.Diagnostics...)
	}
	s.verbosef("expanded %d documents (%d references) in %s", len(docs), len(x.references), time.Since(s.start).Round(time.Millisecond))
	return x, nil
}

// index assembles the serializable view of an expansion.
func (s *session) index(x *expansion) *model.Index {
	regions := x.col.Registry.Regions()
	refs := s.displayRefs(x.references)
	return &model.Index{
		Repos:        s.cfg.Repos,
		Regions:      regions,
		References:   refs,
		Usage:        graph.BuildUsage(refs, regions),
		Unreferenced: graph.Unreferenced(regions, refs),
		Diagnostics:  s.display(x.diagnostics),
	}
}

// rel shortens absolute paths under the config directory.
func (s *session) rel(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	if r, err := filepath.Rel(s.cfg.Dir, path); err == nil && !startsWithDotDot(r) {
		return filepath.ToSlash(r)
	}
	return path
}

func (s *session) display(diags []model.Diagnostic) []model.Diagnostic {
	out := make([]model.Diagnostic, len(diags))
	for i, d := range diags {
		d.File = s.rel(d.File)
		out[i] = d
	}
	return out
}

func (s *session) displayRefs(refs []model.Reference) []model.Reference {
	out := make([]model.Reference, len(refs))
	for i, r := range refs {
		r.DocumentPath = s.rel(r.DocumentPath)
		out[i] = r
	}
	return out
}

func (s *session) verbosef(format string, args ...any) {
	if s.opts.verbose {
		s.rep.infof(format, args...)
	}
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
