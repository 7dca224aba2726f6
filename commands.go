package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/livedoc/internal/drift"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/resolve"
	"github.com/phobologic/livedoc/internal/store"
	"github.com/phobologic/livedoc/internal/toon"
)

// keepRuns bounds the ledger; drift only reads the newest run.
const keepRuns = 20

func newBuildCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		strict  bool
		noStore bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Expand every document and write the results to out_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, stderr)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			col, err := s.collectRegions(ctx)
			if err != nil {
				return err
			}
			x, err := s.expandDocuments(ctx, col)
			if err != nil {
				return err
			}

			written := 0
			if !dryRun {
				if written, err = writeOutputs(s.cfg.OutDir, x); err != nil {
					return err
				}
			}

			diags := x.diagnostics
			if !noStore {
				st, err := store.Open(s.cfg.Store)
				if err != nil {
					return err
				}
				defer st.Close()

				last, err := st.LatestRun(ctx)
				switch {
				case errors.Is(err, store.ErrNoRuns):
				case err != nil:
					return fmt.Errorf("reading previous run: %w", err)
				default:
					previous, regions, err := recorded(ctx, st, last.ID)
					if err != nil {
						return fmt.Errorf("reading previous run: %w", err)
					}
					diags = append(diags, drift.DetectSince(stillWritten(previous, x.references), x.resolver, regions)...)
				}

				if !dryRun {
					id, err := st.SaveRun(ctx, col.Registry.Regions(), x.references)
					if err != nil {
						return fmt.Errorf("recording run: %w", err)
					}
					if _, err := st.Prune(ctx, keepRuns); err != nil {
						return fmt.Errorf("pruning runs: %w", err)
					}
					s.verbosef("recorded run %d in %s", id, s.rel(s.cfg.Store))
				}
			}

			diags = s.display(diags)
			s.rep.diagnostics(diags)
			_, _ = fmt.Fprintf(stdout, "%d regions, %d documents, %d references, %d written\n",
				col.Registry.Len(), len(x.docs), len(x.references), written)
			if strict && len(diags) > 0 {
				s.rep.summary(diags)
				return errFindings
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any diagnostic is reported")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not read or record the reference ledger")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "expand and report without writing files or recording the run")
	return cmd
}

// writeOutputs writes each expanded document to outDir/<repo-id>/<rel>.
// Documents that could not be read are skipped.
func writeOutputs(outDir string, x *expansion) (int, error) {
	written := 0
	for i, doc := range x.docs {
		res := x.results[i]
		if hasReadFailure(res.Diagnostics) {
			continue
		}
		dest := filepath.Join(outDir, doc.Repo.ID, filepath.FromSlash(doc.Rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(dest, []byte(res.Text), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", dest, err)
		}
		written++
	}
	return written, nil
}

// recorded loads the references and regions of one stored run.
func recorded(ctx context.Context, st *store.Store, runID int64) ([]model.Reference, []model.Region, error) {
	refs, err := st.References(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	regions, err := st.Regions(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return refs, regions, nil
}

// stillWritten keeps the previous references that resolved and whose
// directive still appears in the same document. Directives that fail now are
// reported by this run already; edited or deleted ones cannot drift.
func stillWritten(previous, current []model.Reference) []model.Reference {
	type occurrence struct{ doc, spec string }
	written := make(map[occurrence]struct{}, len(current))
	for _, r := range current {
		written[occurrence{r.DocumentPath, r.WrittenSpec}] = struct{}{}
	}

	var out []model.Reference
	for _, r := range previous {
		if !r.Resolved() {
			continue
		}
		if _, ok := written[occurrence{r.DocumentPath, r.WrittenSpec}]; ok {
			out = append(out, r)
		}
	}
	return out
}

func hasReadFailure(diags []model.Diagnostic) bool {
	for _, d := range diags {
		if d.Kind == model.ReadFailure {
			return true
		}
	}
	return false
}

func newTagsCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Print the region index in TOON format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, stderr)
			if err != nil {
				return err
			}
			col, err := s.collectRegions(cmd.Context())
			if err != nil {
				return err
			}
			x, err := s.expandDocuments(cmd.Context(), col)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, toon.Encode(s.index(x)))
			return nil
		},
	}
}

func newDriftCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Check the last recorded references against the current sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(opts, stderr)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := store.Open(s.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.LatestRun(ctx)
			if err != nil {
				if errors.Is(err, store.ErrNoRuns) {
					return fmt.Errorf("%w in %s (run `livedoc build` first)", err, s.rel(s.cfg.Store))
				}
				return err
			}
			refs, regions, err := recorded(ctx, st, run.ID)
			if err != nil {
				return err
			}

			col, err := s.collectRegions(ctx)
			if err != nil {
				return err
			}

			resolver := resolve.New(col.Registry, s.cfg.Repos, s.table)
			diags := s.display(drift.DetectSince(s.displayRefs(refs), resolver, regions))
			s.rep.diagnostics(diags)
			_, _ = fmt.Fprintf(stdout, "checked %d references from run %d (%s): %d drifted\n",
				len(refs), run.ID, run.CreatedAt.Format("2006-01-02 15:04:05 UTC"), len(diags))
			if len(diags) > 0 {
				return errFindings
			}
			return nil
		},
	}
}
