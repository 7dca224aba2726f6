package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/phobologic/livedoc/internal/model"
)

// reporter prints diagnostics and progress to the stderr writer.
type reporter struct {
	w      io.Writer
	warn   *color.Color
	fail   *color.Color
	drift  *color.Color
	dimmed *color.Color
}

func newReporter(w io.Writer, mode string) (*reporter, error) {
	var enabled bool
	switch mode {
	case "on":
		enabled = true
	case "off":
		enabled = false
	case "auto", "":
		enabled = isTerminal(w)
	default:
		return nil, fmt.Errorf("invalid --color value %q (want auto, on or off)", mode)
	}

	r := &reporter{
		w:      w,
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed, color.Bold),
		drift:  color.New(color.FgCyan),
		dimmed: color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.warn, r.fail, r.drift, r.dimmed} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *reporter) colorFor(kind model.DiagnosticKind) *color.Color {
	switch kind {
	case model.UnresolvedDirective:
		return r.fail
	case model.Drifted:
		return r.drift
	default:
		return r.warn
	}
}

// diagnostics prints one "Warning: ..." line per diagnostic.
func (r *reporter) diagnostics(diags []model.Diagnostic) {
	for _, d := range diags {
		_, _ = fmt.Fprintf(r.w, "%s %s\n", r.colorFor(d.Kind).Sprint("Warning:"), d.String())
	}
}

func (r *reporter) infof(format string, args ...any) {
	_, _ = fmt.Fprintln(r.w, r.dimmed.Sprintf(format, args...))
}

// summary prints per-kind counts, most severe first.
func (r *reporter) summary(diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	counts := make(map[model.DiagnosticKind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	for _, kind := range []model.DiagnosticKind{
		model.UnresolvedDirective,
		model.Drifted,
		model.MalformedRegion,
		model.UnmappedExtension,
		model.ReadFailure,
	} {
		if n := counts[kind]; n > 0 {
			_, _ = fmt.Fprintf(r.w, "%s %d\n", r.colorFor(kind).Sprintf("%s:", kind), n)
		}
	}
}
