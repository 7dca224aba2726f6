// Package region extracts named regions from source files using comment
// markers.
package region

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/livedoc/internal/model"
)

const (
	openMarker  = "@region"
	closeMarker = "@endregion"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type markerKind int

const (
	noMarker markerKind = iota
	openKind
	closeKind
)

type openRegion struct {
	name string
	line int
	body []string
}

// ValidName reports whether name is usable as a region name.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// HasMarker reports whether src contains anything that looks like a region
// marker, regardless of comment style. Used to decide whether a file with an
// unmapped extension deserves a diagnostic.
func HasMarker(src []byte) bool {
	text := string(src)
	return strings.Contains(text, openMarker+" ") || strings.Contains(text, openMarker+"\t")
}

// Extract scans one file and returns its regions in order of appearance.
// path is recorded as the regions' SourcePath and the diagnostics' File.
// RepoID and Language are left for the caller to fill in.
func Extract(path string, src []byte, prefix string) ([]model.Region, []model.Diagnostic) {
	if len(src) == 0 || prefix == "" {
		return nil, nil
	}

	var (
		regions []model.Region
		diags   []model.Diagnostic
		cur     *openRegion
		skip    int // open markers still pending after a nested @region
		seen    = make(map[string]int)
	)

	report := func(line int, format string, args ...any) {
		diags = append(diags, model.Diagnostic{
			Kind:   model.MalformedRegion,
			File:   path,
			Line:   line,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	lines := strings.Split(string(src), "\n")
	for i, raw := range lines {
		lineNo := i + 1
		kind, name := parseMarker(strings.TrimSuffix(raw, "\r"), prefix)

		if skip > 0 {
			switch kind {
			case openKind:
				skip++
			case closeKind:
				skip--
			}
			continue
		}

		switch kind {
		case openKind:
			if cur != nil {
				report(lineNo, "%s: @region %q inside region %q opened at line %d",
					model.ReasonNested, name, cur.name, cur.line)
				cur = nil
				skip = 2
				continue
			}
			if !ValidName(name) {
				report(lineNo, "%s: invalid region name %q", model.ReasonName, name)
				skip = 1
				continue
			}
			cur = &openRegion{name: name, line: lineNo}

		case closeKind:
			if cur == nil {
				report(lineNo, "%s: @endregion without an open region", model.ReasonUnmatched)
				continue
			}
			r, ok := finish(path, cur, lineNo, prefix)
			cur = nil
			if !ok {
				report(r.StartLine, "%s: region %q has neither prose nor code", model.ReasonEmpty, r.Name)
				continue
			}
			if first, dup := seen[r.Name]; dup {
				report(r.StartLine, "%s: region %q already defined at line %d", model.ReasonDuplicate, r.Name, first)
				continue
			}
			seen[r.Name] = r.StartLine
			regions = append(regions, r)

		default:
			if cur != nil {
				cur.body = append(cur.body, raw)
			}
		}
	}

	if cur != nil {
		report(cur.line, "%s: region %q has no @endregion", model.ReasonUnterminated, cur.name)
	}
	if skip > 0 {
		report(len(lines), "%s: nested region never closed", model.ReasonUnterminated)
	}

	return regions, diags
}

// parseMarker classifies a line as an open marker, a close marker or neither.
func parseMarker(line, prefix string) (markerKind, string) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, prefix) {
		return noMarker, ""
	}
	rest := strings.TrimSpace(t[len(prefix):])
	switch {
	case rest == closeMarker:
		return closeKind, ""
	case rest == openMarker:
		return openKind, ""
	case strings.HasPrefix(rest, openMarker+" "), strings.HasPrefix(rest, openMarker+"\t"):
		return openKind, strings.TrimSpace(rest[len(openMarker):])
	}
	return noMarker, ""
}

// finish splits the collected body into prose and code. It returns false
// when both are empty. Code keeps the file's own line endings; only the
// terminator of its last line is dropped.
func finish(path string, o *openRegion, endLine int, prefix string) (model.Region, bool) {
	var prose []string
	i := 0
	for ; i < len(o.body); i++ {
		t := strings.TrimLeft(o.body[i], " \t")
		if !strings.HasPrefix(t, prefix) {
			break
		}
		prose = append(prose, strings.TrimSuffix(strings.TrimPrefix(t[len(prefix):], " "), "\r"))
	}

	r := model.Region{
		Name:       o.name,
		SourcePath: path,
		StartLine:  o.line,
		EndLine:    endLine,
		Prose:      strings.Join(prose, "\n"),
		Code:       strings.TrimSuffix(strings.Join(o.body[i:], "\n"), "\r"),
	}
	if strings.TrimSpace(r.Prose) == "" {
		r.Prose = ""
	}
	if strings.TrimSpace(r.Code) == "" {
		r.Code = ""
	}
	return r, r.Prose != "" || r.Code != ""
}
