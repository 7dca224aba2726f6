// Package toon renders the tag index in TOON (Token-Oriented Object
// Notation), a compact tabular text format.
package toon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/livedoc/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a collection index into TOON format. Roots of private
// repos are omitted.
func Encode(idx *model.Index) string {
	var parts []string

	var repoRows [][]string
	for i := range idx.Repos {
		r := &idx.Repos[i]
		root := r.Root
		if r.Visibility == model.Private {
			root = ""
		}
		repoRows = append(repoRows, []string{
			r.ID,
			r.DisplayName(),
			string(r.Visibility),
			yesNo(r.Default),
			filepath.ToSlash(root),
		})
	}
	parts = append(parts, formatTabular("repos", []string{"id", "name", "visibility", "default", "root"}, repoRows))

	var regionRows [][]string
	for i := range idx.Regions {
		r := &idx.Regions[i]
		regionRows = append(regionRows, []string{
			r.RepoID,
			r.Name,
			r.SourcePath,
			fmt.Sprintf("%d-%d", r.StartLine, r.EndLine),
			r.Language,
			strings.Join(r.Symbols, " "),
		})
	}
	parts = append(parts, formatTabular("regions", []string{"repo", "name", "path", "lines", "language", "symbols"}, regionRows))

	var refRows [][]string
	for i := range idx.References {
		ref := &idx.References[i]
		target := ""
		if ref.Resolved() {
			target = ref.ResolvedKey.String()
		}
		refRows = append(refRows, []string{
			ref.DocumentPath,
			ref.WrittenSpec,
			string(ref.Form),
			target,
			string(ref.FailureReason),
		})
	}
	parts = append(parts, formatTabular("references", []string{"document", "spec", "form", "target", "failure"}, refRows))

	var usageRows [][]string
	for i := range idx.Usage {
		u := &idx.Usage[i]
		usageRows = append(usageRows, []string{
			u.Document,
			u.Source,
			strings.Join(u.Tags, " "),
		})
	}
	parts = append(parts, formatTabular("usage", []string{"document", "source", "tags"}, usageRows))

	if len(idx.Unreferenced) > 0 {
		var unusedRows [][]string
		for i := range idx.Unreferenced {
			r := &idx.Unreferenced[i]
			unusedRows = append(unusedRows, []string{r.RepoID, r.Name, r.SourcePath})
		}
		parts = append(parts, formatTabular("unreferenced", []string{"repo", "name", "path"}, unusedRows))
	}

	if len(idx.Diagnostics) > 0 {
		var diagRows [][]string
		for i := range idx.Diagnostics {
			d := &idx.Diagnostics[i]
			diagRows = append(diagRows, []string{
				string(d.Kind),
				d.File,
				strconv.Itoa(d.Line),
				d.Detail,
			})
		}
		parts = append(parts, formatTabular("diagnostics", []string{"kind", "file", "line", "detail"}, diagRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
