// Package expand replaces region directives in prose documents with the
// regions they name.
package expand

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/resolve"
)

// directiveRe matches {@region: <ref>}. The reference holds no whitespace.
var directiveRe = regexp.MustCompile(`\{@region:[ \t]*([^\s{}]+)[ \t]*\}`)

// Result is the outcome of expanding one document.
type Result struct {
	DocumentPath string
	Text         string
	References   []model.Reference
	Diagnostics  []model.Diagnostic
}

// Expander expands documents against one resolver. It is safe for
// concurrent use.
type Expander struct {
	resolver *resolve.Resolver
	repos    map[string]model.Repo
}

// New returns an Expander backed by r.
func New(r *resolve.Resolver) *Expander {
	repos := make(map[string]model.Repo)
	for _, repo := range r.Repos() {
		repos[repo.ID] = repo
	}
	return &Expander{resolver: r, repos: repos}
}

// Directives returns the specs written in text, in order.
func Directives(text string) []string {
	var specs []string
	for _, m := range directiveRe.FindAllStringSubmatch(text, -1) {
		specs = append(specs, m[1])
	}
	return specs
}

// Expand resolves every directive in text. Resolved directives are replaced
// with a rendered block; unresolved ones are left verbatim and reported.
// Text outside directives is copied unchanged.
func (e *Expander) Expand(documentPath, text string) Result {
	res := Result{DocumentPath: documentPath}

	var b strings.Builder
	last := 0
	for _, loc := range directiveRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		raw := text[loc[2]:loc[3]]
		b.WriteString(text[last:start])
		last = end

		spec := resolve.ParseSpec(raw)
		ref := model.Reference{
			DocumentPath: documentPath,
			WrittenSpec:  raw,
			Form:         spec.Form,
		}

		reg, failure := e.resolver.ResolveSpec(spec, documentPath)
		if failure != nil {
			ref.FailureReason = failure.Reason
			res.References = append(res.References, ref)
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:   model.UnresolvedDirective,
				File:   documentPath,
				Line:   strings.Count(text[:start], "\n") + 1,
				Detail: fmt.Sprintf("%s: %s", raw, failure.Error()),
			})
			b.WriteString(text[start:end])
			continue
		}

		key := resolve.KeyFor(spec.Form, reg)
		ref.ResolvedKey = &key
		res.References = append(res.References, ref)
		b.WriteString(Render(reg, e.repos[reg.RepoID]))
	}
	b.WriteString(text[last:])

	res.Text = b.String()
	return res
}

// Render formats a region as a Markdown block: prose paragraph, fenced
// code tagged with the region language, then a source marker comment.
func Render(reg model.Region, repo model.Repo) string {
	var parts []string
	if reg.Prose != "" {
		parts = append(parts, reg.Prose)
	}
	if reg.Code != "" {
		fence := "```"
		for strings.Contains(reg.Code, fence) {
			fence += "`"
		}
		parts = append(parts, fence+reg.Language+"\n"+reg.Code+"\n"+fence)
	}
	parts = append(parts, sourceMarker(reg, repo))
	return strings.Join(parts, "\n\n")
}

// sourceMarker points back at the region's origin. Private repos expose
// only their display name.
func sourceMarker(reg model.Region, repo model.Repo) string {
	if repo.ID == "" {
		return fmt.Sprintf("<!-- livedoc: %s:%d-%d %s -->", reg.SourcePath, reg.StartLine, reg.EndLine, reg.Name)
	}
	if repo.Visibility == model.Private {
		return fmt.Sprintf("<!-- livedoc: %s %s -->", repo.DisplayName(), reg.Name)
	}
	return fmt.Sprintf("<!-- livedoc: %s/%s:%d-%d %s -->", repo.ID, reg.SourcePath, reg.StartLine, reg.EndLine, reg.Name)
}
