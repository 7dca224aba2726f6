package resolve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/registry"
)

func mkRegion(repo, name, code string) model.Region {
	return model.Region{Name: name, RepoID: repo, SourcePath: name + ".py", StartLine: 1, EndLine: 3, Code: code}
}

func newResolver(repos []model.Repo, regions ...model.Region) *Resolver {
	return New(registry.Build(regions), repos, lang.DefaultTable())
}

func TestParseSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Spec
	}{
		{"greet", Spec{Raw: "greet", Form: model.Bare, Name: "greet"}},
		{"core/greet", Spec{Raw: "core/greet", Form: model.Qualified, Repo: "core", Name: "greet"}},
		{"src/a.py#greet", Spec{Raw: "src/a.py#greet", Form: model.Explicit, Path: "src/a.py", Name: "greet"}},
		{"a.py#greet", Spec{Raw: "a.py#greet", Form: model.Explicit, Path: "a.py", Name: "greet"}},
		{"a/b/c", Spec{Raw: "a/b/c", Form: model.Bare, Name: "a/b/c"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := ParseSpec(tt.raw); got != tt.want {
				t.Errorf("ParseSpec(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestProximityPrecedence(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "a", Root: "/r/a"},
		{ID: "b", Root: "/r/b", Default: true},
	}
	r := newResolver(repos, mkRegion("a", "foo", "from a"), mkRegion("b", "foo", "from b"))

	got, f := r.Resolve("foo", "/r/a/docs/x.md")
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.RepoID != "a" {
		t.Errorf("resolved to repo %q, want a", got.RepoID)
	}
}

func TestProximityFallsThrough(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "a", Root: "/r/a"},
		{ID: "b", Root: "/r/b"},
	}
	r := newResolver(repos, mkRegion("b", "only_b", "x"))

	got, f := r.Resolve("only_b", "/r/a/docs/x.md")
	if f != nil {
		t.Fatalf("repo membership alone must not fail the lookup: %v", f)
	}
	if got.RepoID != "b" {
		t.Errorf("resolved to %q, want b", got.RepoID)
	}
}

func TestProximityLongestRoot(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "outer", Root: "/r"},
		{ID: "inner", Root: "/r/inner"},
		{ID: "sibling", Root: "/r/in"},
	}
	r := newResolver(repos,
		mkRegion("outer", "foo", "outer"),
		mkRegion("inner", "foo", "inner"),
		mkRegion("sibling", "foo", "sibling"),
	)

	got, f := r.Resolve("foo", "/r/inner/docs/x.md")
	if f != nil || got.RepoID != "inner" {
		t.Errorf("got %+v, %v; want inner", got, f)
	}

	repo, ok := r.ContainingRepo("/r/innerx/doc.md")
	if !ok || repo.ID != "outer" {
		t.Errorf("ContainingRepo(/r/innerx) = %+v, %v; want outer", repo, ok)
	}
}

func TestDefaultFallback(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "main", Root: "/r/main", Default: true},
		{ID: "other", Root: "/r/other"},
	}
	r := newResolver(repos, mkRegion("main", "bar", "x"), mkRegion("other", "bar", "y"))

	got, f := r.Resolve("bar", "/elsewhere/notes.md")
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.RepoID != "main" {
		t.Errorf("resolved to %q, want main", got.RepoID)
	}
}

func TestDefaultPrecedesSingleton(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "main", Root: "/r/main", Default: true},
		{ID: "other", Root: "/r/other"},
	}
	r := newResolver(repos, mkRegion("main", "bar", "x"))

	if _, ok := r.byDefault("bar", ""); !ok {
		t.Error("default step should match")
	}
	if _, ok := r.bySingleton("bar", ""); !ok {
		t.Error("singleton step should also match")
	}

	var order []string
	for _, s := range bareSteps {
		order = append(order, s.name)
	}
	if strings.Join(order, ",") != "proximity,default,singleton" {
		t.Errorf("step order = %v", order)
	}
}

func TestSingletonFallback(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "a", Root: "/r/a"},
		{ID: "b", Root: "/r/b"},
	}
	r := newResolver(repos, mkRegion("b", "baz", "x"), mkRegion("a", "other", "y"))

	got, f := r.Resolve("baz", "/outside/doc.md")
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.RepoID != "b" {
		t.Errorf("resolved to %q, want b", got.RepoID)
	}
}

func TestAmbiguous(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{
		{ID: "repoA", Root: "/r/a"},
		{ID: "repoB", Root: "/r/b"},
	}
	r := newResolver(repos, mkRegion("repoA", "qux", "a"), mkRegion("repoB", "qux", "b"))

	_, f := r.Resolve("qux", "/outside/doc.md")
	if f == nil || f.Reason != model.UnresolvedAmbiguous {
		t.Fatalf("failure = %v, want UnresolvedAmbiguous", f)
	}
	if !strings.Contains(f.Detail, "repoA") || !strings.Contains(f.Detail, "repoB") {
		t.Errorf("detail should list candidates: %q", f.Detail)
	}

	got, f := r.Resolve("repoB/qux", "/outside/doc.md")
	if f != nil {
		t.Fatalf("qualified form failed: %v", f)
	}
	if got.RepoID != "repoB" || got.Code != "b" {
		t.Errorf("qualified resolved to %+v", got)
	}
}

func TestUnknown(t *testing.T) {
	t.Parallel()

	repos := []model.Repo{{ID: "a", Root: "/r/a", Default: true}}
	r := newResolver(repos, mkRegion("a", "foo", "x"))

	tests := []struct {
		spec string
		want model.FailureReason
	}{
		{"missing", model.UnknownTag},
		{"nope/foo", model.UnknownRepo},
		{"a/missing", model.UnknownTag},
	}
	for _, tt := range tests {
		_, f := r.Resolve(tt.spec, "/r/a/doc.md")
		if f == nil || f.Reason != tt.want {
			t.Errorf("Resolve(%q) = %v, want %s", tt.spec, f, tt.want)
		}
	}
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExplicitRelativeToDocument(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "docs/snippets/demo.py", "# @region demo\n# A demo.\nprint('hi')\n# @endregion\n")
	doc := writeFile(t, root, "docs/guide.md", "{@region: snippets/demo.py#demo}")

	repos := []model.Repo{{ID: "core", Root: root}}
	r := newResolver(repos)

	got, f := r.Resolve("snippets/demo.py#demo", doc)
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.Code != "print('hi')" || got.Prose != "A demo." {
		t.Errorf("region = %+v", got)
	}
	if got.RepoID != "core" || got.SourcePath != "docs/snippets/demo.py" || got.Language != "python" {
		t.Errorf("region location = %q %q %q", got.RepoID, got.SourcePath, got.Language)
	}
	if key := KeyFor(model.Explicit, got); key.Path != "docs/snippets/demo.py" {
		t.Errorf("explicit key = %+v", key)
	}
}

func TestExplicitRelativeToRepoRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "src/lib.go", "package lib\n\n// @region add\nfunc Add(a, b int) int { return a + b }\n// @endregion\n")
	doc := writeFile(t, root, "docs/deep/guide.md", "")

	repos := []model.Repo{{ID: "core", Root: root}}
	r := newResolver(repos)

	got, f := r.Resolve("src/lib.go#add", doc)
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.Code != "func Add(a, b int) int { return a + b }" {
		t.Errorf("code = %q", got.Code)
	}

	_, f = r.Resolve("src/lib.go#missing", doc)
	if f == nil || f.Reason != model.UnknownTag {
		t.Errorf("missing name: %v", f)
	}

	_, f = r.Resolve("src/nothere.go#add", doc)
	if f == nil || f.Reason != model.UnknownTag || !strings.Contains(f.Detail, "cannot read") {
		t.Errorf("missing file: %v", f)
	}
}

func TestExplicitUnmappedExtension(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "notes.txt", "# @region a\nx\n# @endregion\n")
	doc := writeFile(t, root, "doc.md", "")

	r := newResolver([]model.Repo{{ID: "core", Root: root}})
	_, f := r.Resolve("notes.txt#a", doc)
	if f == nil || !strings.Contains(f.Detail, "no comment prefix") {
		t.Errorf("failure = %v", f)
	}
}

func TestExplicitBypassesRegistry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.py", "# @region greet\ndef greet(): pass\n# @endregion\n")
	doc := writeFile(t, root, "doc.md", "")

	// The registry knows a different greet; explicit form must read the file.
	repos := []model.Repo{{ID: "core", Root: root}}
	r := newResolver(repos, mkRegion("core", "greet", "stale"))

	got, f := r.Resolve("a.py#greet", doc)
	if f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
	if got.Code != "def greet(): pass" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.py", "# @region greet\ndef greet(): pass\n# @endregion\n")
	writeFile(t, root, "b.py", "# @region greet\ndef greet(): return 1\n# @endregion\n")
	repos := []model.Repo{{ID: "r", Root: root}}

	// The registry keeps only a.py's greet; b.py's loses the duplicate check.
	reg := model.Region{Name: "greet", RepoID: "r", SourcePath: "a.py", StartLine: 1, EndLine: 3, Code: "def greet(): pass"}
	r := newResolver(repos, reg)

	tests := []struct {
		name string
		key  model.Key
		want bool
	}{
		{"registry key", model.Key{RepoID: "r", Name: "greet"}, true},
		{"registry miss", model.Key{RepoID: "r", Name: "hello"}, false},
		{"indexed file", model.Key{RepoID: "r", Name: "greet", Path: "a.py"}, true},
		{"shadowed file", model.Key{RepoID: "r", Name: "greet", Path: "b.py"}, true},
		{"name gone from file", model.Key{RepoID: "r", Name: "hello", Path: "b.py"}, false},
		{"file gone", model.Key{RepoID: "r", Name: "greet", Path: "c.py"}, false},
		{"unknown repo", model.Key{RepoID: "other", Name: "greet", Path: "b.py"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := r.Contains(tt.key); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
