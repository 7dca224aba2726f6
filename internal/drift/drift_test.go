package drift

import (
	"reflect"
	"strings"
	"testing"

	"github.com/phobologic/livedoc/internal/expand"
	"github.com/phobologic/livedoc/internal/lang"
	"github.com/phobologic/livedoc/internal/model"
	"github.com/phobologic/livedoc/internal/registry"
	"github.com/phobologic/livedoc/internal/resolve"
)

func expandWith(regions []model.Region, doc string) expand.Result {
	repos := []model.Repo{{ID: "core", Root: "/r/core", Default: true}}
	reg := registry.Build(regions)
	return expand.New(resolve.New(reg, repos, lang.DefaultTable())).Expand("/r/core/docs/guide.md", doc)
}

func TestDetectAcrossRuns(t *testing.T) {
	t.Parallel()

	doc := "Intro\n\n{@region: old_name}\n"
	oldRegion := model.Region{Name: "old_name", RepoID: "core", SourcePath: "a.py", StartLine: 1, EndLine: 3, Code: "x = 1"}

	// Run 1: the reference resolves.
	run1 := expandWith([]model.Region{oldRegion}, doc)
	if len(run1.References) != 1 || !run1.References[0].Resolved() {
		t.Fatalf("run 1 references = %+v", run1.References)
	}
	if got := Detect(run1.References, registry.Build([]model.Region{oldRegion})); len(got) != 0 {
		t.Fatalf("run 1 drift = %v", got)
	}

	// Run 2: the region was renamed.
	renamed := oldRegion
	renamed.Name = "new_name"
	run2Registry := registry.Build([]model.Region{renamed})

	refs := append([]model.Reference(nil), run1.References...)
	before := append([]model.Reference(nil), refs...)

	diags := Detect(refs, run2Registry)
	if len(diags) != 1 {
		t.Fatalf("expected 1 drifted diagnostic, got %v", diags)
	}
	d := diags[0]
	if d.Kind != model.Drifted || d.File != "/r/core/docs/guide.md" || !strings.HasPrefix(d.Detail, "old_name:") {
		t.Errorf("diagnostic = %+v", d)
	}
	if !reflect.DeepEqual(refs, before) {
		t.Error("Detect mutated its input")
	}

	// Expanding the unchanged document against run 2 leaves its text alone
	// and the fresh reference drifts the same way.
	run2 := expandWith([]model.Region{renamed}, doc)
	if run2.Text != doc {
		t.Errorf("document text changed:\n%s", run2.Text)
	}
	if got := Detect(run2.References, run2Registry); len(got) != 1 || got[0].File != d.File {
		t.Errorf("fresh drift = %v", got)
	}
}

type fakeSnapshot map[model.Key]bool

func (f fakeSnapshot) Contains(k model.Key) bool { return f[k] }

func TestDetectCases(t *testing.T) {
	t.Parallel()

	present := model.Key{RepoID: "core", Name: "here"}
	gone := model.Key{RepoID: "core", Name: "gone"}
	outside := model.Key{Name: "x", Path: "/tmp/x.py"}
	snap := fakeSnapshot{present: true}

	refs := []model.Reference{
		{DocumentPath: "a.md", WrittenSpec: "here", Form: model.Bare, ResolvedKey: &present},
		{DocumentPath: "a.md", WrittenSpec: "gone", Form: model.Bare, ResolvedKey: &gone},
		{DocumentPath: "b.md", WrittenSpec: "nope", Form: model.Bare, FailureReason: model.UnknownTag},
		{DocumentPath: "b.md", WrittenSpec: "/tmp/x.py#x", Form: model.Explicit, ResolvedKey: &outside},
	}

	diags := Detect(refs, snap)
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %v", diags)
	}
	if diags[0].File != "a.md" || !strings.Contains(diags[0].Detail, "renamed or removed") {
		t.Errorf("diag 0 = %+v", diags[0])
	}
	if diags[1].File != "b.md" || !strings.Contains(diags[1].Detail, "never resolved (UnknownTag)") {
		t.Errorf("diag 1 = %+v", diags[1])
	}
}

func TestDetectEmpty(t *testing.T) {
	t.Parallel()

	if got := Detect(nil, fakeSnapshot{}); got != nil {
		t.Errorf("Detect(nil) = %v", got)
	}
}

func TestDetectSinceNamesLastLocation(t *testing.T) {
	t.Parallel()

	gone := model.Key{RepoID: "core", Name: "greet"}
	explicit := model.Key{RepoID: "core", Name: "greet", Path: "src/b.py"}
	refs := []model.Reference{
		{DocumentPath: "a.md", WrittenSpec: "greet", Form: model.Bare, ResolvedKey: &gone},
		{DocumentPath: "a.md", WrittenSpec: "src/b.py#greet", Form: model.Explicit, ResolvedKey: &explicit},
	}
	previous := []model.Region{{Name: "greet", RepoID: "core", SourcePath: "src/a.py", StartLine: 3, EndLine: 9}}

	got := DetectSince(refs, fakeSnapshot{}, previous)
	if len(got) != 2 {
		t.Fatalf("diagnostics = %v", got)
	}
	if want := "greet: core/greet was renamed or removed (last seen at src/a.py:3-9)"; got[0].Detail != want {
		t.Errorf("detail = %q, want %q", got[0].Detail, want)
	}
	if want := "src/b.py#greet: src/b.py#greet was renamed or removed"; got[1].Detail != want {
		t.Errorf("explicit detail = %q, want %q", got[1].Detail, want)
	}
}
