package registry

import (
	"reflect"
	"strings"
	"testing"

	"github.com/phobologic/livedoc/internal/model"
)

func sampleRegions() []model.Region {
	return []model.Region{
		{Name: "foo", RepoID: "b", SourcePath: "x.py", StartLine: 10, Code: "b-foo"},
		{Name: "foo", RepoID: "a", SourcePath: "main.py", StartLine: 1, Code: "a-foo"},
		{Name: "bar", RepoID: "a", SourcePath: "lib/util.py", StartLine: 3, Code: "a-bar"},
		{Name: "baz", RepoID: "b", SourcePath: "x.py", StartLine: 1, Code: "b-baz"},
	}
}

func TestBuildLookups(t *testing.T) {
	t.Parallel()

	r := Build(sampleRegions())

	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4", r.Len())
	}
	if got, ok := r.LookupInRepo("a", "foo"); !ok || got.Code != "a-foo" {
		t.Errorf("LookupInRepo(a, foo) = %+v, %v", got, ok)
	}
	if got, ok := r.LookupQualified("b", "foo"); !ok || got.Code != "b-foo" {
		t.Errorf("LookupQualified(b, foo) = %+v, %v", got, ok)
	}
	if _, ok := r.LookupInRepo("a", "baz"); ok {
		t.Error("baz should not be in repo a")
	}
	if _, ok := r.LookupInRepo("zzz", "foo"); ok {
		t.Error("unknown repo should not match")
	}

	global := r.LookupGlobal("foo")
	if len(global) != 2 || global[0].RepoID != "a" || global[1].RepoID != "b" {
		t.Errorf("LookupGlobal(foo) = %+v", global)
	}
	if got := r.LookupGlobal("missing"); got != nil {
		t.Errorf("LookupGlobal(missing) = %+v", got)
	}
	if len(r.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", r.Diagnostics())
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	in := sampleRegions()
	reversed := make([]model.Region, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}

	a := Build(in)
	b := Build(reversed)
	if !reflect.DeepEqual(a.Regions(), b.Regions()) {
		t.Errorf("order-dependent snapshot:\n%+v\n%+v", a.Regions(), b.Regions())
	}

	regions := a.Regions()
	if regions[0].SourcePath != "lib/util.py" || regions[len(regions)-1].Name != "foo" {
		t.Errorf("unexpected sort order: %+v", regions)
	}
}

func TestBuildCrossFileDuplicate(t *testing.T) {
	t.Parallel()

	in := []model.Region{
		{Name: "dup", RepoID: "a", SourcePath: "z.py", StartLine: 1, Code: "late"},
		{Name: "dup", RepoID: "a", SourcePath: "m.py", StartLine: 5, Code: "early"},
		{Name: "dup", RepoID: "b", SourcePath: "z.py", StartLine: 1, Code: "other repo"},
	}

	for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}} {
		var regions []model.Region
		for _, i := range order {
			regions = append(regions, in[i])
		}
		r := Build(regions)

		got, ok := r.LookupInRepo("a", "dup")
		if !ok || got.Code != "early" {
			t.Errorf("order %v: winner = %+v", order, got)
		}
		diags := r.Diagnostics()
		if len(diags) != 1 {
			t.Fatalf("order %v: diagnostics = %v", order, diags)
		}
		if diags[0].Kind != model.MalformedRegion || diags[0].File != "z.py" ||
			!strings.HasPrefix(diags[0].Detail, model.ReasonDuplicate) {
			t.Errorf("order %v: diagnostic = %+v", order, diags[0])
		}
		if len(r.LookupGlobal("dup")) != 2 {
			t.Errorf("order %v: cross-repo duplicates must both be indexed", order)
		}
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	r := Build(sampleRegions())

	tests := []struct {
		key  model.Key
		want bool
	}{
		{model.Key{RepoID: "a", Name: "foo"}, true},
		{model.Key{RepoID: "a", Name: "gone"}, false},
		{model.Key{RepoID: "a", Name: "bar", Path: "lib/util.py"}, true},
		{model.Key{RepoID: "a", Name: "bar", Path: "main.py"}, false},
		{model.Key{RepoID: "b", Name: "baz", Path: "x.py"}, true},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.key); got != tt.want {
			t.Errorf("Contains(%+v) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRegionsIsCopy(t *testing.T) {
	t.Parallel()

	r := Build(sampleRegions())
	regions := r.Regions()
	regions[0].Name = "mutated"
	if r.Regions()[0].Name == "mutated" {
		t.Error("Regions exposes internal state")
	}
}
