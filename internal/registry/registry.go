// Package registry indexes extracted regions into an immutable snapshot.
package registry

import (
	"fmt"
	"sort"

	"github.com/phobologic/livedoc/internal/model"
)

// Registry is a read-only snapshot of every region found in one collection
// run. It is safe for concurrent use once built.
type Registry struct {
	regions []model.Region
	byKey   map[model.Key]int
	byName  map[string][]int
	byFile  map[fileKey]map[string]int
	diags   []model.Diagnostic
}

type fileKey struct{ repo, path string }

// Build sorts regions by (RepoID, SourcePath, StartLine) and indexes them.
// The same regions in any order yield the same snapshot. When two regions in
// one repo share a name, the first by sort order wins and the others are
// reported as duplicate diagnostics.
func Build(regions []model.Region) *Registry {
	sorted := make([]model.Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if a.RepoID != b.RepoID {
			return a.RepoID < b.RepoID
		}
		if a.SourcePath != b.SourcePath {
			return a.SourcePath < b.SourcePath
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.Name < b.Name
	})

	r := &Registry{
		byKey:  make(map[model.Key]int, len(sorted)),
		byName: make(map[string][]int),
		byFile: make(map[fileKey]map[string]int),
	}

	for i := range sorted {
		reg := sorted[i]
		key := reg.Key()
		if first, dup := r.byKey[key]; dup {
			winner := r.regions[first]
			r.diags = append(r.diags, model.Diagnostic{
				Kind: model.MalformedRegion,
				File: reg.SourcePath,
				Line: reg.StartLine,
				Detail: fmt.Sprintf("%s: region %q in repo %q already defined at %s:%d",
					model.ReasonDuplicate, reg.Name, reg.RepoID, winner.SourcePath, winner.StartLine),
			})
			continue
		}
		idx := len(r.regions)
		r.regions = append(r.regions, reg)
		r.byKey[key] = idx
		r.byName[reg.Name] = append(r.byName[reg.Name], idx)

		fk := fileKey{reg.RepoID, reg.SourcePath}
		if r.byFile[fk] == nil {
			r.byFile[fk] = make(map[string]int)
		}
		r.byFile[fk][reg.Name] = idx
	}

	return r
}

// LookupQualified returns the region named name in repo.
func (r *Registry) LookupQualified(repoID, name string) (model.Region, bool) {
	return r.LookupInRepo(repoID, name)
}

// LookupInRepo returns the region named name in repo.
func (r *Registry) LookupInRepo(repoID, name string) (model.Region, bool) {
	idx, ok := r.byKey[model.Key{RepoID: repoID, Name: name}]
	if !ok {
		return model.Region{}, false
	}
	return r.regions[idx], true
}

// LookupGlobal returns every region named name across all repos, ordered
// by repo id.
func (r *Registry) LookupGlobal(name string) []model.Region {
	idxs := r.byName[name]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]model.Region, len(idxs))
	for i, idx := range idxs {
		out[i] = r.regions[idx]
	}
	return out
}

// LookupInFile returns the region named name defined in the given
// repo-relative source file.
func (r *Registry) LookupInFile(repoID, path, name string) (model.Region, bool) {
	idx, ok := r.byFile[fileKey{repoID, path}][name]
	if !ok {
		return model.Region{}, false
	}
	return r.regions[idx], true
}

// Contains reports whether key identifies a region of this snapshot.
// Keys carrying a Path are matched against that source file.
func (r *Registry) Contains(key model.Key) bool {
	if key.Path != "" {
		_, ok := r.LookupInFile(key.RepoID, key.Path, key.Name)
		return ok
	}
	_, ok := r.byKey[model.Key{RepoID: key.RepoID, Name: key.Name}]
	return ok
}

// Regions returns all indexed regions in sort order.
func (r *Registry) Regions() []model.Region {
	out := make([]model.Region, len(r.regions))
	copy(out, r.regions)
	return out
}

// Len returns the number of indexed regions.
func (r *Registry) Len() int {
	return len(r.regions)
}

// Diagnostics returns the duplicates rejected while building.
func (r *Registry) Diagnostics() []model.Diagnostic {
	out := make([]model.Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}
