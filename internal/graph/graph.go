// Package graph derives document-to-source usage edges from resolved
// references.
package graph

import (
	"sort"

	"github.com/phobologic/livedoc/internal/model"
)

// BuildUsage creates one edge per (document, source file) pair, listing the
// region names the document embeds from that file in first-use order.
// Unresolved references contribute nothing.
func BuildUsage(refs []model.Reference, regions []model.Region) []model.Usage {
	sources := make(map[model.Key]string, len(regions))
	for i := range regions {
		sources[regions[i].Key()] = regions[i].RepoID + "/" + regions[i].SourcePath
	}

	type edgeKey struct{ doc, src string }
	edgeTags := make(map[edgeKey][]string)

	for i := range refs {
		ref := &refs[i]
		if !ref.Resolved() {
			continue
		}
		src, ok := sourceOf(*ref.ResolvedKey, sources)
		if !ok {
			continue
		}
		key := edgeKey{ref.DocumentPath, src}
		// Only add the tag if not already present
		if !contains(edgeTags[key], ref.ResolvedKey.Name) {
			edgeTags[key] = append(edgeTags[key], ref.ResolvedKey.Name)
		}
	}

	var usage []model.Usage
	for key, tags := range edgeTags {
		usage = append(usage, model.Usage{
			Document: key.doc,
			Source:   key.src,
			Tags:     tags,
		})
	}

	// Sort for deterministic output
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Document != usage[j].Document {
			return usage[i].Document < usage[j].Document
		}
		return usage[i].Source < usage[j].Source
	})

	return usage
}

// sourceOf names the file a resolved key points at. Explicit keys carry
// their path; registry keys are looked up.
func sourceOf(key model.Key, sources map[model.Key]string) (string, bool) {
	if key.Path != "" {
		if key.RepoID == "" {
			return key.Path, true
		}
		return key.RepoID + "/" + key.Path, true
	}
	src, ok := sources[key]
	return src, ok
}

// Unreferenced returns the regions no resolved reference points at, in the
// order given. An explicit reference counts for the region defined at the
// same path.
func Unreferenced(regions []model.Region, refs []model.Reference) []model.Region {
	used := make(map[model.Key]struct{})
	for i := range refs {
		if refs[i].Resolved() {
			used[*refs[i].ResolvedKey] = struct{}{}
		}
	}

	var out []model.Region
	for i := range regions {
		r := regions[i]
		if _, ok := used[r.Key()]; ok {
			continue
		}
		if _, ok := used[model.Key{RepoID: r.RepoID, Name: r.Name, Path: r.SourcePath}]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
