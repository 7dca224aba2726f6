// Package drift reports references that no longer resolve.
package drift

import (
	"fmt"

	"github.com/phobologic/livedoc/internal/model"
)

// Snapshot is the read-only view of current regions that drift is checked
// against. *resolve.Resolver satisfies it and also follows keys recorded by
// explicit references into their source files; *registry.Registry only
// knows the regions it indexes.
type Snapshot interface {
	Contains(key model.Key) bool
}

// Detect returns one Drifted diagnostic per reference that either never
// resolved or whose resolved key is missing from snap. It never modifies
// its inputs.
//
// Explicit references to files outside every watched repo carry an empty
// repo id; the snapshot cannot speak for them, so they only drift when they
// failed to resolve.
func Detect(refs []model.Reference, snap Snapshot) []model.Diagnostic {
	return DetectSince(refs, snap, nil)
}

// DetectSince is Detect for references recorded by an earlier run together
// with that run's regions. A drifted key found among previous is reported
// with the location it was last seen at.
func DetectSince(refs []model.Reference, snap Snapshot, previous []model.Region) []model.Diagnostic {
	lastSeen := make(map[model.Key]model.Region, len(previous))
	for _, r := range previous {
		lastSeen[r.Key()] = r
	}

	var out []model.Diagnostic
	for _, ref := range refs {
		detail, drifted := check(ref, snap)
		if !drifted {
			continue
		}
		if ref.ResolvedKey != nil {
			if r, ok := lastSeen[*ref.ResolvedKey]; ok {
				detail += fmt.Sprintf(" (last seen at %s:%d-%d)", r.SourcePath, r.StartLine, r.EndLine)
			}
		}
		out = append(out, model.Diagnostic{
			Kind:   model.Drifted,
			File:   ref.DocumentPath,
			Detail: fmt.Sprintf("%s: %s", ref.WrittenSpec, detail),
		})
	}
	return out
}

func check(ref model.Reference, snap Snapshot) (string, bool) {
	if ref.FailureReason != "" {
		return fmt.Sprintf("never resolved (%s)", ref.FailureReason), true
	}
	if ref.ResolvedKey == nil {
		return "", false
	}
	key := *ref.ResolvedKey
	if ref.Form == model.Explicit && key.RepoID == "" {
		return "", false
	}
	if snap.Contains(key) {
		return "", false
	}
	return fmt.Sprintf("%s was renamed or removed", key), true
}
