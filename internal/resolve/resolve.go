// Package resolve merges duplicate persons and works and cleans up orphans.
//
// A merge of one removed record into the kept record runs in three steps:
// references are repointed, empty fields on the kept record are filled, and
// the removed record is deleted once a rescan finds no reference left. Each
// step re-checks current state, so an interrupted merge resumes by running
// it again.
package resolve

import (
	"sort"
)

// Entity is a record that can take part in duplicate resolution.
type Entity interface {
	EntityID() int64
	Completeness() int
}

// ResolveDuplicates picks the canonical representative among candidates:
// the highest completeness wins, ties go to the lowest id. Candidates that
// share the kept id are not reported as removed. Removed entities are
// returned in id order.
func ResolveDuplicates[T Entity](candidates []T) (keep T, removed []T) {
	if len(candidates) == 0 {
		return keep, nil
	}

	sorted := append([]T(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].Completeness(), sorted[j].Completeness()
		if ci != cj {
			return ci > cj
		}
		return sorted[i].EntityID() < sorted[j].EntityID()
	})

	keep = sorted[0]
	seen := map[int64]bool{keep.EntityID(): true}
	for _, c := range sorted[1:] {
		if seen[c.EntityID()] {
			continue
		}
		seen[c.EntityID()] = true
		removed = append(removed, c)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].EntityID() < removed[j].EntityID() })
	return keep, removed
}

// State is the progress of merging one removed record into the kept one.
type State string

// Merge states, in order.
const (
	StatePending             State = "PENDING"
	StateReferencesRepointed State = "REFERENCES_REPOINTED"
	StateFieldsMerged        State = "FIELDS_MERGED"
	StateSourceDeleted       State = "SOURCE_DELETED"
)
