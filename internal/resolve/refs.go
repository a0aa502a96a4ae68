package resolve

import (
	"fmt"
	"strconv"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// Ref locates one reference to an entity.
type Ref struct {
	Holder   model.EntityKind
	HolderID string
	Field    string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %s.%s", r.Holder, r.HolderID, r.Field)
}

// Touched records the holders modified by a repoint.
type Touched struct {
	Works        []int64
	Performances []int64
	Episodes     []string
}

// Empty reports whether nothing was modified.
func (t Touched) Empty() bool {
	return len(t.Works) == 0 && len(t.Performances) == 0 && len(t.Episodes) == 0
}

// References lists every reference to the entity (kind, id) in the snapshot,
// in a stable order. Only persons and works are referenced by other records.
func References(s *model.Snapshot, kind model.EntityKind, id int64) []Ref {
	var refs []Ref
	switch kind {
	case model.KindPerson:
		for _, w := range s.WorkList() {
			if eqID(w.PlaywrightID, id) {
				refs = append(refs, Ref{Holder: model.KindWork, HolderID: itoa(w.ID), Field: "playwright_id"})
			}
			if eqID(w.ComposerID, id) {
				refs = append(refs, Ref{Holder: model.KindWork, HolderID: itoa(w.ID), Field: "composer_id"})
			}
		}
		for _, p := range s.PerformanceList() {
			if creditsReference(p.Credits, id) {
				refs = append(refs, Ref{Holder: model.KindPerformance, HolderID: itoa(p.ID), Field: "credits"})
			}
		}
		for _, e := range s.EpisodeList() {
			if creditsReference(e.Credits, id) {
				refs = append(refs, Ref{Holder: model.KindEpisode, HolderID: e.PrfID, Field: "credits"})
			}
		}
	case model.KindWork:
		for _, p := range s.PerformanceList() {
			if eqID(p.WorkID, id) {
				refs = append(refs, Ref{Holder: model.KindPerformance, HolderID: itoa(p.ID), Field: "work_id"})
			}
		}
		for _, e := range s.EpisodeList() {
			if eqID(e.PlayID, id) {
				refs = append(refs, Ref{Holder: model.KindEpisode, HolderID: e.PrfID, Field: "play_id"})
			}
		}
	case model.KindPerformance:
		for _, e := range s.EpisodeList() {
			if eqID(e.PerformanceID, id) {
				refs = append(refs, Ref{Holder: model.KindEpisode, HolderID: e.PrfID, Field: "performance_id"})
			}
		}
	}
	return refs
}

// RepointReferences rewrites every reference to oldID into newID in the
// snapshot and returns the number of references rewritten together with the
// holders that changed. Repointed credit lists are deduplicated. A second
// call with the same ids returns 0.
func RepointReferences(s *model.Snapshot, kind model.EntityKind, oldID, newID int64) (int, Touched) {
	var (
		count   int
		touched Touched
	)
	if oldID == newID {
		return 0, touched
	}

	switch kind {
	case model.KindPerson:
		for _, w := range s.WorkList() {
			n := repointID(&w.PlaywrightID, oldID, newID) + repointID(&w.ComposerID, oldID, newID)
			if n > 0 {
				count += n
				touched.Works = append(touched.Works, w.ID)
			}
		}
		for _, p := range s.PerformanceList() {
			if n := repointCredits(&p.Credits, oldID, newID); n > 0 {
				count += n
				touched.Performances = append(touched.Performances, p.ID)
			}
		}
		for _, e := range s.EpisodeList() {
			if n := repointCredits(&e.Credits, oldID, newID); n > 0 {
				count += n
				touched.Episodes = append(touched.Episodes, e.PrfID)
			}
		}
	case model.KindWork:
		for _, p := range s.PerformanceList() {
			if n := repointID(&p.WorkID, oldID, newID); n > 0 {
				count += n
				touched.Performances = append(touched.Performances, p.ID)
			}
		}
		for _, e := range s.EpisodeList() {
			if n := repointID(&e.PlayID, oldID, newID); n > 0 {
				count += n
				touched.Episodes = append(touched.Episodes, e.PrfID)
			}
		}
	case model.KindPerformance:
		for _, e := range s.EpisodeList() {
			if n := repointID(&e.PerformanceID, oldID, newID); n > 0 {
				count += n
				touched.Episodes = append(touched.Episodes, e.PrfID)
			}
		}
	}
	return count, touched
}

func repointID(ref **int64, oldID, newID int64) int {
	if !eqID(*ref, oldID) {
		return 0
	}
	v := newID
	*ref = &v
	return 1
}

func repointCredits(credits *[]model.Credit, oldID, newID int64) int {
	n := 0
	for i := range *credits {
		if (*credits)[i].PersonID == oldID {
			(*credits)[i].PersonID = newID
			n++
		}
	}
	if n > 0 {
		*credits = model.DedupeCredits(*credits)
	}
	return n
}

func creditsReference(credits []model.Credit, id int64) bool {
	for _, c := range credits {
		if c.PersonID == id {
			return true
		}
	}
	return false
}

func eqID(ref *int64, id int64) bool {
	return ref != nil && *ref == id
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
