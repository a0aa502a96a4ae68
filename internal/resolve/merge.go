package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// Writer is the persistence the merger writes through.
type Writer interface {
	SavePerson(ctx context.Context, p model.Person) error
	SaveWork(ctx context.Context, w model.Work) error
	SavePerformance(ctx context.Context, p model.Performance) error
	SaveEpisode(ctx context.Context, e model.Episode) error
	DeletePerson(ctx context.Context, id int64) error
	DeleteWork(ctx context.Context, id int64) error
	DeletePerformance(ctx context.Context, id int64) error
	EnqueueReview(ctx context.Context, item model.ReviewItem) error
}

// ReferentialViolation reports references that survived repointing. The
// merge that found them is abandoned and the removed record is kept.
type ReferentialViolation struct {
	Kind      model.EntityKind
	OldID     int64
	NewID     int64
	Remaining []Ref
}

func (e *ReferentialViolation) Error() string {
	refs := make([]string, len(e.Remaining))
	for i, r := range e.Remaining {
		refs[i] = r.String()
	}
	return fmt.Sprintf("resolve: %s %d still referenced after repoint to %d: %s",
		e.Kind, e.OldID, e.NewID, strings.Join(refs, ", "))
}

// Result summarizes the merges of one duplicate set.
type Result struct {
	Kind       model.EntityKind
	KeepID     int64
	Deleted    []int64
	Repointed  int
	Filled     int
	Violations []*ReferentialViolation
}

// Merger applies merges to a snapshot and writes each change through to the
// store. The snapshot stays in step with the writes.
type Merger struct {
	snap *model.Snapshot
	w    Writer
	// scan finds remaining references; replaced in tests to simulate a
	// reference written by someone else between repoint and delete.
	scan func(s *model.Snapshot, kind model.EntityKind, id int64) []Ref
}

// NewMerger creates a Merger.
func NewMerger(snap *model.Snapshot, w Writer) *Merger {
	return &Merger{snap: snap, w: w, scan: References}
}

// InspectState reports how far the merge of oldID into keepID has got,
// judging only from the snapshot.
func InspectState(s *model.Snapshot, kind model.EntityKind, keepID, oldID int64) State {
	switch kind {
	case model.KindPerson:
		keep, old := s.Persons[keepID], s.Persons[oldID]
		if old == nil {
			return StateSourceDeleted
		}
		if len(References(s, kind, oldID)) > 0 {
			return StatePending
		}
		if keep != nil && len(keep.Clone().FillFrom(old)) > 0 {
			return StateReferencesRepointed
		}
	case model.KindWork:
		keep, old := s.Works[keepID], s.Works[oldID]
		if old == nil {
			return StateSourceDeleted
		}
		if len(References(s, kind, oldID)) > 0 {
			return StatePending
		}
		if keep != nil && len(keep.Clone().FillFrom(old)) > 0 {
			return StateReferencesRepointed
		}
	}
	return StateFieldsMerged
}

// MergePersons merges every id in removedIDs into keepID. A violation on one
// id does not stop the others; store errors do.
func (m *Merger) MergePersons(ctx context.Context, keepID int64, removedIDs []int64) (Result, error) {
	return m.merge(ctx, model.KindPerson, keepID, removedIDs)
}

// MergeWorks merges every id in removedIDs into keepID.
func (m *Merger) MergeWorks(ctx context.Context, keepID int64, removedIDs []int64) (Result, error) {
	return m.merge(ctx, model.KindWork, keepID, removedIDs)
}

func (m *Merger) merge(ctx context.Context, kind model.EntityKind, keepID int64, removedIDs []int64) (Result, error) {
	res := Result{Kind: kind, KeepID: keepID}
	if !m.exists(kind, keepID) {
		return res, eris.Wrapf(model.ErrNotFound, "resolve: keep %s %d", kind, keepID)
	}

	for _, oldID := range removedIDs {
		if oldID == keepID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "resolve: merge cancelled")
		}
		log := zap.L().With(
			zap.String("component", "resolve"),
			zap.String("kind", string(kind)),
			zap.Int64("keep_id", keepID),
			zap.Int64("old_id", oldID),
		)

		state := InspectState(m.snap, kind, keepID, oldID)
		if state == StateSourceDeleted {
			log.Debug("resolve: already merged")
			continue
		}

		if state == StatePending {
			n, err := m.repoint(ctx, kind, oldID, keepID)
			if err != nil {
				return res, err
			}
			res.Repointed += n
			log.Debug("resolve: references repointed", zap.Int("count", n))
		}

		filled, err := m.fill(ctx, kind, keepID, oldID)
		if err != nil {
			return res, err
		}
		res.Filled += len(filled)

		if remaining := m.scan(m.snap, kind, oldID); len(remaining) > 0 {
			v := &ReferentialViolation{Kind: kind, OldID: oldID, NewID: keepID, Remaining: remaining}
			log.Error("resolve: merge aborted", zap.Error(v))
			res.Violations = append(res.Violations, v)
			if err := m.w.EnqueueReview(ctx, model.ReviewItem{
				Kind:      model.ReviewReferentialViolation,
				Entity:    kind,
				EntityIDs: []string{itoa(keepID), itoa(oldID)},
				Reason:    v.Error(),
			}); err != nil {
				return res, eris.Wrap(err, "resolve: enqueue violation")
			}
			continue
		}

		if err := m.deleteEntity(ctx, kind, oldID); err != nil {
			return res, err
		}
		res.Deleted = append(res.Deleted, oldID)
		log.Info("resolve: merged", zap.Strings("filled", filled))
	}
	return res, nil
}

func (m *Merger) exists(kind model.EntityKind, id int64) bool {
	switch kind {
	case model.KindPerson:
		return m.snap.Persons[id] != nil
	case model.KindWork:
		return m.snap.Works[id] != nil
	case model.KindPerformance:
		return m.snap.Performances[id] != nil
	}
	return false
}

func (m *Merger) repoint(ctx context.Context, kind model.EntityKind, oldID, newID int64) (int, error) {
	n, touched := RepointReferences(m.snap, kind, oldID, newID)
	for _, id := range touched.Works {
		if err := m.w.SaveWork(ctx, *m.snap.Works[id]); err != nil {
			return n, eris.Wrapf(err, "resolve: save work %d", id)
		}
	}
	for _, id := range touched.Performances {
		if err := m.w.SavePerformance(ctx, *m.snap.Performances[id]); err != nil {
			return n, eris.Wrapf(err, "resolve: save performance %d", id)
		}
	}
	for _, prf := range touched.Episodes {
		if err := m.w.SaveEpisode(ctx, *m.snap.Episodes[prf]); err != nil {
			return n, eris.Wrapf(err, "resolve: save episode %s", prf)
		}
	}
	return n, nil
}

// fill copies fields empty on the kept record from the removed one. The
// kept record is saved only when something changed.
func (m *Merger) fill(ctx context.Context, kind model.EntityKind, keepID, oldID int64) ([]string, error) {
	switch kind {
	case model.KindPerson:
		keep := m.snap.Persons[keepID]
		filled := keep.FillFrom(m.snap.Persons[oldID])
		if len(filled) == 0 {
			return nil, nil
		}
		return filled, eris.Wrapf(m.w.SavePerson(ctx, *keep), "resolve: save person %d", keepID)
	case model.KindWork:
		keep := m.snap.Works[keepID]
		filled := keep.FillFrom(m.snap.Works[oldID])
		if len(filled) == 0 {
			return nil, nil
		}
		return filled, eris.Wrapf(m.w.SaveWork(ctx, *keep), "resolve: save work %d", keepID)
	}
	return nil, nil
}

func (m *Merger) deleteEntity(ctx context.Context, kind model.EntityKind, id int64) error {
	switch kind {
	case model.KindPerson:
		if err := m.w.DeletePerson(ctx, id); err != nil {
			return eris.Wrapf(err, "resolve: delete person %d", id)
		}
		delete(m.snap.Persons, id)
	case model.KindWork:
		if err := m.w.DeleteWork(ctx, id); err != nil {
			return eris.Wrapf(err, "resolve: delete work %d", id)
		}
		delete(m.snap.Works, id)
	case model.KindPerformance:
		if err := m.w.DeletePerformance(ctx, id); err != nil {
			return eris.Wrapf(err, "resolve: delete performance %d", id)
		}
		delete(m.snap.Performances, id)
	default:
		return eris.Errorf("resolve: cannot delete %s", kind)
	}
	return nil
}
