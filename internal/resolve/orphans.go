package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// Orphan is a record nothing references any more.
type Orphan struct {
	Kind model.EntityKind
	ID   int64
	Name string
	// Ambiguous orphans carry information of their own and go to review
	// instead of being deleted.
	Ambiguous bool
	Reason    string
}

// FindOrphans lists unreferenced persons, works and performances in id
// order. A bare person (no external ids, no biography) and a performance
// without episodes or credits are unambiguous; everything else is ambiguous.
func FindOrphans(s *model.Snapshot) []Orphan {
	var out []Orphan
	for _, p := range s.PersonList() {
		if len(References(s, model.KindPerson, p.ID)) > 0 {
			continue
		}
		o := Orphan{Kind: model.KindPerson, ID: p.ID, Name: p.Name, Reason: "no credit or work references"}
		if p.Completeness() > 0 {
			o.Ambiguous = true
			o.Reason = "unreferenced but enriched"
		}
		out = append(out, o)
	}
	for _, w := range s.WorkList() {
		if len(References(s, model.KindWork, w.ID)) > 0 {
			continue
		}
		out = append(out, Orphan{
			Kind:      model.KindWork,
			ID:        w.ID,
			Name:      w.Title,
			Ambiguous: true,
			Reason:    "no performance or episode references",
		})
	}
	for _, p := range s.PerformanceList() {
		if len(References(s, model.KindPerformance, p.ID)) > 0 {
			continue
		}
		o := Orphan{Kind: model.KindPerformance, ID: p.ID, Name: p.Title, Reason: "no episodes"}
		if len(p.Credits) > 0 {
			o.Ambiguous = true
			o.Reason = "no episodes but has credits"
		}
		out = append(out, o)
	}
	return out
}

// CleanupReport is the outcome of an orphan cleanup.
type CleanupReport struct {
	Found   []Orphan
	Deleted []Orphan
	Queued  []Orphan
}

// CleanupOrphans queues ambiguous orphans for review and, when autoDelete is
// set, deletes unambiguous ones. Passes repeat until one deletes nothing.
func (m *Merger) CleanupOrphans(ctx context.Context, autoDelete bool) (CleanupReport, error) {
	var rep CleanupReport
	queued := make(map[model.EntityKind]map[int64]bool)

	for {
		found := FindOrphans(m.snap)
		progress := false
		for _, o := range found {
			if queued[o.Kind][o.ID] {
				continue
			}
			rep.Found = append(rep.Found, o)

			if o.Ambiguous || !autoDelete {
				if queued[o.Kind] == nil {
					queued[o.Kind] = make(map[int64]bool)
				}
				queued[o.Kind][o.ID] = true
				if o.Ambiguous {
					if err := m.w.EnqueueReview(ctx, model.ReviewItem{
						Kind:      model.ReviewOrphan,
						Entity:    o.Kind,
						EntityIDs: []string{itoa(o.ID)},
						Reason:    o.Reason,
					}); err != nil {
						return rep, eris.Wrap(err, "resolve: enqueue orphan")
					}
					rep.Queued = append(rep.Queued, o)
				}
				continue
			}

			if refs := m.scan(m.snap, o.Kind, o.ID); len(refs) > 0 {
				continue
			}
			if err := m.deleteEntity(ctx, o.Kind, o.ID); err != nil {
				return rep, err
			}
			zap.L().Info("resolve: orphan deleted",
				zap.String("component", "resolve"),
				zap.String("kind", string(o.Kind)),
				zap.Int64("id", o.ID),
				zap.String("name", o.Name),
			)
			rep.Deleted = append(rep.Deleted, o)
			progress = true
		}
		if !progress {
			return rep, nil
		}
	}
}
