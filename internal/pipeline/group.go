package pipeline

import (
	"context"
	"reflect"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/grouping"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resolve"
)

// Group partitions the episodes into performances. Each group's retained
// performance is saved first, then its episodes are pointed at it, and
// only then are superseded performances deleted, once no episode references
// them.
func (p *Pipeline) Group(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	sum := report.NewSummary("group")
	g := p.engine.Group(snap.EpisodeValues(), nil)
	plans := grouping.BuildPlans(g, snap.Performances)
	sum.Processed = g.Size()

	var superseded []int64
	repointed := 0
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "pipeline: group cancelled")
		}
		n, err := p.applyPlan(ctx, snap, plan, sum)
		if err != nil {
			return sum, err
		}
		repointed += n
		superseded = append(superseded, plan.Superseded...)
	}

	seen := make(map[int64]bool, len(superseded))
	for _, id := range superseded {
		if seen[id] || snap.Performances[id] == nil {
			continue
		}
		seen[id] = true
		if refs := resolve.References(snap, model.KindPerformance, id); len(refs) > 0 {
			continue
		}
		if err := p.st.DeletePerformance(ctx, id); err != nil {
			return sum, eris.Wrapf(err, "pipeline: delete performance %d", id)
		}
		delete(snap.Performances, id)
		sum.Deleted++
		zap.L().Info("pipeline: superseded performance deleted",
			zap.String("component", "group"),
			zap.Int64("performance_id", id),
		)
	}

	zap.L().Info("pipeline: grouping done",
		zap.String("component", "group"),
		zap.Int("episodes", g.Size()),
		zap.Int("groups", len(plans)),
		zap.Int("episodes_repointed", repointed),
	)
	return sum, nil
}

// applyPlan writes one group and returns the number of episodes repointed.
func (p *Pipeline) applyPlan(ctx context.Context, snap *model.Snapshot, plan grouping.Plan, sum *report.Summary) (int, error) {
	id := plan.PerformanceID
	existing := snap.Performances[id]
	if id == 0 {
		next, err := p.st.NextID(ctx, model.KindPerformance)
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: allocate performance id")
		}
		id = next
	}
	log := zap.L().With(
		zap.String("component", "group"),
		zap.Int64("performance_id", id),
		zap.String("key", plan.Key.String()),
	)

	perf := plan.Performance(id, existing)
	if existing == nil || !samePerformance(existing, &perf) {
		if err := p.st.SavePerformance(ctx, perf); err != nil {
			return 0, eris.Wrapf(err, "pipeline: save performance %d", id)
		}
		snap.Performances[id] = &perf
		if existing == nil {
			sum.Created++
			log.Info("pipeline: performance created",
				zap.String("title", perf.Title),
				zap.Int("episodes", len(plan.Episodes)),
			)
		} else {
			sum.Updated++
			log.Debug("pipeline: performance updated", zap.String("title", perf.Title))
		}
	}
	if len(plan.Episodes) > 1 {
		sum.Matched++
	}

	repointed := 0
	for _, prf := range plan.Episodes {
		ep := snap.Episodes[prf]
		if ep == nil || (ep.PerformanceID != nil && *ep.PerformanceID == id) {
			continue
		}
		updated := *ep.Clone()
		updated.PerformanceID = model.Int64Ptr(id)
		if err := p.st.SaveEpisode(ctx, updated); err != nil {
			return repointed, eris.Wrapf(err, "pipeline: save episode %s", prf)
		}
		snap.Episodes[prf] = &updated
		repointed++
	}
	return repointed, nil
}

func samePerformance(a, b *model.Performance) bool {
	x, y := *a, *b
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	if len(x.Credits) == 0 {
		x.Credits = nil
	}
	if len(y.Credits) == 0 {
		y.Credits = nil
	}
	return reflect.DeepEqual(x, y)
}
