package grouping

import (
	"sort"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/normalize"
)

// Plan describes the Performance one group resolves to.
type Plan struct {
	Key GroupKey
	// PerformanceID is the retained id, 0 when a new one must be allocated.
	PerformanceID int64
	Title         string
	Year          int
	Medium        model.Medium
	SeriesID      string
	WorkID        *int64
	TotalDuration int
	Credits       []model.Credit
	// Episodes lists member PRF ids in order.
	Episodes []string
	// Superseded lists performance ids held by members other than the
	// retained one.
	Superseded []int64
}

// Performance builds the record the plan resolves to. Fields missing from
// the plan are kept from existing when it is non-nil.
func (p Plan) Performance(id int64, existing *model.Performance) model.Performance {
	perf := model.Performance{}
	if existing != nil {
		perf = *existing.Clone()
	}
	perf.ID = id
	perf.Title = p.Title
	perf.Medium = p.Medium
	perf.TotalDuration = p.TotalDuration
	perf.Credits = p.Credits
	if p.Year > 0 {
		perf.Year = p.Year
	}
	if p.SeriesID != "" {
		perf.SeriesID = p.SeriesID
	}
	if p.WorkID != nil {
		w := *p.WorkID
		perf.WorkID = &w
	}
	return perf
}

// BuildPlans turns a grouping into one Plan per group, in key order.
//
// The retained performance is the lowest existing id referenced by the
// group's members. An id already retained by an earlier group is not reused;
// the next lowest is taken, or a new id is requested.
func BuildPlans(g Grouping, perfs map[int64]*model.Performance) []Plan {
	claimed := make(map[int64]bool)
	keys := g.Keys()
	plans := make([]Plan, 0, len(keys))

	for _, k := range keys {
		members := g[k]
		plan := Plan{Key: k, Medium: k.Medium}

		held := heldPerformances(members, perfs)
		for _, id := range held {
			if !claimed[id] {
				plan.PerformanceID = id
				claimed[id] = true
				break
			}
		}
		for _, id := range held {
			if id != plan.PerformanceID {
				plan.Superseded = append(plan.Superseded, id)
			}
		}

		var credits []model.Credit
		if plan.PerformanceID != 0 {
			credits = append(credits, perfs[plan.PerformanceID].Credits...)
		}
		for _, id := range plan.Superseded {
			credits = append(credits, perfs[id].Credits...)
		}

		series := members[0].SeriesID
		for _, ep := range members {
			plan.Episodes = append(plan.Episodes, ep.PrfID)
			plan.TotalDuration += ep.Duration
			credits = append(credits, ep.Credits...)
			if ep.SeriesID != series {
				series = ""
			}
			if plan.Medium == "" {
				plan.Medium = ep.Medium
			}
		}
		plan.SeriesID = series
		plan.Year = minYear(members)
		plan.Credits = model.DedupeCredits(credits)
		plan.WorkID = groupWork(members)
		plan.Title = planTitle(k, members, perfs[plan.PerformanceID])

		plans = append(plans, plan)
	}
	return plans
}

// heldPerformances returns the distinct existing performance ids referenced
// by members, ascending.
func heldPerformances(members []model.Episode, perfs map[int64]*model.Performance) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, ep := range members {
		if ep.PerformanceID == nil {
			continue
		}
		id := *ep.PerformanceID
		if seen[id] || perfs[id] == nil {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func groupWork(members []model.Episode) *int64 {
	var work *int64
	for _, ep := range members {
		if ep.PlayID == nil {
			continue
		}
		if work != nil && *work != *ep.PlayID {
			return nil
		}
		work = ep.PlayID
	}
	if work == nil {
		return nil
	}
	w := *work
	return &w
}

// planTitle picks the display title. Series groups keep a titled retained
// performance; otherwise the base title of the first member is used.
func planTitle(k GroupKey, members []model.Episode, retained *model.Performance) string {
	if k.Series() && retained != nil && retained.Title != "" {
		return retained.Title
	}
	for _, ep := range members {
		if t := normalize.BaseTitle(ep.Title); t != "" {
			return t
		}
	}
	if retained != nil {
		return retained.Title
	}
	return k.BaseTitle
}
