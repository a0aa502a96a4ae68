package pipeline

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resolve"
)

// Dedup merges duplicate persons and works. Persons that share a name but
// conflict on birth year, death year or Wikidata id are queued as homonyms
// and left alone.
func (p *Pipeline) Dedup(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	sum := report.NewSummary("dedup")
	merger := resolve.NewMerger(snap, p.st)

	dupes, homonyms := resolve.FindPersonDuplicates(snap)
	for _, set := range dupes {
		keep, removed := resolve.ResolveDuplicates(set.Persons(snap))
		if keep == nil {
			continue
		}
		ids := make([]int64, len(removed))
		for i, r := range removed {
			ids[i] = r.ID
		}
		res, err := merger.MergePersons(ctx, keep.ID, ids)
		tally(sum, set, res)
		if err != nil {
			return sum, eris.Wrapf(err, "pipeline: merge persons into %d", keep.ID)
		}
	}

	for _, set := range homonyms {
		sum.Ambiguous++
		if err := p.st.EnqueueReview(ctx, model.ReviewItem{
			Kind:      model.ReviewHomonym,
			Entity:    model.KindPerson,
			EntityIDs: idStrings(set.IDs),
			Reason:    "same name " + strconv.Quote(set.Key) + " with conflicting birth year, death year or wikidata id",
		}); err != nil {
			return sum, eris.Wrap(err, "pipeline: enqueue homonym")
		}
		sum.Queued++
		zap.L().Info("pipeline: homonym queued",
			zap.String("component", "dedup"),
			zap.String("name", set.Key),
			zap.Int64s("person_ids", set.IDs),
		)
	}

	for _, set := range resolve.FindWorkDuplicates(snap) {
		keep, removed := resolve.ResolveDuplicates(set.Works(snap))
		if keep == nil {
			continue
		}
		ids := make([]int64, len(removed))
		for i, r := range removed {
			ids[i] = r.ID
		}
		res, err := merger.MergeWorks(ctx, keep.ID, ids)
		tally(sum, set, res)
		if err != nil {
			return sum, eris.Wrapf(err, "pipeline: merge works into %d", keep.ID)
		}
	}
	return sum, nil
}

func tally(sum *report.Summary, set resolve.DuplicateSet, res resolve.Result) {
	sum.Processed += len(set.IDs)
	sum.Merged += len(res.Deleted)
	sum.Queued += len(res.Violations)
	sum.Errors += len(res.Violations)
}

func idStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
