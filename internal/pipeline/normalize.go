package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/normalize"
	"github.com/teaterarkiv/archive-cli/internal/report"
)

// Normalize recomputes NormalizedName for every person and saves the ones
// that changed.
func (p *Pipeline) Normalize(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	sum := report.NewSummary("normalize")
	for _, person := range snap.PersonList() {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "pipeline: normalize cancelled")
		}
		sum.Processed++
		n := normalize.Name(person.Name)
		if n == person.NormalizedName {
			continue
		}
		updated := *person.Clone()
		updated.NormalizedName = n
		if err := p.st.SavePerson(ctx, updated); err != nil {
			return sum, eris.Wrapf(err, "pipeline: save person %d", person.ID)
		}
		snap.Persons[person.ID] = &updated
		sum.Updated++
		zap.L().Debug("pipeline: normalized name",
			zap.String("component", "normalize"),
			zap.Int64("person_id", person.ID),
			zap.String("from", person.NormalizedName),
			zap.String("to", n),
		)
	}
	return sum, nil
}
