package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resolve"
)

// Orphans reports unreferenced records, queues the ambiguous ones for review
// and, when configured, deletes the rest.
func (p *Pipeline) Orphans(ctx context.Context, snap *model.Snapshot) (*report.Summary, resolve.CleanupReport, error) {
	sum := report.NewSummary("orphans")
	rep, err := resolve.NewMerger(snap, p.st).CleanupOrphans(ctx, p.cfg.AutoDeleteOrphans)
	sum.Processed = len(rep.Found)
	sum.Deleted = len(rep.Deleted)
	sum.Queued = len(rep.Queued)
	sum.Ambiguous = len(rep.Queued)
	if err != nil {
		return sum, rep, eris.Wrap(err, "pipeline: orphan cleanup")
	}
	return sum, rep, nil
}
