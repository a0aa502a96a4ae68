// Package pipeline runs the archive's batch passes over a loaded snapshot:
// name normalization, duplicate merging, episode grouping and orphan
// cleanup.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/grouping"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

// Config configures the passes.
type Config struct {
	Grouping grouping.Config
	// AutoDeleteOrphans lets the orphan pass delete unambiguous orphans
	// instead of only reporting them.
	AutoDeleteOrphans bool
}

// Pipeline runs passes against a store. Each pass takes the snapshot it
// works on and keeps it in step with its writes, so passes can be chained
// over one snapshot.
type Pipeline struct {
	cfg    Config
	st     store.Store
	engine *grouping.Engine
}

// New creates a Pipeline.
func New(cfg Config, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		st:     st,
		engine: grouping.New(cfg.Grouping),
	}
}

// Run executes normalize, dedup, group and orphans in that order and
// returns the combined summary. A pass that fails ends the run.
func (p *Pipeline) Run(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	total := report.NewSummary("run")
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", total.RunID))
	log.Info("pipeline: starting")

	phases := []struct {
		name string
		fn   func(context.Context, *model.Snapshot) (*report.Summary, error)
	}{
		{"normalize", p.Normalize},
		{"dedup", p.Dedup},
		{"group", p.Group},
		{"orphans", func(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
			sum, _, err := p.Orphans(ctx, snap)
			return sum, err
		}},
	}

	for _, ph := range phases {
		start := time.Now()
		sum, err := ph.fn(ctx, snap)
		total.Add(sum)
		if err != nil {
			log.Error("pipeline: phase failed",
				zap.String("phase", ph.name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return total, err
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", ph.name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return total, nil
}
