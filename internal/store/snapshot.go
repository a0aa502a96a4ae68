package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// LoadSnapshot reads all four collections concurrently and indexes them.
func LoadSnapshot(ctx context.Context, l Loader) (*model.Snapshot, error) {
	start := time.Now()
	var (
		persons  []model.Person
		works    []model.Work
		perfs    []model.Performance
		episodes []model.Episode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		persons, err = l.LoadPersons(gctx)
		return eris.Wrap(err, "store: load persons")
	})
	g.Go(func() error {
		var err error
		works, err = l.LoadWorks(gctx)
		return eris.Wrap(err, "store: load works")
	})
	g.Go(func() error {
		var err error
		perfs, err = l.LoadPerformances(gctx)
		return eris.Wrap(err, "store: load performances")
	})
	g.Go(func() error {
		var err error
		episodes, err = l.LoadEpisodes(gctx)
		return eris.Wrap(err, "store: load episodes")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("store: snapshot loaded",
		zap.Int("persons", len(persons)),
		zap.Int("works", len(works)),
		zap.Int("performances", len(perfs)),
		zap.Int("episodes", len(episodes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return model.NewSnapshot(persons, works, perfs, episodes), nil
}

// Copy writes every record from src into dst. Existing records in dst with
// the same id are overwritten; nothing is deleted.
func Copy(ctx context.Context, src Loader, dst Store) (int, error) {
	snap, err := LoadSnapshot(ctx, src)
	if err != nil {
		return 0, err
	}
	if bulk, ok := dst.(interface {
		Import(ctx context.Context, snap *model.Snapshot) (int, error)
	}); ok {
		return bulk.Import(ctx, snap)
	}

	n := 0
	for _, p := range snap.PersonList() {
		if err := dst.SavePerson(ctx, *p); err != nil {
			return n, eris.Wrapf(err, "store: copy person %d", p.ID)
		}
		n++
	}
	for _, w := range snap.WorkList() {
		if err := dst.SaveWork(ctx, *w); err != nil {
			return n, eris.Wrapf(err, "store: copy work %d", w.ID)
		}
		n++
	}
	for _, p := range snap.PerformanceList() {
		if err := dst.SavePerformance(ctx, *p); err != nil {
			return n, eris.Wrapf(err, "store: copy performance %d", p.ID)
		}
		n++
	}
	for _, e := range snap.EpisodeList() {
		if err := dst.SaveEpisode(ctx, *e); err != nil {
			return n, eris.Wrapf(err, "store: copy episode %s", e.PrfID)
		}
		n++
	}
	return n, nil
}
