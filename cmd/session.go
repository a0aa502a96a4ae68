package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

// passFunc runs one pass over a snapshot, writing through st.
type passFunc func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error)

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "yaml":
		return store.NewYAML(cfg.Store.Path), nil
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// withStore holds the store lock and an open, migrated store for the
// duration of fn.
func withStore(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	lock, err := store.AcquireLock(cfg.Store.LockPath)
	if err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}
	return fn(ctx, st)
}

// runPass loads the snapshot and runs pass. With --dry-run the pass writes
// to an in-memory copy. The summary is printed even when the pass fails.
func runPass(ctx context.Context, pass passFunc) error {
	return withStore(ctx, func(ctx context.Context, st store.Store) error {
		snap, err := store.LoadSnapshot(ctx, st)
		if err != nil {
			return err
		}

		target := st
		if dryRun {
			zap.L().Info("dry run: writes go to an in-memory copy")
			target = store.NewMemoryFrom(snap)
		}

		sum, err := pass(ctx, target, snap)
		if sum != nil {
			sum.Log()
			if werr := report.WriteSummary(os.Stdout, sum); werr != nil {
				zap.L().Warn("print summary", zap.Error(werr))
			}
		}
		return err
	})
}
