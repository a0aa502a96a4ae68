package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/store"
)

var (
	copyDriver string
	copyPath   string
	copyURL    string
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy every record into another store",
	Long:  "Copies persons, works, performances and episodes from the configured store into the target. Records with the same id are overwritten; nothing is deleted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if copyDriver == cfg.Store.Driver && copyPath == cfg.Store.Path && copyURL == cfg.Store.DatabaseURL {
			return eris.New("copy: target is the configured store")
		}
		return withStore(cmd.Context(), func(ctx context.Context, src store.Store) error {
			var dst store.Store = store.NewMemory()
			if !dryRun {
				target, err := openTarget(ctx)
				if err != nil {
					return err
				}
				defer target.Close() //nolint:errcheck

				if err := target.Migrate(ctx); err != nil {
					return eris.Wrap(err, "copy: migrate target")
				}
				dst = target
			}
			n, err := store.Copy(ctx, src, dst)
			zap.L().Info("copy: done", zap.Int("records", n), zap.String("to", copyDriver))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "copied %d records to %s %s\n", n, copyDriver, storeLocation(copyDriver, copyPath))
			return nil
		})
	},
}

func openTarget(ctx context.Context) (store.Store, error) {
	switch copyDriver {
	case "sqlite":
		return store.NewSQLite(copyPath)
	case "yaml":
		return store.NewYAML(copyPath), nil
	case "postgres":
		if copyURL == "" {
			return nil, eris.New("copy: --to-url is required for postgres")
		}
		return store.NewPostgres(ctx, copyURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("copy: unsupported driver %q", copyDriver)
	}
}

func init() {
	copyCmd.Flags().StringVar(&copyDriver, "to-driver", "yaml", "target driver (sqlite, yaml, postgres)")
	copyCmd.Flags().StringVar(&copyPath, "to-path", "archive-yaml", "target sqlite file or yaml directory")
	copyCmd.Flags().StringVar(&copyURL, "to-url", "", "target postgres connection string")
	rootCmd.AddCommand(copyCmd)
}
