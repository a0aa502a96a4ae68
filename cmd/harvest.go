package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/fetcher"
	"github.com/teaterarkiv/archive-cli/internal/harvest"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var harvestIDsPath string

var harvestCmd = &cobra.Command{
	Use:   "harvest [prf-id...]",
	Short: "Fetch episodes from NRK by PRF id",
	Long:  "Fetches programme metadata from the NRK API and upserts one episode per PRF id. Ids come from the arguments and from --ids (CSV, text or XLSX, first column).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := append([]string(nil), args...)
		if harvestIDsPath != "" {
			fromFile, err := fetcher.ReadIDs(harvestIDsPath)
			if err != nil {
				return err
			}
			ids = append(ids, fromFile...)
		}
		if len(ids) == 0 {
			return eris.New("no PRF ids given (pass ids as arguments or --ids)")
		}

		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			h := harvest.New(newNRK(), st, harvest.Config{
				Retry:            retryConfig(),
				BreakerThreshold: cfg.Fetch.BreakerThreshold,
				BreakerCooldown:  cfg.Fetch.BreakerCooldown,
			})
			return h.Run(ctx, snap, ids)
		})
	},
}

func init() {
	harvestCmd.Flags().StringVar(&harvestIDsPath, "ids", "", "file with PRF ids in the first column")
	rootCmd.AddCommand(harvestCmd)
}
