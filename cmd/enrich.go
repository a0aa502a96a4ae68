package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/enrich"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
	"github.com/teaterarkiv/archive-cli/pkg/sceneweb"
	"github.com/teaterarkiv/archive-cli/pkg/wikidata"
)

var (
	enrichSkipWikidata bool
	enrichSkipSceneweb bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing person and work fields from Wikidata and Sceneweb",
	Long:  "Looks up persons and works that carry an external id and fills empty fields. Values already present are never overwritten.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if enrichSkipWikidata && enrichSkipSceneweb {
			return eris.New("nothing to do: both --skip-wikidata and --skip-sceneweb set")
		}

		var (
			wd  wikidata.Client
			sw  sceneweb.Client
			err error
		)
		if !enrichSkipWikidata {
			if wd, err = newWikidata(); err != nil {
				return err
			}
		}
		if !enrichSkipSceneweb {
			sw = newSceneweb()
		}

		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			e := enrich.New(wd, sw, st, enrich.Config{
				Retry:            retryConfig(),
				BreakerThreshold: cfg.Fetch.BreakerThreshold,
				BreakerCooldown:  cfg.Fetch.BreakerCooldown,
			})
			return e.Run(ctx, snap)
		})
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichSkipWikidata, "skip-wikidata", false, "do not query Wikidata")
	enrichCmd.Flags().BoolVar(&enrichSkipSceneweb, "skip-sceneweb", false, "do not query Sceneweb")
	rootCmd.AddCommand(enrichCmd)
}
