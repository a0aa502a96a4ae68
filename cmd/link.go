package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/classify"
	"github.com/teaterarkiv/archive-cli/internal/link"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var linkNoOracle bool

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link episodes to works and works to playwrights",
	Long: "Matches unlinked episode titles against known works, boosted by the work's playwright when the " +
		"description mentions them. Works without a playwright are sent to the suggestion model and the " +
		"answer is matched against known persons.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var oracle classify.Oracle
		if !linkNoOracle {
			oracle = newOracle()
		}
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			l := link.New(st, oracle, link.Config{
				Threshold: cfg.Matching.Threshold,
				Match:     matchConfig(),
			})
			return l.Run(ctx, snap)
		})
	},
}

func init() {
	linkCmd.Flags().BoolVar(&linkNoOracle, "no-oracle", false, "skip playwright suggestions")
	rootCmd.AddCommand(linkCmd)
}
