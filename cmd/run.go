package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/pipeline"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run normalize, dedup, group and orphans in order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			return pipeline.New(pipelineConfig(), st).Run(ctx, snap)
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
