package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/pipeline"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Group episodes into performances",
	Long:  "Partitions episodes by medium, base title and series, work or year, merges multi-part broadcasts and points every episode at its performance.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			return pipeline.New(pipelineConfig(), st).Group(ctx, snap)
		})
	},
}

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Merge duplicate persons and works",
	Long:  "Merges persons sharing a Wikidata id or a compatible normalized name, and works sharing a Wikidata id. Homonyms are queued for review.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			return pipeline.New(pipelineConfig(), st).Dedup(ctx, snap)
		})
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Recompute normalized person names",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			return pipeline.New(pipelineConfig(), st).Normalize(ctx, snap)
		})
	},
}

func init() {
	rootCmd.AddCommand(groupCmd, dedupCmd, normalizeCmd)
}
