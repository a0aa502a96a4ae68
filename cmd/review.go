package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var (
	reviewKind  string
	reviewAll   bool
	reviewLimit int
	reviewXLSX  string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and resolve the manual review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			items, err := st.ListReview(ctx, reviewFilter())
			if err != nil {
				return err
			}
			return report.WriteReview(os.Stdout, items)
		})
	},
}

var reviewExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write review items to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			items, err := st.ListReview(ctx, reviewFilter())
			if err != nil {
				return err
			}
			if err := report.WriteReviewXLSX(reviewXLSX, items); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %d review items to %s\n", len(items), reviewXLSX)
			return nil
		})
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <id>...",
	Short: "Mark review items as resolved",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			for _, id := range args {
				if dryRun {
					fmt.Fprintf(os.Stdout, "would resolve %s\n", id)
					continue
				}
				if err := st.ResolveReview(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "resolved %s\n", id)
			}
			return nil
		})
	},
}

func reviewFilter() store.ReviewFilter {
	return store.ReviewFilter{
		Kind:            model.ReviewKind(reviewKind),
		IncludeResolved: reviewAll,
		Limit:           reviewLimit,
	}
}

func init() {
	for _, c := range []*cobra.Command{reviewListCmd, reviewExportCmd} {
		c.Flags().StringVar(&reviewKind, "kind", "", "only items of this kind (referential_violation, homonym, orphan, fetch_failed)")
		c.Flags().BoolVar(&reviewAll, "all", false, "include resolved items")
		c.Flags().IntVar(&reviewLimit, "limit", 500, "max items")
	}
	reviewExportCmd.Flags().StringVar(&reviewXLSX, "xlsx", "review.xlsx", "output workbook path")

	reviewCmd.AddCommand(reviewListCmd, reviewExportCmd, reviewResolveCmd)
	rootCmd.AddCommand(reviewCmd)
}
