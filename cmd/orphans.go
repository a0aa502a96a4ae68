package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/pipeline"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resolve"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

var orphansDelete bool

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Report unreferenced persons, works and performances",
	Long:  "Lists records nothing references. Ambiguous orphans are queued for review; with --delete (or orphans.auto_delete) the unambiguous ones are deleted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pc := pipelineConfig()
		if cmd.Flags().Changed("delete") {
			pc.AutoDeleteOrphans = orphansDelete
		}
		return runPass(cmd.Context(), func(ctx context.Context, st store.Store, snap *model.Snapshot) (*report.Summary, error) {
			sum, rep, err := pipeline.New(pc, st).Orphans(ctx, snap)
			if len(rep.Found) > 0 {
				fmt.Fprintln(os.Stdout, orphanTable(rep))
			}
			return sum, err
		})
	},
}

func orphanTable(rep resolve.CleanupReport) string {
	key := func(o resolve.Orphan) string { return string(o.Kind) + "/" + strconv.FormatInt(o.ID, 10) }
	action := make(map[string]string, len(rep.Deleted)+len(rep.Queued))
	for _, o := range rep.Deleted {
		action[key(o)] = "deleted"
	}
	for _, o := range rep.Queued {
		action[key(o)] = "queued"
	}
	rows := make([][]string, 0, len(rep.Found))
	for _, o := range rep.Found {
		a := action[key(o)]
		if a == "" {
			a = "kept"
		}
		rows = append(rows, []string{string(o.Kind), strconv.FormatInt(o.ID, 10), o.Name, o.Reason, a})
	}
	return report.RenderTable([]string{"Kind", "ID", "Name", "Reason", "Action"}, rows,
		[]report.Align{report.AlignLeft, report.AlignRight})
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansDelete, "delete", false, "delete unambiguous orphans")
	rootCmd.AddCommand(orphansCmd)
}
