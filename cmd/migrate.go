package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teaterarkiv/archive-cli/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(_ context.Context, _ store.Store) error {
			fmt.Fprintf(os.Stdout, "%s store at %s is up to date\n", cfg.Store.Driver, storeLocation(cfg.Store.Driver, cfg.Store.Path))
			return nil
		})
	},
}

// storeLocation never prints a postgres connection string.
func storeLocation(driver, path string) string {
	if driver == "postgres" {
		return "(database_url)"
	}
	return path
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
