package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/config"
)

var (
	cfg    *config.Config
	dryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "archive-cli",
	Short: "Entity resolution for a theatre and radio archive",
	Long: "Harvests broadcast metadata, links episodes to works and playwrights, " +
		"groups multi-part broadcasts into performances and merges duplicate persons and works. " +
		"Every pass is idempotent and can be re-run against the existing store.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "run against an in-memory copy of the store; nothing is written")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
