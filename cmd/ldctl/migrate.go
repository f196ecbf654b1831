package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rog/backend/internal/infra"
)

func migrateCommand(cc *cliContext) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			switch direction {
			case "up":
				return infra.RunMigrations(cc.cfg.DSN(), cc.logger)
			case "down":
				if steps <= 0 {
					return fmt.Errorf("--steps must be positive")
				}
				return infra.RollbackMigrations(cc.cfg.DSN(), steps, cc.logger)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}
