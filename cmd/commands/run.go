package commands

import (
	"context"
	"fmt"
	"log/slog"

	"itdash/internal/app"

	"github.com/spf13/cobra"
)

var schedule string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape agencies and investments, download business cases and reconcile them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if schedule != "" {
			cfg.Logic.Schedule = schedule
		}

		robot, cleanup, err := newRobot(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		runOnce := func(ctx context.Context) error {
			summary, err := robot.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d agencies, total spending %s, %d/%d business cases matched\n",
				summary.Agencies, summary.TotalSpending.StringFixed(0), len(summary.Files)-len(summary.Unmatched)-summary.Failed(), len(summary.Files))
			return nil
		}

		if cfg.Logic.Schedule == "" {
			return runOnce(ctx)
		}
		return app.Schedule(ctx, cfg.Logic.Schedule, runOnce, slog.Default())
	},
}

func init() {
	runCmd.Flags().StringVar(&schedule, "schedule", "", "cron spec to run on repeatedly, e.g. \"0 6 * * *\" or \"@daily\"")
	rootCmd.AddCommand(runCmd)
}
