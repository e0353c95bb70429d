package commands

import (
	"log/slog"

	"itdash/internal/app"
	"itdash/internal/navigator"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var agenciesCmd = &cobra.Command{
	Use:   "agencies",
	Short: "List the agencies shown on the dashboard with their spending.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		nav, err := navigator.New(ctx, cfg.Site.Backend, app.NavigatorOptions(cfg), slog.Default())
		if err != nil {
			return err
		}
		defer nav.Close()

		agencies, err := nav.ListAgencies(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Agency", "Spending"})
		for _, a := range agencies {
			t.AppendRow(table.Row{a.Name, a.SpendingAmount})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agenciesCmd)
}
