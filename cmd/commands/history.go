package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"itdash/internal/db"
	"itdash/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyAgency string
	historyLimit  int64
)

// runHistory is the query side of the run store.
type runHistory interface {
	GetRun(ctx context.Context, runID string) (*models.RunRecord, error)
	LastRuns(ctx context.Context, agency string, limit int64) ([]models.RunRecord, error)
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show stored runs of the configured agency, or the details of one run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DB.Connection == "" {
			return errors.New("history needs db.connection in the config")
		}

		mongoDB, err := db.NewMongoDB(ctx, cfg.DB, slog.Default())
		if err != nil {
			return err
		}
		defer mongoDB.Close()

		if len(args) == 1 {
			return showRun(ctx, cmd.OutOrStdout(), mongoDB, args[0])
		}
		agency := historyAgency
		if agency == "" {
			agency = cfg.Settings.Agency
		}
		return showRuns(ctx, cmd.OutOrStdout(), mongoDB, agency, historyLimit)
	},
}

func showRuns(ctx context.Context, w io.Writer, h runHistory, agency string, limit int64) error {
	runs, err := h.LastRuns(ctx, agency, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "no runs stored for %q\n", agency)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(agency)
	t.AppendHeader(table.Row{"Run", "Started", "PDFs", "Matched", "Unmatched", "Errors"})
	for _, run := range runs {
		t.AppendRow(table.Row{run.ID, formatUnix(run.Started), run.PdfCount, run.MatchCount, len(run.UnmatchedFiles), len(run.Errors)})
	}
	t.Render()
	return nil
}

func showRun(ctx context.Context, w io.Writer, h runHistory, runID string) error {
	run, err := h.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Run", run.ID},
		{"Agency", run.Agency},
		{"Workbook", run.Workbook},
		{"Started", formatUnix(run.Started)},
		{"Finished", formatUnix(run.Finished)},
		{"Agencies", run.AgencyCount},
		{"Total spending", run.TotalSpending},
		{"PDFs", run.PdfCount},
		{"Matched", run.MatchCount},
		{"Unmatched", strings.Join(run.UnmatchedFiles, "\n")},
		{"Errors", strings.Join(run.Errors, "\n")},
	})
	t.Render()
	return nil
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format(time.DateTime)
}

func init() {
	historyCmd.Flags().StringVar(&historyAgency, "agency", "", "agency to list runs of (defaults to settings.agency)")
	historyCmd.Flags().Int64VarP(&historyLimit, "limit", "n", 10, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}
