package commands

import (
	"fmt"
	"log/slog"

	"itdash/internal/pdftext"
	"itdash/internal/reconcile"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pdfEngine string

var parsePDFCmd = &cobra.Command{
	Use:   "parse-pdf <file.pdf>...",
	Short: "Print the investment name and UII read from business case PDFs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		extractor, err := pdftext.New(pdfEngine, 0, slog.Default())
		if err != nil {
			return err
		}
		engine := reconcile.NewEngine(extractor, nil, slog.Default())

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"File", "Name", "UII"})

		failed := 0
		for _, path := range args {
			record, err := engine.Extract(cmd.Context(), path)
			if err != nil {
				failed++
				t.AppendRow(table.Row{path, err.Error(), ""})
				continue
			}
			t.AppendRow(table.Row{path, record.Name, record.UII})
		}
		t.Render()

		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be parsed", failed, len(args))
		}
		return nil
	},
}

func init() {
	parsePDFCmd.Flags().StringVar(&pdfEngine, "engine", pdftext.EngineNative, "text extraction engine: native or pdftotext")
	rootCmd.AddCommand(parsePDFCmd)
}
