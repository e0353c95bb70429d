package commands

import (
	"fmt"
	"path/filepath"

	"itdash/internal/app"
	"itdash/internal/models"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [file.pdf...]",
	Short: "Check downloaded business cases against the saved workbook without opening the site.",
	Long: "Reads the investments sheet of the configured workbook and compares it with the named PDFs " +
		"in the output directory, or with every PDF there when none are named. Only the base name of " +
		"each argument is used, so output/x.pdf and x.pdf name the same file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		files := namedFiles(args)
		if len(files) == 0 {
			files, err = app.DownloadedFiles(cfg.Output.Dir)
			if err != nil {
				return err
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no pdf files in %s", cfg.Output.Dir)
		}

		robot, cleanup, err := newRobot(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := robot.Reconcile(ctx, files)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d matches, %d unmatched, %d failed\n",
			len(summary.Matches), len(summary.Unmatched), summary.Failed())
		return nil
	},
}

// namedFiles turns command line arguments into references inside the output
// directory.
func namedFiles(args []string) []models.PdfFileReference {
	files := make([]models.PdfFileReference, len(args))
	for i, arg := range args {
		files[i] = models.PdfFileReference{FileName: filepath.Base(arg)}
	}
	return files
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
