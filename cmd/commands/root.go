package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"itdash/internal/app"
	"itdash/internal/config"
	"itdash/internal/db"
	"itdash/internal/logging"
	"itdash/internal/pdftext"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "itdash",
	Short:         "itdash scrapes IT Dashboard investments and checks them against their business case PDFs.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.RobotConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newRobot wires the robot from cfg. The returned cleanup closes the store.
func newRobot(ctx context.Context, cfg *config.RobotConfig) (*app.Robot, func(), error) {
	logger := slog.Default()

	extractor, err := pdftext.New(cfg.Logic.PDFEngine, cfg.Logic.PageTimeout(), logger)
	if err != nil {
		return nil, nil, err
	}

	var store app.Store
	cleanup := func() {}
	if cfg.DB.Connection != "" {
		mongoDB, err := db.NewMongoDB(ctx, cfg.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		store = mongoDB
		cleanup = func() {
			if err := mongoDB.Close(); err != nil {
				logger.Warn("failed to close MongoDB", "error", err)
			}
		}
	}

	robot := app.NewRobot(cfg, app.DefaultNavigatorFactory(cfg, logger), extractor, store, os.Stdout, logger)
	return robot, cleanup, nil
}
