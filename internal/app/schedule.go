package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedule runs fn on the cron spec until ctx is done. Runs never overlap: a
// tick that arrives while fn is still running is skipped. Errors of fn are
// logged and do not stop the schedule.
func Schedule(ctx context.Context, spec string, fn func(context.Context) error, logger *slog.Logger) error {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		logger.Info("scheduled run starting", "schedule", spec)
		if err := fn(ctx); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("scheduler started", "schedule", spec, "next", c.Entries()[0].Next)

	<-ctx.Done()
	logger.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}
