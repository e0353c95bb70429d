// Package download waits for browser downloads to settle.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Result tells a caller whether the directory settled before the deadline.
type Result int

const (
	Completed Result = iota
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Chrome writes partial downloads with this suffix and renames them when done.
const ChromePartialSuffix = ".crdownload"

const defaultInterval = time.Second

type Watcher struct {
	Interval time.Duration
	Suffixes []string
	logger   *slog.Logger
}

func NewWatcher(logger *slog.Logger) *Watcher {
	return &Watcher{
		Interval: defaultInterval,
		Suffixes: []string{ChromePartialSuffix},
		logger:   logger,
	}
}

// Wait polls dir every Interval until no file in it carries an in-progress
// suffix, and reports TimedOut once timeout has elapsed without that
// happening. The first check happens one interval after the call. An Interval
// that is not positive polls every second.
func (w *Watcher) Wait(ctx context.Context, dir string, timeout time.Duration) (Result, error) {
	w.logger.Info("waiting for downloads", "dir", dir, "timeout", timeout)

	deadline := time.Now().Add(timeout)
	interval := w.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		case <-ticker.C:
		}

		pending, err := w.Pending(dir)
		if err != nil {
			return TimedOut, err
		}
		if len(pending) == 0 {
			return Completed, nil
		}

		if !time.Now().Before(deadline) {
			w.logger.Warn("downloads still in progress after timeout", "dir", dir, "files", pending)
			return TimedOut, nil
		}
	}
}

// Pending lists the files of dir that are still being written.
func (w *Watcher) Pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list download directory: %w", err)
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suffix := range w.Suffixes {
			if strings.HasSuffix(e.Name(), suffix) {
				pending = append(pending, e.Name())
				break
			}
		}
	}
	return pending, nil
}
