package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const defaultPopplerTimeout = 60 * time.Second

// Poppler shells out to pdftotext from poppler-utils. Its output separates
// pages with form feeds.
type Poppler struct {
	Binary  string
	Timeout time.Duration
	logger  *slog.Logger
}

func NewPoppler(timeout time.Duration, logger *slog.Logger) *Poppler {
	if timeout <= 0 {
		timeout = defaultPopplerTimeout
	}
	return &Poppler{
		Binary:  "pdftotext",
		Timeout: timeout,
		logger:  logger,
	}
}

func (p *Poppler) Pages(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary, "-raw", path, "-")

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s binary not found, install poppler-utils: %w", p.Binary, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdftotext on %s timed out after %s: %w", path, p.Timeout, ctx.Err())
		}
		return nil, fmt.Errorf("pdftotext on %s failed: %w (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
	}

	pages := splitPages(out.String())
	p.logger.Debug("extracted pdf text", "file", path, "pages", len(pages), "engine", EnginePdftotext)
	return pages, nil
}

func splitPages(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	// pdftotext terminates every page, including the last, with a form feed
	if strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
