// Package pdftext returns the text of a PDF document page by page.
package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	EngineNative    = "native"
	EnginePdftotext = "pdftotext"
)

// Extractor returns one string per page, in page order. Pages that carry no
// text layer are returned as empty strings so page indices stay stable.
type Extractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

func New(engine string, timeout time.Duration, logger *slog.Logger) (Extractor, error) {
	switch engine {
	case "", EngineNative:
		return NewNative(logger), nil
	case EnginePdftotext:
		return NewPoppler(timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", engine)
	}
}
