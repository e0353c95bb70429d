package pdftext

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// Native reads the embedded text layer with ledongthuc/pdf. Scanned pages
// come back empty.
type Native struct {
	logger *slog.Logger
}

func NewNative(logger *slog.Logger) *Native {
	return &Native{logger: logger}
}

func (n *Native) Pages(ctx context.Context, path string) (pages []string, err error) {
	// the reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	numPages := r.NumPage()
	pages = make([]string, 0, numPages)
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		text, pageErr := p.GetPlainText(fonts)
		if pageErr != nil {
			return nil, fmt.Errorf("read pdf page %d of %s: %w", i, path, pageErr)
		}
		pages = append(pages, text)
	}

	n.logger.Debug("extracted pdf text", "file", path, "pages", len(pages))
	return pages, nil
}
