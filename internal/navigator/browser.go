package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"itdash/internal/download"
	"itdash/internal/models"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// selectAllScript switches the investments table page size to "All".
const selectAllScript = `(() => {
	const select = document.querySelector(%q);
	if (!select) return false;
	const option = Array.from(select.options).find(o => o.text.trim() === "All");
	if (!option) return false;
	select.value = option.value;
	select.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`

// hiddenScript is truthy once the element is gone or no longer rendered.
const hiddenScript = `(() => {
	const el = document.querySelector(%q);
	return !el || el.offsetParent === null;
})()`

// Browser drives a Chrome instance through the DevTools protocol.
type Browser struct {
	opts    Options
	dir     string
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *download.Watcher
	logger  *slog.Logger
}

func NewBrowser(ctx context.Context, opts Options, logger *slog.Logger) (*Browser, error) {
	dir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.ShowBrowser),
		chromedp.Flag("safebrowsing-disable-download-protection", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	b := &Browser{
		opts: opts,
		dir:  dir,
		ctx:  browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		watcher: download.NewWatcher(logger),
		logger:  logger,
	}
	if opts.PollInterval > 0 {
		b.watcher.Interval = opts.PollInterval
	}

	logger.Info("starting browser", "headless", !opts.ShowBrowser, "download_dir", dir)
	err = chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir),
	)
	if err != nil {
		b.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

// run executes actions in the browser tab, bounded by timeout and by ctx.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *Browser) ListAgencies(ctx context.Context) ([]models.AgencySummary, error) {
	b.logger.Info("opening site", "url", b.opts.SiteURL)

	var tilesHTML, location string
	err := b.run(ctx, b.opts.PageTimeout,
		chromedp.Navigate(b.opts.SiteURL),
		chromedp.Click(diveInSelector, chromedp.ByQuery),
		chromedp.WaitVisible(agencyTileSelector, chromedp.ByQuery),
		chromedp.OuterHTML(agencyTilesSelector, &tilesHTML, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load agency tiles: %w", err)
	}

	agencies, err := parseAgencyTiles(tilesHTML, location)
	if err != nil {
		return nil, err
	}
	b.logger.Info("agencies collected", "count", len(agencies))
	return agencies, nil
}

func (b *Browser) SelectAgency(ctx context.Context, agency models.AgencySummary) (Table, error) {
	target, err := agencyURL(b.opts.SiteURL, agency)
	if err != nil {
		return Table{}, err
	}

	b.logger.Info("opening agency", "agency", agency.Name, "url", target)
	if err := b.run(ctx, b.opts.PageTimeout,
		chromedp.Navigate(target),
		chromedp.WaitVisible(pageSizeSelector, chromedp.ByQuery),
	); err != nil {
		return Table{}, fmt.Errorf("investments table of %q did not load: %w", agency.Name, err)
	}

	var selected bool
	if err := b.run(ctx, b.opts.ButtonTimeout,
		chromedp.Evaluate(fmt.Sprintf(selectAllScript, pageSizeSelector), &selected),
	); err != nil {
		return Table{}, fmt.Errorf("failed to show all investments: %w", err)
	}
	if !selected {
		return Table{}, fmt.Errorf("page size option %q not found", "All")
	}

	b.logger.Info("waiting until investments table is loaded")
	table := Table{}
	if err := b.run(ctx, b.opts.PageTimeout,
		chromedp.WaitNotPresent(nextPageSelector, chromedp.ByQuery),
		chromedp.OuterHTML(investmentsTableSelector, &table.HTML, chromedp.ByQuery),
		chromedp.Location(&table.URL),
	); err != nil {
		return Table{}, fmt.Errorf("investments table of %q did not finish loading: %w", agency.Name, err)
	}
	b.logger.Info("investments table parsed", "agency", agency.Name)
	return table, nil
}

func (b *Browser) TableHTML(_ context.Context, table Table) (string, error) {
	if table.HTML == "" {
		return "", ErrTableNotFound
	}
	return table.HTML, nil
}

func (b *Browser) PDFLinks(_ context.Context, table Table) ([]string, error) {
	return tableLinks(table)
}

func (b *Browser) Download(ctx context.Context, link string) (models.PdfFileReference, error) {
	ref, err := models.NewPdfFileReference(link)
	if err != nil {
		return ref, err
	}

	b.logger.Info("opening investment", "url", link)
	if err := b.run(ctx, b.opts.ButtonTimeout,
		chromedp.Navigate(link),
		chromedp.WaitVisible(businessCaseButtonSelector, chromedp.ByQuery),
		chromedp.Click(businessCaseButtonSelector, chromedp.ByQuery),
	); err != nil {
		return ref, fmt.Errorf("business case button of %s: %w", link, err)
	}

	b.logger.Info("generating pdf", "file", ref.FileName)
	var hidden bool
	if err := b.run(ctx, b.opts.ButtonTimeout,
		chromedp.Poll(fmt.Sprintf(hiddenScript, generatingSelector), &hidden,
			chromedp.WithPollingInterval(250*time.Millisecond)),
	); err != nil {
		return ref, fmt.Errorf("pdf generation of %s: %w", link, err)
	}

	res, err := b.watcher.Wait(ctx, b.dir, b.opts.DownloadTimeout)
	if err != nil {
		return ref, err
	}
	if res == download.TimedOut {
		return ref, fmt.Errorf("%s: %w", ref.FileName, ErrDownloadTimeout)
	}

	if _, err := os.Stat(filepath.Join(b.dir, ref.FileName)); errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("download finished but file is missing", "file", ref.FileName, "dir", b.dir)
	} else {
		b.logger.Info("pdf downloaded", "file", ref.FileName)
	}
	return ref, nil
}

func (b *Browser) Close() error {
	b.logger.Info("closing browser")
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
