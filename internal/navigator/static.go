package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"itdash/internal/models"
	"itdash/internal/tablehtml"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/gocolly/colly"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

var (
	ErrCaptcha    = errors.New("captcha detected")
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Static reads server-rendered pages over plain HTTP. It needs no browser and
// serves mirrors of the dashboard that render tables without scripts.
type Static struct {
	opts      Options
	dir       string
	client    *resty.Client
	collector *colly.Collector
	robots    *robotstxt.Group
	logger    *slog.Logger
}

func NewStatic(ctx context.Context, opts Options, logger *slog.Logger) (*Static, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	client := resty.New().
		SetTimeout(opts.RequestTimeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(15))

	c := colly.NewCollector(colly.UserAgent(opts.UserAgent))
	c.MaxBodySize = 0
	c.AllowURLRevisit = true
	c.SetRequestTimeout(opts.DownloadTimeout)

	s := &Static{
		opts:      opts,
		dir:       opts.OutputDir,
		client:    client,
		collector: c,
		logger:    logger,
	}
	s.initRobotsTxt(ctx)
	return s, nil
}

// initRobotsTxt loads the site's robots.txt. A missing or unreadable file
// allows everything.
func (s *Static) initRobotsTxt(ctx context.Context) {
	u, err := url.Parse(s.opts.SiteURL)
	if err != nil || u.Host == "" {
		s.logger.Warn("cannot derive robots.txt location", "url", s.opts.SiteURL)
		return
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	s.logger.Debug("loading robots.txt", "url", robotsURL)

	resp, err := s.client.R().SetContext(ctx).Get(robotsURL)
	if err != nil {
		s.logger.Warn("failed to load robots.txt, ignoring", "error", err)
		return
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
	if err != nil {
		s.logger.Warn("failed to parse robots.txt", "error", err)
		return
	}
	s.robots = data.FindGroup(s.opts.UserAgent)
}

func (s *Static) allowed(link string) bool {
	if s.robots == nil {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return s.robots.Test(u.EscapedPath())
}

// fetch returns the body of link decoded to UTF-8.
func (s *Static) fetch(ctx context.Context, link string) (string, error) {
	if !s.allowed(link) {
		return "", fmt.Errorf("%s: %w", link, ErrDisallowed)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("GET %s: HTTP %d", link, resp.StatusCode())
	}

	utf8Reader, err := charset.NewReader(body, resp.Header().Get("Content-Type"))
	if err != nil {
		utf8Reader = body
	}
	data, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}

	page := string(data)
	if hasCaptcha(page) {
		return "", fmt.Errorf("%s: %w", link, ErrCaptcha)
	}
	return page, nil
}

// hasCaptcha reports whether page carries a challenge widget or form.
func hasCaptcha(page string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return false
	}
	return doc.Find(captchaSelector).Length() > 0
}

func (s *Static) ListAgencies(ctx context.Context) ([]models.AgencySummary, error) {
	s.logger.Info("opening site", "url", s.opts.SiteURL)
	page, err := s.fetch(ctx, s.opts.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load agency tiles: %w", err)
	}
	agencies, err := parseAgencyTiles(page, s.opts.SiteURL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("agencies collected", "count", len(agencies))
	return agencies, nil
}

func (s *Static) SelectAgency(ctx context.Context, agency models.AgencySummary) (Table, error) {
	target, err := agencyURL(s.opts.SiteURL, agency)
	if err != nil {
		return Table{}, err
	}

	s.logger.Info("opening agency", "agency", agency.Name, "url", target)
	page, err := s.fetch(ctx, target)
	if err != nil {
		return Table{}, fmt.Errorf("investments table of %q did not load: %w", agency.Name, err)
	}

	tableHTML, err := investmentsTable(page)
	if err != nil {
		return Table{}, fmt.Errorf("agency %q: %w", agency.Name, err)
	}
	return Table{URL: target, HTML: tableHTML}, nil
}

func (s *Static) TableHTML(_ context.Context, table Table) (string, error) {
	if table.HTML == "" {
		return "", ErrTableNotFound
	}
	return table.HTML, nil
}

func (s *Static) PDFLinks(_ context.Context, table Table) ([]string, error) {
	return tableLinks(table)
}

func (s *Static) Download(ctx context.Context, link string) (models.PdfFileReference, error) {
	ref, err := models.NewPdfFileReference(link)
	if err != nil {
		return ref, err
	}

	s.logger.Info("opening investment", "url", link)
	page, err := s.fetch(ctx, link)
	if err != nil {
		return ref, err
	}
	pdfURL, err := businessCaseLink(page, link)
	if err != nil {
		return ref, err
	}
	if !s.allowed(pdfURL) {
		return ref, fmt.Errorf("%s: %w", pdfURL, ErrDisallowed)
	}
	if err := ctx.Err(); err != nil {
		return ref, err
	}

	target := filepath.Join(s.dir, ref.FileName)
	var saveErr error
	c := s.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		saveErr = r.Save(target)
	})
	c.OnError(func(r *colly.Response, err error) {
		s.logger.Error("download failed", "url", pdfURL, "status", r.StatusCode, "error", err)
	})

	s.logger.Info("downloading pdf", "url", pdfURL, "file", ref.FileName)
	if err := c.Visit(pdfURL); err != nil {
		if isTimeout(err) {
			return ref, fmt.Errorf("%s: %w", ref.FileName, ErrDownloadTimeout)
		}
		return ref, fmt.Errorf("download %s: %w", pdfURL, err)
	}
	if saveErr != nil {
		return ref, fmt.Errorf("save %s: %w", target, saveErr)
	}

	s.logger.Info("pdf downloaded", "file", ref.FileName)
	return ref, nil
}

func (s *Static) Close() error {
	s.logger.Info("closing http client")
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func businessCaseLink(page, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse investment page: %w", err)
	}
	href, ok := doc.Find(businessCaseButtonSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("business case link not found on %s", pageURL)
	}
	return tablehtml.Resolve(pageURL, href)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
