package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"itdash/internal/config"
	"itdash/internal/models"
	"itdash/internal/navigator"
	"itdash/internal/pdftext"
	"itdash/internal/reconcile"
	"itdash/internal/report"
	"itdash/internal/tablehtml"
	"itdash/internal/workbook"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps the history of runs. It is optional.
type Store interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	SaveMatches(ctx context.Context, runID string, matches []models.Match) error
}

// NavigatorFactory opens a navigation session. The robot closes it.
type NavigatorFactory func(ctx context.Context) (navigator.Navigator, error)

type Robot struct {
	cfg          *config.RobotConfig
	newNavigator NavigatorFactory
	engine       *reconcile.Engine
	store        Store
	out          io.Writer
	logger       *slog.Logger
}

type Summary struct {
	RunID         string
	Agencies      int
	TotalSpending decimal.Decimal
	Files         []models.PdfFileReference
	Results       []models.FileResult
	Matches       []models.Match
	Unmatched     []string
}

// Failed counts the files whose identity could not be read.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// NewRobot wires a robot. store may be nil; out receives the console report.
func NewRobot(cfg *config.RobotConfig, newNavigator NavigatorFactory, extractor pdftext.Extractor, store Store, out io.Writer, logger *slog.Logger) *Robot {
	return &Robot{
		cfg:          cfg,
		newNavigator: newNavigator,
		engine:       reconcile.NewEngine(extractor, nil, logger),
		store:        store,
		out:          out,
		logger:       logger,
	}
}

// DefaultNavigatorFactory builds the navigator configured in cfg.
func DefaultNavigatorFactory(cfg *config.RobotConfig, logger *slog.Logger) NavigatorFactory {
	return func(ctx context.Context) (navigator.Navigator, error) {
		return navigator.New(ctx, cfg.Site.Backend, NavigatorOptions(cfg), logger)
	}
}

func NavigatorOptions(cfg *config.RobotConfig) navigator.Options {
	return navigator.Options{
		SiteURL:         cfg.Site.URL,
		OutputDir:       cfg.Output.Dir,
		UserAgent:       cfg.Site.UserAgent,
		ShowBrowser:     cfg.Site.ShowBrowser,
		PageTimeout:     cfg.Logic.PageTimeout(),
		ButtonTimeout:   cfg.Logic.ButtonTimeout(),
		DownloadTimeout: cfg.Logic.DownloadTimeout(),
		RequestTimeout:  cfg.Logic.RequestTimeout(),
		PollInterval:    cfg.Logic.PollInterval(),
	}
}

// Run executes the whole workflow: scrape agencies and the configured
// agency's investments into the workbook, download every business case and
// reconcile them against the saved table. The navigator is closed on every
// path out.
func (r *Robot) Run(ctx context.Context) (summary *Summary, err error) {
	run := r.newRun()
	r.logger.Info("starting run", "run_id", run.ID, "agency", r.cfg.Settings.Agency, "backend", r.cfg.Site.Backend)

	defer func() {
		if err != nil {
			run.Errors = append(run.Errors, err.Error())
			r.persist(ctx, run, nil)
		}
	}()

	nav, err := r.newNavigator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open navigator: %w", err)
	}
	defer func() {
		if cerr := nav.Close(); cerr != nil {
			r.logger.Warn("failed to close navigator", "error", cerr)
		}
	}()

	agencies, err := nav.ListAgencies(ctx)
	if err != nil {
		return nil, err
	}
	run.AgencyCount = len(agencies)
	total := totalSpending(agencies, r.logger)
	run.TotalSpending = total.String()

	files, err := r.scrape(ctx, nav, agencies)
	if err != nil {
		return nil, err
	}

	summary, err = r.reconcile(ctx, run, files)
	if err != nil {
		return nil, err
	}
	summary.Agencies = len(agencies)
	summary.TotalSpending = total
	return summary, nil
}

// scrape fills the workbook and downloads the business cases. It returns the
// downloaded files in link order.
func (r *Robot) scrape(ctx context.Context, nav navigator.Navigator, agencies []models.AgencySummary) ([]models.PdfFileReference, error) {
	wb, err := workbook.Create(r.cfg.WorkbookPath())
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	if err := wb.WriteAgencies(agencies); err != nil {
		return nil, err
	}

	agency, err := navigator.FindAgency(agencies, r.cfg.Settings.Agency)
	if err != nil {
		return nil, err
	}

	table, err := nav.SelectAgency(ctx, agency)
	if err != nil {
		return nil, err
	}
	tableHTML, err := nav.TableHTML(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := tablehtml.Parse(tableHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to convert investments table: %w", err)
	}
	if err := wb.WriteInvestments(rows); err != nil {
		return nil, err
	}
	if err := wb.Save(); err != nil {
		return nil, err
	}
	r.logger.Info("workbook saved", "path", wb.Path(), "agencies", len(agencies), "investments", max(len(rows)-1, 0))

	links, err := nav.PDFLinks(ctx, table)
	if err != nil {
		return nil, err
	}
	r.logger.Info("downloading business cases", "count", len(links))

	files := make([]models.PdfFileReference, 0, len(links))
	for _, link := range links {
		ref, err := nav.Download(ctx, link)
		if err != nil {
			return nil, err
		}
		files = append(files, ref)
	}
	return files, nil
}

// Reconcile checks already downloaded files against the saved workbook
// without opening a navigator.
func (r *Robot) Reconcile(ctx context.Context, files []models.PdfFileReference) (*Summary, error) {
	run := r.newRun()
	summary, err := r.reconcile(ctx, run, files)
	if err != nil {
		run.Errors = append(run.Errors, err.Error())
		r.persist(ctx, run, nil)
		return nil, err
	}
	return summary, nil
}

func (r *Robot) reconcile(ctx context.Context, run *models.RunRecord, files []models.PdfFileReference) (*Summary, error) {
	table, err := workbook.OpenTable(r.cfg.WorkbookPath(), workbook.InvestmentsSheet)
	if err != nil {
		return nil, err
	}
	defer table.Close()

	results, err := r.engine.Reconcile(ctx, files, r.cfg.Output.Dir, table)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     run.ID,
		Files:     files,
		Results:   results,
		Matches:   reconcile.Matches(results),
		Unmatched: reconcile.Unmatched(results),
	}

	report.PrintTable(r.out, results)
	if err := report.WriteCSV(r.cfg.CSVReportPath(), results); err != nil {
		return nil, err
	}
	r.logger.Info("report written", "path", r.cfg.CSVReportPath())

	run.PdfCount = len(files)
	run.MatchCount = len(summary.Matches)
	run.UnmatchedFiles = summary.Unmatched
	for _, res := range results {
		if res.Err != nil {
			run.Errors = append(run.Errors, res.Err.Error())
		}
	}
	r.persist(ctx, run, summary.Matches)

	r.logger.Info("run finished",
		"run_id", run.ID,
		"pdfs", len(files),
		"matches", len(summary.Matches),
		"unmatched", len(summary.Unmatched),
		"failed", summary.Failed(),
	)
	return summary, nil
}

func (r *Robot) newRun() *models.RunRecord {
	return &models.RunRecord{
		ID:       uuid.NewString(),
		Agency:   r.cfg.Settings.Agency,
		Workbook: r.cfg.WorkbookPath(),
		Started:  time.Now().Unix(),
	}
}

// persist stores the run history. Storage failures are logged and do not
// fail the run.
func (r *Robot) persist(ctx context.Context, run *models.RunRecord, matches []models.Match) {
	if r.store == nil {
		return
	}
	run.Finished = time.Now().Unix()
	if err := r.store.SaveRun(ctx, run); err != nil {
		r.logger.Error("failed to save run", "run_id", run.ID, "error", err)
		return
	}
	if err := r.store.SaveMatches(ctx, run.ID, matches); err != nil {
		r.logger.Error("failed to save matches", "run_id", run.ID, "error", err)
	}
}

func totalSpending(agencies []models.AgencySummary, logger *slog.Logger) decimal.Decimal {
	total := decimal.Zero
	for _, a := range agencies {
		amount, err := a.Amount()
		if err != nil {
			if !errors.Is(err, models.ErrEmptyAmount) {
				logger.Debug("unreadable spending amount", "agency", a.Name, "amount", a.SpendingAmount, "error", err)
			}
			continue
		}
		total = total.Add(amount)
	}
	return total
}

// DownloadedFiles lists the PDFs already present in dir, for offline
// reconciliation.
func DownloadedFiles(dir string) ([]models.PdfFileReference, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, err
	}
	files := make([]models.PdfFileReference, len(paths))
	for i, p := range paths {
		files[i] = models.PdfFileReference{FileName: filepath.Base(p)}
	}
	return files, nil
}
