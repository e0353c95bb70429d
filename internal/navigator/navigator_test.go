package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"itdash/internal/config"
	"itdash/internal/models"
	"itdash/internal/tablehtml"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homePage = `<html><body>
<a id="home-dive-in" href="#agency-tiles-widget">DIVE IN</a>
<div id="agency-tiles-widget">
  <div class="col-sm-12"><a href="/drupal/summary/005">
    <span class="h4 w200">Department of Agriculture</span>
    <span class="h1 w900">$8.1B</span></a></div>
  <div class="col-sm-12"><a href="/drupal/summary/006">
    <span class="h4 w200">Department of Commerce</span>
    <span class="h1 w900">$3.4B</span></a></div>
  <div class="col-sm-12"><a href="/drupal/summary/009">
    <span class="h4 w200">Department of Health and Human Services</span>
    <span class="h1 w900">$15.5B</span></a></div>
</div>
</body></html>`

const agencyPage = `<html><body>
<select class="form-control"><option>10</option><option>All</option></select>
<table id="investments-table-object">
  <thead><tr><th>UII</th><th>Bureau</th><th>Investment Title</th></tr></thead>
  <tbody>
    <tr><td><a href="/drupal/summary/005/005-000001234">005-000001234</a></td><td>FSA</td><td>Farm Loans</td></tr>
    <tr><td>005-000004321</td><td>NRCS</td><td>Conservation Delivery</td></tr>
    <tr><td><a href="/drupal/summary/005/005-000005678">005-000005678</a></td><td>FS</td><td>Forest Data</td></tr>
  </tbody>
</table>
</body></html>`

const investmentPage = `<html><body>
<div id="business-case-pdf"><a href="/api/v1/business_case/pdf/%s">Download Business Case PDF</a></div>
</body></html>`

const pdfBody = "%PDF-1.4 fake business case"

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, homePage)
	})
	mux.HandleFunc("/drupal/summary/005", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, agencyPage)
	})
	mux.HandleFunc("/drupal/summary/006", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/captcha/verify" method="post">`+
			`<div class="g-recaptcha" data-sitekey="test"></div></form></body></html>`)
	})
	mux.HandleFunc("/drupal/summary/010", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, strings.Replace(agencyPage, "<body>",
			"<body><p>Cybersecurity program: quarterly security check of agency networks. No CAPTCHA required.</p>", 1))
	})
	mux.HandleFunc("/drupal/summary/005/{uii}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, investmentPage, r.PathValue("uii"))
	})
	mux.HandleFunc("/api/v1/business_case/pdf/{uii}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, pdfBody)
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, homePage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStatic(t *testing.T, siteURL string) (*Static, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStatic(context.Background(), Options{
		SiteURL:         siteURL,
		OutputDir:       dir,
		UserAgent:       "itdash-test",
		RequestTimeout:  5 * time.Second,
		DownloadTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestStaticEndToEnd(t *testing.T) {
	srv := newSite(t)
	s, dir := newStatic(t, srv.URL+"/")
	ctx := context.Background()

	agencies, err := s.ListAgencies(ctx)
	require.NoError(t, err)
	want := []models.AgencySummary{
		{Name: "Department of Agriculture", SpendingAmount: "$8.1B", Href: srv.URL + "/drupal/summary/005"},
		{Name: "Department of Commerce", SpendingAmount: "$3.4B", Href: srv.URL + "/drupal/summary/006"},
		{Name: "Department of Health and Human Services", SpendingAmount: "$15.5B", Href: srv.URL + "/drupal/summary/009"},
	}
	if diff := cmp.Diff(want, agencies); diff != "" {
		t.Errorf("agencies mismatch (-want +got):\n%s", diff)
	}

	agency, err := FindAgency(agencies, "Department of Agriculture")
	require.NoError(t, err)

	table, err := s.SelectAgency(ctx, agency)
	require.NoError(t, err)

	tableHTML, err := s.TableHTML(ctx, table)
	require.NoError(t, err)
	rows, err := tablehtml.Parse(tableHTML)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"UII", "Bureau", "Investment Title"}, rows[0])
	assert.Equal(t, []string{"005-000004321", "NRCS", "Conservation Delivery"}, rows[2])

	links, err := s.PDFLinks(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/drupal/summary/005/005-000001234",
		srv.URL + "/drupal/summary/005/005-000005678",
	}, links)

	ref, err := s.Download(ctx, links[0])
	require.NoError(t, err)
	assert.Equal(t, "005-000001234.pdf", ref.FileName)
	assert.Equal(t, links[0], ref.SourceURL)

	data, err := os.ReadFile(filepath.Join(dir, "005-000001234.pdf"))
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(data))

	// downloading the same investment twice overwrites the file
	_, err = s.Download(ctx, links[0])
	require.NoError(t, err)
}

func TestStaticCaptcha(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	_, err := s.SelectAgency(context.Background(), models.AgencySummary{Name: "Department of Commerce", Href: "/drupal/summary/006"})
	assert.ErrorIs(t, err, ErrCaptcha)
}

func TestStaticPageMentioningSecurityCheck(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	table, err := s.SelectAgency(context.Background(), models.AgencySummary{Name: "Department of Energy", Href: "/drupal/summary/010"})
	require.NoError(t, err)
	assert.Contains(t, table.HTML, "investments-table-object")
}

func TestHasCaptcha(t *testing.T) {
	tests := []struct {
		name string
		page string
		want bool
	}{
		{name: "recaptcha widget", page: `<div class="g-recaptcha"></div>`, want: true},
		{name: "hcaptcha iframe", page: `<iframe src="https://hcaptcha.com/captcha/v1"></iframe>`, want: true},
		{name: "captcha input", page: `<form><input name="captcha_answer"></form>`, want: true},
		{name: "captcha form", page: `<form action="/captcha/verify"></form>`, want: true},
		{name: "prose only", page: `<p>Annual security check. Please complete the CAPTCHA survey.</p>`, want: false},
		{name: "empty", page: ``, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasCaptcha(tt.page))
		})
	}
}

func TestStaticRobotsDisallow(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	_, err := s.Download(context.Background(), srv.URL+"/private/005-000009999")
	assert.ErrorIs(t, err, ErrDisallowed)
}

func TestStaticMissingTable(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	_, err := s.SelectAgency(context.Background(), models.AgencySummary{Name: "Home", Href: "/"})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestStaticHTTPError(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	_, err := s.SelectAgency(context.Background(), models.AgencySummary{Name: "HHS", Href: "/drupal/summary/009"})
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestSelectAgencyWithoutLink(t *testing.T) {
	srv := newSite(t)
	s, _ := newStatic(t, srv.URL+"/")

	_, err := s.SelectAgency(context.Background(), models.AgencySummary{Name: "Nowhere"})
	assert.ErrorContains(t, err, "has no link")
}

func TestParseAgencyTilesEmpty(t *testing.T) {
	_, err := parseAgencyTiles("<html><body><div id=\"agency-tiles-widget\"></div></body></html>", "https://itdashboard.gov/")
	assert.ErrorIs(t, err, ErrNoAgencies)
}

func TestFindAgency(t *testing.T) {
	agencies := []models.AgencySummary{
		{Name: "Department of Agriculture"},
		{Name: "Department of Commerce"},
		{Name: "Department of Defense"},
		{Name: "Department of Education"},
		{Name: "Department of Energy"},
	}

	got, err := FindAgency(agencies, "Department of Commerce")
	require.NoError(t, err)
	assert.Equal(t, "Department of Commerce", got.Name)

	_, err = FindAgency(agencies, "department of commerce")
	var notFound *AgencyNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "department of commerce", notFound.Name)
	require.NotEmpty(t, notFound.Suggestions)
	assert.Equal(t, "Department of Commerce", notFound.Suggestions[0])

	_, err = FindAgency(agencies, "Energy")
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"Department of Energy"}, notFound.Suggestions)
	assert.Contains(t, err.Error(), "did you mean")

	_, err = FindAgency(agencies, "Departmnet of Defence")
	require.True(t, errors.As(err, &notFound))
	assert.Len(t, notFound.Suggestions, maxSuggestions)
	assert.Equal(t, "Department of Defense", notFound.Suggestions[0])
}

func TestFindAgencyNoAgencies(t *testing.T) {
	_, err := FindAgency(nil, "Department of Commerce")
	assert.EqualError(t, err, `agency "Department of Commerce" not found`)
}

func TestNewConfiguredBackend(t *testing.T) {
	srv := newSite(t)
	nav, err := New(context.Background(), config.BackendStatic, Options{
		SiteURL:        srv.URL + "/",
		OutputDir:      t.TempDir(),
		UserAgent:      "itdash-test",
		RequestTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = nav.Close() })
	assert.IsType(t, &Static{}, nav)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), "selenium", Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
