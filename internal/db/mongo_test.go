package db

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"itdash/internal/config"
	"itdash/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set ITDASH_TEST_MONGO to a connection string to run against a live server.
func newTestDB(t *testing.T) *MongoDB {
	t.Helper()
	uri := os.Getenv("ITDASH_TEST_MONGO")
	if uri == "" {
		t.Skip("ITDASH_TEST_MONGO not set")
	}

	var cfg config.DBConfig
	cfg.Connection = uri
	cfg.Database = "itdash_test"
	cfg.Collections.Runs = "runs_" + uuid.NewString()[:8]
	cfg.Collections.Matches = "matches_" + uuid.NewString()[:8]

	d, err := NewMongoDB(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = d.runs.Drop(ctx)
		_ = d.matches.Drop(ctx)
		_ = d.Close()
	})
	return d
}

func TestSaveRunUpserts(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	run := &models.RunRecord{
		ID:       uuid.NewString(),
		Agency:   "Department of Agriculture",
		Workbook: "output/agencies.xlsx",
		Started:  time.Now().Unix(),
	}
	require.NoError(t, d.SaveRun(ctx, run))

	run.Finished = run.Started + 42
	run.MatchCount = 3
	run.UnmatchedFiles = []string{"005-000001234.pdf"}
	require.NoError(t, d.SaveRun(ctx, run))

	got, err := d.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *run, *got)

	runs, err := d.LastRuns(ctx, run.Agency, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunMissing(t *testing.T) {
	d := newTestDB(t)

	got, err := d.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveMatches(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.SaveMatches(ctx, "run-1", nil))
	require.NoError(t, d.SaveMatches(ctx, "run-1", []models.Match{
		{File: "a.pdf", Row: 1, Record: models.InvestmentRecord{Name: "Alpha", UII: "1"}},
		{File: "a.pdf", Row: 4, Record: models.InvestmentRecord{Name: "Alpha", UII: "1"}},
	}))

	n, err := d.matches.CountDocuments(ctx, map[string]any{"run_id": "run-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
