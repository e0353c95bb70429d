package download

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastWatcher() *Watcher {
	w := NewWatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.Interval = 5 * time.Millisecond
	return w
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWaitCompleted(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "005-000001234.pdf"))

	res, err := fastWatcher().Wait(context.Background(), dir, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Completed, res)
}

func TestWaitTimedOut(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Unconfirmed 812.crdownload"))

	start := time.Now()
	res, err := fastWatcher().Wait(context.Background(), dir, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitCompletesWhenPartialFileIsRenamed(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "005-000001234.pdf.crdownload")
	touch(t, partial)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.Rename(partial, filepath.Join(dir, "005-000001234.pdf"))
	}()

	res, err := fastWatcher().Wait(context.Background(), dir, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Completed, res)
}

func TestWaitMissingDirectory(t *testing.T) {
	_, err := fastWatcher().Wait(context.Background(), filepath.Join(t.TempDir(), "missing"), time.Second)
	assert.Error(t, err)
}

func TestWaitCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.crdownload"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastWatcher().Wait(ctx, dir, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPendingCustomSuffixes(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.part"))
	touch(t, filepath.Join(dir, "b.crdownload"))
	touch(t, filepath.Join(dir, "c.pdf"))

	w := fastWatcher()
	w.Suffixes = []string{".part", ChromePartialSuffix}

	pending, err := w.Pending(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.part", "b.crdownload"}, pending)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "timed out", TimedOut.String())
}

func TestWaitZeroInterval(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "005-000001234.pdf"))

	w := &Watcher{Suffixes: []string{ChromePartialSuffix}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	res, err := w.Wait(context.Background(), dir, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Completed, res)

	w.Interval = -time.Millisecond
	res, err = w.Wait(context.Background(), dir, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Completed, res)
}
