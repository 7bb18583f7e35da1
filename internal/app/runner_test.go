package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhookworker/internal/config"
	"webhookworker/internal/models"
	"webhookworker/internal/pipeline"
	"webhookworker/internal/store"
	"webhookworker/pkg/checksum"
)

type stubFetcher struct {
	err   error
	batch []models.RawRecord
	calls int
}

func (s *stubFetcher) FetchBatch(context.Context) ([]models.RawRecord, error) {
	s.calls++
	return s.batch, s.err
}

func rawBatch(items ...string) []models.RawRecord {
	batch := make([]models.RawRecord, len(items))
	for i, item := range items {
		batch[i] = models.RawRecord(item)
	}

	return batch
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Environment = config.EnvDevelopment
	cfg.Source.URL = "http://source.test/posts"
	cfg.Selection.Limit = 2
	cfg.Pipeline.Workers = 2
	cfg.Output.Dir = filepath.Join(dir, "output")
	cfg.Metrics.Textfile = filepath.Join(dir, "worker.prom")

	return cfg
}

func fixedClock() func() time.Time {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0

	return func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}
}

func TestRunner_Run_Success(t *testing.T) {
	cfg := testConfig(t)
	f := &stubFetcher{batch: rawBatch(
		`{"id":10,"ownerId":1,"title":"ten"}`,
		`{"id":1,"ownerId":2,"title":"one","body":"b"}`,
		`{"id":3,"ownerId":3,"title":"three"}`,
		`{"id":4,"title":"no owner"}`,
	)}

	r := NewRunner(cfg, nil, WithFetcher(f), WithClock(fixedClock()))
	r.newID = func() string { return "run-1" }

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Selected, 2)
	assert.Equal(t, int64(1), res.Selected[0].ID)
	assert.Equal(t, int64(3), res.Selected[1].ID)
	require.Len(t, res.Discards, 1)
	assert.Equal(t, 3, res.Discards[0].Index)

	s := res.Summary
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, config.EnvDevelopment, s.Environment)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Saved)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, cfg.Output.CollectionFile), s.Output)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), s.Timestamp)
	assert.Positive(t, s.DurationMs)

	ok, err := checksum.Verify(s.Output, s.SHA256)
	require.NoError(t, err)
	assert.True(t, ok)

	var saved []models.NormalizedRecord

	data, err := os.ReadFile(s.Output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, res.Selected[0].ID, saved[0].ID)

	var summary models.RunSummary

	data, err = os.ReadFile(res.SummaryPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, s.SHA256, summary.SHA256)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `webhookworker_runs_total{outcome="success"} 1`)
	assert.Contains(t, string(prom), `webhookworker_records_discarded_total{stage="validate"} 1`)
}

func TestRunner_Run_EmptyBatchPersistsNothing(t *testing.T) {
	cfg := testConfig(t)

	r := NewRunner(cfg, nil, WithFetcher(&stubFetcher{batch: nil}))

	res, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyBatch)
	assert.Nil(t, res)
	assert.NoDirExists(t, cfg.Output.Dir)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `webhookworker_runs_total{outcome="failure"} 1`)
}

func TestRunner_Run_BatchTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.MaxSize = 2

	r := NewRunner(cfg, nil, WithFetcher(&stubFetcher{batch: rawBatch(
		`{"id":1,"ownerId":1,"title":"a"}`,
		`{"id":2,"ownerId":1,"title":"b"}`,
		`{"id":3,"ownerId":1,"title":"c"}`,
	)}))

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrBatchSize)
	assert.Contains(t, err.Error(), "got 3 records")
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestRunner_Run_NoValidRecords(t *testing.T) {
	cfg := testConfig(t)

	r := NewRunner(cfg, nil, WithFetcher(&stubFetcher{batch: rawBatch(`null`, `{"id":"x"}`)}))

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, pipeline.ErrNoValidRecords)
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestRunner_Run_FetchError(t *testing.T) {
	cfg := testConfig(t)
	cause := errors.New("connection refused")

	r := NewRunner(cfg, nil, WithFetcher(&stubFetcher{err: cause}))

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetch failed")
}

func TestRunner_Run_OutputDirError(t *testing.T) {
	cfg := testConfig(t)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.Output.Dir = filepath.Join(blocker, "output")

	r := NewRunner(cfg, nil, WithFetcher(&stubFetcher{batch: rawBatch(`{"id":1,"ownerId":1,"title":"a"}`)}))

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}

func TestRunner_Run_RecordsHistory(t *testing.T) {
	cfg := testConfig(t)

	h, err := store.OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	f := &stubFetcher{batch: rawBatch(`{"id":7,"ownerId":1,"title":"a"}`)}
	r := NewRunner(cfg, nil, WithFetcher(f), WithHistory(h))

	first, err := r.Run(context.Background())
	require.NoError(t, err)

	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Summary.RunID, second.Summary.RunID)

	runs, err := h.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 2, f.calls)
}

func TestRunner_Run_HistoryFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)

	h, err := store.OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	r := NewRunner(cfg, nil,
		WithFetcher(&stubFetcher{batch: rawBatch(`{"id":7,"ownerId":1,"title":"a"}`)}),
		WithHistory(h),
	)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, res.Summary.Output)
}

func TestRunner_Run_HTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"userId":1,"id":3,"title":"c","body":"x"},
			{"userId":1,"id":1,"title":"a","body":"y"},
			{"userId":2,"id":2,"title":"b","body":"z"}
		]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Source.URL = srv.URL

	res, err := NewRunner(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Selected, 2)
	assert.Equal(t, []int64{1, 2}, []int64{res.Selected[0].ID, res.Selected[1].ID})
	assert.Equal(t, srv.URL, res.Summary.Source)
}
