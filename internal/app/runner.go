// Package app wires the fetcher, pipeline, store and metrics into a single worker run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webhookworker/internal/config"
	"webhookworker/internal/fetcher"
	"webhookworker/internal/logger"
	"webhookworker/internal/metrics"
	"webhookworker/internal/models"
	"webhookworker/internal/pipeline"
	"webhookworker/internal/store"
	"webhookworker/pkg/checksum"
)

// Run failures raised before the pipeline starts.
var (
	ErrEmptyBatch = errors.New("no records received from source")
	ErrBatchSize  = errors.New("batch size out of bounds")
)

// Fetcher returns one batch of raw records.
type Fetcher interface {
	FetchBatch(ctx context.Context) ([]models.RawRecord, error)
}

// Result describes a completed run.
type Result struct {
	Summary     models.RunSummary
	SummaryPath string
	Selected    []models.NormalizedRecord
	Discards    []models.Discard
	Stats       models.Stats
}

// Runner executes worker runs against one configuration.
type Runner struct {
	cfg      *config.Config
	fetcher  Fetcher
	pipeline *pipeline.Pipeline
	sink     *store.FileSink
	history  *store.History
	metrics  *metrics.Recorder
	logger   *logger.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithFetcher replaces the HTTP fetcher built from the source config.
func WithFetcher(f Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

// WithHistory records every successful run in h.
func WithHistory(h *store.History) Option {
	return func(r *Runner) { r.history = h }
}

// WithClock sets the time source used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Config, log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Discard()
	}

	r := &Runner{
		cfg:      cfg,
		pipeline: pipeline.New(log, cfg.Pipeline.Workers),
		sink:     store.NewFileSink(cfg.Output),
		metrics:  metrics.NewRecorder(),
		logger:   log.With("component", "runner"),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.fetcher == nil {
		r.fetcher = fetcher.NewClient(cfg.Source, cfg.Retry, log)
	}

	return r
}

// Run fetches one batch, keeps the top records and persists them with a summary.
// Nothing is written when the batch is empty, out of bounds or has no valid record.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := r.now()

	res, err := r.run(ctx, start)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}

	r.metrics.ObserveRun(outcome, r.now().Sub(start))
	r.exportMetrics()

	return res, err
}

func (r *Runner) run(ctx context.Context, start time.Time) (*Result, error) {
	r.logger.Info("run started", "environment", r.cfg.Environment, "source", r.cfg.Source.URL)

	batch, err := r.fetcher.FetchBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	r.logger.Info("batch fetched", "records", len(batch))

	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	if !config.BatchSizeValid(len(batch), r.cfg.Batch.MinSize, r.cfg.Batch.MaxSize) {
		return nil, fmt.Errorf("%w: got %d records, accepted range is [%d, %d]",
			ErrBatchSize, len(batch), r.cfg.Batch.MinSize, r.cfg.Batch.MaxSize)
	}

	pres, err := r.pipeline.Run(batch, r.cfg.Selection.Limit)
	if pres != nil {
		r.metrics.ObservePipeline(pres.Stats, pres.Discards)
	}

	if err != nil {
		return nil, err
	}

	if err := r.sink.EnsureDir(); err != nil {
		return nil, err
	}

	output, err := r.sink.Persist(pres.Selected)
	if err != nil {
		return nil, err
	}

	sum, err := checksum.File(output)
	if err != nil {
		return nil, err
	}

	summary := models.RunSummary{
		Timestamp:   start.UTC(),
		RunID:       r.newID(),
		Environment: r.cfg.Environment,
		Source:      r.cfg.Source.URL,
		Output:      output,
		SHA256:      sum,
		Total:       pres.Stats.Total,
		Processed:   pres.Stats.TransformedCount,
		Saved:       pres.Stats.SelectedCount,
		DurationMs:  r.now().Sub(start).Milliseconds(),
	}

	summaryPath, err := r.sink.PersistSummary(summary)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"processed", summary.Processed,
		"saved", summary.Saved,
		"output", output,
	)

	if r.history != nil {
		if err := r.history.Record(ctx, summary); err != nil {
			r.logger.Warn("failed to record run history", "error", err)
		}
	}

	return &Result{
		Summary:     summary,
		SummaryPath: summaryPath,
		Selected:    pres.Selected,
		Discards:    pres.Discards,
		Stats:       pres.Stats,
	}, nil
}

func (r *Runner) exportMetrics() {
	if r.cfg.Metrics.Textfile == "" {
		return
	}

	if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		r.logger.Warn("failed to export metrics", "error", err)
	}
}
