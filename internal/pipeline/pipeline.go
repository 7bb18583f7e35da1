// Package pipeline runs a fetched batch through validation, transformation and top-N selection.
package pipeline

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"webhookworker/internal/logger"
	"webhookworker/internal/models"
	"webhookworker/internal/normalizer"
	"webhookworker/internal/ranking"
)

// ErrNoValidRecords is returned when no record survives validation and transformation.
var ErrNoValidRecords = errors.New("no valid records in batch")

// DefaultWorkers is the number of records processed concurrently.
const DefaultWorkers = 4

// Result is the outcome of a pipeline run.
type Result struct {
	Selected []models.NormalizedRecord
	Discards []models.Discard
	Stats    models.Stats
}

// Pipeline composes the normalizer and the selector over a batch.
type Pipeline struct {
	processor *normalizer.Processor
	logger    *logger.Logger
	workers   int
}

// New creates a pipeline with the default processor.
func New(log *logger.Logger, workers int) *Pipeline {
	return NewWithProcessor(normalizer.NewProcessor(), log, workers)
}

// NewWithProcessor creates a pipeline with an injected processor.
func NewWithProcessor(processor *normalizer.Processor, log *logger.Logger, workers int) *Pipeline {
	if workers < 1 {
		workers = DefaultWorkers
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Pipeline{
		processor: processor,
		logger:    log.With("component", "pipeline"),
		workers:   workers,
	}
}

// Run validates and transforms every record, then keeps the limit lowest ids.
// A bad record is discarded with a reason and never aborts the batch.
func (p *Pipeline) Run(batch []models.RawRecord, limit int) (*Result, error) {
	p.logger.Info("processing batch", "records", len(batch), "limit", limit)

	outcomes := p.processAll(batch)

	result := &Result{
		Stats: models.Stats{Total: len(batch)},
	}

	transformed := make([]models.NormalizedRecord, 0, len(batch))

	for i, out := range outcomes {
		if out.Validated {
			result.Stats.ValidCount++
		}

		if out.Err != nil {
			d := discard(i, batch[i], out)
			result.Discards = append(result.Discards, d)
			p.logger.Warn("record discarded", "index", i, "stage", d.Stage, "reason", d.Reason)

			continue
		}

		transformed = append(transformed, out.Record)
	}

	result.Stats.TransformedCount = len(transformed)

	p.logger.Info("validation finished", "valid", result.Stats.ValidCount, "invalid", result.Stats.Total-result.Stats.ValidCount)

	if result.Stats.ValidCount == 0 {
		return result, fmt.Errorf("%w: 0 of %d passed validation", ErrNoValidRecords, len(batch))
	}

	if len(transformed) == 0 {
		return result, fmt.Errorf("%w: all %d valid records failed transformation", ErrNoValidRecords, result.Stats.ValidCount)
	}

	result.Selected = ranking.SelectTop(transformed, limit)
	result.Stats.SelectedCount = len(result.Selected)

	p.logger.Info("selection finished", "transformed", len(transformed), "selected", result.Stats.SelectedCount)

	return result, nil
}

// processAll runs the processor over the batch on a bounded worker pool.
// Each worker writes only its own slot, so outcomes keep input order.
func (p *Pipeline) processAll(batch []models.RawRecord) []normalizer.Outcome {
	outcomes := make([]normalizer.Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, raw := range batch {
		g.Go(func() error {
			outcomes[i] = p.processor.Process(raw)
			return nil
		})
	}

	// workers never return errors; failures live in the outcomes
	_ = g.Wait()

	return outcomes
}

func discard(index int, raw models.RawRecord, out normalizer.Outcome) models.Discard {
	d := models.Discard{
		Index:  index,
		Stage:  out.Stage,
		Reason: out.Err.Error(),
	}

	if id, ok := normalizer.RecordID(raw); ok {
		d.ID = &id
	}

	return d
}
