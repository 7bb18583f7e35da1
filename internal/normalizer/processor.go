// Package normalizer validates raw webhook records and turns them into normalized output records.
package normalizer

import (
	"errors"
	"fmt"

	"webhookworker/internal/models"
)

// ErrTransformPanic is returned when transforming a single record panicked.
var ErrTransformPanic = errors.New("transform panicked")

// Processor handles per-record validation and transformation.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// NewProcessorWithDeps creates a processor with injected dependencies.
func NewProcessorWithDeps(validator *Validator, transformer *Transformer) *Processor {
	return &Processor{
		validator:   validator,
		transformer: transformer,
	}
}

// Outcome is the result of processing one raw record.
type Outcome struct {
	Err    error
	Stage  models.Stage
	Record models.NormalizedRecord
	// Validated is false when the record was dropped by the validator.
	Validated bool
}

// Process validates raw and, when valid, transforms it.
func (p *Processor) Process(raw models.RawRecord) Outcome {
	// 1. Validate the input data
	validated, err := p.validator.Validate(raw)
	if err != nil {
		return Outcome{Stage: models.StageValidate, Err: fmt.Errorf("validation failed: %w", err)}
	}

	// 2. Transform the data
	record, err := p.safeTransform(validated)
	if err != nil {
		return Outcome{Stage: models.StageTransform, Validated: true, Err: fmt.Errorf("transformation failed: %w", err)}
	}

	return Outcome{Stage: models.StageTransform, Validated: true, Record: record}
}

// safeTransform converts a panic inside the transformer into an error.
func (p *Processor) safeTransform(rec models.ValidatedRecord) (out models.NormalizedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = models.NormalizedRecord{}
			err = fmt.Errorf("%w: record %d: %v", ErrTransformPanic, rec.ID, r)
		}
	}()

	return p.transformer.Transform(rec)
}
