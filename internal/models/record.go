// Package models defines the record types that flow through the worker.
package models

import (
	"encoding/json"
	"time"
)

// RawRecord is one untrusted element of a fetched batch, kept as raw JSON.
type RawRecord json.RawMessage

// MarshalJSON returns the raw bytes, or null for an empty record.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}

	return r, nil
}

// UnmarshalJSON keeps a copy of the raw element.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)

	return nil
}

// ValidatedRecord is a RawRecord that passed every validation rule.
type ValidatedRecord struct {
	// OwnerID is nil only when the record was built outside the validator.
	OwnerID *int64
	Title   string
	Body    string
	ID      int64
}

// Status is the outcome stamped on a normalized record.
type Status string

// Record statuses.
const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// NormalizedRecord is the output unit of the pipeline.
type NormalizedRecord struct {
	ProcessedAt time.Time `json:"processedAt"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Status      Status    `json:"status"`
	OwnerDigits []int     `json:"ownerDigits,omitempty"`
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
}

// Stage names the pipeline step that dropped a record.
type Stage string

// Pipeline stages.
const (
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
)

// Discard describes a record dropped by the pipeline.
type Discard struct {
	ID     *int64 `json:"id,omitempty"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
	Index  int    `json:"index"`
}
