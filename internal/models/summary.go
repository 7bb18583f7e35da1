package models

import "time"

// Stats holds the record counts of a single pipeline run.
type Stats struct {
	Total            int `json:"total"`
	ValidCount       int `json:"validCount"`
	TransformedCount int `json:"transformedCount"`
	SelectedCount    int `json:"selectedCount"`
}

// Discarded returns how many records were dropped in either stage.
func (s Stats) Discarded() int {
	return s.Total - s.TransformedCount
}

// RunSummary is the persisted record of one worker run.
type RunSummary struct {
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"runId"`
	Environment string    `json:"environment"`
	Source      string    `json:"source"`
	Output      string    `json:"output"`
	SHA256      string    `json:"sha256"`
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	Saved       int       `json:"saved"`
	DurationMs  int64     `json:"durationMs"`
}
