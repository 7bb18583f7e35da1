// Package ranking selects the bounded top-N subset of normalized records.
package ranking

import (
	"cmp"
	"slices"

	"webhookworker/internal/models"
)

// ByIDAscending orders records by id, lowest first.
func ByIDAscending(a, b models.NormalizedRecord) int {
	return cmp.Compare(a.ID, b.ID)
}

// SelectTop returns the limit records with the lowest ids, in ascending id order.
// Records sharing an id keep their input order. The input slice is not reordered.
func SelectTop(records []models.NormalizedRecord, limit int) []models.NormalizedRecord {
	if limit <= 0 || len(records) == 0 {
		return []models.NormalizedRecord{}
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, ByIDAscending)

	if limit < len(sorted) {
		sorted = sorted[:limit]
	}

	return slices.Clip(sorted)
}
