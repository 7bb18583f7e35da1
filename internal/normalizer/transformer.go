package normalizer

import (
	"errors"
	"strconv"
	"time"

	"webhookworker/internal/models"
)

// ErrOwnerUnavailable is returned when the owner digits cannot be derived.
var ErrOwnerUnavailable = errors.New("ownerId unavailable for derived fields")

// derivedEvery selects which ids get owner digits derived.
const derivedEvery = 5

// Transformer converts validated records into normalized output records.
type Transformer struct {
	now func() time.Time
}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NewTransformerWithClock creates a transformer that stamps records using now.
func NewTransformerWithClock(now func() time.Time) *Transformer {
	return &Transformer{now: now}
}

// Transform converts a validated record into its normalized form.
func (t *Transformer) Transform(rec models.ValidatedRecord) (models.NormalizedRecord, error) {
	var digits []int

	if needsDerivedFields(rec.ID) {
		if rec.OwnerID == nil {
			return models.NormalizedRecord{}, ErrOwnerUnavailable
		}

		digits = ownerDigits(*rec.OwnerID)
	}

	out := models.NormalizedRecord{
		ID:          rec.ID,
		Title:       rec.Title,
		Body:        rec.Body,
		ProcessedAt: t.now(),
		Status:      models.StatusProcessed,
		OwnerDigits: digits,
	}

	if rec.OwnerID != nil {
		out.OwnerID = *rec.OwnerID
	}

	return out, nil
}

func needsDerivedFields(id int64) bool {
	return id > 0 && id%derivedEvery == 0
}

// ownerDigits decomposes the absolute value of owner into its decimal digits.
func ownerDigits(owner int64) []int {
	s := strconv.FormatInt(owner, 10)
	if s[0] == '-' {
		s = s[1:]
	}

	digits := make([]int, len(s))
	for i := range s {
		digits[i] = int(s[i] - '0')
	}

	return digits
}
