package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"webhookworker/internal/models"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 200

// Validation errors.
var (
	ErrNotObject        = errors.New("record is not a JSON object")
	ErrMissingID        = errors.New("missing id")
	ErrMissingOwnerID   = errors.New("missing ownerId")
	ErrIDNotNumber      = errors.New("id is not an integer number")
	ErrOwnerIDNotNumber = errors.New("ownerId is not an integer number")
	ErrMissingTitle     = errors.New("missing title")
	ErrTitleTooLong     = errors.New("title exceeds maximum length")
	ErrBodyNotText      = errors.New("body is not text")
)

// Record field names.
const (
	fieldID          = "id"
	fieldOwnerID     = "ownerId"
	fieldOwnerIDLong = "userId"
	fieldTitle       = "title"
	fieldBody        = "body"
)

// Validator checks raw records against the record contract.
type Validator struct {
	maxTitleLength int
}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{
		maxTitleLength: MaxTitleLength,
	}
}

// Valid reports whether raw passes every validation rule.
func (v *Validator) Valid(raw models.RawRecord) bool {
	_, err := v.Validate(raw)

	return err == nil
}

// Validate applies the rules in order and stops at the first failure.
func (v *Validator) Validate(raw models.RawRecord) (models.ValidatedRecord, error) {
	fields, ok := decodeObject(raw)
	if !ok {
		return models.ValidatedRecord{}, ErrNotObject
	}

	idValue, ok := present(fields, fieldID)
	if !ok {
		return models.ValidatedRecord{}, ErrMissingID
	}

	ownerValue, ok := present(fields, fieldOwnerID)
	if !ok {
		// jsonplaceholder-style sources name the owner userId.
		ownerValue, ok = present(fields, fieldOwnerIDLong)
	}

	if !ok {
		return models.ValidatedRecord{}, ErrMissingOwnerID
	}

	id, ok := integerValue(idValue)
	if !ok {
		return models.ValidatedRecord{}, fmt.Errorf("%w: got %s", ErrIDNotNumber, jsonKind(idValue))
	}

	ownerID, ok := integerValue(ownerValue)
	if !ok {
		return models.ValidatedRecord{}, fmt.Errorf("%w: got %s", ErrOwnerIDNotNumber, jsonKind(ownerValue))
	}

	titleValue, _ := present(fields, fieldTitle)

	title, ok := titleValue.(string)
	if !ok || title == "" {
		return models.ValidatedRecord{}, ErrMissingTitle
	}

	if n := utf8.RuneCountInString(title); n > v.maxTitleLength {
		return models.ValidatedRecord{}, fmt.Errorf("%w: %d > %d", ErrTitleTooLong, n, v.maxTitleLength)
	}

	var body string

	if bodyValue, ok := present(fields, fieldBody); ok {
		body, ok = bodyValue.(string)
		if !ok {
			return models.ValidatedRecord{}, fmt.Errorf("%w: got %s", ErrBodyNotText, jsonKind(bodyValue))
		}
	}

	return models.ValidatedRecord{
		ID:      id,
		OwnerID: &ownerID,
		Title:   title,
		Body:    body,
	}, nil
}

// RecordID extracts the id of a raw record for diagnostics, if it has one.
func RecordID(raw models.RawRecord) (int64, bool) {
	fields, ok := decodeObject(raw)
	if !ok {
		return 0, false
	}

	value, ok := present(fields, fieldID)
	if !ok {
		return 0, false
	}

	return integerValue(value)
}

func decodeObject(raw models.RawRecord) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}

	// the record must be a single JSON value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}

	fields, ok := value.(map[string]any)

	return fields, ok
}

// present returns the field value when the key exists and is not null.
func present(fields map[string]any, key string) (any, bool) {
	value, ok := fields[key]
	if !ok || value == nil {
		return nil, false
	}

	return value, true
}

// integerValue accepts only JSON numbers that hold a finite integer.
func integerValue(value any) (int64, bool) {
	num, ok := value.(json.Number)
	if !ok {
		return 0, false
	}

	if i, err := num.Int64(); err == nil {
		return i, true
	}

	f, err := num.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

func jsonKind(value any) string {
	switch value.(type) {
	case json.Number:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
