// Package store persists selected records, run summaries and run history.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"webhookworker/internal/config"
	"webhookworker/internal/models"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// ErrUnknownFormat is returned for an output format other than json or jsonl.
var ErrUnknownFormat = errors.New("unknown output format")

// FileSink writes the selected records and the run summary to a directory.
type FileSink struct {
	dir            string
	collectionFile string
	summaryFile    string
	format         string
	pretty         bool
}

// NewFileSink creates a file sink from the output configuration.
func NewFileSink(cfg config.OutputConfig) *FileSink {
	format := cfg.Format
	if format == "" {
		format = FormatJSON
	}

	return &FileSink{
		dir:            cfg.Dir,
		collectionFile: cfg.CollectionFile,
		summaryFile:    cfg.SummaryFile,
		format:         format,
		pretty:         cfg.PrettyPrint,
	}
}

// EnsureDir creates the output directory.
func (s *FileSink) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}

	return nil
}

// CollectionPath returns where Persist writes the records.
func (s *FileSink) CollectionPath() string {
	return filepath.Join(s.dir, s.collectionFile)
}

// SummaryPath returns where PersistSummary writes the summary.
func (s *FileSink) SummaryPath() string {
	return filepath.Join(s.dir, s.summaryFile)
}

// Persist writes the records in order and returns the file path.
func (s *FileSink) Persist(records []models.NormalizedRecord) (string, error) {
	data, err := s.encodeRecords(records)
	if err != nil {
		return "", err
	}

	path := s.CollectionPath()
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	return path, nil
}

// PersistSummary writes the run summary and returns the file path.
func (s *FileSink) PersistSummary(summary models.RunSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := s.SummaryPath()
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}

	return path, nil
}

func (s *FileSink) encodeRecords(records []models.NormalizedRecord) ([]byte, error) {
	if records == nil {
		records = []models.NormalizedRecord{}
	}

	switch s.format {
	case FormatJSON:
		var (
			data []byte
			err  error
		)

		if s.pretty {
			data, err = json.MarshalIndent(records, "", "  ")
		} else {
			data, err = json.Marshal(records)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to marshal records: %w", err)
		}

		return append(data, '\n'), nil

	case FormatJSONL:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return nil, fmt.Errorf("failed to marshal record %d: %w", rec.ID, err)
			}
		}

		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s.format)
	}
}

// writeFileAtomic writes to a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}

	return nil
}
