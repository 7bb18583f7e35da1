// Package checksum computes and verifies SHA-256 digests of persisted output files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrHashMismatch is returned when a file no longer matches its recorded digest.
var ErrHashMismatch = errors.New("hash mismatch")

// File computes the hex SHA-256 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks that the file at path still matches expected.
func Verify(path, expected string) (bool, error) {
	calculated, err := File(path)
	if err != nil {
		return false, err
	}

	if calculated != expected {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expected, calculated)
	}

	return true, nil
}
