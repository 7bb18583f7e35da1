package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "posts.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	return path
}

func TestRun_SelectsAndSaves(t *testing.T) {
	input := writeInput(t, `[
		{"id":10,"ownerId":1,"title":"ten"},
		{"id":1,"ownerId":1,"title":"one"},
		{"id":3,"ownerId":1,"title":"three"},
		{"id":4,"ownerId":"1","title":"bad owner"}
	]`)
	output := filepath.Join(t.TempDir(), "out.json")

	var stdout, stderr bytes.Buffer

	if code := run([]string{"-i", input, "-o", output, "--limit", "2"}, &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit 0, got %d (stderr: %s)", code, stderr.String())
	}

	if !strings.Contains(stdout.String(), "#3 (validate)") {
		t.Errorf("Discard not reported:\n%s", stdout.String())
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	var saved []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(content, &saved); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}

	if len(saved) != 2 || saved[0].ID != 1 || saved[1].ID != 3 {
		t.Errorf("Unexpected saved records: %+v", saved)
	}
}

func TestRun_MissingInputFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit 2, got %d", code)
	}
}

func TestRun_NotAnArray(t *testing.T) {
	input := writeInput(t, `{"id":1}`)

	var stdout, stderr bytes.Buffer

	if code := run([]string{"-i", input}, &stdout, &stderr); code != 1 {
		t.Errorf("Expected exit 1, got %d", code)
	}
}

func TestRun_NothingValid(t *testing.T) {
	input := writeInput(t, `[null, 1, "x"]`)

	var stdout, stderr bytes.Buffer

	if code := run([]string{"-i", input}, &stdout, &stderr); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}

	if !strings.Contains(stderr.String(), "no valid records") {
		t.Errorf("Unexpected stderr: %s", stderr.String())
	}
}
