package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFile_KnownDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	if got != want {
		t.Errorf("File = %s, want %s", got, want)
	}
}

func TestFileAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sum, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	// sha256("[]")
	if sum != "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945" {
		t.Errorf("File digest of [] = %s", sum)
	}

	ok, err := Verify(path, sum)
	if !ok || err != nil {
		t.Errorf("Verify = %v, %v; want true, nil", ok, err)
	}

	if err := os.WriteFile(path, []byte("[1]"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ok, err = Verify(path, sum)
	if ok || !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Verify after change = %v, %v; want false, ErrHashMismatch", ok, err)
	}
}

func TestFile_Missing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
