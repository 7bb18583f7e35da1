package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// loadFixture reads a file from test/fixtures.
func loadFixture(t *testing.T, name string) []byte {
	t.Helper()

	content, err := os.ReadFile(filepath.Join("..", "fixtures", name))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	return content
}

// serveFixture starts a source server that answers every request with the fixture.
func serveFixture(t *testing.T, name string) *httptest.Server {
	t.Helper()

	content := loadFixture(t, name)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)

	return srv
}
