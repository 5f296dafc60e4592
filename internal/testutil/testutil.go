// Package testutil provides shared test helpers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/signal.report/internal/monitoring"
)

// SilenceLogs discards monitoring output for the rest of the test.
func SilenceLogs(t testing.TB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
