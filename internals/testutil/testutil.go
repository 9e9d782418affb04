package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func TempDBPath(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	return filepath.Join(root, "history.db")
}

// SilentLogger returns a logger that discards everything, for tests that
// exercise noisy paths.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
