package debug

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifiscan-debug.log")
	w := Open(path)

	logger := slog.New(NewHandler(w))
	logger.Debug("spawned worker", "pid", 1234)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"spawned worker"`) || !strings.Contains(string(data), `"pid":1234`) {
		t.Errorf("unexpected log contents: %s", data)
	}
}
