package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	lg, err := New("info", dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info("test entry", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "readback.slog"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	// First line must be valid JSON.
	line := data
	for i, b := range data {
		if b == '\n' {
			line = data[:i]
			break
		}
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := entry["msg"]; !ok {
		t.Error("log entry missing msg field")
	}
}

func TestDiscardDoesNotPanic(t *testing.T) {
	lg := Discard()
	lg.Info("dropped")
	lg.Error("also dropped", "err", "boom")
}
