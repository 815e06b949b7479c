package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "text", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "position", "tl")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "position=tl") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New("info", "JSON", &buf).Info("hello", "run_id", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["run_id"] != "abc" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewProgress_Named(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgress("info", "text", &buf).Named("tl")

	progress.Info("segment written", "path", "media_1.ts")
	progress.Debug("not shown")

	out := buf.String()
	if !strings.Contains(out, "archive.tl") {
		t.Errorf("expected named logger prefix, got %q", out)
	}
	if !strings.Contains(out, "path=media_1.ts") {
		t.Errorf("expected key/value pair, got %q", out)
	}
	if strings.Contains(out, "not shown") {
		t.Errorf("debug line logged at info level: %q", out)
	}
}
