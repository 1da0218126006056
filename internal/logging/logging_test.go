package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger = WithComponent(logger, "splitter")
	logger.Info("segment written", String("file", "01.wav"), Int("frames", 44100))

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Errorf("missing level label: %q", out)
	}
	if !strings.Contains(out, "splitter") {
		t.Errorf("component not hoisted: %q", out)
	}
	if !strings.Contains(out, "file=01.wav") || !strings.Contains(out, "frames=44100") {
		t.Errorf("attributes missing: %q", out)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("note", String("path", "my file.wav"))
	if !strings.Contains(buf.String(), `path="my file.wav"`) {
		t.Errorf("value with spaces should be quoted: %q", buf.String())
	}
}

func TestJSONHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Error("probe failed", Error(errors.New("exit status 1")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "probe failed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["error"] != "exit status 1" {
		t.Errorf("error = %v", record["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn should pass: %q", out)
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("unknown format should error")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must report disabled at every level.
	logger.Info("ignored")
	if logger.Enabled(nil, 0) {
		t.Error("nop logger should be disabled")
	}
}
