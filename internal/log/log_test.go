package log

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		expect slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.expect {
			t.Errorf("ParseLevel(%q): got %v, want %v", tc.in, got, tc.expect)
		}
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn"}, &buf)

	l.Info("hidden")
	l.Warn("shown", "score", 88)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "score=88") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", JSON: true}, &buf)
	l.Info("scored", "score", 70)

	if !strings.Contains(buf.String(), `"score":70`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "smile.log")
	l := New(Options{Level: "info", File: path}, &buf)
	l.Info("to file")

	if !strings.Contains(buf.String(), "to file") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}
