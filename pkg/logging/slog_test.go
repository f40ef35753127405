package logging

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(slog.LevelInfo)

	SetLevelFromString("warn")
	Op().Info("hidden")
	Op().Warn("shown", "class", "a.B$x")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "class=a.B$x") {
		t.Errorf("unexpected output: %q", out)
	}

	SetLevelFromString("bogus")
	if Level() != slog.LevelWarn {
		t.Errorf("unknown level should be ignored, got %v", Level())
	}
}
