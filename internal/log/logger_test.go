package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
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
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_ComponentStamp(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil)})

	logger.WithComponent(ComponentSnapshot).Info("saved", FieldDataset, "cash")

	out := buf.String()
	if !strings.Contains(out, "component=snapshot") {
		t.Errorf("log output %q missing component", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Errorf("log output %q repeats component", out)
	}
	if !strings.Contains(out, "dataset=cash") {
		t.Errorf("log output %q missing dataset field", out)
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))

	sl.LogError(context.Background(), "persist failed", errors.New("disk full"), ComponentStorage, OpPersist, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=\"disk full\"", "operation=persist", "component=storage"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestStructuredLogger_LogSnapshotSaved(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))

	sl.LogSnapshotSaved(context.Background(), "cash", "2025-08-10", 7)

	out := buf.String()
	for _, want := range []string{"level=INFO", "dataset=cash", "day=2025-08-10", "rows=7", "operation=persist", "component=snapshot"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
