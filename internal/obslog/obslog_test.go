package obslog

import (
	"strings"
	"testing"
)

func TestLoggerWritesLevelAndFields(t *testing.T) {
	var buf strings.Builder
	l := New(Info, &buf)
	l.Info("build started", map[string]any{"n": 8, "dim": 4})

	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "build started") {
		t.Fatalf("got %q, want level and message present", out)
	}
	if !strings.Contains(out, "dim=4") || !strings.Contains(out, "n=8") {
		t.Fatalf("got %q, want sorted fields present", out)
	}
}

func TestLoggerFiltersBelowMinimumLevel(t *testing.T) {
	var buf strings.Builder
	l := New(Warn, &buf)
	l.Info("should be dropped", nil)
	l.Warn("should appear", nil)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("got %q, want Info filtered out below Warn", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("got %q, want Warn message present", out)
	}
}

func TestWithMergesFields(t *testing.T) {
	var buf strings.Builder
	l := New(Debug, &buf).With(map[string]any{"component": "builder"})
	l.Debug("msg", map[string]any{"n": 1})

	out := buf.String()
	if !strings.Contains(out, "component=builder") || !strings.Contains(out, "n=1") {
		t.Fatalf("got %q, want both base and call-site fields", out)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("no panic", map[string]any{"x": 1})
	l.With(map[string]any{"a": 1}).Info("still nil", nil)
}

func TestDiscardWritesNothing(t *testing.T) {
	d := Discard()
	d.Error("should not appear anywhere observable", nil)
}
