package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func newTestLogger() (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	return rec
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(l *SlogLogger)
		level string
	}{
		{"debug", func(l *SlogLogger) { l.Debug(context.Background(), "m") }, "DEBUG"},
		{"info", func(l *SlogLogger) { l.Info(context.Background(), "m") }, "INFO"},
		{"warn", func(l *SlogLogger) { l.Warn(context.Background(), "m") }, "WARN"},
		{"error", func(l *SlogLogger) { l.Error(context.Background(), "m") }, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger()
			tt.log(l)
			rec := lastRecord(t, buf)
			if rec["level"] != tt.level {
				t.Fatalf("expected level %s, got %v", tt.level, rec["level"])
			}
		})
	}
}

func TestWithAddsAttrs(t *testing.T) {
	l, buf := newTestLogger()
	child := l.With("component", "sweeper")
	child.Info(context.Background(), "pass finished")
	rec := lastRecord(t, buf)
	if rec["component"] != "sweeper" {
		t.Fatalf("expected component attr, got %v", rec)
	}
}
