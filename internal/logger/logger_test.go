package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttemptID_And_AttemptIDFromContext(t *testing.T) {
	ctx := context.Background()

	// Initially empty
	if got := AttemptIDFromContext(ctx); got != "" {
		t.Errorf("AttemptIDFromContext() on empty ctx = %v, want empty", got)
	}

	ctx = WithAttemptID(ctx, "att-12345")
	if got := AttemptIDFromContext(ctx); got != "att-12345" {
		t.Errorf("AttemptIDFromContext() = %v, want att-12345", got)
	}
}

func TestFromContext_AttachesAttemptID(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info", "json")

	ctx := WithAttemptID(context.Background(), "att-67890")
	FromContext(ctx, base).Info("job submitted")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["attempt_id"] != "att-67890" {
		t.Errorf("expected attempt_id att-67890, got %v", line["attempt_id"])
	}
}

func TestFromContext_NilBase(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Error("FromContext() returned nil")
	}
}

func TestNew_TextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("expected text handler output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
		"bogus": slog.LevelWarn,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
