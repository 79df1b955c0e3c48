package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestDecodeLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := decodeLogLevel(tt.in); got != tt.want {
				t.Errorf("decodeLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_FormatsErrorsWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "INFO")

	logger.Error("boom", slog.Any("error", WrapError(errors.New("disk full"), "save failed")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	errGroup, ok := entry["error"].(map[string]any)
	if !ok {
		t.Fatalf("error attr = %#v, want object", entry["error"])
	}
	if msg, _ := errGroup["msg"].(string); msg == "" {
		t.Error("expected error msg to be populated")
	}
	if _, ok := errGroup["trace"]; !ok {
		t.Error("expected stack trace on wrapped error")
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
}

func TestWrapError_Nil(t *testing.T) {
	if WrapError(nil, "nothing") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestUpdateRequestAttrs_DoesNotMutateOriginal(t *testing.T) {
	base := &RequestAttrs{Method: "GET", Path: "/api/sessions", IP: "10.0.0.1"}
	ctx := WithRequestAttrs(context.Background(), base)

	ctx = UpdateRequestAttrs(ctx, "u1", "admin")

	got := GetRequestAttrs(ctx)
	if got.UserID != "u1" || got.Role != "admin" || got.Path != "/api/sessions" {
		t.Errorf("updated attrs = %+v", got)
	}
	if base.UserID != "" {
		t.Error("original attrs were mutated")
	}
	if len(RequestFields(ctx)) != 5 {
		t.Errorf("RequestFields len = %d, want 5", len(RequestFields(ctx)))
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if got := ExtractClientIP(req); got != "192.0.2.10" {
		t.Errorf("ExtractClientIP = %q, want 192.0.2.10", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.7")
	if got := ExtractClientIP(req); got != "203.0.113.7" {
		t.Errorf("ExtractClientIP = %q, want 203.0.113.7", got)
	}
}
