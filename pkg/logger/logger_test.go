package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerEmitsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithFields(ctx, map[string]any{"cart_id": "cart-1", "qty": 3})
	logg.Info(ctx, "item reserved")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("missing request_id field: %v", payload)
	}
	if payload["cart_id"] != "cart-1" {
		t.Fatalf("missing cart_id field: %v", payload)
	}
	if payload["service"] != "test" {
		t.Fatalf("missing service field: %v", payload)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})
	logg.Error(context.Background(), "boom", nil)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if payload["stack"] == nil {
		t.Fatal("expected stack field on error logs")
	}
}
