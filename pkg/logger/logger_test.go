package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestWithContextAddsKeys(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { SetDefault(prev) })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ServiceKey, "visitors")
	InfoContext(ctx, "hello", "n", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["service"] != "visitors" {
		t.Errorf("service = %v, want visitors", entry["service"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("user_id should be absent")
	}
}

func TestNewLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "msg=kept") {
		t.Errorf("text output = %q, want msg=kept", out)
	}
}
