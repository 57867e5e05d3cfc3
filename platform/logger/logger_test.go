package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewUsesJSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	log.HandoffApplied("conv-1", "welcome", "customer_identification", "ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "handoff_applied" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["destination"] != "customer_identification" {
		t.Fatalf("unexpected destination: %v", entry["destination"])
	}
}

func TestWithContextAddsConversation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)

	ctx := context.WithValue(context.Background(), ConversationIDKey, "conv-42")
	ctx = context.WithValue(ctx, RequestIDKey, "req-7")
	log.WithContext(ctx).Info("turn")

	out := buf.String()
	if !strings.Contains(out, "conversation_id=conv-42") || !strings.Contains(out, "request_id=req-7") {
		t.Fatalf("context values missing from %q", out)
	}
}

func TestDirectoryCallDebugOnlyOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	log.DirectoryCall("search-by-phone", 200, 0, nil)
	if buf.Len() != 0 {
		t.Fatalf("successful directory calls should log at debug level, got %q", buf.String())
	}
}
