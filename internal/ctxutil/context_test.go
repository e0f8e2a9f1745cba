package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestStringValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		with func(context.Context, string) context.Context
		get  func(context.Context) string
	}{
		{"user ID", WithUserID, GetUserID},
		{"chat ID", WithChatID, GetChatID},
		{"event ID", WithEventID, GetEventID},
		{"session ID", WithSessionID, GetSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.get(context.Background()); got != "" {
				t.Errorf("empty context: got %q, want empty", got)
			}
			ctx := tt.with(context.Background(), "value-1")
			if got := tt.get(ctx); got != "value-1" {
				t.Errorf("got %q, want %q", got, "value-1")
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	if _, ok := GetRequestID(context.Background()); ok {
		t.Error("Expected no request ID in empty context")
	}

	ctx := WithRequestID(context.Background(), "req-123")
	requestID, ok := GetRequestID(ctx)
	if !ok || requestID != "req-123" {
		t.Errorf("Expected req-123, got %q (ok=%v)", requestID, ok)
	}
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithUserID(parent, "U1")
	parent = WithChatID(parent, "C1")
	parent = WithRequestID(parent, "R1")
	parent = WithEventID(parent, "E1")
	parent = WithSessionID(parent, "S1")
	cancel()

	detached := PreserveTracing(parent)

	if detached.Err() != nil {
		t.Errorf("Detached context should not be canceled, got %v", detached.Err())
	}
	if _, ok := detached.Deadline(); ok {
		t.Error("Detached context should not carry a deadline")
	}
	if GetUserID(detached) != "U1" || GetChatID(detached) != "C1" {
		t.Error("user/chat IDs were not preserved")
	}
	if id, _ := GetRequestID(detached); id != "R1" {
		t.Errorf("request ID = %q, want R1", id)
	}
	if GetEventID(detached) != "E1" || GetSessionID(detached) != "S1" {
		t.Error("event/session IDs were not preserved")
	}
}

func TestPreserveTracing_Empty(t *testing.T) {
	t.Parallel()

	detached := PreserveTracing(context.Background())
	if _, ok := GetRequestID(detached); ok {
		t.Error("Expected no request ID")
	}
	if GetSessionID(detached) != "" {
		t.Error("Expected no session ID")
	}
}
