package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestAuditHandler(t *testing.T) {
	handler := NewAuditHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	t.Run("accepts a well-formed event", func(t *testing.T) {
		payload := []byte(`{"type":"order_archived","order_id":"o1","kind":"souvenir","timestamp":"2026-01-02T03:04:05Z"}`)
		if err := handler.Handle(ctx, payload); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("skips unknown event types without failing", func(t *testing.T) {
		payload := []byte(`{"type":"order_exploded","order_id":"o1"}`)
		if err := handler.Handle(ctx, payload); err != nil {
			t.Errorf("unknown type should be skipped, got: %v", err)
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		if err := handler.Handle(ctx, []byte("{not-json")); err == nil {
			t.Error("expected an error for malformed payload")
		}
	})
}
