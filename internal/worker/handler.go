package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/domain"
)

// AuditHandler consumes the order events topic and writes a structured audit
// trail. It never mutates orders; the stream exists so the shop can answer
// "who archived this and when" without digging through the database.
type AuditHandler struct {
	logger *slog.Logger
}

func NewAuditHandler(logger *slog.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

func (h *AuditHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	if !validEventType(event.Type) {
		h.logger.Warn("skipping order event with unknown type",
			"type", event.Type, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("order audit",
		"type", event.Type,
		"order_id", event.OrderID,
		"kind", event.Kind,
		"client", event.ClientName,
		"at", event.Timestamp,
	)
	return nil
}

func validEventType(t domain.OrderEventType) bool {
	switch t {
	case domain.OrderEventCreated, domain.OrderEventUpdated,
		domain.OrderEventArchived, domain.OrderEventRestored,
		domain.OrderEventDeleted:
		return true
	}
	return false
}
