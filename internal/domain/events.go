package domain

import "time"

type OrderEventType string

const (
	OrderEventCreated  OrderEventType = "order_created"
	OrderEventUpdated  OrderEventType = "order_updated"
	OrderEventArchived OrderEventType = "order_archived"
	OrderEventRestored OrderEventType = "order_restored"
	OrderEventDeleted  OrderEventType = "order_deleted"
)

// OrderEvent is the audit record published to Kafka after a mutation.
type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"order_id"`
	Kind       OrderKind      `json:"kind"`
	ClientName string         `json:"client_name,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
