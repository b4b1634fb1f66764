package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/domain"
)

// orderChannel is the Postgres NOTIFY channel fired by the orders trigger
// on every insert, update and delete.
const orderChannel = "orders_changed"

// SnapshotSource is the read side the hub polls on change notifications.
type SnapshotSource interface {
	ListActive(ctx context.Context, kind domain.OrderKind) ([]domain.Order, error)
	ListArchived(ctx context.Context) ([]domain.Order, error)
}

// Hub turns Postgres change notifications into push-updated order snapshots.
// Every subscriber gets the current snapshot on subscribe and a fresh one
// after each change. Dispatch is serialized, so a subscriber never sees a
// stale snapshot after a newer one.
type Hub struct {
	source   SnapshotSource
	logger   *slog.Logger
	listener *pq.Listener

	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

// Subscription is a registered snapshot consumer. Cancel is synchronous and
// final: once it returns, the callback is never invoked again.
type Subscription struct {
	hub      *Hub
	id       int
	archived bool
	kind     domain.OrderKind
	deliver  func([]domain.Order)
}

func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.hub.subs, s.id)
}

func NewHub(source SnapshotSource, logger *slog.Logger) *Hub {
	return &Hub{
		source: source,
		logger: logger,
		subs:   make(map[int]*Subscription),
	}
}

// Listen attaches a pq listener on the orders channel. Run must be called
// afterwards to start dispatching.
func (h *Hub) Listen(dsn string) error {
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			h.logger.Warn("orders listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(orderChannel); err != nil {
		_ = listener.Close()
		return err
	}
	h.listener = listener
	return nil
}

// Run dispatches snapshots until the context is cancelled. A periodic
// re-poll covers notifications lost while the listener reconnects.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var notify chan *pq.Notification
	if h.listener != nil {
		notify = h.listener.Notify
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			h.Refresh(ctx)
		case <-ticker.C:
			if h.listener != nil {
				if err := h.listener.Ping(); err != nil {
					h.logger.Warn("orders listener ping failed", "error", err)
				}
			}
			h.Refresh(ctx)
		}
	}
}

func (h *Hub) Close() {
	if h.listener != nil {
		_ = h.listener.Close()
	}
}

// SubscribeActive registers fn for non-archived orders of one kind. The
// current snapshot is delivered before SubscribeActive returns. fn runs on
// the hub's dispatch path and must not block.
func (h *Hub) SubscribeActive(ctx context.Context, kind domain.OrderKind, fn func([]domain.Order)) (*Subscription, error) {
	return h.subscribe(ctx, &Subscription{kind: kind, deliver: fn})
}

// SubscribeArchived registers fn for archived orders, newest archive first.
func (h *Hub) SubscribeArchived(ctx context.Context, fn func([]domain.Order)) (*Subscription, error) {
	return h.subscribe(ctx, &Subscription{archived: true, deliver: fn})
}

func (h *Hub) subscribe(ctx context.Context, sub *Subscription) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.snapshot(ctx, sub)
	if err != nil {
		return nil, err
	}

	sub.hub = h
	sub.id = h.nextID
	h.nextID++
	h.subs[sub.id] = sub

	sub.deliver(rows)
	return sub, nil
}

// Refresh re-reads snapshots and pushes them to all subscribers. The hub
// mutex is held for the whole pass, which both serializes deliveries and
// makes Cancel final.
func (h *Hub) Refresh(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) == 0 {
		return
	}

	cache := make(map[string][]domain.Order)
	for _, sub := range h.subs {
		key := string(sub.kind)
		if sub.archived {
			key = "archived"
		}
		rows, ok := cache[key]
		if !ok {
			var err error
			rows, err = h.snapshot(ctx, sub)
			if err != nil {
				h.logger.Error("failed to refresh order snapshot", "key", key, "error", err)
				continue
			}
			cache[key] = rows
		}
		sub.deliver(rows)
	}
}

func (h *Hub) snapshot(ctx context.Context, sub *Subscription) ([]domain.Order, error) {
	if sub.archived {
		return h.source.ListArchived(ctx)
	}
	return h.source.ListActive(ctx, sub.kind)
}
