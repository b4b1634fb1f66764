package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Bormex-edergustavo/bormex-nuevo/internal/domain"
)

type stubSource struct {
	active   map[domain.OrderKind][]domain.Order
	archived []domain.Order
	err      error
}

func (s *stubSource) ListActive(_ context.Context, kind domain.OrderKind) ([]domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.active[kind], nil
}

func (s *stubSource) ListArchived(context.Context) ([]domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.archived, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubDeliversInitialSnapshot(t *testing.T) {
	source := &stubSource{active: map[domain.OrderKind][]domain.Order{
		domain.OrderKindSouvenir: {{ID: "a"}, {ID: "b"}},
	}}
	hub := NewHub(source, testLogger())

	var got [][]domain.Order
	sub, err := hub.SubscribeActive(context.Background(), domain.OrderKindSouvenir, func(rows []domain.Order) {
		got = append(got, rows)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Cancel()

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if len(got[0]) != 2 || got[0][0].ID != "a" {
		t.Errorf("unexpected snapshot: %+v", got[0])
	}
}

func TestHubRefreshPushesToSubscribers(t *testing.T) {
	source := &stubSource{active: map[domain.OrderKind][]domain.Order{}}
	hub := NewHub(source, testLogger())

	var deliveries int
	var last []domain.Order
	sub, err := hub.SubscribeActive(context.Background(), domain.OrderKindService, func(rows []domain.Order) {
		deliveries++
		last = rows
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Cancel()

	source.active[domain.OrderKindService] = []domain.Order{{ID: "svc-1"}}
	hub.Refresh(context.Background())

	if deliveries != 2 {
		t.Fatalf("expected 2 deliveries, got %d", deliveries)
	}
	if len(last) != 1 || last[0].ID != "svc-1" {
		t.Errorf("unexpected snapshot: %+v", last)
	}
}

func TestHubCancelStopsDeliveries(t *testing.T) {
	source := &stubSource{active: map[domain.OrderKind][]domain.Order{}}
	hub := NewHub(source, testLogger())

	deliveries := 0
	sub, err := hub.SubscribeActive(context.Background(), domain.OrderKindSouvenir, func([]domain.Order) {
		deliveries++
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	sub.Cancel()
	hub.Refresh(context.Background())
	hub.Refresh(context.Background())

	if deliveries != 1 {
		t.Errorf("expected only the initial delivery, got %d", deliveries)
	}
}

func TestHubArchivedSubscription(t *testing.T) {
	source := &stubSource{archived: []domain.Order{{ID: "old-1"}, {ID: "old-2"}}}
	hub := NewHub(source, testLogger())

	var last []domain.Order
	sub, err := hub.SubscribeArchived(context.Background(), func(rows []domain.Order) {
		last = rows
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Cancel()

	if len(last) != 2 {
		t.Errorf("expected 2 archived orders, got %d", len(last))
	}
}

func TestHubSubscribeFailsWhenSnapshotFails(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	hub := NewHub(source, testLogger())

	if _, err := hub.SubscribeActive(context.Background(), domain.OrderKindSouvenir, func([]domain.Order) {}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHubRefreshSurvivesSnapshotError(t *testing.T) {
	source := &stubSource{active: map[domain.OrderKind][]domain.Order{}}
	hub := NewHub(source, testLogger())

	deliveries := 0
	sub, err := hub.SubscribeActive(context.Background(), domain.OrderKindSouvenir, func([]domain.Order) {
		deliveries++
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Cancel()

	source.err = errors.New("transient")
	hub.Refresh(context.Background())

	source.err = nil
	hub.Refresh(context.Background())

	if deliveries != 2 {
		t.Errorf("expected 2 deliveries (initial + recovered), got %d", deliveries)
	}
}
