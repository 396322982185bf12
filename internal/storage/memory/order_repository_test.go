package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/storage/memory"
)

func newOrder(id string, created time.Time) domain.Order {
	return domain.Order{
		ID:       id,
		UserID:   7,
		MartID:   1,
		MartName: "Fresh Mart",
		Status:   domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ID: id + "-item", ProductID: 10, MartID: 1, Qty: 5, PriceAtPurchase: 100, CreatedAt: created},
		},
		DeliveryCharge: 10,
		Total:          500 + 1000,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestOrderRepository_CreateBatchWritesSideEffects(t *testing.T) {
	ctx := context.Background()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	repo := memory.NewOrderRepository(timeline, outbox)

	now := time.Now().UTC()
	orders := []domain.Order{newOrder("order-1", now), newOrder("order-2", now)}
	events := []domain.TimelineEvent{
		{OrderID: "order-1", Type: domain.TimelineOrderCreated, Occurred: now},
		{OrderID: "order-2", Type: domain.TimelineOrderCreated, Occurred: now},
	}
	msgs := []domain.OutboxMessage{
		{AggregateType: "order", AggregateID: "order-1", EventType: "order.created"},
		{AggregateType: "order", AggregateID: "order-2", EventType: "order.created"},
	}

	if err := repo.CreateBatch(ctx, orders, events, msgs); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}

	stored, err := repo.Get(ctx, "order-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.MartName != "Fresh Mart" {
		t.Fatalf("unexpected mart name %q", stored.MartName)
	}

	history, err := timeline.List(ctx, "order-1")
	if err != nil {
		t.Fatalf("timeline list failed: %v", err)
	}
	if len(history) != 1 || history[0].Type != domain.TimelineOrderCreated {
		t.Fatalf("unexpected timeline %+v", history)
	}
	if pending := outbox.AllPending(); len(pending) != 2 {
		t.Fatalf("expected 2 outbox messages, got %d", len(pending))
	}
}

func TestOrderRepository_CreateBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository(nil, nil)
	now := time.Now().UTC()

	if err := repo.CreateBatch(ctx, []domain.Order{newOrder("order-1", now)}, nil, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := repo.CreateBatch(ctx, []domain.Order{newOrder("order-3", now), newOrder("order-1", now)}, nil, nil)
	if !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := repo.Get(ctx, "order-3"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order-3 must not be stored, got %v", err)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository(nil, nil)
	base := time.Now().UTC()

	other := newOrder("order-other", base)
	other.UserID = 99
	orders := []domain.Order{newOrder("order-old", base.Add(-time.Hour)), newOrder("order-new", base), other}
	if err := repo.CreateBatch(ctx, orders, nil, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := repo.ListByUser(ctx, 7, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if list[0].ID != "order-new" {
		t.Fatalf("expected newest first, got %s", list[0].ID)
	}

	limited, err := repo.ListByUser(ctx, 7, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 order, got %d", len(limited))
	}
}

func TestOrderRepository_SaveVersioning(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutboxRepository()
	repo := memory.NewOrderRepository(nil, outbox)
	order := newOrder("order-1", time.Now().UTC())
	if err := repo.CreateBatch(ctx, []domain.Order{order}, nil, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	stored.Status = domain.OrderStatusCancelled
	msg := domain.OutboxMessage{AggregateType: "order", AggregateID: order.ID, EventType: "order.canceled"}
	if err := repo.Save(ctx, stored, nil, []domain.OutboxMessage{msg}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
	if len(outbox.AllPending()) != 1 {
		t.Fatal("expected outbox message to be enqueued")
	}

	if err := repo.Save(ctx, stored, nil, nil); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}
