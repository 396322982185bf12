package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository.
// Timeline и outbox передаются снаружи, чтобы CreateBatch и Save писали события вместе с заказами.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	items    map[string]domain.Order
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
// timeline и outbox могут быть nil, тогда соответствующие события отбрасываются.
func NewOrderRepository(timeline domain.TimelineRepository, outbox domain.OutboxRepository) domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:    make(map[string]domain.Order),
		timeline: timeline,
		outbox:   outbox,
	}
}

// CreateBatch сохраняет все заказы или ни одного.
func (r *orderRepositoryInMemory) CreateBatch(ctx context.Context, orders []domain.Order, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		if _, exists := r.items[order.ID]; exists {
			return domain.ErrOrderVersionConflict
		}
		if _, dup := seen[order.ID]; dup {
			return domain.ErrOrderVersionConflict
		}
		seen[order.ID] = struct{}{}
	}

	for _, order := range orders {
		r.items[order.ID] = cloneOrder(order)
	}
	return r.appendSideEffects(ctx, timeline, events)
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.Order, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	r.items[order.ID] = cloneOrder(order)
	return r.appendSideEffects(ctx, timeline, events)
}

func (r *orderRepositoryInMemory) appendSideEffects(ctx context.Context, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	if r.timeline != nil {
		for _, ev := range timeline {
			if err := r.timeline.Append(ctx, ev); err != nil {
				return fmt.Errorf("append timeline: %w", err)
			}
		}
	}
	if r.outbox != nil {
		for _, msg := range events {
			if _, err := r.outbox.Enqueue(ctx, msg); err != nil {
				return fmt.Errorf("enqueue outbox: %w", err)
			}
		}
	}
	return nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
