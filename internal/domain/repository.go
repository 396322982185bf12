package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateBatch атомарно сохраняет заказы вместе с событиями timeline и outbox.
	// Либо сохраняется всё, либо ничего.
	CreateBatch(ctx context.Context, orders []Order, timeline []TimelineEvent, events []OutboxMessage) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми; limit <= 0 снимает ограничение.
	ListByUser(ctx context.Context, userID int64, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking
	// и в той же транзакции сохраняет сопутствующие события.
	Save(ctx context.Context, order Order, timeline []TimelineEvent, events []OutboxMessage) error
}
