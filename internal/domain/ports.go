package domain

import (
	"context"
	"time"
)

// CatalogRepository даёт доступ к товарам и магазинам.
type CatalogRepository interface {
	// ProductsByIDs возвращает найденные товары; отсутствующие id просто не попадают в результат.
	ProductsByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// ProductVariantsByName возвращает товары с указанным названием во всех магазинах.
	ProductVariantsByName(ctx context.Context, name string, approvedOnly, inStockOnly bool) ([]Product, error)
	// Mart возвращает магазин или ErrMartNotFound.
	Mart(ctx context.Context, id int64) (Mart, error)
	// ApprovedMarts возвращает одобренные магазины, упорядоченные по id.
	ApprovedMarts(ctx context.Context) ([]Mart, error)
}

// AddressRepository читает адреса пользователя и сохраняет результаты геокодирования.
type AddressRepository interface {
	// Get возвращает адрес пользователя или ErrAddressNotFound.
	Get(ctx context.Context, userID, addressID int64) (Address, error)
	// Preferred возвращает адрес по умолчанию, иначе последний изменённый; ErrNoAddressOnFile, если адресов нет.
	Preferred(ctx context.Context, userID int64) (Address, error)
	// UpdateLocation сохраняет координаты адреса.
	UpdateLocation(ctx context.Context, addressID int64, location Coordinate) error
}

// Geocoder превращает текст адреса в координаты. found=false, если адрес не распознан.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (location Coordinate, found bool, err error)
}

// GeocodeCache хранит результаты геокодирования.
type GeocodeCache interface {
	Get(ctx context.Context, query string) (Coordinate, bool, error)
	Set(ctx context.Context, query string, location Coordinate) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
