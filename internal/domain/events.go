package domain

// Типы событий заказа в outbox.
const (
	AggregateOrder     = "order"
	EventOrderCreated  = "order.created"
	EventOrderCanceled = "order.canceled"
)
