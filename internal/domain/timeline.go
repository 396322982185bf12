package domain

import "time"

const (
	// TimelineOrderCreated — заказ создан из плана.
	TimelineOrderCreated = "OrderCreated"
	// TimelineOrderStatusChanged — смена статуса заказа.
	TimelineOrderStatusChanged = "OrderStatusChanged"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
