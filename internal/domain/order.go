package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан из плана и ждёт подтверждения магазином.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — магазин принял заказ.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransition проверяет, допустим ли переход в статус to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid сообщает, что статус известен.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem — позиция заказа. PriceAtPurchase фиксирует цену на момент оформления.
type OrderItem struct {
	ID              string
	ProductID       int64
	MartID          int64
	Name            string
	Qty             int
	PriceAtPurchase Money
	CreatedAt       time.Time
}

// AddressSnapshot — копия адреса доставки, не зависящая от последующих правок адреса.
type AddressSnapshot struct {
	AddressID int64
	Text      string
	Short     string
	Location  Coordinate
}

// Order — заказ в одном магазине, созданный из принятого плана.
type Order struct {
	ID       string
	UserID   int64
	MartID   int64
	MartName string
	Status   OrderStatus
	Items    []OrderItem
	// DeliveryCharge — стоимость доставки в целых денежных единицах.
	DeliveryCharge int64
	Total          Money
	DistanceKm     float64
	TotalWeightKg  float64
	ContactNumber  string
	Address        AddressSnapshot
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemsTotal возвращает сумму позиций без доставки.
func (o *Order) ItemsTotal() Money {
	var sum Money
	for _, item := range o.Items {
		sum += item.PriceAtPurchase.Mul(item.Qty)
	}
	return sum
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if o.MartID <= 0 {
		errs = append(errs, ErrMartRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrOrderItemsRequired)
	}
	if o.DeliveryCharge < 0 {
		errs = append(errs, ErrDeliveryChargeNegative)
	}

	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceAtPurchase < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	// Итог = позиции по зафиксированной цене + доставка.
	if o.ItemsTotal()+MoneyFromMajor(o.DeliveryCharge) != o.Total {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
