// Package ordering превращает принятый план корзины в заказы по магазинам и обслуживает их жизненный цикл.
package ordering

import (
	"math"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// PlanAcceptance описывает тело запроса на создание заказов из плана.
type PlanAcceptance struct {
	Plan          AcceptedPlan `json:"plan"`
	AddressID     int64        `json:"address_id"`
	ContactNumber string       `json:"contact_number"`
}

// AcceptedPlan — план в том виде, в каком его вернул оптимизатор (лишние поля игнорируются).
type AcceptedPlan struct {
	Marts []PlanGroup `json:"marts"`
}

// PlanGroup — позиции одного магазина.
type PlanGroup struct {
	MartID int64      `json:"mart_id"`
	Items  []PlanItem `json:"items"`
}

// PlanItem — позиция плана. qty и quantity — синонимы, по умолчанию 1.
type PlanItem struct {
	ProductID int64 `json:"product_id"`
	Qty       *int  `json:"qty,omitempty"`
	Quantity  *int  `json:"quantity,omitempty"`
}

// Count возвращает количество с учётом синонимов и значения по умолчанию.
func (it PlanItem) Count() int {
	switch {
	case it.Qty != nil:
		return *it.Qty
	case it.Quantity != nil:
		return *it.Quantity
	default:
		return 1
	}
}

// OrderPayload представляет заказ в ответах API и в событиях outbox.
type OrderPayload struct {
	OrderID         string             `json:"order_id"`
	UserID          int64              `json:"user"`
	TotalCost       domain.Money       `json:"total_cost"`
	Status          domain.OrderStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	OrderItems      []OrderItemPayload `json:"order_items"`
	DeliveryAddress string             `json:"delivery_address"`
	AddressSnapshot string             `json:"delivery_address_snapshot"`
	DeliveryLat     float64            `json:"delivery_address_lat"`
	DeliveryLong    float64            `json:"delivery_address_long"`
	ContactNumber   string             `json:"contact_number"`
	ChosenMartID    int64              `json:"chosen_mart_id"`
	ChosenMartName  string             `json:"chosen_mart_name"`
	DistanceKm      float64            `json:"distance_km"`
	DeliveryCharge  int64              `json:"delivery_charge"`
	TotalWeightKg   float64            `json:"total_weight_kg"`
}

// OrderItemPayload — позиция заказа в ответе.
type OrderItemPayload struct {
	ItemID          string       `json:"item_id"`
	ProductID       int64        `json:"product"`
	MartID          int64        `json:"mart"`
	Name            string       `json:"name"`
	Quantity        int          `json:"quantity"`
	PriceAtPurchase domain.Money `json:"price_at_purchase"`
}

// NewOrderPayload строит представление заказа.
func NewOrderPayload(o domain.Order) OrderPayload {
	items := make([]OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemPayload{
			ItemID:          it.ID,
			ProductID:       it.ProductID,
			MartID:          it.MartID,
			Name:            it.Name,
			Quantity:        it.Qty,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}
	return OrderPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalCost:       o.Total,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		OrderItems:      items,
		DeliveryAddress: o.Address.Short,
		AddressSnapshot: o.Address.Text,
		DeliveryLat:     o.Address.Location.Lat,
		DeliveryLong:    o.Address.Location.Long,
		ContactNumber:   o.ContactNumber,
		ChosenMartID:    o.MartID,
		ChosenMartName:  o.MartName,
		DistanceKm:      o.DistanceKm,
		DeliveryCharge:  o.DeliveryCharge,
		TotalWeightKg:   o.TotalWeightKg,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
