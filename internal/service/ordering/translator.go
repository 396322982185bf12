package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geo"
	"github.com/vladislavdragonenkov/basket/internal/metrics"
)

// Причины пропуска группы плана (метка reason).
const (
	SkipEmptyGroup      = "empty_group"
	SkipMartNotFound    = "mart_not_found"
	SkipMartNotApproved = "mart_not_approved"
	SkipNoValidItems    = "no_valid_items"
)

// AddressOwner возвращает адрес пользователя с координатами.
type AddressOwner interface {
	ResolveOwned(ctx context.Context, userID, addressID int64) (domain.DeliveryPoint, error)
}

// Translator создаёт по одному заказу в статусе pending на каждый магазин принятого плана.
// Повторный вызов с тем же планом создаст новые заказы.
type Translator struct {
	catalog   domain.CatalogRepository
	addresses AddressOwner
	orders    domain.OrderRepository
	tariff    geo.Tariff
	metrics   *metrics.BasketMetrics
	logger    *log.Entry
	now       func() time.Time
	newID     func() string
}

// TranslatorOption настраивает Translator.
type TranslatorOption func(*Translator)

// WithTranslatorTariff задаёт тариф доставки.
func WithTranslatorTariff(t geo.Tariff) TranslatorOption {
	return func(tr *Translator) {
		tr.tariff = t
	}
}

// WithTranslatorMetrics подключает метрики.
func WithTranslatorMetrics(m *metrics.BasketMetrics) TranslatorOption {
	return func(tr *Translator) {
		tr.metrics = m
	}
}

// WithTranslatorLogger задаёт логгер.
func WithTranslatorLogger(logger *log.Entry) TranslatorOption {
	return func(tr *Translator) {
		if logger != nil {
			tr.logger = logger
		}
	}
}

// NewTranslator создаёт Translator.
func NewTranslator(catalog domain.CatalogRepository, addresses AddressOwner, orders domain.OrderRepository, opts ...TranslatorOption) *Translator {
	t := &Translator{
		catalog:   catalog,
		addresses: addresses,
		orders:    orders,
		tariff:    geo.DefaultTariff(),
		logger:    log.WithField("component", "plan-translator"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate проверяет запрос, строит заказы по группам плана и атомарно сохраняет их
// вместе с событиями timeline и outbox.
func (t *Translator) Translate(ctx context.Context, userID int64, req PlanAcceptance) ([]domain.Order, error) {
	if len(req.Plan.Marts) == 0 {
		return nil, domain.ErrPlanRequired
	}
	if req.AddressID == 0 || req.ContactNumber == "" {
		return nil, domain.ErrAddressAndContactRequired
	}

	point, err := t.addresses.ResolveOwned(ctx, userID, req.AddressID)
	if err != nil {
		return nil, err
	}

	products, err := t.lookupProducts(ctx, req.Plan.Marts)
	if err != nil {
		return nil, err
	}

	snapshot := domain.AddressSnapshot{
		AddressID: point.Address.ID,
		Text:      point.Address.SnapshotText(),
		Short:     point.Address.Short(),
		Location:  point.Location,
	}

	var (
		orders   []domain.Order
		timeline []domain.TimelineEvent
		events   []domain.OutboxMessage
	)
	for _, group := range req.Plan.Marts {
		order, reason, err := t.buildOrder(ctx, userID, group, products, snapshot, req.ContactNumber)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			t.metrics.RecordGroupSkipped(reason)
			t.logger.WithFields(log.Fields{"mart_id": group.MartID, "reason": reason}).Debug("plan group skipped")
			continue
		}

		msg, err := newOrderEvent(domain.EventOrderCreated, order)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		events = append(events, msg)
		timeline = append(timeline, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineOrderCreated,
			Occurred: order.CreatedAt,
		})
	}

	if len(orders) == 0 {
		return nil, domain.ErrNoOrdersCreated
	}
	if err := t.orders.CreateBatch(ctx, orders, timeline, events); err != nil {
		return nil, fmt.Errorf("store orders: %w", err)
	}

	t.metrics.RecordOrdersCreated(len(orders))
	t.metrics.RecordTimelineEvents(len(timeline))
	t.metrics.RecordOutboxEvents(len(events))
	t.logger.WithFields(log.Fields{
		"user_id": userID,
		"orders":  len(orders),
		"groups":  len(req.Plan.Marts),
	}).Info("orders created from plan")
	return orders, nil
}

func (t *Translator) lookupProducts(ctx context.Context, groups []PlanGroup) (map[int64]domain.Product, error) {
	var ids []int64
	for _, g := range groups {
		for _, it := range g.Items {
			ids = append(ids, it.ProductID)
		}
	}
	found, err := t.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load plan products: %w", err)
	}
	products := make(map[int64]domain.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}
	return products, nil
}

// buildOrder возвращает заказ либо непустую причину пропуска группы.
func (t *Translator) buildOrder(ctx context.Context, userID int64, group PlanGroup, products map[int64]domain.Product, address domain.AddressSnapshot, contact string) (domain.Order, string, error) {
	if group.MartID == 0 || len(group.Items) == 0 {
		return domain.Order{}, SkipEmptyGroup, nil
	}
	mart, err := t.catalog.Mart(ctx, group.MartID)
	if errors.Is(err, domain.ErrMartNotFound) {
		return domain.Order{}, SkipMartNotFound, nil
	}
	if err != nil {
		return domain.Order{}, "", fmt.Errorf("load mart %d: %w", group.MartID, err)
	}
	if !mart.Approved {
		return domain.Order{}, SkipMartNotApproved, nil
	}

	now := t.now()
	order := domain.Order{
		ID:            t.newID(),
		UserID:        userID,
		MartID:        mart.ID,
		MartName:      mart.Name,
		Status:        domain.OrderStatusPending,
		ContactNumber: contact,
		Address:       address,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var weight float64
	for _, it := range group.Items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		qty := it.Count()
		if qty <= 0 {
			continue
		}
		weight += p.WeightPerUnit() * float64(qty)
		order.Items = append(order.Items, domain.OrderItem{
			ID:              t.newID(),
			ProductID:       p.ID,
			MartID:          p.Mart.ID,
			Name:            p.Name,
			Qty:             qty,
			PriceAtPurchase: p.Price,
			CreatedAt:       now,
		})
	}
	if len(order.Items) == 0 {
		return domain.Order{}, SkipNoValidItems, nil
	}

	distance := geo.DistanceKm(address.Location, mart.Location)
	order.DeliveryCharge = t.tariff.DeliveryCharge(distance, weight)
	order.DistanceKm = round3(distance)
	order.TotalWeightKg = round3(weight)
	order.Total = order.ItemsTotal() + domain.MoneyFromMajor(order.DeliveryCharge)

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, "", fmt.Errorf("order for mart %d: %w", mart.ID, errors.Join(errs...))
	}
	return order, "", nil
}

func newOrderEvent(eventType string, order domain.Order) (domain.OutboxMessage, error) {
	data, err := json.Marshal(NewOrderPayload(order))
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}
