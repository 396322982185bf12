package ordering

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/metrics"
)

// DefaultListLimit ограничивает выдачу списка заказов, если limit не задан.
const DefaultListLimit = 50

// Service читает и отменяет заказы пользователя.
type Service struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	retry    RetryConfig
	metrics  *metrics.BasketMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис заказов. timeline может быть nil.
func NewService(orders domain.OrderRepository, timeline domain.TimelineRepository, m *metrics.BasketMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:   orders,
		timeline: timeline,
		retry:    DefaultRetryConfig(),
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List возвращает заказы пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.orders.ListByUser(ctx, userID, limit)
}

// Get возвращает заказ пользователя. Чужой заказ неотличим от отсутствующего.
func (s *Service) Get(ctx context.Context, userID int64, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// Timeline возвращает события заказа пользователя.
func (s *Service) Timeline(ctx context.Context, userID int64, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.Get(ctx, userID, orderID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, orderID)
}

// Cancel отменяет заказ, если это допускает его статус.
// Смена статуса, событие timeline и order.canceled в outbox сохраняются вместе.
func (s *Service) Cancel(ctx context.Context, userID int64, orderID, reason string) (domain.Order, error) {
	var result domain.Order
	err := retryOnConflict(ctx, s.retry, func() error {
		order, err := s.Get(ctx, userID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransition(domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, order.Status, domain.OrderStatusCancelled)
		}

		now := s.now()
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = now

		msg, err := newOrderEvent(domain.EventOrderCanceled, order)
		if err != nil {
			return err
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineOrderStatusChanged,
			Reason:   reason,
			Occurred: now,
		}
		if err := s.orders.Save(ctx, order, []domain.TimelineEvent{event}, []domain.OutboxMessage{msg}); err != nil {
			return err
		}
		order.Version++
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordTimelineEvents(1)
	s.metrics.RecordOutboxEvents(1)
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  userID,
		"reason":   reason,
	}).Info("order cancelled")
	return result, nil
}
