// Package httpapi реализует публичный JSON API сервиса корзины поверх net/http.
package httpapi

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/metrics"
	"github.com/vladislavdragonenkov/basket/internal/service/basket"
	"github.com/vladislavdragonenkov/basket/internal/service/ordering"
)

// BasketService оптимизирует корзину и ищет магазины.
type BasketService interface {
	Optimize(ctx context.Context, userID int64, req basket.OptimizeRequest) (basket.OptimizeResponse, error)
	NearbyMarts(ctx context.Context, q basket.NearbyQuery) (basket.NearbyResult, error)
}

// PlanTranslator создаёт заказы из принятого плана.
type PlanTranslator interface {
	Translate(ctx context.Context, userID int64, req ordering.PlanAcceptance) ([]domain.Order, error)
}

// OrderService читает и отменяет заказы пользователя.
type OrderService interface {
	List(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
	Get(ctx context.Context, userID int64, orderID string) (domain.Order, error)
	Timeline(ctx context.Context, userID int64, orderID string) ([]domain.TimelineEvent, error)
	Cancel(ctx context.Context, userID int64, orderID, reason string) (domain.Order, error)
}

// API содержит обработчики публичного HTTP API.
type API struct {
	basket     BasketService
	translator PlanTranslator
	orders     OrderService
	idem       domain.IdempotencyRepository
	metrics    *metrics.HTTPMetrics
	logger     *log.Entry
}

// Option настраивает API.
type Option func(*API)

// WithIdempotency включает обработку Idempotency-Key для создания заказов из плана.
func WithIdempotency(repo domain.IdempotencyRepository) Option {
	return func(a *API) {
		a.idem = repo
	}
}

// WithMetrics подключает метрики HTTP.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New создаёт API.
func New(basketSvc BasketService, translator PlanTranslator, orders OrderService, opts ...Option) *API {
	a := &API{
		basket:     basketSvc,
		translator: translator,
		orders:     orders,
		logger:     log.WithField("component", "http-api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler возвращает маршрутизатор со всеми эндпоинтами и middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	a.route(mux, "POST /api/v1/basket/optimize", a.requireUser(a.optimize))
	a.route(mux, "POST /api/v1/orders/from-plan", a.requireUser(a.createFromPlan))
	a.route(mux, "GET /api/v1/orders", a.requireUser(a.listOrders))
	a.route(mux, "GET /api/v1/orders/{id}", a.requireUser(a.getOrder))
	a.route(mux, "GET /api/v1/orders/{id}/timeline", a.requireUser(a.orderTimeline))
	a.route(mux, "POST /api/v1/orders/{id}/cancel", a.requireUser(a.cancelOrder))
	a.route(mux, "POST /api/v1/marts/nearby", a.nearbyMarts)
	a.route(mux, "POST /api/v1/shopping-list/parse", a.parseShoppingList)

	return a.recoverPanics(mux)
}

func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, a.instrument(pattern, h))
}
