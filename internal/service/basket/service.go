// Package basket реализует оптимизацию корзины по нескольким магазинам.
package basket

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/catalog"
	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geo"
	"github.com/vladislavdragonenkov/basket/internal/metrics"
)

// DeliveryPointResolver определяет адрес доставки пользователя с координатами.
type DeliveryPointResolver interface {
	Resolve(ctx context.Context, userID int64, addressID *int64) (domain.DeliveryPoint, error)
}

// OptimizeRequest описывает запрос на оптимизацию корзины.
type OptimizeRequest struct {
	Items      []domain.RequestedItem
	AddressID  *int64
	AllowSwaps bool
}

// AddressSummary — адрес доставки в ответе оптимизатора.
type AddressSummary struct {
	ID      int64   `json:"id"`
	Summary string  `json:"summary"`
	Lat     float64 `json:"lat"`
	Long    float64 `json:"long"`
}

// OptimizeResponse — ответ оптимизатора.
type OptimizeResponse struct {
	Address    AddressSummary `json:"address"`
	ItemsCount int            `json:"items_count"`
	Result     domain.Plan    `json:"result"`
	Notes      string         `json:"notes"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// Service связывает каталог, адрес доставки и оптимизатор.
type Service struct {
	view      *catalog.View
	catalog   domain.CatalogRepository
	resolver  DeliveryPointResolver
	geocoder  domain.Geocoder
	optimizer *Optimizer
	optOpts   []OptimizerOption
	tariff    geo.Tariff
	metrics   *metrics.BasketMetrics
	logger    *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithTariff задаёт тариф доставки (по умолчанию geo.DefaultTariff).
func WithTariff(t geo.Tariff) Option {
	return func(s *Service) {
		s.tariff = t
	}
}

// WithOptimizerOptions передаёт настройки оптимизатору.
func WithOptimizerOptions(opts ...OptimizerOption) Option {
	return func(s *Service) {
		s.optOpts = append(s.optOpts, opts...)
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.BasketMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис. geocoder используется только для поиска магазинов по произвольному адресу.
func NewService(repo domain.CatalogRepository, resolver DeliveryPointResolver, geocoder domain.Geocoder, opts ...Option) *Service {
	s := &Service{
		catalog:  repo,
		resolver: resolver,
		geocoder: geocoder,
		tariff:   geo.DefaultTariff(),
		logger:   log.WithField("component", "basket-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.optimizer = NewOptimizer(s.tariff, append([]OptimizerOption{WithOptimizerLogger(s.logger)}, s.optOpts...)...)
	s.view = catalog.NewView(repo, catalog.WithLogger(s.logger))
	return s
}

// Optimize подбирает разбиение корзины по магазинам с минимальной итоговой стоимостью.
func (s *Service) Optimize(ctx context.Context, userID int64, req OptimizeRequest) (OptimizeResponse, error) {
	if len(req.Items) == 0 {
		s.metrics.OptimizeRejected()
		return OptimizeResponse{}, domain.ErrItemsRequired
	}

	point, err := s.resolver.Resolve(ctx, userID, req.AddressID)
	if err != nil {
		s.metrics.OptimizeRejected()
		return OptimizeResponse{}, err
	}

	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.view.Resolve(ctx, ids)
	if err != nil {
		s.metrics.OptimizeFailed()
		return OptimizeResponse{}, err
	}
	if len(products) == 0 {
		s.metrics.OptimizeRejected()
		return OptimizeResponse{}, domain.ErrNoValidProducts
	}

	var variants map[string][]domain.Product
	if req.AllowSwaps {
		variants, err = s.view.VariantsByName(ctx, productNames(products, req.Items))
		if err != nil {
			s.metrics.OptimizeFailed()
			return OptimizeResponse{}, err
		}
	}

	items := NormalizeItems(req.Items, products, variants, req.AllowSwaps)
	if len(items) == 0 {
		s.metrics.OptimizeRejected()
		return OptimizeResponse{}, domain.ErrNoPurchasableItems
	}

	s.metrics.OptimizeStarted()
	started := time.Now()
	res, err := s.optimizer.Optimize(ctx, Problem{
		Destination: point.Location,
		Items:       items,
		Variants:    variants,
		AllowSwaps:  req.AllowSwaps,
	})
	s.metrics.OptimizeFinished(runResult(res, err), time.Since(started), res.Passes, res.Moves, res.Evaluations)
	if err != nil {
		return OptimizeResponse{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id":     userID,
		"items":       len(items),
		"marts":       len(res.Plan.Marts),
		"grand_total": res.Plan.GrandTotal.String(),
		"passes":      res.Passes,
		"moves":       res.Moves,
	}).Debug("basket optimized")

	return OptimizeResponse{
		Address: AddressSummary{
			ID:      point.Address.ID,
			Summary: point.Address.Summary(),
			Lat:     point.Location.Lat,
			Long:    point.Location.Long,
		},
		ItemsCount: res.Assignment.TotalQty(),
		Result:     res.Plan,
		Notes:      s.notes(),
		Truncated:  res.Truncated,
	}, nil
}

func (s *Service) notes() string {
	return fmt.Sprintf("Pricing: ₹%g/km + ₹%g/kg. ETA tie-break when costs are equal. Approved marts & in-stock only.",
		s.tariff.PerKm, s.tariff.PerKg)
}

func runResult(res Result, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case res.Truncated:
		return metrics.ResultTruncated
	default:
		return metrics.ResultOK
	}
}
