package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты запуска оптимизатора для метки result.
const (
	ResultOK        = "ok"
	ResultTruncated = "truncated"
	ResultRejected  = "rejected"
	ResultError     = "error"
)

// BasketMetrics содержит метрики оптимизатора корзины и создания заказов.
type BasketMetrics struct {
	// Запуски оптимизатора
	optimizeRuns     *prometheus.CounterVec
	optimizeDuration prometheus.Histogram
	optimizerPasses  prometheus.Histogram
	movesAccepted    prometheus.Counter
	movesRejected    prometheus.Counter
	activeRuns       prometheus.Gauge

	// Подтверждение плана
	ordersCreated     prometheus.Counter
	planGroupsSkipped *prometheus.CounterVec
	timelineEvents    prometheus.Counter
	outboxEvents      prometheus.Counter
	geocodeLookups    *prometheus.CounterVec
}

// NewBasketMetrics создаёт метрики в глобальном реестре.
func NewBasketMetrics() *BasketMetrics {
	return NewBasketMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewBasketMetricsWithRegisterer создаёт метрики в переданном реестре (удобно в тестах).
func NewBasketMetricsWithRegisterer(registerer prometheus.Registerer) *BasketMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BasketMetrics{
		optimizeRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_optimize_runs_total",
			Help: "Total number of basket optimization runs by result",
		}, []string{"result"}),
		optimizeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "basket_optimize_duration_seconds",
			Help:    "Duration of the assignment optimizer in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		optimizerPasses: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "basket_optimizer_passes",
			Help:    "Number of outer improvement passes per optimization run",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		}),
		movesAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_optimizer_moves_accepted_total",
			Help: "Total number of item relocations accepted by the optimizer",
		}),
		movesRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_optimizer_moves_rejected_total",
			Help: "Total number of item relocations evaluated and rejected",
		}),
		activeRuns: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "basket_optimizer_active_runs",
			Help: "Number of optimization runs in progress",
		}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_orders_created_total",
			Help: "Total number of orders created from accepted plans",
		}),
		planGroupsSkipped: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_plan_groups_skipped_total",
			Help: "Total number of plan mart groups skipped during order creation",
		}, []string{"reason"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		geocodeLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_geocode_lookups_total",
			Help: "Total number of geocode lookups by outcome",
		}, []string{"outcome"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// OptimizeStarted отмечает начало запуска оптимизатора.
func (m *BasketMetrics) OptimizeStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// OptimizeFinished фиксирует результат запуска: длительность, число проходов и перемещений.
func (m *BasketMetrics) OptimizeFinished(result string, duration time.Duration, passes, accepted, evaluations int) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.optimizeRuns.WithLabelValues(result).Inc()
	m.optimizeDuration.Observe(duration.Seconds())
	m.optimizerPasses.Observe(float64(passes))
	m.movesAccepted.Add(float64(accepted))
	if rejected := evaluations - accepted; rejected > 0 {
		m.movesRejected.Add(float64(rejected))
	}
}

// OptimizeRejected учитывает запрос, отклонённый до запуска оптимизатора.
func (m *BasketMetrics) OptimizeRejected() {
	if m == nil {
		return
	}
	m.optimizeRuns.WithLabelValues(ResultRejected).Inc()
}

// OptimizeFailed учитывает запрос, сорвавшийся до запуска оптимизатора из-за ошибки хранилища.
func (m *BasketMetrics) OptimizeFailed() {
	if m == nil {
		return
	}
	m.optimizeRuns.WithLabelValues(ResultError).Inc()
}

// RecordOrdersCreated увеличивает счётчик созданных заказов.
func (m *BasketMetrics) RecordOrdersCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersCreated.Add(float64(n))
}

// RecordGroupSkipped учитывает пропущенную группу плана.
func (m *BasketMetrics) RecordGroupSkipped(reason string) {
	if m == nil {
		return
	}
	m.planGroupsSkipped.WithLabelValues(reason).Inc()
}

// RecordTimelineEvents увеличивает счётчик событий timeline.
func (m *BasketMetrics) RecordTimelineEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.timelineEvents.Add(float64(n))
}

// RecordOutboxEvents увеличивает счётчик событий outbox.
func (m *BasketMetrics) RecordOutboxEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxEvents.Add(float64(n))
}

// RecordGeocode учитывает обращение к геокодеру: hit, miss, not_found или error.
func (m *BasketMetrics) RecordGeocode(outcome string) {
	if m == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(outcome).Inc()
}
