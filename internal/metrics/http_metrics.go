package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics содержит метрики публичного HTTP API.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	idem     *prometheus.CounterVec
}

// NewHTTPMetrics создаёт метрики HTTP в переданном реестре (при nil используется глобальный).
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &HTTPMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "route", "status"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "basket_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "basket_http_requests_in_flight",
			Help: "Number of HTTP API requests being served",
		}),
		idem: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_http_idempotency_total",
			Help: "Idempotency-Key handling outcomes (new, replayed, mismatch, in_flight)",
		}, []string{"outcome"}),
	}
}

// RequestStarted увеличивает число обрабатываемых запросов.
func (m *HTTPMetrics) RequestStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RequestFinished фиксирует завершённый запрос.
func (m *HTTPMetrics) RequestFinished(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordIdempotency фиксирует исход обработки Idempotency-Key.
func (m *HTTPMetrics) RecordIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.idem.WithLabelValues(outcome).Inc()
}
