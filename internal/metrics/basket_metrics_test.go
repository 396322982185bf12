package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestNewBasketMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBasketMetricsWithRegisterer(reg)

	if m.optimizeRuns == nil || m.optimizeDuration == nil || m.movesAccepted == nil {
		t.Fatal("optimizer collectors must be initialised")
	}
	if m.ordersCreated == nil || m.planGroupsSkipped == nil || m.geocodeLookups == nil {
		t.Fatal("order collectors must be initialised")
	}

	// повторная регистрация возвращает уже существующие коллекторы
	again := NewBasketMetricsWithRegisterer(reg)
	if again.movesAccepted != m.movesAccepted {
		t.Fatal("expected the already registered counter to be reused")
	}
}

func TestOptimizeLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBasketMetricsWithRegisterer(reg)

	m.OptimizeStarted()
	if got := gaugeValue(t, m.activeRuns); got != 1 {
		t.Fatalf("expected 1 active run, got %f", got)
	}

	m.OptimizeFinished(ResultOK, 20*time.Millisecond, 3, 2, 10)

	if got := gaugeValue(t, m.activeRuns); got != 0 {
		t.Fatalf("expected 0 active runs, got %f", got)
	}
	if got := counterValue(t, m.optimizeRuns.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("expected 1 ok run, got %f", got)
	}
	if got := counterValue(t, m.movesAccepted); got != 2 {
		t.Fatalf("expected 2 accepted moves, got %f", got)
	}
	if got := counterValue(t, m.movesRejected); got != 8 {
		t.Fatalf("expected 8 rejected moves, got %f", got)
	}

	passes := &dto.Metric{}
	if err := m.optimizerPasses.Write(passes); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if passes.Histogram.GetSampleCount() != 1 || passes.Histogram.GetSampleSum() != 3 {
		t.Fatalf("unexpected passes histogram: %v", passes.Histogram)
	}
}

func TestOrderCounters(t *testing.T) {
	m := NewBasketMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrdersCreated(2)
	m.RecordOrdersCreated(0)
	m.RecordGroupSkipped("mart_unavailable")
	m.RecordTimelineEvents(2)
	m.RecordOutboxEvents(2)
	m.RecordGeocode("hit")
	m.OptimizeRejected()

	if got := counterValue(t, m.ordersCreated); got != 2 {
		t.Fatalf("expected 2 orders, got %f", got)
	}
	if got := counterValue(t, m.planGroupsSkipped.WithLabelValues("mart_unavailable")); got != 1 {
		t.Fatalf("expected 1 skipped group, got %f", got)
	}
	if got := counterValue(t, m.timelineEvents); got != 2 {
		t.Fatalf("expected 2 timeline events, got %f", got)
	}
	if got := counterValue(t, m.geocodeLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected 1 geocode hit, got %f", got)
	}
	if got := counterValue(t, m.optimizeRuns.WithLabelValues(ResultRejected)); got != 1 {
		t.Fatalf("expected 1 rejected run, got %f", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *BasketMetrics
	m.OptimizeStarted()
	m.OptimizeFinished(ResultError, time.Millisecond, 0, 0, 0)
	m.RecordOrdersCreated(1)
	m.RecordGeocode("miss")

	var h *HTTPMetrics
	h.RequestStarted()
	h.RequestFinished("GET", "/x", 200, time.Millisecond)
}

func TestHTTPMetrics(t *testing.T) {
	h := NewHTTPMetrics(prometheus.NewRegistry())

	h.RequestStarted()
	h.RequestFinished("POST", "/api/v1/basket/optimize", 200, 5*time.Millisecond)

	if got := counterValue(t, h.requests.WithLabelValues("POST", "/api/v1/basket/optimize", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %f", got)
	}
	if got := gaugeValue(t, h.inFlight); got != 0 {
		t.Fatalf("expected 0 in flight, got %f", got)
	}
}

func TestWorkerMetrics(t *testing.T) {
	w := NewWorkerMetrics(prometheus.NewRegistry())

	w.RecordPublish(PublishSent)
	w.RecordPublish(PublishSent)
	w.SetOutboxBacklog(3, -time.Second)
	w.RecordCleanupRun(ResultOK, 7)
	w.RecordCleanupDeleted(7)

	if got := counterValue(t, w.publishAttempts.WithLabelValues(PublishSent)); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %f", got)
	}
	if got := gaugeValue(t, w.pendingRecords); got != 3 {
		t.Fatalf("expected 3 pending, got %f", got)
	}
	if got := gaugeValue(t, w.oldestPendingAge); got != 0 {
		t.Fatalf("negative age must be clamped to 0, got %f", got)
	}
	if got := gaugeValue(t, w.cleanupLastDeleted); got != 7 {
		t.Fatalf("expected last deleted 7, got %f", got)
	}

	var nilMetrics *WorkerMetrics
	nilMetrics.RecordPublish(PublishFailed)
	nilMetrics.SetOutboxBacklog(1, time.Second)
	nilMetrics.RecordCleanupRun(ResultError, 0)
}
