package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки публикации outbox-сообщения.
const (
	PublishSent       = "sent"
	PublishRetryError = "retry_error"
	PublishFailed     = "failed"
	PublishDLQ        = "dlq"
	PublishDLQFailed  = "dlq_failed"
)

// WorkerMetrics содержит метрики фоновых воркеров: outbox и очистки idempotency-ключей.
type WorkerMetrics struct {
	publishAttempts  *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge

	cleanupRuns        *prometheus.CounterVec
	cleanupDeleted     prometheus.Counter
	cleanupLastDeleted prometheus.Gauge
}

// NewWorkerMetrics создаёт метрики воркеров в переданном реестре (при nil используется глобальный).
func NewWorkerMetrics(registerer prometheus.Registerer) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &WorkerMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pendingRecords: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "basket_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestPendingAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "basket_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "basket_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "basket_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		cleanupLastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "basket_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordPublish учитывает попытку публикации.
func (m *WorkerMetrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetOutboxBacklog обновляет размер backlog и возраст самого старого сообщения.
func (m *WorkerMetrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.pendingRecords.Set(float64(pending))
	m.oldestPendingAge.Set(oldestAge.Seconds())
}

// RecordCleanupRun учитывает запуск очистки; result: ok или error.
func (m *WorkerMetrics) RecordCleanupRun(result string, deleted int) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.cleanupLastDeleted.Set(float64(deleted))
	}
}

// RecordCleanupDeleted добавляет число удалённых записей.
func (m *WorkerMetrics) RecordCleanupDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(n))
}

// PublishAttempts возвращает счётчик попыток публикации с указанным результатом.
func (m *WorkerMetrics) PublishAttempts(result string) prometheus.Counter {
	return m.publishAttempts.WithLabelValues(result)
}
