package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// Значения метки result у bakery_outbox_publish_attempts_total.
const (
	resultSent      = "sent"
	resultRetry     = "retry_error"
	resultFailed    = "failed"
	resultDLQFailed = "dlq_failed"
)

// Metrics — метрики доставки outbox.
type Metrics struct {
	attempts  *prometheus.CounterVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_outbox_pending_records",
			Help: "Pending records in the order events outbox.",
		}),
		oldestAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox record in seconds.",
		}),
	}
}

func (m *Metrics) attempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) observeBacklog(stats domain.OutboxStats, now time.Time) {
	m.pending.Set(float64(stats.PendingCount))

	var age float64
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = max(now.Sub(stats.OldestPendingAt).Seconds(), 0)
	}
	m.oldestAge.Set(age)
}
