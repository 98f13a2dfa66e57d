// Package metrics публикует Prometheus-метрики витрины и админки.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bakery/internal/analytics"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// Окна выручки для gauge дашборда.
const (
	WindowToday = "today"
	WindowWeek  = "week"
	WindowMonth = "month"
	WindowYear  = "year"
	WindowTotal = "total"
)

// ShopMetrics содержит метрики корзины, заказов и дашборда.
type ShopMetrics struct {
	cartMutations       *prometheus.CounterVec
	cartRestoreFailures prometheus.Counter

	ordersSubmitted prometheus.Counter
	orderAmount     prometheus.Histogram
	statusChanges   *prometheus.CounterVec

	dashboardRevenue  *prometheus.GaugeVec
	dashboardStatuses *prometheus.GaugeVec
	aggregateDuration prometheus.Histogram
}

// NewShopMetrics регистрирует метрики в registerer (по умолчанию в DefaultRegisterer).
// Повторная регистрация возвращает уже существующие коллекторы.
func NewShopMetrics(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		cartMutations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_cart_mutations_total",
			Help: "Total number of persisted cart mutations grouped by operation",
		}, []string{"op"}), "bakery_cart_mutations_total"),
		cartRestoreFailures: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bakery_cart_restore_failures_total",
			Help: "Total number of cart snapshots that could not be restored",
		}), "bakery_cart_restore_failures_total"),
		ordersSubmitted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bakery_orders_submitted_total",
			Help: "Total number of orders submitted through checkout",
		}), "bakery_orders_submitted_total"),
		orderAmount: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bakery_order_amount",
			Help:    "Distribution of submitted order totals",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
		}), "bakery_order_amount"),
		statusChanges: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_order_status_changes_total",
			Help: "Total number of order status changes grouped by target status",
		}, []string{"status"}), "bakery_order_status_changes_total"),
		dashboardRevenue: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bakery_dashboard_revenue",
			Help: "Revenue per window as of the last dashboard aggregation",
		}, []string{"window"}), "bakery_dashboard_revenue"),
		dashboardStatuses: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bakery_dashboard_orders",
			Help: "Orders per status as of the last dashboard aggregation",
		}, []string{"status"}), "bakery_dashboard_orders"),
		aggregateDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bakery_dashboard_aggregate_duration_seconds",
			Help:    "Duration of dashboard aggregation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}), "bakery_dashboard_aggregate_duration_seconds"),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T, name string) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordCartMutation увеличивает счётчик мутаций корзины.
func (m *ShopMetrics) RecordCartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

// RecordCartRestoreFailure увеличивает счётчик неудачных восстановлений корзины.
func (m *ShopMetrics) RecordCartRestoreFailure() {
	m.cartRestoreFailures.Inc()
}

// RecordOrderSubmitted учитывает оформленный заказ и его сумму.
func (m *ShopMetrics) RecordOrderSubmitted(total decimal.Decimal) {
	m.ordersSubmitted.Inc()
	m.orderAmount.Observe(total.InexactFloat64())
}

// RecordStatusChange учитывает смену статуса заказа.
func (m *ShopMetrics) RecordStatusChange(status domain.OrderStatus) {
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

// RecordDashboard публикует последнюю сводку дашборда.
func (m *ShopMetrics) RecordDashboard(summary analytics.Summary, elapsed time.Duration) {
	m.dashboardRevenue.WithLabelValues(WindowToday).Set(summary.RevenueToday.InexactFloat64())
	m.dashboardRevenue.WithLabelValues(WindowWeek).Set(summary.RevenueWeek.InexactFloat64())
	m.dashboardRevenue.WithLabelValues(WindowMonth).Set(summary.RevenueMonth.InexactFloat64())
	m.dashboardRevenue.WithLabelValues(WindowYear).Set(summary.RevenueYear.InexactFloat64())
	m.dashboardRevenue.WithLabelValues(WindowTotal).Set(summary.TotalRevenue.InexactFloat64())
	for _, sc := range summary.StatusCounts {
		m.dashboardStatuses.WithLabelValues(string(sc.Status)).Set(float64(sc.Count))
	}
	m.aggregateDuration.Observe(elapsed.Seconds())
}
