// Package cartsweep удаляет снимки корзин, которые давно не менялись.
package cartsweep

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultBatchSize = 500
)

// SnapshotStore — хранилище снимков, умеющее удалять устаревшие записи порциями.
type SnapshotStore interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Metrics — метрики очистки снимков корзин.
type Metrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bakery_cart_sweep_runs_total",
			Help: "Total number of cart snapshot sweeps grouped by result.",
		}, []string{"result"}),
		deleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bakery_cart_sweep_deleted_total",
			Help: "Total number of deleted stale cart snapshots.",
		}),
		lastDeleted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bakery_cart_sweep_last_deleted",
			Help: "Number of deleted snapshots during the last sweep.",
		}),
	}
}

// Options задаёт параметры Sweeper.
type Options struct {
	Logger    *log.Entry
	Metrics   *Metrics
	Interval  time.Duration
	BatchSize int
}

// Option настраивает Sweeper.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(metrics *Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = metrics
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер порции одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// Sweeper периодически удаляет снимки корзин старше ttl.
type Sweeper struct {
	store     SnapshotStore
	ttl       time.Duration
	logger    *log.Entry
	metrics   *Metrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// New создаёт Sweeper. ttl <= 0 отключает очистку.
func New(store SnapshotStore, ttl time.Duration, options ...Option) *Sweeper {
	opts := Options{
		Interval:  defaultInterval,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-sweeper")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Sweeper{
		store:     store,
		ttl:       ttl,
		logger:    logger,
		metrics:   metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		now:       time.Now,
	}
}

// Run выполняет очистку сразу и затем с интервалом до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.store == nil || s.ttl <= 0 {
		s.logger.Warn("cart sweeper is disabled")
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.DeleteExpired(ctx, s.now().Add(-s.ttl))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.metrics.runs.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("cart sweep failed")
		return
	}

	s.metrics.runs.WithLabelValues("ok").Inc()
	s.metrics.lastDeleted.Set(float64(deleted))
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("stale cart snapshots removed")
	}
}

// DeleteExpired удаляет все снимки, не менявшиеся с before, порциями batchSize.
func (s *Sweeper) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := s.store.DeleteExpired(ctx, before, s.batchSize)
		total += deleted
		if deleted > 0 {
			s.metrics.deleted.Add(float64(deleted))
		}
		if err != nil {
			return total, err
		}
		if deleted < s.batchSize {
			return total, nil
		}
	}
}
