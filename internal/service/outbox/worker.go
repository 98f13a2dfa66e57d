// Package outbox доставляет события заказов из transactional outbox во внешний брокер.
package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// Options задаёт параметры Worker.
type Options struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	Metrics        *Metrics
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithDLQPublisher задаёт publisher, куда уходят события после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *Options) { opts.DLQPublisher = publisher }
}

// WithMetrics задаёт метрики.
func WithMetrics(metrics *Metrics) Option {
	return func(opts *Options) { opts.Metrics = metrics }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) { opts.PollInterval = interval }
}

// WithBatchSize задаёт число событий, забираемых за один проход.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *Options) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт задержку перед второй попыткой; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *Options) { opts.RetryBaseDelay = delay }
}

// Result — итог одного прохода по outbox.
type Result struct {
	Pulled       int
	Sent         int
	DeadLettered int
	Failed       int
}

// Worker публикует pending-события из outbox в брокер.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	metrics   *Metrics
	logger    *log.Entry
	opts      Options
	now       func() time.Time
}

// NewWorker создаёт Worker. Неположительные значения параметров заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := Options{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "outbox-worker")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	opts.RetryBaseDelay = max(opts.RetryBaseDelay, 0)

	return &Worker{
		repo:      repo,
		publisher: publisher,
		dlq:       opts.DLQPublisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Run опрашивает outbox каждые PollInterval до отмены ctx. Первый проход выполняется сразу.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		result := w.ProcessOnce(ctx)
		if result.Pulled > 0 {
			w.logger.WithFields(log.Fields{
				"pulled":        result.Pulled,
				"sent":          result.Sent,
				"dead_lettered": result.DeadLettered,
				"failed":        result.Failed,
			}).Debug("outbox batch processed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает одну порцию pending-событий и пытается их доставить.
func (w *Worker) ProcessOnce(ctx context.Context) Result {
	var result Result
	if ctx.Err() != nil {
		return result
	}
	defer w.observeBacklog(ctx)

	events, err := w.repo.PullPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}
	result.Pulled = len(events)

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		w.deliver(ctx, event, &result)
	}
	return result
}

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage, result *Result) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})

	publishErr := w.publish(ctx, event)
	if publishErr == nil {
		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox message as sent")
			return
		}
		result.Sent++
		return
	}
	if ctx.Err() != nil {
		// Событие останется pending и уйдёт при следующем запуске.
		return
	}

	entry.WithError(publishErr).Error("outbox publish failed after retries")
	w.metrics.attempt(resultFailed)
	result.Failed++

	if w.dlq != nil {
		if err := w.deadLetter(ctx, event, publishErr); err != nil {
			entry.WithError(err).Warn("failed to publish to DLQ")
			w.metrics.attempt(resultDLQFailed)
		} else {
			result.DeadLettered++
		}
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		entry.WithError(err).Warn("failed to mark outbox message as failed")
	}
}

func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, w.retryBackoff(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = w.publisher.Publish(ctx, event)
		if lastErr == nil {
			w.metrics.attempt(resultSent)
			return nil
		}
		w.metrics.attempt(resultRetry)
	}
	return fmt.Errorf("%w after %d attempts: %w", domain.ErrOutboxPublish, w.opts.MaxAttempts, lastErr)
}

func (w *Worker) deadLetter(ctx context.Context, event domain.OutboxMessage, cause error) error {
	envelope, err := NewDeadLetter(event, cause, w.now()).Envelope()
	if err != nil {
		return err
	}
	if err := w.dlq.Publish(ctx, envelope); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	w.metrics.observeBacklog(stats, w.now())
}

// retryBackoff возвращает паузу после attempt-й неудачной попытки: base, 2*base, 4*base...
// не больше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	base := w.opts.RetryBaseDelay
	if base <= 0 || attempt < 1 {
		return 0
	}
	delay := base
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
