// Package app собирает витрину пекарни из настроенных хранилищ, сервисов и HTTP-серверов.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/cart"
	"github.com/vladislavdragonenkov/bakery/internal/catalog"
	healthcheck "github.com/vladislavdragonenkov/bakery/internal/health"
	"github.com/vladislavdragonenkov/bakery/internal/httpapi"
	"github.com/vladislavdragonenkov/bakery/internal/metrics"
	"github.com/vladislavdragonenkov/bakery/internal/service/cartsweep"
	"github.com/vladislavdragonenkov/bakery/internal/service/order"
	"github.com/vladislavdragonenkov/bakery/internal/service/outbox"
	"github.com/vladislavdragonenkov/bakery/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает API и сервер метрик и работает до отмены ctx.
// При остановке по сигналу возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load shop timezone %q: %w", cfg.Timezone, err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	catalogService := catalog.NewService(deps.products, logger.WithField("component", "catalog"))
	seeded, err := seedCatalog(ctx, catalogService, cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.WithField("seeded", seeded).Info("catalog ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	version.RegisterBuildInfo(registry, version.Current())
	shopMetrics := metrics.NewShopMetrics(registry)

	orderOpts := []order.Option{
		order.WithLogger(logger.WithField("component", "orders")),
		order.WithRecorder(shopMetrics),
		order.WithLocation(location),
		order.WithWhatsAppNumber(cfg.WhatsAppNumber),
	}

	// Недоступная Kafka не блокирует витрину: ошибка уже залогирована, outbox не включается.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var (
		stopOutbox context.CancelFunc
		outboxDone <-chan struct{}
	)
	if kafkaProducer != nil {
		orderOpts = append(orderOpts, order.WithOutbox(deps.outbox))
		stopOutbox, outboxDone = startOutboxWorker(ctx, cfg, deps.outbox, kafkaProducer, outbox.NewMetrics(registry), logger)
	}
	defer shutdownOutboxWorker(stopOutbox, outboxDone, logger)

	if deps.staleCarts != nil && cfg.CartTTL > 0 {
		sweeper := cartsweep.New(deps.staleCarts, cfg.CartTTL,
			cartsweep.WithLogger(logger.WithField("component", "cart-sweeper")),
			cartsweep.WithMetrics(cartsweep.NewMetrics(registry)),
		)
		sweepCtx, stopSweep := context.WithCancel(ctx)
		sweepDone := make(chan struct{})
		go func() {
			defer close(sweepDone)
			sweeper.Run(sweepCtx)
		}()
		defer func() {
			stopSweep()
			<-sweepDone
		}()
	}

	orderService := order.NewService(deps.orders, deps.timeline, orderOpts...)

	handler := httpapi.NewHandler(catalogService, orderService, deps.carts,
		httpapi.WithLogger(logger.WithField("component", "http-api")),
		httpapi.WithCartOptions(
			cart.WithLogger(logger.WithField("component", "cart")),
			cart.WithRecorder(shopMetrics),
		),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	healthHandler := newHealthHandler(deps, kafkaProducer != nil, cfg.OutboxMaxLag)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, registry, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}

	apiSrv := &http.Server{
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newHealthHandler регистрирует проверки хранилища, корзин и, при включённом outbox, backlog событий.
func newHealthHandler(deps *runtimeDependencies, outboxEnabled bool, outboxMaxLag time.Duration) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", deps.storageChecker)
	if deps.cartChecker != nil {
		handler.RegisterChecker("cart_store", deps.cartChecker)
	}
	if outboxEnabled {
		handler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outbox, outboxMaxLag))
	}
	return handler
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, gatherer prometheus.Gatherer, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
