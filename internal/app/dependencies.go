package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/catalog"
	"github.com/vladislavdragonenkov/bakery/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bakery/internal/health"
	"github.com/vladislavdragonenkov/bakery/internal/service/cartsweep"
	"github.com/vladislavdragonenkov/bakery/internal/storage/file"
	"github.com/vladislavdragonenkov/bakery/internal/storage/memory"
	"github.com/vladislavdragonenkov/bakery/internal/storage/postgres"
	"github.com/vladislavdragonenkov/bakery/internal/storage/redisstore"
)

// runtimeDependencies содержит хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	carts    domain.KVStore
	// staleCarts задан, когда хранилище корзин само не удаляет старые снимки (memory и file).
	staleCarts cartsweep.SnapshotStore

	storageChecker healthcheck.Checker
	cartChecker    healthcheck.Checker

	closers []func() error
}

// initRuntimeDependencies открывает хранилище заказов и хранилище корзин.
// При ошибке уже открытые ресурсы закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}
	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	if err := deps.initCartStore(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	return deps, nil
}

func (d *runtimeDependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver)); driver {
	case "", StorageDriverMemory:
		d.orders = memory.NewOrderRepository()
		d.products = memory.NewProductRepository()
		d.timeline = memory.NewTimelineRepository()
		d.outbox = memory.NewOutboxRepository()
		d.storageChecker = healthcheck.NewSimpleChecker("storage", func(context.Context) error { return nil })
		logger.WithField("driver", StorageDriverMemory).Info("storage initialized")
		return nil
	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return errors.New("postgres storage requires PostgresDSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("open postgres storage: %w", err)
		}
		d.closers = append(d.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		repos := store.Repositories()
		d.orders, d.products, d.timeline, d.outbox = repos.Orders, repos.Products, repos.Timeline, repos.Outbox
		d.storageChecker = healthcheck.NewSimpleChecker("storage", store.Ping)
		logger.WithFields(log.Fields{
			"driver":       StorageDriverPostgres,
			"auto_migrate": cfg.PostgresAutoMigrate,
		}).Info("storage initialized")
		return nil
	default:
		return fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

func (d *runtimeDependencies) initCartStore(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch kind := strings.ToLower(strings.TrimSpace(cfg.CartStore)); kind {
	case "", CartStoreMemory:
		store := memory.NewKVStore()
		d.carts = store
		d.staleCarts = store
	case CartStoreFile:
		store, err := file.NewKVStore(cfg.CartDir)
		if err != nil {
			return fmt.Errorf("open file cart store: %w", err)
		}
		d.carts = store
		d.staleCarts = store
		logger.WithField("dir", store.Dir()).Info("cart store uses files")
	case CartStoreRedis:
		store, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.CartTTL)
		if err != nil {
			return fmt.Errorf("open redis cart store: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		d.carts = store
		d.cartChecker = healthcheck.NewOptionalChecker("cart_store", store.Ping)
		logger.WithField("addr", cfg.RedisAddr).Info("cart store uses redis")
	default:
		return fmt.Errorf("unsupported cart store: %s", kind)
	}
	return nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

// seedCatalog заполняет пустой каталог из файла или из встроенного набора товаров.
func seedCatalog(ctx context.Context, service *catalog.Service, path string) (int, error) {
	var (
		products []domain.Product
		err      error
	)
	if strings.TrimSpace(path) == "" {
		products, err = catalog.Default()
	} else {
		products, err = catalog.LoadFile(path)
	}
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	return service.Seed(ctx, products)
}
