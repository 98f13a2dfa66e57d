package app

import "time"

const (
	// StorageDriverMemory хранит заказы и каталог в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы и каталог в PostgreSQL.
	StorageDriverPostgres = "postgres"

	// CartStoreMemory держит корзины в памяти процесса.
	CartStoreMemory = "memory"
	// CartStoreFile пишет снимки корзин в каталог на диске.
	CartStoreFile = "file"
	// CartStoreRedis хранит снимки корзин в Redis.
	CartStoreRedis = "redis"
)

// Config описывает настройки запуска витрины.
// Все поля сравнимы, поэтому конфигурации можно сравнивать через ==.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	CartStore string
	CartDir   string
	RedisAddr string
	CartTTL   time.Duration

	CatalogPath    string
	WhatsAppNumber string
	Timezone       string
	RequestTimeout time.Duration

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает outbox.
	KafkaBrokers string
	KafkaTopic   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxLag — возраст самого старого pending-события, после которого /healthz сообщает degraded.
	OutboxMaxLag time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CartStore:           CartStoreMemory,
		CartDir:             "data/carts",
		RedisAddr:           "localhost:6379",
		CartTTL:             7 * 24 * time.Hour,
		Timezone:            "Asia/Dhaka",
		RequestTimeout:      10 * time.Second,
		KafkaTopic:          "bakery.order.events",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxLag:        time.Minute,
	}
}
