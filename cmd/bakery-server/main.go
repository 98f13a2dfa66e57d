package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/app"
	"github.com/vladislavdragonenkov/bakery/internal/version"
)

const (
	envHTTPAddr            = "BAKERY_HTTP_ADDR"
	envMetricsAddr         = "BAKERY_METRICS_ADDR"
	envStorageDriver       = "BAKERY_STORAGE_DRIVER"
	envPostgresDSN         = "BAKERY_POSTGRES_DSN"
	envPostgresAutoMigrate = "BAKERY_POSTGRES_AUTO_MIGRATE"
	envCartStore           = "BAKERY_CART_STORE"
	envCartDir             = "BAKERY_CART_DIR"
	envRedisAddr           = "BAKERY_REDIS_ADDR"
	envCartTTL             = "BAKERY_CART_TTL"
	envCatalogPath         = "BAKERY_CATALOG_PATH"
	envWhatsAppNumber      = "BAKERY_WHATSAPP_NUMBER"
	envTimezone            = "BAKERY_TIMEZONE"
	envRequestTimeout      = "BAKERY_REQUEST_TIMEOUT"
	envKafkaBrokers        = "BAKERY_KAFKA_BROKERS"
	envKafkaTopic          = "BAKERY_KAFKA_TOPIC"
	envOutboxPollInterval  = "BAKERY_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "BAKERY_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "BAKERY_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "BAKERY_OUTBOX_RETRY_DELAY"
	envOutboxMaxLag        = "BAKERY_OUTBOX_MAX_LAG"
	envLogLevel            = "BAKERY_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookupTrimmed(lookup, envLogLevel)
	if !ok {
		return nil
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", envLogLevel, err)}
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	setString := func(key string, dst *string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*dst = v
		}
	}
	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setString(envCartDir, &cfg.CartDir)
	setString(envRedisAddr, &cfg.RedisAddr)
	setString(envCatalogPath, &cfg.CatalogPath)
	setString(envWhatsAppNumber, &cfg.WhatsAppNumber)
	setString(envTimezone, &cfg.Timezone)
	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envKafkaTopic, &cfg.KafkaTopic)

	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := lookupTrimmed(lookup, envCartStore); ok {
		cfg.CartStore = strings.ToLower(v)
	}

	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }
	durations := []struct {
		key   string
		dst   *time.Duration
		valid func(time.Duration) bool
		rule  string
	}{
		{envCartTTL, &cfg.CartTTL, nonNegative, "must be >= 0"},
		{envRequestTimeout, &cfg.RequestTimeout, positive, "must be > 0"},
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0"},
		{envOutboxMaxLag, &cfg.OutboxMaxLag, nonNegative, "must be >= 0"},
	}
	for _, d := range durations {
		v, ok := lookupTrimmed(lookup, d.key)
		if !ok {
			continue
		}
		parsed, err := parseDuration(v, d.valid, d.rule)
		if err != nil {
			warn(d.key, err)
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{envOutboxBatchSize, &cfg.OutboxBatchSize},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts},
	}
	for _, i := range ints {
		v, ok := lookupTrimmed(lookup, i.key)
		if !ok {
			continue
		}
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(i.key, err)
			continue
		}
		*i.dst = parsed
	}

	return cfg, warnings
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

func main() {
	warnings := setupLogger(os.LookupEnv)
	cfg, cfgWarnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(warnings, cfgWarnings...) {
		log.WithField("warning", w).Warn("invalid environment value ignored")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"cart_store":     cfg.CartStore,
		"timezone":       cfg.Timezone,
		"kafka":          cfg.KafkaBrokers != "",
		"build":          version.Current().String(),
	}).Info("запускаем витрину пекарни")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("витрина остановлена")
}
