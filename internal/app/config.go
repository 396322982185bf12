package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/geo"
	"github.com/vladislavdragonenkov/basket/internal/geocoding"
	"github.com/vladislavdragonenkov/basket/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/basket/internal/service/basket"
	"github.com/vladislavdragonenkov/basket/internal/version"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса корзины.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedFile            string

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает публикацию outbox.
	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// RedisURL включает Redis-кэш геокодера вместо кэша в хранилище.
	RedisURL        string
	GeocodeCacheTTL time.Duration
	Geocoder        geocoding.Config

	Tariff                  geo.Tariff
	OptimizerMaxPasses      int
	OptimizerMaxEvaluations int

	// OptimizerEvaluationsPerItem масштабирует лимит оценок по размеру корзины.
	OptimizerEvaluationsPerItem int
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	geocoder := geocoding.DefaultConfig()
	geocoder.UserAgent = version.UserAgent()

	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaTopic:    kafka.TopicOrderEvents,
		KafkaDLQTopic: kafka.TopicDeadLetterQueue,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		GeocodeCacheTTL: 30 * 24 * time.Hour,
		Geocoder:        geocoder,

		Tariff:                  geo.DefaultTariff(),
		OptimizerMaxPasses:      basket.DefaultMaxPasses,
		OptimizerMaxEvaluations: basket.DefaultMaxEvaluations,

		OptimizerEvaluationsPerItem: basket.DefaultEvaluationsPerItem,
	}
}

// Validate проверяет согласованность настроек до запуска серверов.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if err := c.Tariff.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.OptimizerMaxPasses <= 0 || c.OptimizerMaxEvaluations <= 0 || c.OptimizerEvaluationsPerItem <= 0 {
		errs = append(errs, errors.New("optimizer limits must be greater than zero"))
	}
	return errors.Join(errs...)
}

// Brokers разбирает KafkaBrokers.
func (c Config) Brokers() []string {
	var brokers []string
	for _, chunk := range strings.Split(c.KafkaBrokers, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
