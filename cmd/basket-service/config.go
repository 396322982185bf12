package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/basket/internal/app"
)

const envPrefix = "BASKET"

// Переменные окружения. Те же ключи без префикса в нижнем регистре читаются из YAML-файла.
const (
	envConfigFile = "BASKET_CONFIG_FILE"

	envHTTPAddr    = "BASKET_HTTP_ADDR"
	envGRPCAddr    = "BASKET_GRPC_ADDR"
	envMetricsAddr = "BASKET_METRICS_ADDR"
	envLogLevel    = "BASKET_LOG_LEVEL"

	envStorageDriver       = "BASKET_STORAGE_DRIVER"
	envPostgresDSN         = "BASKET_POSTGRES_DSN"
	envPostgresAutoMigrate = "BASKET_POSTGRES_AUTO_MIGRATE"
	envSeedFile            = "BASKET_SEED_FILE"

	envKafkaBrokers  = "BASKET_KAFKA_BROKERS"
	envKafkaTopic    = "BASKET_KAFKA_TOPIC"
	envKafkaDLQTopic = "BASKET_KAFKA_DLQ_TOPIC"

	envOutboxPollInterval = "BASKET_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "BASKET_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "BASKET_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "BASKET_OUTBOX_RETRY_DELAY"

	envIdempotencyCleanupInterval  = "BASKET_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "BASKET_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envRedisURL        = "BASKET_REDIS_URL"
	envGeocodeCacheTTL = "BASKET_GEOCODE_CACHE_TTL"
	envGeocoderURL     = "BASKET_GEOCODER_URL"
	envGeocoderCountry = "BASKET_GEOCODER_COUNTRY"
	envGeocoderRate    = "BASKET_GEOCODER_RATE"

	// Nominatim требует User-Agent, по которому можно связаться с оператором.
	envGeocoderUserAgent = "BASKET_GEOCODER_USER_AGENT"
	envGeocoderTimeout   = "BASKET_GEOCODER_TIMEOUT"

	envTariffSpeedKmh = "BASKET_TARIFF_SPEED_KMH"
	envTariffPerKm    = "BASKET_TARIFF_PER_KM"
	envTariffPerKg    = "BASKET_TARIFF_PER_KG"

	envOptimizerMaxPasses          = "BASKET_OPTIMIZER_MAX_PASSES"
	envOptimizerMaxEvaluations     = "BASKET_OPTIMIZER_MAX_EVALUATIONS"
	envOptimizerEvaluationsPerItem = "BASKET_OPTIMIZER_EVALUATIONS_PER_ITEM"
)

type envLookup func(string) (string, bool)

// newViper читает переменные окружения с префиксом BASKET и, если указан, YAML-файл.
// Переменные окружения приоритетнее файла.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// viperLookup переводит имя переменной окружения в ключ viper: BASKET_HTTP_ADDR -> http_addr.
func viperLookup(v *viper.Viper) envLookup {
	return func(key string) (string, bool) {
		name := strings.ToLower(strings.TrimPrefix(key, envPrefix+"_"))
		if !v.IsSet(name) {
			return "", false
		}
		return v.GetString(name), true
	}
}

// readConfigFromEnv накладывает переопределения на app.DefaultConfig.
// Невалидные значения игнорируются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v", key, value, err))
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	float := func(key string, dst *float64, valid func(float64) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseFloat(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}

	positive := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }
	positiveFloat := func(v float64) bool { return v > 0 }
	nonNegativeFloat := func(v float64) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envLogLevel, &cfg.LogLevel)

	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envSeedFile, &cfg.SeedFile)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaDLQTopic, &cfg.KafkaDLQTopic)

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")

	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	str(envRedisURL, &cfg.RedisURL)
	duration(envGeocodeCacheTTL, &cfg.GeocodeCacheTTL, positiveDuration, "must be > 0")
	str(envGeocoderURL, &cfg.Geocoder.BaseURL)
	str(envGeocoderCountry, &cfg.Geocoder.Country)
	float(envGeocoderRate, &cfg.Geocoder.RatePerSecond, positiveFloat, "must be > 0")
	str(envGeocoderUserAgent, &cfg.Geocoder.UserAgent)
	duration(envGeocoderTimeout, &cfg.Geocoder.Timeout, positiveDuration, "must be > 0")

	float(envTariffSpeedKmh, &cfg.Tariff.SpeedKmh, positiveFloat, "must be > 0")
	float(envTariffPerKm, &cfg.Tariff.PerKm, nonNegativeFloat, "must be >= 0")
	float(envTariffPerKg, &cfg.Tariff.PerKg, nonNegativeFloat, "must be >= 0")

	integer(envOptimizerMaxPasses, &cfg.OptimizerMaxPasses, positive, "must be > 0")
	integer(envOptimizerMaxEvaluations, &cfg.OptimizerMaxEvaluations, positive, "must be > 0")
	integer(envOptimizerEvaluationsPerItem, &cfg.OptimizerEvaluationsPerItem, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, errors.New("expected boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseFloat(raw string, valid func(float64) bool, rule string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}
