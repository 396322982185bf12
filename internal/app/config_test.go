package app

import (
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/messaging/kafka"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if cfg.KafkaTopic != kafka.TopicOrderEvents || cfg.KafkaDLQTopic != kafka.TopicDeadLetterQueue {
		t.Errorf("unexpected kafka topics: %s, %s", cfg.KafkaTopic, cfg.KafkaDLQTopic)
	}
	if cfg.OutboxPollInterval <= 0 || cfg.OutboxBatchSize <= 0 || cfg.OutboxMaxAttempts <= 0 {
		t.Error("expected positive outbox settings")
	}
	if cfg.IdempotencyCleanupInterval <= 0 || cfg.IdempotencyCleanupBatchSize <= 0 {
		t.Error("expected positive idempotency cleanup settings")
	}
	if cfg.Tariff.SpeedKmh != 20 || cfg.Tariff.PerKm != 5 || cfg.Tariff.PerKg != 5 {
		t.Errorf("unexpected default tariff: %+v", cfg.Tariff)
	}
	if !strings.HasPrefix(cfg.Geocoder.UserAgent, "basket-optimizer/") {
		t.Errorf("unexpected geocoder user agent: %s", cfg.Geocoder.UserAgent)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestConfig_Comparison(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	if cfg1 != cfg2 {
		t.Error("two DefaultConfig instances should be equal")
	}

	cfg2.Tariff.PerKg = 7
	if cfg1 == cfg2 {
		t.Error("modified config should not be equal to original")
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unsupported driver",
			mutate:  func(c *Config) { c.StorageDriver = "sqlite" },
			wantErr: "unsupported storage driver",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StorageDriver = StorageDriverPostgres },
			wantErr: "postgres dsn is required",
		},
		{
			name:    "zero speed",
			mutate:  func(c *Config) { c.Tariff.SpeedKmh = 0 },
			wantErr: "speed",
		},
		{
			name:    "optimizer limits",
			mutate:  func(c *Config) { c.OptimizerMaxEvaluations = 0 },
			wantErr: "optimizer limits",
		},
		{
			name:    "zero evaluations per item",
			mutate:  func(c *Config) { c.OptimizerEvaluationsPerItem = 0 },
			wantErr: "optimizer limits",
		},
		{
			name:    "empty http addr",
			mutate:  func(c *Config) { c.HTTPAddr = "" },
			wantErr: "http addr",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfig_Brokers(t *testing.T) {
	cfg := Config{KafkaBrokers: " broker1:9092, ,broker2:9092 "}
	brokers := cfg.Brokers()
	if len(brokers) != 2 || brokers[0] != "broker1:9092" || brokers[1] != "broker2:9092" {
		t.Fatalf("unexpected brokers: %v", brokers)
	}

	if got := (Config{}).Brokers(); len(got) != 0 {
		t.Fatalf("empty config must have no brokers, got %v", got)
	}
}

func TestConfig_Copy(t *testing.T) {
	original := DefaultConfig()
	copied := original
	copied.OutboxPollInterval = time.Minute

	if original.OutboxPollInterval == time.Minute {
		t.Error("original config was modified")
	}
}
