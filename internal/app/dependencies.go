package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geocoding"
	healthcheck "github.com/vladislavdragonenkov/basket/internal/health"
	"github.com/vladislavdragonenkov/basket/internal/storage/memory"
	"github.com/vladislavdragonenkov/basket/internal/storage/postgres"
	"github.com/vladislavdragonenkov/basket/internal/storage/seed"
)

// runtimeDependencies содержит хранилища выбранного драйвера и их проверки здоровья.
type runtimeDependencies struct {
	catalog         domain.CatalogRepository
	addresses       domain.AddressRepository
	orders          domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	geocodeCache    domain.GeocodeCache
	seedSink        seed.Sink

	checkers map[string]healthcheck.Checker
	closers  []func() error
}

// initRuntimeDependencies создаёт хранилища, применяет миграции и seed.
// При ошибке уже открытые ресурсы закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (_ *runtimeDependencies, err error) {
	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}
	defer func() {
		if err != nil {
			_ = deps.close()
		}
	}()

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case StorageDriverMemory:
		initMemoryStorage(deps, cfg)
	case StorageDriverPostgres:
		if err := initPostgresStorage(ctx, deps, cfg, logger); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisURL != "" {
		client, err := geocoding.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		cache := geocoding.NewRedisCache(client, "", cfg.GeocodeCacheTTL)
		deps.geocodeCache = cache
		deps.checkers["redis"] = healthcheck.NewPingChecker("redis", cache, false)
		deps.closers = append(deps.closers, client.Close)
		logger.Info("geocode cache uses redis")
	}

	if cfg.SeedFile != "" {
		data, err := seed.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		if err := data.Apply(ctx, deps.seedSink); err != nil {
			return nil, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
		}
		logger.WithFields(log.Fields{
			"file":      cfg.SeedFile,
			"marts":     len(data.Marts),
			"products":  len(data.Products),
			"addresses": len(data.Addresses),
		}).Info("seed applied")
	}

	return deps, nil
}

func initMemoryStorage(deps *runtimeDependencies, cfg Config) {
	catalog := memory.NewCatalogRepository()
	addresses := memory.NewAddressRepository()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()

	deps.catalog = catalog
	deps.addresses = addresses
	deps.timelineRepo = timeline
	deps.outboxRepo = outbox
	deps.orders = memory.NewOrderRepository(timeline, outbox)
	deps.idempotencyRepo = memory.NewIdempotencyRepository()
	deps.geocodeCache = geocoding.NewMemoryCache(cfg.GeocodeCacheTTL)
	deps.seedSink = memory.SeedSink{Catalog: catalog, Addresses: addresses}
}

func initPostgresStorage(ctx context.Context, deps *runtimeDependencies, cfg Config, logger *log.Entry) error {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		state, err := store.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("read migration status: %w", err)
		}
		logger.WithField("schema_version", state.Version).Info("postgres migrations applied")
	}

	deps.catalog = postgres.NewCatalogRepository(store)
	deps.addresses = postgres.NewAddressRepository(store)
	deps.orders = postgres.NewOrderRepository(store)
	deps.outboxRepo = postgres.NewOutboxRepository(store)
	deps.timelineRepo = postgres.NewTimelineRepository(store)
	deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	deps.geocodeCache = postgres.NewGeocodeCache(store, cfg.GeocodeCacheTTL)
	deps.seedSink = postgres.NewSeedSink(store)
	deps.checkers["postgres"] = healthcheck.NewPingChecker("postgres", store, true)
	return nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
