package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geocoding"
	healthcheck "github.com/vladislavdragonenkov/basket/internal/health"
)

const testSeed = `
marts:
  - id: 1
    name: Fresh Mart
    lat: 17.7000
    long: 83.3000
    approved: true
products:
  - id: 10
    name: Milk
    price: 55.00
    stock: 5
    mart_id: 1
addresses:
  - id: 1
    user_id: 7
    line1: 12 Beach Rd
    city: Visakhapatnam
    state: AP
    pincode: "530001"
    is_default: true
`

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	defer func() { _ = deps.close() }()

	if deps.catalog == nil || deps.addresses == nil || deps.orders == nil {
		t.Fatal("catalog, addresses and orders must be initialized")
	}
	if deps.outboxRepo == nil || deps.timelineRepo == nil || deps.idempotencyRepo == nil {
		t.Fatal("outbox, timeline and idempotency repositories must be initialized")
	}
	if _, ok := deps.geocodeCache.(*geocoding.MemoryCache); !ok {
		t.Fatalf("memory driver must use in-memory geocode cache, got %T", deps.geocodeCache)
	}
	if len(deps.checkers) != 0 {
		t.Fatalf("memory storage has nothing to ping, got %d checkers", len(deps.checkers))
	}
}

func TestInitRuntimeDependencies_MemoryWithSeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(testSeed), 0o600); err != nil {
		t.Fatal(err)
	}

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		SeedFile:      path,
	}, log.WithField("test", "memory-seed"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies with seed failed: %v", err)
	}

	ctx := context.Background()
	products, err := deps.catalog.ProductVariantsByName(ctx, "Milk", true, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Mart.Name != "Fresh Mart" {
		t.Fatalf("seeded product not found: %+v", products)
	}
	addr, err := deps.addresses.Preferred(ctx, 7)
	if err != nil {
		t.Fatalf("seeded address not found: %v", err)
	}
	if addr.City != "Visakhapatnam" {
		t.Fatalf("unexpected address: %+v", addr)
	}
}

func TestInitRuntimeDependencies_MissingSeedFile(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		SeedFile:      filepath.Join(t.TempDir(), "absent.yaml"),
	}, log.WithField("test", "missing-seed"))
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestInitRuntimeDependencies_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		RedisURL:      "redis://" + mr.Addr() + "/0",
	}, log.WithField("test", "redis"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies with redis failed: %v", err)
	}
	defer func() { _ = deps.close() }()

	if _, ok := deps.geocodeCache.(*geocoding.RedisCache); !ok {
		t.Fatalf("expected redis geocode cache, got %T", deps.geocodeCache)
	}
	checker, ok := deps.checkers["redis"]
	if !ok {
		t.Fatal("expected redis health checker")
	}
	if check := checker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("redis checker must pass against miniredis: %+v", check)
	}

	ctx := context.Background()
	loc := domain.Coordinate{Lat: 17.7, Long: 83.3}
	if err := deps.geocodeCache.Set(ctx, "530001", loc); err != nil {
		t.Fatal(err)
	}
	if got, found, err := deps.geocodeCache.Get(ctx, "530001"); err != nil || !found || got != loc {
		t.Fatalf("unexpected cache read: %+v %v %v", got, found, err)
	}
}

func TestInitRuntimeDependencies_InvalidRedisURL(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
		RedisURL:      "://bad",
	}, log.WithField("test", "bad-redis"))
	if err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestRuntimeDependencies_CloseOrder(t *testing.T) {
	t.Parallel()

	var order []int
	deps := &runtimeDependencies{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("boom") },
	}}

	if err := deps.close(); err == nil {
		t.Fatal("expected close error to be reported")
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("closers must run in reverse order, got %v", order)
	}
	if err := deps.close(); err != nil {
		t.Fatalf("second close must be a no-op: %v", err)
	}

	var nilDeps *runtimeDependencies
	if err := nilDeps.close(); err != nil {
		t.Fatalf("nil close must be a no-op: %v", err)
	}
}
