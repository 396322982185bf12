package postgres

import (
	"context"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/storage/seed"
)

// SeedSink загружает seed в PostgreSQL через upsert; повторная загрузка обновляет строки.
type SeedSink struct {
	catalog   *CatalogRepository
	addresses *AddressRepository
}

// NewSeedSink создаёт загрузчик seed поверх store.
func NewSeedSink(store *Store) *SeedSink {
	return &SeedSink{
		catalog:   NewCatalogRepository(store),
		addresses: NewAddressRepository(store),
	}
}

func (s *SeedSink) PutMart(ctx context.Context, mart domain.Mart) error {
	return s.catalog.UpsertMart(ctx, mart)
}

func (s *SeedSink) PutProduct(ctx context.Context, product domain.Product) error {
	return s.catalog.UpsertProduct(ctx, product)
}

func (s *SeedSink) PutAddress(ctx context.Context, address domain.Address) error {
	return s.addresses.Upsert(ctx, address)
}

var _ seed.Sink = (*SeedSink)(nil)
