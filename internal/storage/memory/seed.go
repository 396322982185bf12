package memory

import (
	"context"
	"io"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/storage/seed"
)

// SeedSink наполняет in-memory репозитории из seed. Любой из репозиториев может быть nil.
type SeedSink struct {
	Catalog   *CatalogRepository
	Addresses *AddressRepository
}

func (s SeedSink) PutMart(_ context.Context, mart domain.Mart) error {
	if s.Catalog != nil {
		s.Catalog.PutMart(mart)
	}
	return nil
}

func (s SeedSink) PutProduct(_ context.Context, product domain.Product) error {
	if s.Catalog != nil {
		s.Catalog.PutProduct(product)
	}
	return nil
}

func (s SeedSink) PutAddress(_ context.Context, address domain.Address) error {
	if s.Addresses != nil {
		s.Addresses.Put(address)
	}
	return nil
}

// LoadSeed декодирует YAML и наполняет репозитории.
func LoadSeed(r io.Reader, catalog *CatalogRepository, addresses *AddressRepository) error {
	data, err := seed.Decode(r)
	if err != nil {
		return err
	}
	return data.Apply(context.Background(), SeedSink{Catalog: catalog, Addresses: addresses})
}

var _ seed.Sink = SeedSink{}
