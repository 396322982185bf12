package basket

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/service/address"
	"github.com/vladislavdragonenkov/basket/internal/storage/memory"
)

// Точка доставки и два магазина примерно в 4.92 км от неё (на юг и на север).
var (
	home     = domain.Coordinate{Lat: 17.7445, Long: 83.3000}
	southLoc = domain.Coordinate{Lat: 17.7000, Long: 83.3000}
	northLoc = domain.Coordinate{Lat: 17.7890, Long: 83.3000}
	nearLoc  = domain.Coordinate{Lat: 17.7223, Long: 83.3000}
)

func kg(v float64) *float64 { return &v }

func mart(id int64, loc domain.Coordinate) domain.Mart {
	return domain.Mart{ID: id, Name: "Mart " + string(rune('A'+id-1)), Location: loc, Approved: true}
}

func product(id int64, name string, price domain.Money, stock int, m domain.Mart) domain.Product {
	return domain.Product{ID: id, Name: name, Price: price, Stock: stock, UnitWeightKg: kg(1), Mart: m}
}

type fixture struct {
	catalog   *memory.CatalogRepository
	addresses *memory.AddressRepository
	service   *Service
}

const testUser int64 = 7

func newFixture(t *testing.T, marts []domain.Mart, products []domain.Product, opts ...Option) *fixture {
	t.Helper()
	catalog := memory.NewCatalogRepository()
	for _, m := range marts {
		catalog.PutMart(m)
	}
	for _, p := range products {
		catalog.PutProduct(p)
	}

	addresses := memory.NewAddressRepository()
	loc := home
	addresses.Put(domain.Address{
		ID: 1, UserID: testUser, Line1: "12 Beach Rd", City: "Visakhapatnam",
		State: "Andhra Pradesh", Pincode: "530001", Location: &loc, IsDefault: true,
	})

	resolver := address.NewResolver(addresses, nil, nil)
	return &fixture{
		catalog:   catalog,
		addresses: addresses,
		service:   NewService(catalog, resolver, nil, opts...),
	}
}

func (f *fixture) optimize(t *testing.T, allowSwaps bool, items ...domain.RequestedItem) (OptimizeResponse, error) {
	t.Helper()
	return f.service.Optimize(context.Background(), testUser, OptimizeRequest{Items: items, AllowSwaps: allowSwaps})
}

func line(seq int, p domain.Product, qty int) domain.LineItem {
	return domain.LineItem{
		Seq:           seq,
		Name:          p.Name,
		Product:       p,
		Qty:           qty,
		WeightTotalKg: p.WeightPerUnit() * float64(qty),
		UnitPrice:     p.Price,
	}
}
