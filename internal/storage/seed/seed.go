// Package seed читает YAML с начальными данными каталога и адресов и переносит их в хранилище.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// Seed содержит начальные данные каталога и адресов.
type Seed struct {
	Marts     []SeedMart    `yaml:"marts"`
	Products  []SeedProduct `yaml:"products"`
	Addresses []SeedAddress `yaml:"addresses"`
}

// SeedMart описывает магазин в seed-файле.
type SeedMart struct {
	ID       int64   `yaml:"id"`
	Name     string  `yaml:"name"`
	Address  string  `yaml:"address"`
	Lat      float64 `yaml:"lat"`
	Long     float64 `yaml:"long"`
	Approved bool    `yaml:"approved"`
}

// SeedProduct описывает товар; цена указывается в основных единицах с копейками (20.50).
type SeedProduct struct {
	ID           int64    `yaml:"id"`
	MartID       int64    `yaml:"mart_id"`
	Name         string   `yaml:"name"`
	Category     string   `yaml:"category"`
	Price        float64  `yaml:"price"`
	Stock        int      `yaml:"stock"`
	UnitWeightKg *float64 `yaml:"unit_weight_kg"`
	ImageURL     string   `yaml:"image_url"`
}

// SeedAddress описывает адрес пользователя; координаты необязательны.
type SeedAddress struct {
	ID           int64    `yaml:"id"`
	UserID       int64    `yaml:"user_id"`
	Label        string   `yaml:"label"`
	Line1        string   `yaml:"line1"`
	Line2        string   `yaml:"line2"`
	City         string   `yaml:"city"`
	State        string   `yaml:"state"`
	Pincode      string   `yaml:"pincode"`
	ContactPhone string   `yaml:"contact_phone"`
	Lat          *float64 `yaml:"lat"`
	Long         *float64 `yaml:"long"`
	IsDefault    bool     `yaml:"is_default"`
}

// Sink принимает записи seed. Реализуется и in-memory, и PostgreSQL хранилищем.
type Sink interface {
	PutMart(ctx context.Context, mart domain.Mart) error
	PutProduct(ctx context.Context, product domain.Product) error
	PutAddress(ctx context.Context, address domain.Address) error
}

// ReadFile читает и декодирует seed-файл.
func ReadFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode декодирует YAML. Пустой документ даёт пустой Seed.
func Decode(r io.Reader) (Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// Apply переносит seed в sink: сначала магазины, затем товары и адреса.
// Товар со ссылкой на неизвестный магазин считается ошибкой.
func (s Seed) Apply(ctx context.Context, sink Sink) error {
	marts := make(map[int64]domain.Mart, len(s.Marts))
	for _, m := range s.Marts {
		if m.ID <= 0 {
			return fmt.Errorf("seed mart %q: id must be positive", m.Name)
		}
		mart := domain.Mart{
			ID:       m.ID,
			Name:     m.Name,
			Address:  m.Address,
			Location: domain.Coordinate{Lat: m.Lat, Long: m.Long},
			Approved: m.Approved,
		}
		marts[m.ID] = mart
		if err := sink.PutMart(ctx, mart); err != nil {
			return err
		}
	}

	for _, p := range s.Products {
		mart, ok := marts[p.MartID]
		if !ok {
			return fmt.Errorf("seed product %d: unknown mart %d", p.ID, p.MartID)
		}
		if p.Price < 0 {
			return fmt.Errorf("seed product %d: negative price", p.ID)
		}
		err := sink.PutProduct(ctx, domain.Product{
			ID:           p.ID,
			Name:         p.Name,
			Category:     p.Category,
			Price:        domain.MoneyFromFloat(p.Price),
			Stock:        p.Stock,
			UnitWeightKg: p.UnitWeightKg,
			ImageURL:     p.ImageURL,
			Mart:         mart,
		})
		if err != nil {
			return err
		}
	}

	for _, a := range s.Addresses {
		addr := domain.Address{
			ID:           a.ID,
			UserID:       a.UserID,
			Label:        a.Label,
			Line1:        a.Line1,
			Line2:        a.Line2,
			City:         a.City,
			State:        a.State,
			Pincode:      a.Pincode,
			ContactPhone: a.ContactPhone,
			IsDefault:    a.IsDefault,
		}
		if a.Lat != nil && a.Long != nil {
			addr.Location = &domain.Coordinate{Lat: *a.Lat, Long: *a.Long}
		}
		if err := sink.PutAddress(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}
