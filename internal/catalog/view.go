// Package catalog собирает неизменяемый снимок каталога на время одного запроса оптимизации.
package catalog

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const defaultLookupConcurrency = 8

// View адаптирует CatalogRepository для оптимизатора.
type View struct {
	repo        domain.CatalogRepository
	concurrency int
	logger      *log.Entry
}

// Option настраивает View.
type Option func(*View)

// WithConcurrency ограничивает число параллельных запросов вариантов.
func WithConcurrency(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewView создаёт View.
func NewView(repo domain.CatalogRepository, opts ...Option) *View {
	v := &View{
		repo:        repo,
		concurrency: defaultLookupConcurrency,
		logger:      log.WithField("component", "catalog-view"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve возвращает найденные товары по id. Неизвестные id в результат не попадают.
func (v *View) Resolve(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	result := make(map[int64]domain.Product, len(unique))
	if len(unique) == 0 {
		return result, nil
	}

	products, err := v.repo.ProductsByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	for _, p := range products {
		result[p.ID] = p
	}
	if missing := len(unique) - len(result); missing > 0 {
		v.logger.WithField("missing", missing).Debug("some requested products are unknown")
	}
	return result, nil
}

// VariantsByName возвращает для каждого названия покупаемые варианты
// (магазин одобрен, остаток > 0), упорядоченные по цене, id магазина и id товара.
func (v *View) VariantsByName(ctx context.Context, names []string) (map[string][]domain.Product, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	lists := make([][]domain.Product, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, name := range unique {
		g.Go(func() error {
			variants, err := v.repo.ProductVariantsByName(gctx, name, true, true)
			if err != nil {
				return fmt.Errorf("variants for %q: %w", name, err)
			}
			purchasable := variants[:0:0]
			for _, p := range variants {
				if p.Purchasable() {
					purchasable = append(purchasable, p)
				}
			}
			SortVariants(purchasable)
			lists[i] = purchasable
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string][]domain.Product, len(unique))
	for i, name := range unique {
		result[name] = lists[i]
	}
	return result, nil
}

// SortVariants упорядочивает варианты по цене, затем по id магазина и id товара.
func SortVariants(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return LessVariant(products[i], products[j])
	})
}

// LessVariant задаёт порядок выбора между взаимозаменяемыми товарами.
func LessVariant(a, b domain.Product) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.Mart.ID != b.Mart.ID {
		return a.Mart.ID < b.Mart.ID
	}
	return a.ID < b.ID
}
