package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// CatalogRepository хранит каталог магазинов и товаров в памяти.
// Товар хранит только id магазина; актуальные данные магазина подставляются при чтении.
type CatalogRepository struct {
	mu       sync.RWMutex
	marts    map[int64]domain.Mart
	products map[int64]productRecord
}

type productRecord struct {
	product domain.Product
	martID  int64
}

// NewCatalogRepository создаёт пустой каталог.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		marts:    make(map[int64]domain.Mart),
		products: make(map[int64]productRecord),
	}
}

// PutMart добавляет или заменяет магазин.
func (r *CatalogRepository) PutMart(mart domain.Mart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marts[mart.ID] = mart
}

// PutProduct добавляет или заменяет товар; магазин берётся из product.Mart.ID.
func (r *CatalogRepository) PutProduct(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := productRecord{product: product, martID: product.Mart.ID}
	if product.UnitWeightKg != nil {
		w := *product.UnitWeightKg
		rec.product.UnitWeightKg = &w
	}
	rec.product.Mart = domain.Mart{}
	r.products[product.ID] = rec
}

// SetStock меняет остаток товара. Возвращает false, если товара нет.
func (r *CatalogRepository) SetStock(productID int64, stock int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.products[productID]
	if !ok {
		return false
	}
	rec.product.Stock = stock
	r.products[productID] = rec
	return true
}

// ProductsByIDs возвращает найденные товары в порядке запроса.
func (r *CatalogRepository) ProductsByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		rec, ok := r.products[id]
		if !ok {
			continue
		}
		if p, ok := r.assemble(rec); ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// ProductVariantsByName возвращает товары с точным совпадением названия.
func (r *CatalogRepository) ProductVariantsByName(_ context.Context, name string, approvedOnly, inStockOnly bool) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, rec := range r.products {
		if rec.product.Name != name {
			continue
		}
		p, ok := r.assemble(rec)
		if !ok {
			continue
		}
		if approvedOnly && !p.Mart.Approved {
			continue
		}
		if inStockOnly && p.Stock <= 0 {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Mart возвращает магазин или ErrMartNotFound.
func (r *CatalogRepository) Mart(_ context.Context, id int64) (domain.Mart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mart, ok := r.marts[id]
	if !ok {
		return domain.Mart{}, domain.ErrMartNotFound
	}
	return mart, nil
}

// ApprovedMarts возвращает одобренные магазины по возрастанию id.
func (r *CatalogRepository) ApprovedMarts(_ context.Context) ([]domain.Mart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Mart, 0, len(r.marts))
	for _, m := range r.marts {
		if m.Approved {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// assemble подставляет магазин; товар без магазина невидим.
func (r *CatalogRepository) assemble(rec productRecord) (domain.Product, bool) {
	mart, ok := r.marts[rec.martID]
	if !ok {
		return domain.Product{}, false
	}
	p := rec.product
	if p.UnitWeightKg != nil {
		w := *p.UnitWeightKg
		p.UnitWeightKg = &w
	}
	p.Mart = mart
	return p, true
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
