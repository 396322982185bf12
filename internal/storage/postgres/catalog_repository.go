package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const productSelect = `
	SELECT p.id, p.name, p.category, p.price_minor, p.stock, p.unit_weight_kg, p.image_url,
	       m.id, m.name, m.address, m.lat, m.long, m.approved
	FROM products p
	JOIN marts m ON m.id = p.mart_id`

// CatalogRepository читает каталог магазинов и товаров.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, productSelect+` WHERE p.id = ANY($1) ORDER BY p.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}
	return scanProducts(rows)
}

func (r *CatalogRepository) ProductVariantsByName(ctx context.Context, name string, approvedOnly, inStockOnly bool) ([]domain.Product, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, productSelect+`
		WHERE p.name = $1
		  AND (NOT $2 OR m.approved)
		  AND (NOT $3 OR p.stock > 0)
		ORDER BY p.id
	`, name, approvedOnly, inStockOnly)
	if err != nil {
		return nil, fmt.Errorf("select product variants: %w", err)
	}
	return scanProducts(rows)
}

func (r *CatalogRepository) Mart(ctx context.Context, id int64) (domain.Mart, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m domain.Mart
	err := r.db.QueryRowContext(queryCtx, `
		SELECT id, name, address, lat, long, approved FROM marts WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Address, &m.Location.Lat, &m.Location.Long, &m.Approved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Mart{}, domain.ErrMartNotFound
		}
		return domain.Mart{}, fmt.Errorf("select mart: %w", err)
	}
	return m, nil
}

func (r *CatalogRepository) ApprovedMarts(ctx context.Context) ([]domain.Mart, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, `
		SELECT id, name, address, lat, long, approved
		FROM marts
		WHERE approved
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select approved marts: %w", err)
	}
	defer rows.Close()

	marts := make([]domain.Mart, 0)
	for rows.Next() {
		var m domain.Mart
		if err := rows.Scan(&m.ID, &m.Name, &m.Address, &m.Location.Lat, &m.Location.Long, &m.Approved); err != nil {
			return nil, fmt.Errorf("scan mart: %w", err)
		}
		marts = append(marts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marts: %w", err)
	}
	return marts, nil
}

// UpsertMart добавляет или обновляет магазин; используется при загрузке seed.
func (r *CatalogRepository) UpsertMart(ctx context.Context, m domain.Mart) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(queryCtx, `
		INSERT INTO marts (id, name, address, lat, long, approved)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    address = EXCLUDED.address,
		    lat = EXCLUDED.lat,
		    long = EXCLUDED.long,
		    approved = EXCLUDED.approved
	`, m.ID, m.Name, m.Address, m.Location.Lat, m.Location.Long, m.Approved)
	if err != nil {
		return fmt.Errorf("upsert mart %d: %w", m.ID, err)
	}
	return nil
}

// UpsertProduct добавляет или обновляет товар; магазин берётся из p.Mart.ID.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var weight sql.NullFloat64
	if p.UnitWeightKg != nil {
		weight = sql.NullFloat64{Float64: *p.UnitWeightKg, Valid: true}
	}
	_, err := r.db.ExecContext(queryCtx, `
		INSERT INTO products (id, mart_id, name, category, price_minor, stock, unit_weight_kg, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET mart_id = EXCLUDED.mart_id,
		    name = EXCLUDED.name,
		    category = EXCLUDED.category,
		    price_minor = EXCLUDED.price_minor,
		    stock = EXCLUDED.stock,
		    unit_weight_kg = EXCLUDED.unit_weight_kg,
		    image_url = EXCLUDED.image_url
	`, p.ID, p.Mart.ID, p.Name, p.Category, int64(p.Price), p.Stock, weight, p.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var (
			p      domain.Product
			price  int64
			weight sql.NullFloat64
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &price, &p.Stock, &weight, &p.ImageURL,
			&p.Mart.ID, &p.Mart.Name, &p.Mart.Address, &p.Mart.Location.Lat, &p.Mart.Location.Long, &p.Mart.Approved,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Price = domain.Money(price)
		if weight.Valid {
			w := weight.Float64
			p.UnitWeightKg = &w
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
