package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// GeocodeCache хранит результаты геокодирования в таблице geocode_cache.
// Записи старше ttl считаются отсутствующими; при ttl <= 0 срок не ограничен.
type GeocodeCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewGeocodeCache создаёт кэш геокодирования поверх PostgreSQL.
func NewGeocodeCache(store *Store, ttl time.Duration) *GeocodeCache {
	return &GeocodeCache{
		db:  store.DB(),
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (c *GeocodeCache) Get(ctx context.Context, query string) (domain.Coordinate, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Coordinate{}, false, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		loc       domain.Coordinate
		updatedAt time.Time
	)
	err := c.db.QueryRowContext(queryCtx, `
		SELECT lat, long, updated_at FROM geocode_cache WHERE query = $1
	`, query).Scan(&loc.Lat, &loc.Long, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Coordinate{}, false, nil
	}
	if err != nil {
		return domain.Coordinate{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	if c.ttl > 0 && c.now().Sub(updatedAt) >= c.ttl {
		return domain.Coordinate{}, false, nil
	}
	return loc, true, nil
}

func (c *GeocodeCache) Set(ctx context.Context, query string, location domain.Coordinate) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return errors.New("geocode cache: empty query")
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(queryCtx, `
		INSERT INTO geocode_cache (query, lat, long, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (query) DO UPDATE
		SET lat = EXCLUDED.lat,
		    long = EXCLUDED.long,
		    updated_at = EXCLUDED.updated_at
	`, query, location.Lat, location.Long, c.now()); err != nil {
		return fmt.Errorf("set geocode cache %q: %w", query, err)
	}
	return nil
}

var _ domain.GeocodeCache = (*GeocodeCache)(nil)
