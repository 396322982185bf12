package geocoding

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

type memoryEntry struct {
	location  domain.Coordinate
	expiresAt time.Time
}

// MemoryCache хранит результаты геокодирования в памяти процесса.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache создаёт кэш; при ttl <= 0 записи не истекают.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get возвращает неистёкшую запись.
func (c *MemoryCache) Get(_ context.Context, query string) (domain.Coordinate, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[query]
	if !ok {
		return domain.Coordinate{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		return domain.Coordinate{}, false, nil
	}
	return entry.location, true, nil
}

// Set сохраняет запись.
func (c *MemoryCache) Set(_ context.Context, query string, location domain.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{location: location}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[query] = entry
	return nil
}

var _ domain.GeocodeCache = (*MemoryCache)(nil)
