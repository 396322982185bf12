package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// AddressRepository хранит адреса пользователей в памяти.
type AddressRepository struct {
	mu    sync.RWMutex
	items map[int64]domain.Address
}

// NewAddressRepository создаёт пустое хранилище адресов.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{items: make(map[int64]domain.Address)}
}

// Put добавляет или заменяет адрес.
func (r *AddressRepository) Put(addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr.UpdatedAt.IsZero() {
		addr.UpdatedAt = time.Now().UTC()
	}
	r.items[addr.ID] = cloneAddress(addr)
}

// Get возвращает адрес пользователя; чужой адрес считается ненайденным.
func (r *AddressRepository) Get(_ context.Context, userID, addressID int64) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.items[addressID]
	if !ok || addr.UserID != userID {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return cloneAddress(addr), nil
}

// Preferred возвращает адрес по умолчанию, иначе последний изменённый.
func (r *AddressRepository) Preferred(_ context.Context, userID int64) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best  domain.Address
		found bool
	)
	for _, addr := range r.items {
		if addr.UserID != userID {
			continue
		}
		if !found || preferAddress(addr, best) {
			best = addr
			found = true
		}
	}
	if !found {
		return domain.Address{}, domain.ErrNoAddressOnFile
	}
	return cloneAddress(best), nil
}

// UpdateLocation сохраняет координаты адреса.
func (r *AddressRepository) UpdateLocation(_ context.Context, addressID int64, location domain.Coordinate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr, ok := r.items[addressID]
	if !ok {
		return domain.ErrAddressNotFound
	}
	loc := location
	addr.Location = &loc
	addr.UpdatedAt = time.Now().UTC()
	r.items[addressID] = addr
	return nil
}

func preferAddress(a, b domain.Address) bool {
	if a.IsDefault != b.IsDefault {
		return a.IsDefault
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

func cloneAddress(src domain.Address) domain.Address {
	dst := src
	if src.Location != nil {
		loc := *src.Location
		dst.Location = &loc
	}
	return dst
}

var _ domain.AddressRepository = (*AddressRepository)(nil)
