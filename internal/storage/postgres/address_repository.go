package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const addressSelect = `
	SELECT id, user_id, label, line1, line2, city, state, pincode, contact_phone,
	       lat, long, is_default, updated_at
	FROM addresses`

// AddressRepository хранит адреса доставки пользователей.
type AddressRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAddressRepository создаёт PostgreSQL-реализацию AddressRepository.
func NewAddressRepository(store *Store) *AddressRepository {
	return &AddressRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает адрес пользователя; чужой адрес неотличим от отсутствующего.
func (r *AddressRepository) Get(ctx context.Context, userID, addressID int64) (domain.Address, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	addr, err := scanAddress(r.db.QueryRowContext(queryCtx, addressSelect+` WHERE id = $1 AND user_id = $2`, addressID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}
	return addr, nil
}

func (r *AddressRepository) Preferred(ctx context.Context, userID int64) (domain.Address, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	addr, err := scanAddress(r.db.QueryRowContext(queryCtx, addressSelect+`
		WHERE user_id = $1
		ORDER BY is_default DESC, updated_at DESC, id DESC
		LIMIT 1
	`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrNoAddressOnFile
		}
		return domain.Address{}, fmt.Errorf("select preferred address: %w", err)
	}
	return addr, nil
}

func (r *AddressRepository) UpdateLocation(ctx context.Context, addressID int64, location domain.Coordinate) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `
		UPDATE addresses SET lat = $1, long = $2, updated_at = $3 WHERE id = $4
	`, location.Lat, location.Long, r.now(), addressID)
	if err != nil {
		return fmt.Errorf("update address location: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrAddressNotFound
	}
	return nil
}

// Upsert добавляет или заменяет адрес; используется при загрузке seed.
func (r *AddressRepository) Upsert(ctx context.Context, a domain.Address) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var lat, long sql.NullFloat64
	if a.Location != nil {
		lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
		long = sql.NullFloat64{Float64: a.Location.Long, Valid: true}
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.now()
	}

	_, err := r.db.ExecContext(queryCtx, `
		INSERT INTO addresses (
			id, user_id, label, line1, line2, city, state, pincode, contact_phone,
			lat, long, is_default, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    label = EXCLUDED.label,
		    line1 = EXCLUDED.line1,
		    line2 = EXCLUDED.line2,
		    city = EXCLUDED.city,
		    state = EXCLUDED.state,
		    pincode = EXCLUDED.pincode,
		    contact_phone = EXCLUDED.contact_phone,
		    lat = EXCLUDED.lat,
		    long = EXCLUDED.long,
		    is_default = EXCLUDED.is_default,
		    updated_at = EXCLUDED.updated_at
	`, a.ID, a.UserID, a.Label, a.Line1, a.Line2, a.City, a.State, a.Pincode, a.ContactPhone,
		lat, long, a.IsDefault, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert address %d: %w", a.ID, err)
	}
	return nil
}

func scanAddress(row rowScanner) (domain.Address, error) {
	var (
		a         domain.Address
		lat, long sql.NullFloat64
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.State, &a.Pincode, &a.ContactPhone,
		&lat, &long, &a.IsDefault, &a.UpdatedAt,
	); err != nil {
		return domain.Address{}, err
	}
	if lat.Valid && long.Valid {
		a.Location = &domain.Coordinate{Lat: lat.Float64, Long: long.Float64}
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

var _ domain.AddressRepository = (*AddressRepository)(nil)
