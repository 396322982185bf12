// Package address определяет точку доставки пользователя и при необходимости геокодирует адрес.
package address

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// Resolver выбирает адрес пользователя и гарантирует наличие координат.
type Resolver struct {
	addresses domain.AddressRepository
	geocoder  domain.Geocoder
	logger    *log.Entry
}

// NewResolver создаёт Resolver. logger может быть nil.
func NewResolver(addresses domain.AddressRepository, geocoder domain.Geocoder, logger *log.Entry) *Resolver {
	if logger == nil {
		logger = log.WithField("component", "address-resolver")
	}
	return &Resolver{addresses: addresses, geocoder: geocoder, logger: logger}
}

// Resolve возвращает явно указанный адрес, иначе адрес по умолчанию, иначе последний изменённый.
// Адрес без координат геокодируется, результат сохраняется.
func (r *Resolver) Resolve(ctx context.Context, userID int64, addressID *int64) (domain.DeliveryPoint, error) {
	var (
		addr domain.Address
		err  error
	)
	if addressID != nil && *addressID != 0 {
		addr, err = r.addresses.Get(ctx, userID, *addressID)
	} else {
		addr, err = r.addresses.Preferred(ctx, userID)
	}
	if err != nil {
		return domain.DeliveryPoint{}, err
	}
	return r.Locate(ctx, addr)
}

// ResolveOwned возвращает конкретный адрес пользователя с координатами.
func (r *Resolver) ResolveOwned(ctx context.Context, userID, addressID int64) (domain.DeliveryPoint, error) {
	addr, err := r.addresses.Get(ctx, userID, addressID)
	if err != nil {
		return domain.DeliveryPoint{}, err
	}
	return r.Locate(ctx, addr)
}

// Locate дополняет адрес координатами, геокодируя его при необходимости.
func (r *Resolver) Locate(ctx context.Context, addr domain.Address) (domain.DeliveryPoint, error) {
	if addr.Location != nil {
		return domain.DeliveryPoint{Address: addr, Location: *addr.Location}, nil
	}
	if r.geocoder == nil {
		return domain.DeliveryPoint{}, domain.ErrAddressNotGeocodable
	}

	query := addr.GeocodeQuery()
	if query == "" {
		return domain.DeliveryPoint{}, domain.ErrAddressNotGeocodable
	}
	location, found, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.DeliveryPoint{}, err
		}
		r.logger.WithError(err).WithField("address_id", addr.ID).Warn("geocoding failed")
		return domain.DeliveryPoint{}, domain.ErrAddressNotGeocodable
	}
	if !found {
		return domain.DeliveryPoint{}, domain.ErrAddressNotGeocodable
	}

	if err := r.addresses.UpdateLocation(ctx, addr.ID, location); err != nil {
		return domain.DeliveryPoint{}, fmt.Errorf("store address location: %w", err)
	}
	addr.Location = &location
	return domain.DeliveryPoint{Address: addr, Location: location}, nil
}
