package basket

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geo"
)

// NearbyQuery описывает поиск магазинов рядом с произвольным адресом.
type NearbyQuery struct {
	Address string
	// RadiusKm ограничивает выдачу, если задан.
	RadiusKm *float64
	// WeightKg — предполагаемый вес заказа для оценки доставки, по умолчанию 1 кг.
	WeightKg *float64
}

// NearbyMart — магазин с оценкой доставки.
type NearbyMart struct {
	MartID         int64   `json:"mart_id"`
	MartName       string  `json:"mart_name"`
	MartLat        float64 `json:"mart_lat"`
	MartLong       float64 `json:"mart_long"`
	DistanceKm     float64 `json:"distance_km"`
	ETAMin         int     `json:"eta_min"`
	DeliveryCharge int64   `json:"delivery_charge"`
}

// NearbyResult — ответ поиска магазинов.
type NearbyResult struct {
	Address         string       `json:"address"`
	AddressLat      float64      `json:"address_lat"`
	AddressLong     float64      `json:"address_long"`
	AssumedWeightKg float64      `json:"assumed_weight_kg"`
	Marts           []NearbyMart `json:"marts"`
}

// NearbyMarts геокодирует адрес и возвращает одобренные магазины по возрастанию расстояния.
func (s *Service) NearbyMarts(ctx context.Context, q NearbyQuery) (NearbyResult, error) {
	address := strings.TrimSpace(q.Address)
	if address == "" {
		return NearbyResult{}, domain.ErrAddressRequired
	}
	weight := domain.DefaultUnitWeightKg
	if q.WeightKg != nil {
		weight = *q.WeightKg
	}

	if s.geocoder == nil {
		return NearbyResult{}, domain.ErrCouldNotGeocode
	}
	location, found, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return NearbyResult{}, err
		}
		s.logger.WithError(err).Warn("nearby marts geocoding failed")
		return NearbyResult{}, domain.ErrCouldNotGeocode
	}
	if !found {
		return NearbyResult{}, domain.ErrCouldNotGeocode
	}

	marts, err := s.catalog.ApprovedMarts(ctx)
	if err != nil {
		return NearbyResult{}, err
	}

	list := MartsByDistance(location, marts, weight, s.tariff)
	if q.RadiusKm != nil {
		filtered := list[:0]
		for _, m := range list {
			if m.DistanceKm <= *q.RadiusKm {
				filtered = append(filtered, m)
			}
		}
		list = filtered
	}

	return NearbyResult{
		Address:         address,
		AddressLat:      location.Lat,
		AddressLong:     location.Long,
		AssumedWeightKg: weight,
		Marts:           list,
	}, nil
}

// MartsByDistance считает расстояние, ETA и доставку до каждого магазина; сортировка по расстоянию, затем по id.
func MartsByDistance(origin domain.Coordinate, marts []domain.Mart, weightKg float64, tariff geo.Tariff) []NearbyMart {
	out := make([]NearbyMart, 0, len(marts))
	for _, m := range marts {
		distance := geo.DistanceKm(origin, m.Location)
		out = append(out, NearbyMart{
			MartID:         m.ID,
			MartName:       m.Name,
			MartLat:        m.Location.Lat,
			MartLong:       m.Location.Long,
			DistanceKm:     round3(distance),
			ETAMin:         tariff.ETAMinutes(distance),
			DeliveryCharge: tariff.DeliveryCharge(distance, weightKg),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].MartID < out[j].MartID
	})
	return out
}
