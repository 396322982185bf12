package geo

import (
	"errors"
	"math"
)

// Tariff задаёт модель доставки: средняя скорость курьера и линейный тариф без базовой ставки.
type Tariff struct {
	// SpeedKmh — средняя скорость, км/ч.
	SpeedKmh float64
	// PerKm — стоимость километра в целых денежных единицах.
	PerKm float64
	// PerKg — стоимость килограмма груза в целых денежных единицах.
	PerKg float64
}

// DefaultTariff: 20 км/ч, 5 за км, 5 за кг.
func DefaultTariff() Tariff {
	return Tariff{SpeedKmh: 20, PerKm: 5, PerKg: 5}
}

// Validate проверяет, что тариф пригоден для расчётов.
func (t Tariff) Validate() error {
	if t.SpeedKmh <= 0 {
		return errors.New("tariff speed must be greater than zero")
	}
	if t.PerKm < 0 || t.PerKg < 0 {
		return errors.New("tariff rates must be non-negative")
	}
	return nil
}

// ETAMinutes возвращает время в пути в минутах, округлённое вверх.
func (t Tariff) ETAMinutes(distanceKm float64) int {
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / t.SpeedKmh * 60))
}

// DeliveryCharge возвращает стоимость доставки в целых единицах, округлённую вверх.
// Отрицательные расстояние и вес считаются нулём.
func (t Tariff) DeliveryCharge(distanceKm, totalWeightKg float64) int64 {
	cost := t.PerKm*math.Max(0, distanceKm) + t.PerKg*math.Max(0, totalWeightKg)
	return int64(math.Ceil(cost))
}
