// Package geo считает расстояния между точками и производные от них ETA и стоимость доставки.
package geo

import (
	"github.com/tidwall/geodesic"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// DistanceKm возвращает геодезическое расстояние между точками в километрах
// на эллипсоиде WGS-84 (алгоритм Карни, сходится и для антиподальных точек).
func DistanceKm(a, b domain.Coordinate) float64 {
	if a == b {
		return 0
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Long, b.Lat, b.Long, &meters, nil, nil)
	return meters / 1000
}
