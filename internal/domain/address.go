package domain

import (
	"strings"
	"time"
)

// Address — адрес доставки пользователя. Location == nil, пока адрес не геокодирован.
type Address struct {
	ID           int64
	UserID       int64
	Label        string
	Line1        string
	Line2        string
	City         string
	State        string
	Pincode      string
	ContactPhone string
	Location     *Coordinate
	IsDefault    bool
	UpdatedAt    time.Time
}

// GeocodeQuery собирает строку для геокодера из непустых частей адреса.
func (a Address) GeocodeQuery() string {
	return joinNonEmpty(", ", a.Line1, a.Line2, a.City, a.State, a.Pincode)
}

// Summary — короткое описание для ответа оптимизатора: "line1, city 530001".
func (a Address) Summary() string {
	s := a.Line1 + ", " + a.City
	if a.Pincode != "" {
		s += " " + a.Pincode
	}
	return s
}

// Short — "line1, city", используется в ответе по заказу.
func (a Address) Short() string {
	return a.Line1 + ", " + a.City
}

// SnapshotText — полный текст адреса, который сохраняется в заказе.
func (a Address) SnapshotText() string {
	return a.Line1 + ", " + a.City + ", " + a.State + " " + a.Pincode
}

// DeliveryPoint — адрес с гарантированно известными координатами.
type DeliveryPoint struct {
	Address  Address
	Location Coordinate
}

func joinNonEmpty(sep string, parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, sep)
}
