package domain

// Coordinate — точка в десятичных градусах.
type Coordinate struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Mart — магазин-продавец. В оптимизации участвуют только одобренные магазины.
type Mart struct {
	ID       int64
	Name     string
	Address  string
	Location Coordinate
	Approved bool
}

// Product — товар конкретного магазина с ценой и остатком.
// Товары с одинаковым Name в разных магазинах считаются взаимозаменяемыми.
type Product struct {
	ID       int64
	Name     string
	Category string
	Price    Money
	Stock    int
	// UnitWeightKg может отсутствовать; тогда используется вес по умолчанию.
	UnitWeightKg *float64
	ImageURL     string
	Mart         Mart
}

// DefaultUnitWeightKg используется, если вес единицы товара неизвестен.
const DefaultUnitWeightKg = 1.0

// Purchasable сообщает, можно ли сейчас купить товар: магазин одобрен и есть остаток.
func (p Product) Purchasable() bool {
	return p.Mart.Approved && p.Stock > 0
}

// WeightPerUnit возвращает вес единицы товара или значение по умолчанию.
func (p Product) WeightPerUnit() float64 {
	if p.UnitWeightKg != nil {
		return *p.UnitWeightKg
	}
	return DefaultUnitWeightKg
}
