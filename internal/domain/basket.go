package domain

// RequestedItem — позиция из запроса клиента.
type RequestedItem struct {
	ProductID int64
	Quantity  int
	// WeightKg переопределяет вес единицы товара, если задан.
	WeightKg *float64
}

// LineItem — нормализованная позиция, с которой работает оптимизатор.
type LineItem struct {
	// Seq — стабильный номер позиции в рамках одного запроса.
	Seq           int
	Name          string
	Product       Product
	Qty           int
	WeightTotalKg float64
	UnitPrice     Money
}

// LinePrice возвращает стоимость позиции.
func (li LineItem) LinePrice() Money {
	return li.UnitPrice.Mul(li.Qty)
}

// Plan — оценённый вариант разбиения корзины по магазинам. После расчёта не изменяется.
type Plan struct {
	ItemsPrice    Money      `json:"items_price"`
	DeliveryTotal int64      `json:"delivery_total"`
	GrandTotal    Money      `json:"grand_total"`
	ETATotalMin   int        `json:"eta_total_min"`
	Marts         []MartPlan `json:"marts"`
}

// ImprovedBy сообщает, лучше ли candidate текущего плана: строго дешевле,
// либо так же дёшев и строго быстрее.
func (p Plan) ImprovedBy(candidate Plan) bool {
	if candidate.GrandTotal != p.GrandTotal {
		return candidate.GrandTotal < p.GrandTotal
	}
	return candidate.ETATotalMin < p.ETATotalMin
}

// MartPlan — разбивка плана по одному магазину.
type MartPlan struct {
	MartID         int64      `json:"mart_id"`
	MartName       string     `json:"mart_name"`
	DistanceKm     float64    `json:"distance_km"`
	ETAMin         int        `json:"eta_min"`
	WeightKg       float64    `json:"weight_kg"`
	DeliveryCharge int64      `json:"delivery_charge"`
	Items          []PlanLine `json:"items"`
}

// PlanLine — позиция внутри магазина в плане.
type PlanLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice Money  `json:"unit_price"`
	LinePrice Money  `json:"line_price"`
	ImageURL  string `json:"image_url"`
}
