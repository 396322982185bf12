package basket

import (
	"math"

	"github.com/vladislavdragonenkov/basket/internal/domain"
	"github.com/vladislavdragonenkov/basket/internal/geo"
)

// CostModel оценивает разбиение относительно точки доставки. Не имеет состояния и побочных эффектов.
type CostModel struct {
	tariff      geo.Tariff
	destination domain.Coordinate
}

// NewCostModel создаёт модель стоимости для точки доставки.
func NewCostModel(tariff geo.Tariff, destination domain.Coordinate) CostModel {
	return CostModel{tariff: tariff, destination: destination}
}

// Score считает план для разбиения. Пустые корзины и неодобренные магазины пропускаются.
// ETA плана равно сумме ETA по магазинам.
func (m CostModel) Score(a *Assignment) domain.Plan {
	plan := domain.Plan{Marts: make([]domain.MartPlan, 0, len(a.order))}

	for _, martID := range a.order {
		items := a.buckets[martID]
		if len(items) == 0 {
			continue
		}
		mart := items[0].Product.Mart
		if !mart.Approved {
			continue
		}

		var (
			weight     float64
			itemsPrice domain.Money
		)
		lines := make([]domain.PlanLine, 0, len(items))
		for _, item := range items {
			weight += item.WeightTotalKg
			itemsPrice += item.LinePrice()
			lines = append(lines, domain.PlanLine{
				ProductID: item.Product.ID,
				Name:      item.Name,
				Qty:       item.Qty,
				UnitPrice: item.UnitPrice,
				LinePrice: item.LinePrice(),
				ImageURL:  item.Product.ImageURL,
			})
		}

		distance := geo.DistanceKm(m.destination, mart.Location)
		charge := m.tariff.DeliveryCharge(distance, weight)
		eta := m.tariff.ETAMinutes(distance)

		plan.ItemsPrice += itemsPrice
		plan.DeliveryTotal += charge
		plan.ETATotalMin += eta
		plan.Marts = append(plan.Marts, domain.MartPlan{
			MartID:         mart.ID,
			MartName:       mart.Name,
			DistanceKm:     round3(distance),
			ETAMin:         eta,
			WeightKg:       round3(weight),
			DeliveryCharge: charge,
			Items:          lines,
		})
	}

	plan.GrandTotal = plan.ItemsPrice + domain.MoneyFromMajor(plan.DeliveryTotal)
	return plan
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
