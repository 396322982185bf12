package basket

import (
	"github.com/vladislavdragonenkov/basket/internal/catalog"
	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// NormalizeItems превращает позиции запроса в рабочие позиции оптимизатора.
//
// Неизвестные товары и позиции с qty <= 0 отбрасываются. Вес единицы: переопределение
// из запроса (берётся как есть, даже отрицательное), затем вес товара, затем 1 кг.
// Если товар нельзя купить (магазин не одобрен или нет остатка), при allowSwaps он
// заменяется самым дешёвым вариантом, иначе отбрасывается.
// При allowSwaps всегда выбирается самый дешёвый вариант с тем же названием.
func NormalizeItems(requested []domain.RequestedItem, products map[int64]domain.Product, variants map[string][]domain.Product, allowSwaps bool) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(requested))
	for _, req := range requested {
		base, ok := products[req.ProductID]
		if !ok {
			continue
		}
		if req.Quantity <= 0 {
			continue
		}

		weightEach := base.WeightPerUnit()
		if req.WeightKg != nil {
			weightEach = *req.WeightKg
		}

		if !base.Purchasable() {
			if !allowSwaps {
				continue
			}
			cheapest, found := cheapestVariant(variants[base.Name])
			if !found {
				continue
			}
			base = cheapest
		}

		chosen := base
		if allowSwaps {
			if cheapest, found := cheapestVariant(variants[base.Name]); found {
				chosen = cheapest
			}
		}

		items = append(items, domain.LineItem{
			Seq:           len(items),
			Name:          chosen.Name,
			Product:       chosen,
			Qty:           req.Quantity,
			WeightTotalKg: weightEach * float64(req.Quantity),
			UnitPrice:     chosen.Price,
		})
	}
	return items
}

// cheapestVariant выбирает самый дешёвый покупаемый вариант; при равной цене берётся меньший id магазина, затем товара.
func cheapestVariant(candidates []domain.Product) (domain.Product, bool) {
	var (
		best  domain.Product
		found bool
	)
	for _, p := range candidates {
		if !p.Purchasable() {
			continue
		}
		if !found || catalog.LessVariant(p, best) {
			best = p
			found = true
		}
	}
	return best, found
}

// productNames возвращает уникальные названия товаров в порядке первого появления.
func productNames(products map[int64]domain.Product, requested []domain.RequestedItem) []string {
	names := make([]string, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, req := range requested {
		p, ok := products[req.ProductID]
		if !ok {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}
