package basket

import "github.com/vladislavdragonenkov/basket/internal/domain"

// Assignment — разбиение позиций по магазинам.
// Порядок магазинов и позиций внутри корзины магазина стабилен: по первому появлению.
// Каждая позиция (по Seq) находится ровно в одной корзине.
type Assignment struct {
	order   []int64
	buckets map[int64][]domain.LineItem
}

// NewAssignment группирует позиции по магазину выбранного товара, пропуская неодобренные магазины.
func NewAssignment(items []domain.LineItem) *Assignment {
	a := &Assignment{buckets: make(map[int64][]domain.LineItem)}
	for _, item := range items {
		if !item.Product.Mart.Approved {
			continue
		}
		a.add(item.Product.Mart.ID, item)
	}
	return a
}

// Clone возвращает независимую копию.
func (a *Assignment) Clone() *Assignment {
	c := &Assignment{
		order:   append([]int64(nil), a.order...),
		buckets: make(map[int64][]domain.LineItem, len(a.buckets)),
	}
	for id, bucket := range a.buckets {
		c.buckets[id] = append([]domain.LineItem(nil), bucket...)
	}
	return c
}

// Empty сообщает, что нет ни одной корзины.
func (a *Assignment) Empty() bool {
	return len(a.order) == 0
}

// MartIDs возвращает копию списка магазинов в стабильном порядке.
func (a *Assignment) MartIDs() []int64 {
	return append([]int64(nil), a.order...)
}

// Bucket возвращает копию позиций магазина.
func (a *Assignment) Bucket(martID int64) []domain.LineItem {
	return append([]domain.LineItem(nil), a.buckets[martID]...)
}

// Items возвращает все позиции в порядке магазинов.
func (a *Assignment) Items() []domain.LineItem {
	var items []domain.LineItem
	for _, id := range a.order {
		items = append(items, a.buckets[id]...)
	}
	return items
}

// TotalQty возвращает сумму количеств по всем позициям.
func (a *Assignment) TotalQty() int {
	total := 0
	for _, bucket := range a.buckets {
		for _, item := range bucket {
			total += item.Qty
		}
	}
	return total
}

// Contains сообщает, лежит ли позиция seq в корзине магазина.
func (a *Assignment) Contains(martID int64, seq int) bool {
	return indexOf(a.buckets[martID], seq) >= 0
}

// Relocate переносит позицию seq из корзины from к товару target (в его магазин).
// Количество и вес сохраняются, цена берётся у target. Опустевшая корзина удаляется.
func (a *Assignment) Relocate(seq int, from int64, target domain.Product) bool {
	bucket := a.buckets[from]
	idx := indexOf(bucket, seq)
	if idx < 0 {
		return false
	}
	item := bucket[idx]

	rest := make([]domain.LineItem, 0, len(bucket)-1)
	rest = append(rest, bucket[:idx]...)
	rest = append(rest, bucket[idx+1:]...)
	if len(rest) == 0 {
		a.remove(from)
	} else {
		a.buckets[from] = rest
	}

	item.Product = target
	item.UnitPrice = target.Price
	a.add(target.Mart.ID, item)
	return true
}

func (a *Assignment) add(martID int64, item domain.LineItem) {
	if _, ok := a.buckets[martID]; !ok {
		a.order = append(a.order, martID)
	}
	a.buckets[martID] = append(a.buckets[martID], item)
}

func (a *Assignment) remove(martID int64) {
	delete(a.buckets, martID)
	for i, id := range a.order {
		if id == martID {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			return
		}
	}
}

func indexOf(bucket []domain.LineItem, seq int) int {
	for i, item := range bucket {
		if item.Seq == seq {
			return i
		}
	}
	return -1
}
