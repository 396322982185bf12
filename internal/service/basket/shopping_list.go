package basket

import (
	"strings"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

// ParseShoppingList разбивает текст списка покупок по запятым и переводам строк.
func ParseShoppingList(text string) ([]string, error) {
	if text == "" {
		return nil, domain.ErrShoppingListEmpty
	}
	parts := strings.Split(strings.ReplaceAll(text, "\n", ","), ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items, nil
}
