package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// encodeSnapshot сериализует позиции корзины целиком; товар встраивается по значению.
func encodeSnapshot(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot разбирает снимок и восстанавливает инварианты корзины:
// позиции без ID или с количеством < 1 отбрасываются, дубликаты складываются.
func decodeSnapshot(data []byte) ([]domain.CartItem, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, fmt.Errorf("cart snapshot is empty")
	}

	var raw []domain.CartItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}

	items := make([]domain.CartItem, 0, len(raw))
	index := make(map[string]int, len(raw))
	dropped := 0
	for _, item := range raw {
		if item.Product.ID == "" || item.Quantity < 1 {
			dropped++
			continue
		}
		if i, ok := index[item.Product.ID]; ok {
			items[i].Quantity += item.Quantity
			dropped++
			continue
		}
		index[item.Product.ID] = len(items)
		items = append(items, item)
	}

	return items, dropped, nil
}
