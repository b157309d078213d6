package cart

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/shoppy/internal/domain"
)

// savedLine is one element of the persisted cart list.
type savedLine struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// encodeCart renders lines as the persisted list format. An empty cart is
// written as [] rather than null.
func encodeCart(lines []domain.Line) ([]byte, error) {
	saved := make([]savedLine, 0, len(lines))
	for _, l := range lines {
		saved = append(saved, savedLine{Product: l.Product, Quantity: l.Quantity})
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("error encoding cart: %w", err)
	}
	return data, nil
}

// decodeCart parses a persisted cart. Unknown fields are ignored, lines with
// a non-positive quantity or product id or a negative price are dropped, and
// repeated product ids are merged into the first occurrence.
func decodeCart(data []byte) ([]domain.Line, error) {
	var saved []savedLine
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("error decoding cart: %w", err)
	}

	lines := make([]domain.Line, 0, len(saved))
	index := make(map[int]int, len(saved))
	for _, s := range saved {
		if s.Quantity <= 0 || s.Product.ID <= 0 || s.Product.Price.IsNegative() {
			continue
		}
		if i, ok := index[s.Product.ID]; ok {
			lines[i].Quantity += s.Quantity
			continue
		}
		index[s.Product.ID] = len(lines)
		lines = append(lines, domain.Line{Product: s.Product, Quantity: s.Quantity})
	}
	return lines, nil
}
