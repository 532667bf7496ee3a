package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"grocery-helpers/internal/types"

	"github.com/shopspring/decimal"
)

// parsePrice converts a displayed price to a decimal. Two layouts exist:
// dollars ("$4.99", "4.99") and cents-only for amounts under a dollar
// ("99¢", or "99Â¢" when the page was decoded as Latin-1). Cents are read as
// an integer count, so "5¢" is 0.05.
func parsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.Join(strings.Fields(text), "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}

	if idx := strings.Index(cleaned, "¢"); idx >= 0 {
		digits := strings.TrimSuffix(cleaned[:idx], "Â")
		cents, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid cents price %q: %w", text, err)
		}
		return decimal.New(cents, -2), nil
	}

	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", text, err)
	}
	return price, nil
}

// splitUnitPrice splits a comparison price such as "$1.10/100g" into its
// price and quantity halves. Text without a "/" is kept as the price.
func splitUnitPrice(text string) types.UnitPrice {
	text = strings.TrimSpace(text)
	price, quantity, found := strings.Cut(text, "/")
	if !found {
		return types.UnitPrice{Price: text}
	}
	return types.UnitPrice{
		Price:    strings.TrimSpace(price),
		Quantity: strings.TrimSpace(quantity),
	}
}

// flexString accepts JSON strings, numbers and null, which the retailers'
// embedded tracking data mixes freely.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return string(f)
}
