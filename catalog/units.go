package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// unitRule converts a package size ending in suffix to kilograms: value*mul/div.
// Volumes assume a density of 1 kg/L.
type unitRule struct {
	suffix string
	mul    float64
	div    float64
}

// unitTable is checked in order; " lb bag" must come before " lb".
var unitTable = []unitRule{
	{suffix: " mL", mul: 1, div: 1000},
	{suffix: " L", mul: 1, div: 1},
	{suffix: " kg", mul: 1, div: 1},
	{suffix: " lb bag", mul: 1, div: 2.2},
	{suffix: " lb", mul: 1, div: 2.2},
	{suffix: " g", mul: 1, div: 1000},
}

var averageWeightPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(kg|g|lb)\b`)

// PackageKg derives a product's weight in kilograms. A parseable average
// weight ("Average Weight: 1.25 kg") wins over the package size. It returns
// nil when neither string matches a known unit.
func PackageKg(packageSize, averageWeight string) *float64 {
	if kg := averageWeightKg(averageWeight); kg != nil {
		return kg
	}

	size := strings.TrimSpace(packageSize)
	for _, rule := range unitTable {
		if !strings.HasSuffix(size, rule.suffix) {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(size, rule.suffix)), 64)
		if err != nil {
			return nil
		}
		kg := value * rule.mul / rule.div
		return &kg
	}
	return nil
}

func averageWeightKg(text string) *float64 {
	match := averageWeightPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	switch match[2] {
	case "g":
		value /= 1000
	case "lb":
		value /= 2.2
	}
	return &value
}

// quantityPattern matches the unit-price half of an order quantity:
// "$1.50 ea" or "$2.00 /kg".
var quantityPattern = regexp.MustCompile(`^\$?\s*([0-9]+(?:\.[0-9]+)?)\s*(ea|/\s*kg)$`)

// NormalizeQuantity converts an order line's quantity display into units
// and kilograms. "3 @ $1.50 ea" gives units = price / 1.50 and, when the
// product's weight is known, kg = units * productKg. "$2.00 /kg" gives
// kg = price / 2.00. Anything else gives (nil, nil).
func NormalizeQuantity(display string, price decimal.Decimal, productKg *float64) (units *float64, kg *float64) {
	text := strings.TrimSpace(display)
	if _, after, found := strings.Cut(text, " @ "); found {
		text = strings.TrimSpace(after)
	}

	match := quantityPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}
	unitPrice, err := decimal.NewFromString(match[1])
	if err != nil || unitPrice.IsZero() {
		return nil, nil
	}
	ratio := price.Div(unitPrice).InexactFloat64()

	if match[2] == "ea" {
		units = &ratio
		if productKg != nil {
			total := ratio * *productKg
			kg = &total
		}
		return units, kg
	}
	return nil, &ratio
}
