package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TariffPrefix marks a message as a tariff selection; the dispatcher routes
// any text starting with it to the payment-selection handler.
const TariffPrefix = "Тариф"

// Tariff is one subscription tier with a fixed price.
type Tariff struct {
	Label    string
	Price    decimal.Decimal
	Currency string
}

// Amount returns the price as the decimal string the payment gateway expects.
func (t Tariff) Amount() string {
	return t.Price.String()
}

// Button returns the label shown on the tariff-selection keyboard,
// e.g. "Тариф 2: 2000 RUB".
func (t Tariff) Button() string {
	return t.Label + ": " + t.Amount() + " " + t.Currency
}

// Tariffs lists the available tiers in menu order.
var Tariffs = []Tariff{
	{Label: "Тариф 1", Price: decimal.NewFromInt(1000), Currency: "RUB"},
	{Label: "Тариф 2", Price: decimal.NewFromInt(2000), Currency: "RUB"},
	{Label: "Тариф 3", Price: decimal.NewFromInt(3000), Currency: "RUB"},
}

// TariffByLabel resolves a tier by its label.
func TariffByLabel(label string) (Tariff, bool) {
	for _, t := range Tariffs {
		if t.Label == label {
			return t, true
		}
	}
	return Tariff{}, false
}

// ParseTariffLabel extracts the tariff label from a selection message: the
// text before the first colon, trimmed. "Тариф 2: 2000 RUB" yields "Тариф 2".
func ParseTariffLabel(text string) string {
	label, _, _ := strings.Cut(text, ":")
	return strings.TrimSpace(label)
}
