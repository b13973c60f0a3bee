package pricing

import "strings"

// DefaultShippingEstimate is used for unknown origins and for aggregate
// figures where the seller's country is not known.
const DefaultShippingEstimate = 18.0

// ShippingTable maps a seller's country (as the marketplace spells it) to an
// approximate cost of shipping one LP, in the summary currency. These are
// estimates only.
type ShippingTable map[string]float64

// DefaultShippingTable returns the built-in estimates.
func DefaultShippingTable() ShippingTable {
	return ShippingTable{
		"united states":  6,
		"canada":         14,
		"united kingdom": 16,
		"germany":        17,
		"france":         17,
		"netherlands":    17,
		"belgium":        17,
		"italy":          18,
		"spain":          18,
		"sweden":         19,
		"japan":          22,
		"australia":      24,
	}
}

// Estimate returns the shipping estimate for origin, or fallback when the
// origin is unknown.
func (t ShippingTable) Estimate(origin string, fallback float64) float64 {
	if v, ok := t[strings.ToLower(strings.TrimSpace(origin))]; ok {
		return v
	}
	return fallback
}
