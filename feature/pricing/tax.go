package pricing

import "math"

// DefaultTaxPercent applies when neither the row nor the table configures a tax.
const DefaultTaxPercent = 15

// Net removes a percentage tax from value: floor(value * (100 - tax) / 100), with
// tax clamped to [0, 100]. Non-positive values net to 0.
func Net(value, taxPercent float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	t := math.Max(0, math.Min(100, taxPercent))
	if math.IsNaN(t) {
		t = 0
	}
	return math.Floor(value * (100 - t) / 100)
}
