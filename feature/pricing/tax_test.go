package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNet_ZeroTaxIsIdentity(t *testing.T) {
	for _, v := range []float64{1, 7, 150, 99999} {
		assert.Equal(t, v, Net(v, 0))
	}
}

func TestNet_Formula(t *testing.T) {
	assert.Equal(t, 85.0, Net(100, 15))
	assert.Equal(t, 8.0, Net(10, 15))
	assert.Equal(t, 0.0, Net(1, 15))
	assert.Equal(t, 170.0, Net(200, 15))
	assert.Equal(t, math.Floor(37*90/100.0), Net(37, 10))
}

func TestNet_NonPositiveAndClamp(t *testing.T) {
	assert.Equal(t, 0.0, Net(0, 15))
	assert.Equal(t, 0.0, Net(-50, 0))
	assert.Equal(t, 0.0, Net(100, 150))
	assert.Equal(t, 100.0, Net(100, -20))
	assert.Equal(t, 0.0, Net(math.NaN(), 0))
}

func TestNet_MonotonicInTax(t *testing.T) {
	for _, v := range []float64{1, 13, 250, 10007} {
		prev := Net(v, 0)
		for tax := 1.0; tax <= 100; tax++ {
			cur := Net(v, tax)
			assert.LessOrEqual(t, cur, prev, "value %v tax %v", v, tax)
			prev = cur
		}
	}
}
