package utils

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"Float", 2.5, 2.5, true},
		{"Int", 3, 3, true},
		{"Number", json.Number("12"), 12, true},
		{"String", " 1,250 ", 1250, true},
		{"Empty", "", 0, false},
		{"Garbage", "abc", 0, false},
		{"Nil", nil, 0, false},
		{"NaN", math.NaN(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "19721", ToString(19721.0))
	assert.Equal(t, "0.35", ToString(0.35))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "", ToString(nil))
}

func TestClampInt32(t *testing.T) {
	assert.Equal(t, int64(2), ClampInt32(2.9))
	assert.Equal(t, int64(-3), ClampInt32(-2.1))
	assert.Equal(t, int64(math.MaxInt32), ClampInt32(1e12))
	assert.Equal(t, int64(math.MinInt32), ClampInt32(-1e12))
	assert.Equal(t, int64(0), ClampInt32(math.NaN()))
}
