package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FloorUnits truncates x toward zero into a whole unit count.
// Non-finite and negative inputs yield 0.
func FloorUnits(x float64) int64 {
	if !IsFinite(x) || x <= 0 {
		return 0
	}
	if x >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(x))
}

// Round rounds x half away from zero to places decimals.
func Round(x float64, places int32) float64 {
	if !IsFinite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// SafeDiv returns a/b, or 0 when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
