package calculator

import (
	"math"

	"SignalBacktest/internal/model"
)

// DefaultATRPeriod matches the ATR_14 column of the upstream feature table.
const DefaultATRPeriod = 14

// TrueRanges computes max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRanges(points []model.PricePoint) []float64 {
	tr := make([]float64, len(points))
	for i, p := range points {
		hl := p.High - p.Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		prev := points[i-1].Close
		tr[i] = math.Max(hl, math.Max(math.Abs(p.High-prev), math.Abs(p.Low-prev)))
	}
	return tr
}

// DeriveATR fills ATR on points that lack it with the rolling mean of the true range.
// Points inside the warmup window stay without ATR. points must be sorted by date.
func DeriveATR(points []model.PricePoint, period int) error {
	means, err := RollingMean(TrueRanges(points), period)
	if err != nil {
		return err
	}
	for i := range points {
		if points[i].HasATR || !IsFinite(means[i]) {
			continue
		}
		points[i].ATR = means[i]
		points[i].HasATR = true
	}
	return nil
}
