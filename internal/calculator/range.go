package calculator

import (
	"errors"
	"math"
)

// CalculateRange scans the most recent window prices and returns the high and low.
// A non-positive window scans the whole series.
func CalculateRange(prices []float64, window int) (high, low float64, err error) {
	if len(prices) == 0 {
		return 0, 0, errors.New("no prices provided")
	}
	start := 0
	if window > 0 && len(prices) > window {
		start = len(prices) - window
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range prices[start:] {
		high = math.Max(high, p)
		low = math.Min(low, p)
	}
	return high, low, nil
}

// RangePosition returns where current sits within [low, high] (0.0~1.0).
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	return clamp((current-low)/(high-low), 0, 1), nil
}
