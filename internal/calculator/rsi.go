package calculator

import (
	"errors"
	"fmt"
)

// DefaultRSIPeriod is the conventional RSI window.
const DefaultRSIPeriod = 14

// CalculateRSI computes the RSI from the average gain and loss of the last
// period price deltas. Requires at least period+1 prices. A zero average loss
// yields 100. The result is rounded to two decimals.
func CalculateRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, fmt.Errorf("rsi(%d): %w", period, ErrInsufficientData)
	}

	var avgGain, avgLoss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return round2(100.0 - 100.0/(1.0+rs)), nil
}
