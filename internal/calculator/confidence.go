package calculator

import (
	"math"
	"time"
)

const (
	// DefaultScore is returned when there are fewer than two prices.
	DefaultScore = 50.0
	// DefaultTrendLookback is one hour of 5-minute samples.
	DefaultTrendLookback = 12

	stabilityWeight = 0.3
	volumeWeight    = 0.3
	trendWeight     = 0.4
)

// Scorer computes a 0-100 confidence heuristic from price stability, volume
// consistency and trend strength.
type Scorer struct {
	TrendLookback int
}

// NewScorer returns a Scorer with the given trend lookback (in samples).
func NewScorer(trendLookback int) Scorer {
	if trendLookback < 1 {
		trendLookback = DefaultTrendLookback
	}
	return Scorer{TrendLookback: trendLookback}
}

// TrendLookback converts a trend window into a number of samples at the
// given poll interval, e.g. 1h at 5m is 12.
func TrendLookback(window, pollInterval time.Duration) int {
	if window <= 0 || pollInterval <= 0 {
		return DefaultTrendLookback
	}
	n := int(math.Round(float64(window) / float64(pollInterval)))
	if n < 1 {
		return 1
	}
	return n
}

// Score uses the default 12-sample trend lookback.
func Score(currentPrice, currentVolume float64, prices, volumes []float64) float64 {
	return NewScorer(DefaultTrendLookback).Score(currentPrice, currentVolume, prices, volumes)
}

// Score returns the confidence score rounded to two decimals. currentVolume
// is accepted for symmetry with the price inputs; volume consistency is taken
// from the history alone.
func (s Scorer) Score(currentPrice, currentVolume float64, prices, volumes []float64) float64 {
	if len(prices) < 2 {
		return DefaultScore
	}

	total := s.stability(prices) + s.volume(volumes) + s.trend(currentPrice, prices)
	return clamp(round2(total), 0, 100)
}

func (s Scorer) stability(prices []float64) float64 {
	volatility := stddev(percentChanges(prices))
	return clamp(100-volatility, 0, 100) * stabilityWeight
}

// volume treats an empty or zero-mean history as maximally inconsistent.
func (s Scorer) volume(volumes []float64) float64 {
	cv := 1.0
	if m := mean(volumes); len(volumes) > 0 && m != 0 {
		cv = stddev(volumes) / m
	}
	return clamp(100-cv*100, 0, 100) * volumeWeight
}

func (s Scorer) trend(currentPrice float64, prices []float64) float64 {
	lookback := s.TrendLookback
	if lookback < 1 {
		lookback = DefaultTrendLookback
	}
	if len(prices) < lookback {
		return 50 * trendWeight
	}
	ref := prices[len(prices)-lookback]
	if ref == 0 {
		return 50 * trendWeight
	}
	pct := (currentPrice - ref) / ref * 100
	return math.Min(math.Abs(pct), 100) * trendWeight
}
