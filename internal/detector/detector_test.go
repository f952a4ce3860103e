package detector

import (
	"errors"
	"math"
	"testing"
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/logging"
	"CryptoSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	d := New(history.NewStore(10), calculator.NewScorer(calculator.DefaultTrendLookback), DefaultThresholdPct, logging.Discard())
	d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return d
}

func TestEvaluate_FirstSampleNeverFires(t *testing.T) {
	d := newTestDetector()
	opp, err := d.Evaluate("BTC", 100, 1000, 1.0)
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestEvaluate_AboveThreshold(t *testing.T) {
	d := newTestDetector()
	_, err := d.Evaluate("BTC", 100.0, 1000, 1.0)
	require.NoError(t, err)

	opp, err := d.Evaluate("BTC", 102.0, 1000, 1.0)
	require.NoError(t, err)
	require.NotNil(t, opp)

	assert.InDelta(t, 2.0, opp.PriceChangePct, 1e-9)
	assert.Equal(t, "BTC", opp.Symbol)
	assert.Equal(t, 102.0, opp.CurrentPrice)
	assert.Equal(t, 1000.0, opp.Volume24h)
	assert.Equal(t, d.now(), opp.DetectedAt)
	assert.NotEmpty(t, opp.ID)
	// One change has zero spread and the volume is flat.
	assert.Equal(t, 80.0, opp.ConfidenceScore)
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	d := newTestDetector()
	_, _ = d.Evaluate("ETH", 100.0, 1, 1.0)
	opp, err := d.Evaluate("ETH", 100.5, 1, 1.0)
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestEvaluate_ExactThresholdFires(t *testing.T) {
	d := newTestDetector()
	_, _ = d.Evaluate("ETH", 200.0, 1, 1.0)
	opp, err := d.Evaluate("ETH", 202.0, 1, 1.0)
	require.NoError(t, err)
	assert.NotNil(t, opp)
}

func TestEvaluate_DropsNeverFire(t *testing.T) {
	d := newTestDetector()
	_, _ = d.Evaluate("XRP", 100, 1, 1.0)
	opp, err := d.Evaluate("XRP", 90, 1, 1.0)
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestEvaluate_ZeroPreviousPrice(t *testing.T) {
	d := newTestDetector()
	_, _ = d.Evaluate("DUST", 0, 1, 1.0)
	opp, err := d.Evaluate("DUST", 1, 1, 1.0)
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	d := newTestDetector()
	opp, err := d.Evaluate("BTC", math.NaN(), 1, 1.0)
	assert.Nil(t, opp)
	assert.True(t, errors.Is(err, history.ErrInvalidSample))
	assert.Equal(t, 0, d.History.Len("BTC"))
}

func TestEvaluateAll(t *testing.T) {
	d := newTestDetector()
	first := []model.Quote{
		{Symbol: "BTC", Price: 100, Volume24h: 10},
		{Symbol: "ETH", Price: 50, Volume24h: 10},
	}
	assert.Empty(t, d.EvaluateAll(first))

	second := []model.Quote{
		{Symbol: "BTC", Price: 105, Volume24h: 10},
		{Symbol: "ETH", Price: 50.1, Volume24h: 10},
		{Symbol: "BAD", Price: math.Inf(1), Volume24h: 10},
	}
	found := d.EvaluateAll(second)
	require.Len(t, found, 1)
	assert.Equal(t, "BTC", found[0].Symbol)
	assert.InDelta(t, 5.0, found[0].PriceChangePct, 1e-9)
}
