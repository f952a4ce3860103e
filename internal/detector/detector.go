package detector

import (
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// DefaultThresholdPct is the minimum rise, in percent, reported as an opportunity.
const DefaultThresholdPct = 1.0

// Detector records each new quote into the rolling history and flags
// cycle-over-cycle rises at or above the threshold.
type Detector struct {
	History      *history.Store
	Scorer       calculator.Scorer
	ThresholdPct float64
	Logger       *logrus.Logger

	now func() time.Time
}

// New creates a Detector over the given history store.
func New(store *history.Store, scorer calculator.Scorer, thresholdPct float64, logger *logrus.Logger) *Detector {
	return &Detector{
		History:      store,
		Scorer:       scorer,
		ThresholdPct: thresholdPct,
		Logger:       logger,
		now:          time.Now,
	}
}

// Evaluate records the sample and returns an opportunity when the change
// against the previous sample reaches thresholdPct. It returns nil, nil when
// there is nothing to report and an error only for rejected input.
func (d *Detector) Evaluate(symbol string, price, volume, thresholdPct float64) (*model.Opportunity, error) {
	if err := d.History.Record(symbol, price, volume); err != nil {
		return nil, err
	}

	prices, volumes := d.History.Snapshot(symbol)
	if len(prices) < 2 {
		return nil, nil
	}
	prev := prices[len(prices)-2]
	if prev == 0 {
		return nil, nil
	}

	change := (price - prev) / prev * 100
	if change < thresholdPct {
		return nil, nil
	}

	confidence := d.Scorer.Score(price, volume, prices, volumes)
	return model.NewOpportunity(symbol, change, price, volume, confidence, d.now()), nil
}

// EvaluateAll runs Evaluate with the configured threshold for every quote.
func (d *Detector) EvaluateAll(quotes []model.Quote) []model.Opportunity {
	var found []model.Opportunity
	for _, q := range quotes {
		opp, err := d.Evaluate(q.Symbol, q.Price, q.Volume24h, d.ThresholdPct)
		if err != nil {
			d.Logger.WithError(err).WithField("symbol", q.Symbol).Warn("Skipping quote")
			continue
		}
		if opp != nil {
			found = append(found, *opp)
		}
	}
	return found
}
