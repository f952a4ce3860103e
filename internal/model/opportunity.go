package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// legacyTimeLayout is the "time" field written by the earlier Python bot.
const legacyTimeLayout = "2006-01-02 15:04:05"

// Opportunity is a detected price spike annotated with a confidence score.
type Opportunity struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	PriceChangePct  float64   `json:"price_change"`
	CurrentPrice    float64   `json:"current_price"`
	Volume24h       float64   `json:"volume_24h"`
	ConfidenceScore float64   `json:"confidence_score"`
	DetectedAt      time.Time `json:"detected_at"`
	LoggedAt        time.Time `json:"timestamp"`
}

// NewOpportunity creates an Opportunity with a fresh ID.
func NewOpportunity(symbol string, changePct, price, volume, confidence float64, detectedAt time.Time) *Opportunity {
	return &Opportunity{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		PriceChangePct:  changePct,
		CurrentPrice:    price,
		Volume24h:       volume,
		ConfidenceScore: confidence,
		DetectedAt:      detectedAt,
	}
}

// LogState is the persisted form of the opportunity log.
type LogState struct {
	Opportunities []Opportunity `json:"opportunities"`
	LastAlertAt   time.Time     `json:"last_alert_time"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// UnmarshalJSON accepts timestamps as RFC 3339 strings or Unix epoch seconds,
// so state files left by the earlier Python bot still load.
func (o *Opportunity) UnmarshalJSON(data []byte) error {
	type plain Opportunity
	aux := struct {
		*plain
		DetectedAt json.RawMessage `json:"detected_at"`
		LoggedAt   json.RawMessage `json:"timestamp"`
		Time       string          `json:"time"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if o.DetectedAt, err = decodeTime(aux.DetectedAt); err != nil {
		return fmt.Errorf("detected_at: %w", err)
	}
	if o.LoggedAt, err = decodeTime(aux.LoggedAt); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if o.DetectedAt.IsZero() && aux.Time != "" {
		if t, err := time.ParseInLocation(legacyTimeLayout, aux.Time, time.Local); err == nil {
			o.DetectedAt = t
		}
	}
	if o.DetectedAt.IsZero() {
		o.DetectedAt = o.LoggedAt
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// UnmarshalJSON accepts last_alert_time as RFC 3339 or Unix epoch seconds.
func (s *LogState) UnmarshalJSON(data []byte) error {
	type plain LogState
	aux := struct {
		*plain
		LastAlertAt json.RawMessage `json:"last_alert_time"`
		UpdatedAt   json.RawMessage `json:"updated_at"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if s.LastAlertAt, err = decodeTime(aux.LastAlertAt); err != nil {
		return fmt.Errorf("last_alert_time: %w", err)
	}
	if s.UpdatedAt, err = decodeTime(aux.UpdatedAt); err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	return nil
}

func decodeTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var t time.Time
		err := json.Unmarshal(raw, &t)
		return t, err
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, err
	}
	whole := math.Floor(secs)
	return time.Unix(int64(whole), int64((secs-whole)*1e9)), nil
}
