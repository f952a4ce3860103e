package recorder

import (
	"time"

	"CryptoSentinel/internal/model"
)

// AlertEvent records one delivery round of the periodic alert.
type AlertEvent struct {
	SentAt        time.Time
	Opportunities int
	Recipients    int
	Delivered     int
	Failed        int
}

// Recorder persists detection and alert history for later analysis.
type Recorder interface {
	RecordOpportunity(opp *model.Opportunity) error
	RecordAlert(evt *AlertEvent) error
	// Prune deletes rows recorded before the cutoff and returns how many were removed.
	Prune(before time.Time) (int64, error)
	Close() error
}
