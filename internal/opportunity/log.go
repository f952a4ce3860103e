package opportunity

import (
	"sync"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	DefaultCapacity      = 10
	DefaultAlertInterval = time.Hour
)

// Log keeps the most recent opportunities and gates outbound alerts to at
// most one per alert interval.
type Log struct {
	mu            sync.Mutex
	capacity      int
	alertInterval time.Duration
	items         []model.Opportunity
	lastAlertAt   time.Time
	store         StateStore
	logger        *logrus.Logger
	now           func() time.Time
}

// NewLog creates a Log, restoring state from store. A missing or unreadable
// state starts an empty log with the alert gate anchored at the current time.
func NewLog(store StateStore, capacity int, alertInterval time.Duration, logger *logrus.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if alertInterval <= 0 {
		alertInterval = DefaultAlertInterval
	}
	l := &Log{
		capacity:      capacity,
		alertInterval: alertInterval,
		store:         store,
		logger:        logger,
		now:           time.Now,
	}
	l.lastAlertAt = l.now()

	state, err := store.Load()
	switch {
	case err != nil:
		logger.WithError(err).Warn("Failed to load opportunity log, starting empty")
	case state != nil:
		items := state.Opportunities
		if len(items) > capacity {
			items = items[len(items)-capacity:]
		}
		l.items = append([]model.Opportunity(nil), items...)
		if !state.LastAlertAt.IsZero() {
			l.lastAlertAt = state.LastAlertAt
		}
		logger.WithField("opportunities", len(l.items)).Info("Opportunity log restored")
	}
	return l
}

// Append stamps the opportunity's log time, adds it and persists the log.
func (l *Log) Append(opp model.Opportunity) model.Opportunity {
	l.mu.Lock()
	defer l.mu.Unlock()

	opp.LoggedAt = l.now()
	l.items = append(l.items, opp)
	if len(l.items) > l.capacity {
		l.items = append([]model.Opportunity(nil), l.items[len(l.items)-l.capacity:]...)
	}
	l.save()
	return opp
}

// Recent returns the logged opportunities, oldest first.
func (l *Log) Recent() []model.Opportunity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Opportunity(nil), l.items...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *Log) LastAlertAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAlertAt
}

// ShouldAlert reports whether the alert interval has elapsed since the last
// alert. When it has, the gate is reset to now and persisted.
func (l *Log) ShouldAlert(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastAlertAt) < l.alertInterval {
		return false
	}
	l.lastAlertAt = now
	l.save()
	return true
}

// save must be called with mu held.
func (l *Log) save() {
	state := &model.LogState{
		Opportunities: append([]model.Opportunity(nil), l.items...),
		LastAlertAt:   l.lastAlertAt,
	}
	if err := l.store.Save(state); err != nil {
		l.logger.WithError(err).Error("Failed to save opportunity log")
	}
}
