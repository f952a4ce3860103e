package recorder

import (
	"time"

	"CryptoSentinel/internal/model"
)

// NoopRecorder is used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordOpportunity(_ *model.Opportunity) error { return nil }
func (n *NoopRecorder) RecordAlert(_ *AlertEvent) error              { return nil }
func (n *NoopRecorder) Prune(_ time.Time) (int64, error)             { return 0, nil }
func (n *NoopRecorder) Close() error                                 { return nil }
