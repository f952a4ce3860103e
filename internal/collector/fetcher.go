package collector

import (
	"context"

	"CryptoSentinel/internal/model"
)

// Fetcher returns the current market snapshot for the top assets.
type Fetcher interface {
	FetchQuotes(ctx context.Context, limit int) ([]model.Quote, error)
	Name() string
}
