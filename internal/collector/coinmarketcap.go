package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultCMCURL is the CoinMarketCap latest-listings endpoint.
const DefaultCMCURL = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/listings/latest"

// CoinMarketCapFetcher implements Fetcher using the CoinMarketCap listings API,
// ranked by 24h volume.
type CoinMarketCapFetcher struct {
	BaseURL string
	APIKey  string
	Convert string
	Client  *resty.Client
	Logger  *logrus.Logger
}

// NewCoinMarketCapFetcher creates a fetcher with optional proxy support.
func NewCoinMarketCapFetcher(baseURL, apiKey, proxyURL string, logger *logrus.Logger) *CoinMarketCapFetcher {
	if baseURL == "" {
		baseURL = DefaultCMCURL
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &CoinMarketCapFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Convert: "USD",
		Client:  client,
		Logger:  logger,
	}
}

func (f *CoinMarketCapFetcher) Name() string { return "coinmarketcap" }

// cmcListing is the subset of the listings response we use.
type cmcListing struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data []struct {
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price     float64 `json:"price"`
			Volume24h float64 `json:"volume_24h"`
		} `json:"quote"`
	} `json:"data"`
}

func (f *CoinMarketCapFetcher) FetchQuotes(ctx context.Context, limit int) ([]model.Quote, error) {
	var listing cmcListing
	resp, err := f.Client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-CMC_PRO_API_KEY", f.APIKey).
		SetQueryParams(map[string]string{
			"sort":    "volume_24h",
			"limit":   strconv.Itoa(limit),
			"convert": f.Convert,
		}).
		SetResult(&listing).
		SetError(&listing).
		Get(f.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch listings: status %d: %s", resp.StatusCode(), listing.Status.ErrorMessage)
	}
	if listing.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap error %d: %s", listing.Status.ErrorCode, listing.Status.ErrorMessage)
	}

	quotes := make([]model.Quote, 0, len(listing.Data))
	for _, d := range listing.Data {
		q, ok := d.Quote[f.Convert]
		if !ok || d.Symbol == "" {
			continue
		}
		quotes = append(quotes, model.Quote{Symbol: d.Symbol, Price: q.Price, Volume24h: q.Volume24h})
	}

	f.Logger.WithField("quote_count", len(quotes)).Debug("Fetched listings")
	return quotes, nil
}
