package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/logging"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/opportunity"
	"CryptoSentinel/internal/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.Discard()

	store := history.NewStore(10)
	oppLog := opportunity.NewLog(opportunity.NewFileStateStore(filepath.Join(dir, "opps.json")), 10, time.Hour, logger)
	subs := subscriber.NewManager(subscriber.NewFileStore(filepath.Join(dir, "chats.json")), logger)

	s := NewServer(store, oppLog, subs, calculator.NewScorer(calculator.DefaultTrendLookback), "mock", logger)
	return s, s.Routes(nil)
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr, body
}

func TestHealthCheck(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.History.Record("BTC", 100, 1))
	s.Subscribers.Add(7)

	rr, body := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mock", body["data_source"])
	assert.Equal(t, float64(1), body["tracked_symbols"])
	assert.Equal(t, float64(1), body["subscribers"])
}

func TestGetOpportunities_NewestFirst(t *testing.T) {
	s, h := newTestServer(t)
	now := time.Now()
	s.Log.Append(*model.NewOpportunity("ETH", 1.5, 2000, 10, 60, now))
	s.Log.Append(*model.NewOpportunity("SOL", 3.0, 150, 20, 70, now))

	rr, body := get(t, h, "/opportunities")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), body["count"])

	opps := body["opportunities"].([]interface{})
	require.Len(t, opps, 2)
	assert.Equal(t, "SOL", opps[0].(map[string]interface{})["symbol"])
	assert.Equal(t, "ETH", opps[1].(map[string]interface{})["symbol"])
}

func TestGetSymbols(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.History.Record("ETH", 1, 1))
	require.NoError(t, s.History.Record("BTC", 1, 1))

	_, body := get(t, h, "/symbols")
	assert.Equal(t, []interface{}{"BTC", "ETH"}, body["symbols"])
	assert.Equal(t, float64(2), body["count"])
}

func TestGetSymbol(t *testing.T) {
	s, h := newTestServer(t)
	for _, p := range []float64{100, 101, 102, 103} {
		require.NoError(t, s.History.Record("BTC", p, 1000))
	}

	rr, body := get(t, h, "/symbols/btc?sma=2&rsi=3")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "BTC", body["symbol"])
	assert.Equal(t, float64(4), body["samples"])
	assert.Equal(t, float64(103), body["latest_price"])
	assert.Equal(t, 102.5, body["sma"])
	assert.Equal(t, float64(100), body["rsi"])
	assert.Equal(t, float64(103), body["range_high"])
	assert.Equal(t, float64(100), body["range_low"])
	assert.Equal(t, float64(1), body["range_position"])
	assert.Contains(t, body, "confidence")
}

func TestGetSymbol_InsufficientDataOmitsIndicators(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.History.Record("BTC", 100, 1000))

	rr, body := get(t, h, "/symbols/BTC")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, body, "sma")
	assert.NotContains(t, body, "rsi")
	assert.Equal(t, float64(50), body["confidence"])
	assert.Equal(t, 0.5, body["range_position"])
}

func TestGetSymbol_CaseHandling(t *testing.T) {
	s, h := newTestServer(t)
	require.NoError(t, s.History.Record("BTC", 100, 1000))
	require.NoError(t, s.History.Record("wBTC", 99, 10))

	rr, body := get(t, h, "/symbols/wBTC")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "wBTC", body["symbol"])
	assert.Equal(t, float64(99), body["latest_price"])

	rr, body = get(t, h, "/symbols/btc")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "BTC", body["symbol"])

	rr, _ = get(t, h, "/symbols/wbtc")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetSymbol_NotFound(t *testing.T) {
	_, h := newTestServer(t)

	rr, body := get(t, h, "/symbols/DOGE")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "symbol not tracked", body["message"])
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
