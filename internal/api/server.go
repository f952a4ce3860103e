package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/opportunity"
	"CryptoSentinel/internal/subscriber"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

const (
	defaultSMAPeriod = 12
	maxPeriod        = 288
)

// Server exposes read-only monitor state over HTTP.
type Server struct {
	History     *history.Store
	Log         *opportunity.Log
	Subscribers *subscriber.Manager
	Scorer      calculator.Scorer
	Source      string
	Logger      *logrus.Logger

	startedAt time.Time
}

// NewServer creates a status API server.
func NewServer(store *history.Store, oppLog *opportunity.Log, subs *subscriber.Manager, scorer calculator.Scorer, source string, logger *logrus.Logger) *Server {
	return &Server{
		History:     store,
		Log:         oppLog,
		Subscribers: subs,
		Scorer:      scorer,
		Source:      source,
		Logger:      logger,
		startedAt:   time.Now(),
	}
}

// Routes builds the router. An empty origin list allows any origin.
func (s *Server) Routes(corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.HealthCheck)
	r.Get("/opportunities", s.GetOpportunities)
	r.Get("/symbols", s.GetSymbols)
	r.Get("/symbols/{symbol}", s.GetSymbol)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, corsOrigins []string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(corsOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.WithField("addr", addr).Info("Status API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// HealthCheck reports liveness and a few counters.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"service":         "crypto-sentinel",
		"data_source":     s.Source,
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"tracked_symbols": len(s.History.Symbols()),
		"subscribers":     s.Subscribers.Len(),
	})
}

// GetOpportunities returns the logged opportunities, newest first.
func (s *Server) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	recent := s.Log.Recent()
	out := make([]model.Opportunity, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		out = append(out, recent[i])
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities":   out,
		"count":           len(out),
		"last_alert_time": s.Log.LastAlertAt(),
	})
}

// GetSymbols lists every tracked symbol.
func (s *Server) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.History.Symbols()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

type symbolResponse struct {
	Symbol        string    `json:"symbol"`
	Samples       int       `json:"samples"`
	Prices        []float64 `json:"prices"`
	Volumes       []float64 `json:"volumes"`
	LatestPrice   float64   `json:"latest_price"`
	LatestVolume  float64   `json:"latest_volume"`
	Confidence    float64   `json:"confidence"`
	SMA           *float64  `json:"sma,omitempty"`
	SMAPeriod     int       `json:"sma_period"`
	RSI           *float64  `json:"rsi,omitempty"`
	RSIPeriod     int       `json:"rsi_period"`
	RangeHigh     float64   `json:"range_high"`
	RangeLow      float64   `json:"range_low"`
	RangePosition float64   `json:"range_position"`
}

// GetSymbol returns the rolling history of one symbol with indicators.
// Query params: sma, rsi (periods).
func (s *Server) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	prices, volumes := s.History.Snapshot(symbol)
	if len(prices) == 0 {
		symbol = strings.ToUpper(symbol)
		prices, volumes = s.History.Snapshot(symbol)
	}
	if len(prices) == 0 {
		respondError(w, http.StatusNotFound, "symbol not tracked")
		return
	}

	resp := symbolResponse{
		Symbol:       symbol,
		Samples:      len(prices),
		Prices:       prices,
		Volumes:      volumes,
		LatestPrice:  prices[len(prices)-1],
		LatestVolume: volumes[len(volumes)-1],
		SMAPeriod:    parsePeriod(r, "sma", defaultSMAPeriod),
		RSIPeriod:    parsePeriod(r, "rsi", calculator.DefaultRSIPeriod),
	}
	resp.Confidence = s.Scorer.Score(resp.LatestPrice, resp.LatestVolume, prices, volumes)

	if sma, err := calculator.CalculateSMA(prices, resp.SMAPeriod); err == nil {
		resp.SMA = &sma
	}
	if rsi, err := calculator.CalculateRSI(prices, resp.RSIPeriod); err == nil {
		resp.RSI = &rsi
	}
	if high, low, err := calculator.CalculateRange(prices, 0); err == nil {
		resp.RangeHigh, resp.RangeLow = high, low
		if pos, err := calculator.RangePosition(resp.LatestPrice, high, low); err == nil {
			resp.RangePosition = pos
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func parsePeriod(r *http.Request, param string, defaultValue int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(param))
	if err != nil || value < 1 {
		return defaultValue
	}
	if value > maxPeriod {
		return maxPeriod
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
		"code":    status,
	})
}
