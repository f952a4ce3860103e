package history

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"CryptoSentinel/internal/model"
)

// DefaultCapacity keeps 24 hours of 5-minute samples.
const DefaultCapacity = 288

// ErrInvalidSample is returned when a price or volume is NaN or infinite.
var ErrInvalidSample = errors.New("invalid sample")

// Store keeps a bounded rolling history of samples per symbol.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring
}

// NewStore creates a Store holding at most capacity samples per symbol.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, series: make(map[string]*ring)}
}

// Capacity returns the per-symbol sample limit.
func (s *Store) Capacity() int { return s.capacity }

// Record appends a sample for symbol, evicting the oldest one when the
// history is full. Non-finite input is rejected without touching the store.
func (s *Store) Record(symbol string, price, volume float64) error {
	if !finite(price) || !finite(volume) {
		return fmt.Errorf("%w: %s price=%v volume=%v", ErrInvalidSample, symbol, price, volume)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[symbol]
	if !ok {
		r = newRing(s.capacity)
		s.series[symbol] = r
	}
	r.push(model.Sample{Price: price, Volume: volume})
	return nil
}

// Prices returns the symbol's prices, oldest first.
func (s *Store) Prices(symbol string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.prices()
	}
	return []float64{}
}

// Volumes returns the symbol's volumes, oldest first.
func (s *Store) Volumes(symbol string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.volumes()
	}
	return []float64{}
}

// Snapshot returns both series read under a single lock.
func (s *Store) Snapshot(symbol string) (prices, volumes []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.prices(), r.volumes()
	}
	return []float64{}, []float64{}
}

func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.len()
	}
	return 0
}

// Symbols returns every tracked symbol in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clear drops the history of one symbol.
func (s *Store) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, symbol)
}

// ClearAll drops every history.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string]*ring)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
