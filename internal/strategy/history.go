package strategy

import (
	"sync"

	"github.com/shopspring/decimal"
)

// DefaultWindowSize is the number of prices kept per symbol.
const DefaultWindowSize = 10

// priceWindow is a fixed-size ring buffer of the most recent prices of one symbol.
type priceWindow struct {
	mu     sync.Mutex
	prices []decimal.Decimal
	head   int // next write position
	count  int // number of slots filled
}

func newPriceWindow(size int) *priceWindow {
	return &priceWindow{prices: make([]decimal.Decimal, size)}
}

// push inserts price, evicting the oldest one when full, and returns the
// window in chronological order. Caller must hold w.mu.
func (w *priceWindow) push(price decimal.Decimal) []decimal.Decimal {
	size := len(w.prices)
	w.prices[w.head] = price
	w.head = (w.head + 1) % size
	if w.count < size {
		w.count++
	}
	return w.ordered()
}

// ordered returns a copy of the filled slots, oldest first. Caller must hold w.mu.
func (w *priceWindow) ordered() []decimal.Decimal {
	out := make([]decimal.Decimal, w.count)
	size := len(w.prices)
	start := (w.head - w.count + size) % size
	for i := 0; i < w.count; i++ {
		out[i] = w.prices[(start+i)%size]
	}
	return out
}

// PriceHistoryStore keeps a bounded rolling window of prices per symbol.
// It is shared by every user: an observation made for one user's cycle is
// visible to every later cycle on the same symbol.
//
// Observations of the same symbol serialize on that symbol's window lock;
// different symbols only share the brief map lookup.
type PriceHistoryStore struct {
	size    int
	mu      sync.RWMutex
	windows map[string]*priceWindow
}

// NewPriceHistoryStore creates a store keeping size prices per symbol.
// Non-positive sizes fall back to DefaultWindowSize.
func NewPriceHistoryStore(size int) *PriceHistoryStore {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &PriceHistoryStore{
		size:    size,
		windows: make(map[string]*priceWindow),
	}
}

// Size returns the window capacity.
func (s *PriceHistoryStore) Size() int {
	return s.size
}

// Observe appends price to symbol's window and returns the window (including
// price) in chronological order.
func (s *PriceHistoryStore) Observe(symbol string, price decimal.Decimal) []decimal.Decimal {
	w := s.window(symbol)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.push(price)
}

// History returns a copy of symbol's window without modifying it.
func (s *PriceHistoryStore) History(symbol string) []decimal.Decimal {
	s.mu.RLock()
	w, ok := s.windows[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ordered()
}

func (s *PriceHistoryStore) window(symbol string) *priceWindow {
	s.mu.RLock()
	w, ok := s.windows[symbol]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.windows[symbol]; !ok {
		w = newPriceWindow(s.size)
		s.windows[symbol] = w
	}
	return w
}
