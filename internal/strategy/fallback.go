package strategy

import (
	"math/rand/v2"
	"sync"

	"stock_go/internal/domain"
)

// Fallback reasons. They are fixed so trade logs can tell fallback decisions apart.
const (
	FallbackReasonBuy  = "Fallback strategy: technical indicators point to possible growth"
	FallbackReasonSell = "Fallback strategy: taking profit on a technical signal"
	FallbackReasonHold = "Fallback strategy: waiting for a clearer signal"
)

// RandomSource yields uniform values in [0,1).
type RandomSource interface {
	Float64() float64
}

// lockedRand makes a seeded *rand.Rand safe for concurrent cycles.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRandomSource returns a concurrency-safe source seeded with seed.
// The same seed always yields the same sequence.
func NewRandomSource(seed uint64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// SystemRandom uses the runtime's global generator.
var SystemRandom RandomSource = globalRand{}

// fallbackChoice is the heuristic's pick: an action with a [0,1) confidence.
type fallbackChoice struct {
	action     domain.Action
	confidence float64
	reason     string
}

// chooseFallback draws the branch and then the confidence from rng.
//
//	r < 0.3        BUY,  confidence in [0.60, 0.75)
//	0.3 <= r < 0.6 SELL, confidence in [0.60, 0.75)
//	r >= 0.6       HOLD, confidence in [0.50, 0.70)
func chooseFallback(rng RandomSource) fallbackChoice {
	r := rng.Float64()
	switch {
	case r < 0.3:
		return fallbackChoice{domain.ActionBuy, 0.60 + rng.Float64()*0.15, FallbackReasonBuy}
	case r < 0.6:
		return fallbackChoice{domain.ActionSell, 0.60 + rng.Float64()*0.15, FallbackReasonSell}
	default:
		return fallbackChoice{domain.ActionHold, 0.50 + rng.Float64()*0.20, FallbackReasonHold}
	}
}
