package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/event"
)

// ErrSequenceGap means the scheduler received an event out of order.
var ErrSequenceGap = errors.New("sequence gap")

// Runner executes the cycles a Scheduler dispatches.
type Runner interface {
	RunCycle(ctx context.Context, userID, symbol string) domain.ExecutionResult
	RunAll(ctx context.Context, userID string, symbols []string, opts ...BatchOption) domain.BatchResult
}

// Scheduler serializes cycle requests through a single consumer goroutine.
// Requests from the auto-trade ticker and from callers are executed one at a
// time, in submission order.
type Scheduler struct {
	inbox   chan event.Event
	nextSeq uint64 // consumer side, owned by Run
	runner  Runner
	pacing  time.Duration
	logger  *slog.Logger

	// Boundary: notified after each finished batch
	onBatch func(domain.BatchResult)

	submitMu sync.Mutex
	seq      uint64

	mu        sync.RWMutex // guards the fields read by Status
	processed uint64
	lastBatch map[string]domain.BatchResult
	lastCycle map[string]domain.ExecutionResult
}

// NewScheduler creates a Scheduler with a buffered inbox.
func NewScheduler(inboxSize int, runner Runner, pacing time.Duration, onBatch func(domain.BatchResult), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		inbox:     make(chan event.Event, inboxSize),
		nextSeq:   1,
		runner:    runner,
		pacing:    pacing,
		logger:    logger.With("module", "scheduler"),
		onBatch:   onBatch,
		lastBatch: make(map[string]domain.BatchResult),
		lastCycle: make(map[string]domain.ExecutionResult),
	}
}

// SubmitCycle queues one cycle. It blocks while the inbox is full.
func (s *Scheduler) SubmitCycle(ctx context.Context, userID, symbol string) (uint64, error) {
	return s.submit(ctx, func(base event.BaseEvent) event.Event {
		return &event.CycleRequested{BaseEvent: base, UserID: userID, Symbol: symbol}
	})
}

// SubmitBatch queues a batch run. It blocks while the inbox is full.
func (s *Scheduler) SubmitBatch(ctx context.Context, userID string, symbols []string) (uint64, error) {
	syms := append([]string(nil), symbols...)
	return s.submit(ctx, func(base event.BaseEvent) event.Event {
		return &event.BatchRequested{BaseEvent: base, UserID: userID, Symbols: syms}
	})
}

func (s *Scheduler) submit(ctx context.Context, build func(event.BaseEvent) event.Event) (uint64, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	ev := build(event.BaseEvent{Seq: s.seq + 1, Ts: time.Now()})
	select {
	case s.inbox <- ev:
		s.seq++
		return ev.GetSeq(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run consumes the inbox until ctx is done. This MUST be run in a single goroutine.
// It stops with ErrSequenceGap if an event arrives out of order.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping...")
			return nil
		case ev := <-s.inbox:
			if err := s.processEvent(ctx, ev); err != nil {
				s.logger.Error("Scheduler halted", slog.Any("error", err))
				return err
			}
		}
	}
}

func (s *Scheduler) processEvent(ctx context.Context, ev event.Event) error {
	if ev.GetSeq() != s.nextSeq {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, s.nextSeq, ev.GetSeq())
	}

	switch e := ev.(type) {
	case *event.CycleRequested:
		res := s.runner.RunCycle(ctx, e.UserID, e.Symbol)
		s.mu.Lock()
		s.lastCycle[e.UserID] = res
		s.mu.Unlock()
	case *event.BatchRequested:
		batch := s.runner.RunAll(ctx, e.UserID, e.Symbols, WithPacing(s.pacing))
		s.mu.Lock()
		s.lastBatch[e.UserID] = batch
		s.mu.Unlock()
		if s.onBatch != nil {
			s.onBatch(batch)
		}
	default:
		s.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	s.nextSeq++
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
	return nil
}

// Every submits a batch of symbols for each user on every tick of interval
// until ctx is done.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, users, symbols []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range users {
				if _, err := s.SubmitBatch(ctx, user, symbols); err != nil {
					return
				}
			}
		}
	}
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Processed  uint64                            `json:"processed"`
	LastBatch  map[string]domain.BatchResult     `json:"last_batch"`
	LastCycle  map[string]domain.ExecutionResult `json:"last_cycle"`
	QueueDepth int                               `json:"queue_depth"`
}

// Status returns a copy of the scheduler state (external read).
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Processed:  s.processed,
		LastBatch:  make(map[string]domain.BatchResult, len(s.lastBatch)),
		LastCycle:  make(map[string]domain.ExecutionResult, len(s.lastCycle)),
		QueueDepth: len(s.inbox),
	}
	for k, v := range s.lastBatch {
		st.LastBatch[k] = v
	}
	for k, v := range s.lastCycle {
		st.LastCycle[k] = v
	}
	return st
}
