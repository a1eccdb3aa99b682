package infra

import (
	"net/http"
	"sync/atomic"
	"time"

	"stock_go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics keeps process-wide counters. The atomic fields back Snapshot and
// the statistics log line; every update is mirrored into a Prometheus
// registry served by Handler.
type Metrics struct {
	// Decisions
	buyDecisions  atomic.Uint64
	sellDecisions atomic.Uint64
	holdDecisions atomic.Uint64
	fallbacks     atomic.Uint64

	// Cycles
	cyclesTotal     atomic.Uint64
	cycleFailures   atomic.Uint64
	tradesExecuted  atomic.Uint64
	simulatedPrices atomic.Uint64
	errorsTotal     atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	circuitOpen       atomic.Int32 // 1 = open, 0 = closed

	registry      *prometheus.Registry
	decisionsVec  *prometheus.CounterVec
	cyclesVec     *prometheus.CounterVec
	tradesVec     *prometheus.CounterVec
	simulatedCtr  prometheus.Counter
	errorsCtr     prometheus.Counter
	cycleDuration prometheus.Histogram
	connections   prometheus.Gauge
	breakerOpen   prometheus.Gauge
}

// NewMetrics creates a Metrics with its own Prometheus registry, including
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.decisionsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_decisions_total",
		Help: "Final trading decisions by action and origin",
	}, []string{"action", "fallback"})
	m.cyclesVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cycles_total",
		Help: "Trading cycles by outcome",
	}, []string{"status"})
	m.tradesVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_trades_total",
		Help: "Executed trades by action",
	}, []string{"action"})
	m.simulatedCtr = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_simulated_prices_total",
		Help: "Snapshots served from the simulated price source",
	})
	m.errorsCtr = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_errors_total",
		Help: "Unexpected errors",
	})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_cycle_duration_seconds",
		Help:    "Trading cycle latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
	m.connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stock_stream_connections",
		Help: "Open market data stream connections",
	})
	m.breakerOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stock_predictor_breaker_open",
		Help: "1 when the predictor circuit breaker is open",
	})

	reg.MustRegister(m.decisionsVec, m.cyclesVec, m.tradesVec, m.simulatedCtr,
		m.errorsCtr, m.cycleDuration, m.connections, m.breakerOpen)
	return m
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = NewMetrics()

// RecordDecision counts one final decision. Fallback decisions also count
// toward their action.
func (m *Metrics) RecordDecision(action domain.Action, fallback bool) {
	switch action {
	case domain.ActionBuy:
		m.buyDecisions.Add(1)
	case domain.ActionSell:
		m.sellDecisions.Add(1)
	default:
		m.holdDecisions.Add(1)
	}
	origin := "false"
	if fallback {
		m.fallbacks.Add(1)
		origin = "true"
	}
	m.decisionsVec.WithLabelValues(action.String(), origin).Inc()
}

// RecordCycle records a finished cycle with its latency.
func (m *Metrics) RecordCycle(latency time.Duration, success bool) {
	m.cyclesTotal.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
	m.cycleDuration.Observe(latency.Seconds())

	status := "success"
	if !success {
		m.cycleFailures.Add(1)
		status = "failed"
	}
	m.cyclesVec.WithLabelValues(status).Inc()
}

// RecordTrade records an executed trade (HOLD included).
func (m *Metrics) RecordTrade(action domain.Action) {
	m.tradesExecuted.Add(1)
	m.tradesVec.WithLabelValues(action.String()).Inc()
}

// RecordSimulatedPrice records a snapshot that fell back to a simulated price.
func (m *Metrics) RecordSimulatedPrice() {
	m.simulatedPrices.Add(1)
	m.simulatedCtr.Inc()
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
	m.errorsCtr.Inc()
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
	m.connections.Inc()
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
	m.connections.Dec()
}

// SetCircuitState sets the circuit breaker state (true = open).
func (m *Metrics) SetCircuitState(open bool) {
	if open {
		m.circuitOpen.Store(1)
		m.breakerOpen.Set(1)
	} else {
		m.circuitOpen.Store(0)
		m.breakerOpen.Set(0)
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	BuyDecisions      uint64
	SellDecisions     uint64
	HoldDecisions     uint64
	Fallbacks         uint64
	CyclesTotal       uint64
	CycleFailures     uint64
	TradesExecuted    uint64
	SimulatedPrices   uint64
	ErrorsTotal       uint64
	AvgCycleLatency   time.Duration
	ActiveConnections int32
	CircuitOpen       bool
	Timestamp         time.Time
}

// TotalDecisions is the number of decisions of any action.
func (s MetricsSnapshot) TotalDecisions() uint64 {
	return s.BuyDecisions + s.SellDecisions + s.HoldDecisions
}

// DecisionShare returns the percentage of decisions that were action, 0 before any decision.
func (s MetricsSnapshot) DecisionShare(action domain.Action) float64 {
	total := s.TotalDecisions()
	if total == 0 {
		return 0
	}
	var n uint64
	switch action {
	case domain.ActionBuy:
		n = s.BuyDecisions
	case domain.ActionSell:
		n = s.SellDecisions
	default:
		n = s.HoldDecisions
	}
	return float64(n) * 100 / float64(total)
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency time.Duration
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = time.Duration(m.latencySumNs.Load() / int64(count))
	}

	return MetricsSnapshot{
		BuyDecisions:      m.buyDecisions.Load(),
		SellDecisions:     m.sellDecisions.Load(),
		HoldDecisions:     m.holdDecisions.Load(),
		Fallbacks:         m.fallbacks.Load(),
		CyclesTotal:       m.cyclesTotal.Load(),
		CycleFailures:     m.cycleFailures.Load(),
		TradesExecuted:    m.tradesExecuted.Load(),
		SimulatedPrices:   m.simulatedPrices.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgCycleLatency:   avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		CircuitOpen:       m.circuitOpen.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears the atomic counters (for testing). Prometheus series are cumulative and kept.
func (m *Metrics) Reset() {
	m.buyDecisions.Store(0)
	m.sellDecisions.Store(0)
	m.holdDecisions.Store(0)
	m.fallbacks.Store(0)
	m.cyclesTotal.Store(0)
	m.cycleFailures.Store(0)
	m.tradesExecuted.Store(0)
	m.simulatedPrices.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.circuitOpen.Store(0)
}
