// Package metrics is an in-process collector for the oracle's counters,
// gauges, operation timers, error rates and component health.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TimerMetric summarises recorded durations
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// ErrorRateMetric summarises outcomes of an operation
type ErrorRateMetric struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

type timer struct {
	count, totalMs, minMs, maxMs int64
}

type errorRate struct {
	total, errors int64
}

// Metrics is safe for concurrent use. Series are created on first use.
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*int64
	gauges     map[string]*int64
	health     map[string]*int64
	timers     map[string]*timer
	errorRates map[string]*errorRate
	startTime  time.Time
}

// NewMetrics creates an empty collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		health:     make(map[string]*int64),
		timers:     make(map[string]*timer),
		errorRates: make(map[string]*errorRate),
		startTime:  time.Now(),
	}
}

// series returns the entry for name, creating it under the write lock when
// missing.
func series[T any](m *Metrics, set map[string]*T, name string, init func() *T) *T {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = init()
		set[name] = v
	}
	return v
}

func newInt64() *int64 { return new(int64) }

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	atomic.AddInt64(series(m, m.counters, name, newInt64), 1)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	atomic.StoreInt64(series(m, m.gauges, name, newInt64), value)
}

// SetHealth records whether a component is healthy
func (m *Metrics) SetHealth(component string, healthy bool) {
	var v int64
	if healthy {
		v = 1
	}
	atomic.StoreInt64(series(m, m.health, component, newInt64), v)
}

// RecordTimer records a timing measurement
func (m *Metrics) RecordTimer(name string, durationMs int64) {
	t := series(m, m.timers, name, func() *timer { return &timer{minMs: math.MaxInt64} })

	atomic.AddInt64(&t.count, 1)
	atomic.AddInt64(&t.totalMs, durationMs)
	for cur := atomic.LoadInt64(&t.minMs); durationMs < cur; cur = atomic.LoadInt64(&t.minMs) {
		if atomic.CompareAndSwapInt64(&t.minMs, cur, durationMs) {
			break
		}
	}
	for cur := atomic.LoadInt64(&t.maxMs); durationMs > cur; cur = atomic.LoadInt64(&t.maxMs) {
		if atomic.CompareAndSwapInt64(&t.maxMs, cur, durationMs) {
			break
		}
	}
}

// RecordSuccess records a successful operation
func (m *Metrics) RecordSuccess(name string) { m.recordOutcome(name, false) }

// RecordError records a failed operation
func (m *Metrics) RecordError(name string) { m.recordOutcome(name, true) }

func (m *Metrics) recordOutcome(name string, failed bool) {
	er := series(m, m.errorRates, name, func() *errorRate { return &errorRate{} })
	atomic.AddInt64(&er.total, 1)
	if failed {
		atomic.AddInt64(&er.errors, 1)
	}
}

func snapshot(m *Metrics, set map[string]*int64) map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(set))
	for name, v := range set {
		out[name] = atomic.LoadInt64(v)
	}
	return out
}

// GetCounters returns all counters
func (m *Metrics) GetCounters() map[string]int64 { return snapshot(m, m.counters) }

// GetGauges returns all gauges
func (m *Metrics) GetGauges() map[string]int64 { return snapshot(m, m.gauges) }

// GetHealthChecks returns all component health flags
func (m *Metrics) GetHealthChecks() map[string]bool {
	out := make(map[string]bool)
	for name, v := range snapshot(m, m.health) {
		out[name] = v > 0
	}
	return out
}

// GetTimers returns all timers
func (m *Metrics) GetTimers() map[string]TimerMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]TimerMetric, len(m.timers))
	for name, t := range m.timers {
		tm := TimerMetric{
			Count:       atomic.LoadInt64(&t.count),
			TotalTimeMs: atomic.LoadInt64(&t.totalMs),
			MinTimeMs:   atomic.LoadInt64(&t.minMs),
			MaxTimeMs:   atomic.LoadInt64(&t.maxMs),
		}
		if tm.Count > 0 {
			tm.AverageTimeMs = float64(tm.TotalTimeMs) / float64(tm.Count)
		}
		out[name] = tm
	}
	return out
}

// GetErrorRates returns all error rates as percentages
func (m *Metrics) GetErrorRates() map[string]ErrorRateMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ErrorRateMetric, len(m.errorRates))
	for name, er := range m.errorRates {
		r := ErrorRateMetric{
			Total:  atomic.LoadInt64(&er.total),
			Errors: atomic.LoadInt64(&er.errors),
		}
		if r.Total > 0 {
			r.ErrorRate = float64(r.Errors) / float64(r.Total) * 100.0
		}
		out[name] = r
	}
	return out
}

// GetAllMetrics returns every series in one document
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"counters":       m.GetCounters(),
		"gauges":         m.GetGauges(),
		"timers":         m.GetTimers(),
		"error_rates":    m.GetErrorRates(),
		"health_checks":  m.GetHealthChecks(),
	}
}
