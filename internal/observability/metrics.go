// Package observability aggregates saga run metrics and serves them as a
// JSON snapshot.
package observability

import (
	"sync"
	"time"

	"orderflow/internal/saga"
)

// StepSnapshot is the exported view of one step's accumulated stats.
type StepSnapshot struct {
	Count         int64   `json:"count"`
	Failures      int64   `json:"failures"`
	Compensations int64   `json:"compensations"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the exported view of the whole process.
type Snapshot struct {
	UptimeSec       int64                   `json:"uptime_sec"`
	RunsStarted     int64                   `json:"runs_started"`
	RunsInFlight    int64                   `json:"runs_in_flight"`
	Outcomes        map[string]int64        `json:"outcomes"`
	Compensations   int64                   `json:"compensations"`
	RateLimitWaits  int64                   `json:"rate_limit_waits"`
	RateLimitWaitMs int64                   `json:"rate_limit_wait_ms"`
	Steps           map[string]StepSnapshot `json:"steps"`
}

type stepStats struct {
	count         int64
	failures      int64
	compensations int64
	totalLatency  time.Duration
	maxLatency    time.Duration
	lastLatency   time.Duration
}

// Metrics accumulates saga run statistics. All methods are safe on a nil
// receiver so callers can leave metrics unconfigured.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	steps          map[string]*stepStats
	runsStarted    int64
	runsInFlight   int64
	outcomes       map[saga.Status]int64
	compensations  int64
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

// NewMetrics constructs an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		start:    time.Now(),
		steps:    make(map[string]*stepStats),
		outcomes: make(map[saga.Status]int64),
	}
}

// EventSink returns a saga event sink feeding this Metrics.
func (m *Metrics) EventSink() saga.EventSink {
	return func(ev saga.Event) {
		if m == nil {
			return
		}
		switch ev.Type {
		case saga.EventRunStarted:
			m.runStarted()
		case saga.EventStepSucceeded:
			m.stepFinished(ev.Step, ev.Elapsed, false)
		case saga.EventStepFailed:
			m.stepFinished(ev.Step, ev.Elapsed, true)
		case saga.EventCompensationApplied:
			m.compensationApplied(ev.Step)
		case saga.EventRunFinished:
			if ev.Outcome != nil {
				m.runFinished(ev.Outcome.Status)
			}
		}
	}
}

// AddRateLimitWait records time spent queued behind the ingress rate limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the accumulated stats.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:       int64(time.Since(m.start).Seconds()),
		RunsStarted:     m.runsStarted,
		RunsInFlight:    m.runsInFlight,
		Outcomes:        make(map[string]int64, len(m.outcomes)),
		Compensations:   m.compensations,
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
		Steps:           make(map[string]StepSnapshot, len(m.steps)),
	}

	for status, n := range m.outcomes {
		snap.Outcomes[string(status)] = n
	}
	for step, stats := range m.steps {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Steps[step] = StepSnapshot{
			Count:         stats.count,
			Failures:      stats.failures,
			Compensations: stats.compensations,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
	}
	return snap
}

func (m *Metrics) runStarted() {
	m.mu.Lock()
	m.runsStarted++
	m.runsInFlight++
	m.mu.Unlock()
}

func (m *Metrics) runFinished(status saga.Status) {
	m.mu.Lock()
	m.outcomes[status]++
	if m.runsInFlight > 0 {
		m.runsInFlight--
	}
	m.mu.Unlock()
}

func (m *Metrics) stepFinished(step string, dur time.Duration, failed bool) {
	m.mu.Lock()
	stats := m.ensureStep(step)
	stats.count++
	if failed {
		stats.failures++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}

func (m *Metrics) compensationApplied(step string) {
	m.mu.Lock()
	m.compensations++
	m.ensureStep(step).compensations++
	m.mu.Unlock()
}

func (m *Metrics) ensureStep(step string) *stepStats {
	stats, ok := m.steps[step]
	if !ok {
		stats = &stepStats{}
		m.steps[step] = stats
	}
	return stats
}
