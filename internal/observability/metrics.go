package observability

import (
	"sync"
	"time"

	"storefront/internal/resilience"
)

type MethodSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// DependencySnapshot counts calls to one remote dependency.
type DependencySnapshot struct {
	Attempts int64                        `json:"attempts"`
	Outcomes map[resilience.Outcome]int64 `json:"outcomes"`
}

type Snapshot struct {
	UptimeSec       int64                         `json:"uptime_sec"`
	TotalRequests   int64                         `json:"total_requests"`
	TotalErrors     int64                         `json:"total_errors"`
	InFlight        int64                         `json:"in_flight"`
	RateLimitWaits  int64                         `json:"rate_limit_waits"`
	RateLimitWaitMs int64                         `json:"rate_limit_wait_ms"`
	Lifecycle       *LifecycleSnapshot            `json:"lifecycle,omitempty"`
	Methods         map[string]MethodSnapshot     `json:"methods"`
	Dependencies    map[string]DependencySnapshot `json:"dependencies"`
}

type methodStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

type dependencyStats struct {
	attempts int64
	outcomes map[resilience.Outcome]int64
}

// Metrics keeps in-process counters for served methods and remote
// dependencies. It implements resilience.Observer.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	now            func() time.Time
	methods        map[string]*methodStats
	deps           map[string]*dependencyStats
	rateLimitWaits int64
	rateLimitWait  time.Duration
	lifecycle      lifecycleStats
}

type CallSpan struct {
	metrics *Metrics
	method  string
	start   time.Time
}

type lifecycleStats struct {
	shutdownAt time.Time
	inflight   int64
}

type LifecycleSnapshot struct {
	ShutdownAt         time.Time `json:"shutdown_at"`
	InFlightAtShutdown int64     `json:"inflight_at_shutdown"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:   time.Now(),
		now:     time.Now,
		methods: make(map[string]*methodStats),
		deps:    make(map[string]*dependencyStats),
	}
}

func (m *Metrics) Start(method string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureMethod(method)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		method:  method,
		start:   m.now(),
	}
}

func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := s.metrics.now().Sub(s.start)
	s.metrics.finish(s.method, dur, err != nil)
}

func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

func (m *Metrics) RecordAttempt(dependency string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.ensureDependency(dependency).attempts++
	m.mu.Unlock()
}

func (m *Metrics) RecordOutcome(dependency string, outcome resilience.Outcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.ensureDependency(dependency).outcomes[outcome]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	snap := Snapshot{
		UptimeSec:       int64(now.Sub(m.start).Seconds()),
		Methods:         make(map[string]MethodSnapshot),
		Dependencies:    make(map[string]DependencySnapshot),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for method, stats := range m.methods {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Methods[method] = MethodSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	for name, stats := range m.deps {
		outcomes := make(map[resilience.Outcome]int64, len(stats.outcomes))
		for o, n := range stats.outcomes {
			outcomes[o] = n
		}
		snap.Dependencies[name] = DependencySnapshot{Attempts: stats.attempts, Outcomes: outcomes}
	}

	if !m.lifecycle.shutdownAt.IsZero() {
		snap.Lifecycle = &LifecycleSnapshot{
			ShutdownAt:         m.lifecycle.shutdownAt,
			InFlightAtShutdown: m.lifecycle.inflight,
		}
	}

	return snap
}

func (m *Metrics) ensureMethod(method string) *methodStats {
	stats, ok := m.methods[method]
	if !ok {
		stats = &methodStats{}
		m.methods[method] = stats
	}
	return stats
}

func (m *Metrics) ensureDependency(name string) *dependencyStats {
	stats, ok := m.deps[name]
	if !ok {
		stats = &dependencyStats{outcomes: make(map[resilience.Outcome]int64)}
		m.deps[name] = stats
	}
	return stats
}

func (m *Metrics) finish(method string, dur time.Duration, failed bool) {
	m.mu.Lock()
	stats := m.ensureMethod(method)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}

func (m *Metrics) MarkShutdown(inflight int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lifecycle.shutdownAt = m.now()
	m.lifecycle.inflight = inflight
	m.mu.Unlock()
}
