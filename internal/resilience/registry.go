package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/remote"
)

// StateChange describes one breaker transition.
type StateChange struct {
	Service    string    `json:"service"`
	Dependency string    `json:"dependency"`
	From       State     `json:"from"`
	To         State     `json:"to"`
	At         time.Time `json:"at"`
}

// DependencyState is a point-in-time view of one dependency's controller.
type DependencyState struct {
	Dependency string `json:"dependency"`
	State      State  `json:"state"`
	InFlight   int    `json:"inFlight"`
}

// Registry owns the process-wide controller of every dependency a service calls.
// Controllers are created on first use and live for the rest of the process.
type Registry struct {
	service   string
	defaults  Config
	overrides map[string]Config
	observer  Observer
	listeners []func(StateChange)
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	jitter    func(time.Duration) time.Duration
	tracer    trace.Tracer
	retryable func(error) bool
	isFailure func(error) bool

	mu          sync.RWMutex
	controllers map[string]*Controller
}

type Option func(*Registry)

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithOverrides replaces the defaults for the named dependencies.
func WithOverrides(overrides map[string]Config) Option {
	return func(r *Registry) {
		for name, cfg := range overrides {
			r.overrides[name] = cfg
		}
	}
}

func WithStateListener(fn func(StateChange)) Option {
	return func(r *Registry) {
		if fn != nil {
			r.listeners = append(r.listeners, fn)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSleep replaces the retry backoff sleeper and disables jitter.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Registry) {
		r.sleep = sleep
		r.jitter = func(d time.Duration) time.Duration { return d }
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// WithClassifier replaces the retry and breaker-failure classification of errors.
func WithClassifier(retryable, isFailure func(error) bool) Option {
	return func(r *Registry) {
		if retryable != nil {
			r.retryable = retryable
		}
		if isFailure != nil {
			r.isFailure = isFailure
		}
	}
}

func NewRegistry(service string, defaults Config, opts ...Option) *Registry {
	r := &Registry{
		service:     service,
		defaults:    defaults,
		overrides:   make(map[string]Config),
		now:         time.Now,
		tracer:      otel.Tracer("storefront/resilience"),
		retryable:   remote.Retryable,
		isFailure:   IsBreakerFailure,
		controllers: make(map[string]*Controller),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	return r
}

// Service names the service whose calls this registry guards.
func (r *Registry) Service() string { return r.service }

// Controller returns the controller for dependency, creating it on first use.
func (r *Registry) Controller(dependency string) *Controller {
	r.mu.RLock()
	c, ok := r.controllers[dependency]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[dependency]; ok {
		return c
	}
	c = r.build(dependency)
	r.controllers[dependency] = c
	return c
}

// ConfigFor returns the effective policy for dependency.
func (r *Registry) ConfigFor(dependency string) Config {
	if cfg, ok := r.overrides[dependency]; ok {
		return cfg
	}
	return r.defaults
}

func (r *Registry) build(dependency string) *Controller {
	cfg := r.ConfigFor(dependency)
	breaker := NewBreaker(BreakerConfig{
		Window:         cfg.Breaker.Window,
		MinCalls:       cfg.Breaker.MinCalls,
		FailureRatio:   cfg.Breaker.FailureRatio,
		Cooldown:       cfg.Breaker.Cooldown,
		HalfOpenProbes: cfg.Breaker.HalfOpenProbes,
		Now:            r.now,
		IsFailure:      r.isFailure,
		OnStateChange: func(from, to State) {
			r.publish(StateChange{
				Service:    r.service,
				Dependency: dependency,
				From:       from,
				To:         to,
				At:         r.now(),
			})
		},
	})
	limiter := NewRateLimiter(cfg.RateLimit.Interval, cfg.RateLimit.Burst)
	if limiter != nil {
		limiter.now = r.now
		limiter.last = r.now()
		if r.sleep != nil {
			limiter.sleep = r.sleep
		}
	}
	return NewController(ControllerOptions{
		Dependency: dependency,
		Bulkhead:   NewBulkhead(cfg.Bulkhead.MaxConcurrent, cfg.Bulkhead.MaxWait),
		Breaker:    breaker,
		Retry: RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Jitter:      r.jitter,
			Sleep:       r.sleep,
			ShouldRetry: r.retryable,
		},
		Limiter:  limiter,
		Observer: r.observer,
		Tracer:   r.tracer,
	})
}

func (r *Registry) publish(change StateChange) {
	for _, fn := range r.listeners {
		fn(change)
	}
}

// States lists every dependency seen so far, sorted by name.
func (r *Registry) States() []DependencyState {
	r.mu.RLock()
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]DependencyState, 0, len(names))
	for _, name := range names {
		c := r.Controller(name)
		out = append(out, DependencyState{
			Dependency: name,
			State:      c.State(),
			InFlight:   c.bulkhead.InFlight(),
		})
	}
	return out
}

// IsBreakerFailure counts everything except cancellation and 4xx answers: a peer
// that rejects a lookup is still healthy.
func IsBreakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !remote.IsClientError(err)
}
