package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the position of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	case "HALF_OPEN":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("unknown breaker state %q", text)
	}
	return nil
}

// BreakerConfig configures a rolling-window circuit breaker.
type BreakerConfig struct {
	// Window is the number of most recent outcomes the failure ratio is computed over.
	Window int
	// MinCalls is how many outcomes the window must hold before the breaker may open.
	MinCalls       int
	FailureRatio   float64
	Cooldown       time.Duration
	HalfOpenProbes int
	Now            func() time.Time
	// IsFailure decides whether an error counts against the window. Errors it
	// rejects are recorded as successes.
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
}

// Breaker tracks the failure ratio of the last Window calls. It opens once the
// ratio reaches FailureRatio, rejects calls for Cooldown, then lets up to
// HalfOpenProbes trial calls through. Any failed probe reopens it; when every
// probe succeeds it closes again.
type Breaker struct {
	mu        sync.Mutex
	window    int
	minCalls  int
	ratio     float64
	cooldown  time.Duration
	probes    int
	now       func() time.Time
	isFailure func(error) bool
	onChange  func(from, to State)

	state      State
	generation uint64
	outcomes   []bool
	next       int
	count      int
	failures   int
	openedAt   time.Time
	inFlight   int
	succeeded  int
}

// NewBreaker constructs a breaker, filling zero fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	window := cfg.Window
	if window < 1 {
		window = 10
	}
	minCalls := cfg.MinCalls
	if minCalls < 1 {
		minCalls = 1
	}
	if minCalls > window {
		minCalls = window
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	probes := cfg.HalfOpenProbes
	if probes < 1 {
		probes = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	isFailure := cfg.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{
		window:    window,
		minCalls:  minCalls,
		ratio:     ratio,
		cooldown:  cooldown,
		probes:    probes,
		now:       now,
		isFailure: isFailure,
		onChange:  cfg.OnStateChange,
		state:     StateClosed,
		outcomes:  make([]bool, window),
	}
}

// State reports the current state, moving an expired OPEN breaker to HALF_OPEN.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	from := b.state
	b.expire(b.now())
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return to
}

// Execute runs fn if the breaker admits the call and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	gen, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(gen, err)
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	from := b.state
	b.expire(b.now())

	var err error
	switch b.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight+b.succeeded >= b.probes {
			err = ErrCircuitOpen
		} else {
			b.inFlight++
		}
	}
	gen, to := b.generation, b.state
	b.mu.Unlock()

	b.notify(from, to)
	return gen, err
}

func (b *Breaker) record(gen uint64, callErr error) {
	failed := callErr != nil && b.isFailure(callErr)

	b.mu.Lock()
	from := b.state
	// An outcome admitted under an earlier state no longer describes the peer.
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	now := b.now()
	switch b.state {
	case StateClosed:
		b.push(failed)
		if b.count >= b.minCalls && float64(b.failures)/float64(b.count) >= b.ratio {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.inFlight--
		if failed {
			b.transition(StateOpen, now)
			break
		}
		b.succeeded++
		if b.succeeded >= b.probes {
			b.transition(StateClosed, now)
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) expire(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cooldown {
		b.transition(StateHalfOpen, now)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State, now time.Time) {
	b.state = to
	b.generation++
	b.inFlight = 0
	b.succeeded = 0
	switch to {
	case StateOpen:
		b.openedAt = now
	case StateClosed:
		b.reset()
	}
}

func (b *Breaker) push(failed bool) {
	if b.count == b.window {
		if b.outcomes[b.next] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.outcomes[b.next] = failed
	if failed {
		b.failures++
	}
	b.next = (b.next + 1) % b.window
}

func (b *Breaker) reset() {
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	b.next = 0
	b.count = 0
	b.failures = 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}
