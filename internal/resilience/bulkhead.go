package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull is returned when no permit for a dependency is available.
var ErrBulkheadFull = errors.New("bulkhead full")

// Bulkhead bounds concurrent in-flight calls to one dependency. A nil Bulkhead
// admits everything.
type Bulkhead struct {
	sem      *semaphore.Weighted
	max      int64
	maxWait  time.Duration
	inFlight atomic.Int64
}

// NewBulkhead returns nil when maxConcurrent is not positive.
func NewBulkhead(maxConcurrent int, maxWait time.Duration) *Bulkhead {
	if maxConcurrent <= 0 {
		return nil
	}
	return &Bulkhead{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a permit. With no MaxWait it never queues; otherwise it waits at
// most MaxWait before giving up with ErrBulkheadFull.
func (b *Bulkhead) Acquire(ctx context.Context) (func(), error) {
	if b == nil {
		return func() {}, nil
	}
	if b.maxWait <= 0 {
		if !b.sem.TryAcquire(1) {
			return nil, ErrBulkheadFull
		}
		return b.admitted(), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrBulkheadFull
	}
	return b.admitted(), nil
}

func (b *Bulkhead) admitted() func() {
	b.inFlight.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			b.inFlight.Add(-1)
			b.sem.Release(1)
		}
	}
}

// InFlight reports how many permits are currently held.
func (b *Bulkhead) InFlight() int {
	if b == nil {
		return 0
	}
	return int(b.inFlight.Load())
}

// Capacity reports the permit pool size, 0 for an unbounded bulkhead.
func (b *Bulkhead) Capacity() int {
	if b == nil {
		return 0
	}
	return int(b.max)
}
