package resilience

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Controller applies Bulkhead -> Breaker -> Retry to every call made to one
// dependency. Each retry attempt passes through the breaker on its own, so a
// breaker that opens mid-call stops the remaining attempts.
type Controller struct {
	dependency string
	bulkhead   *Bulkhead
	breaker    *Breaker
	retry      RetryPolicy
	limiter    *RateLimiter
	observer   Observer
	tracer     trace.Tracer
}

// ControllerOptions assembles a Controller from already built policies. Any nil
// policy is skipped.
type ControllerOptions struct {
	Dependency string
	Bulkhead   *Bulkhead
	Breaker    *Breaker
	Retry      RetryPolicy
	Limiter    *RateLimiter
	Observer   Observer
	Tracer     trace.Tracer
}

func NewController(opts ControllerOptions) *Controller {
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Controller{
		dependency: opts.Dependency,
		bulkhead:   opts.Bulkhead,
		breaker:    opts.Breaker,
		retry:      opts.Retry,
		limiter:    opts.Limiter,
		observer:   observer,
		tracer:     tracer,
	}
}

func (c *Controller) Dependency() string { return c.dependency }

// State reports the breaker state of this dependency.
func (c *Controller) State() State { return c.breaker.State() }

// Bulkhead exposes the permit pool, nil when unbounded.
func (c *Controller) Bulkhead() *Bulkhead { return c.bulkhead }

// Execute runs fn under the dependency's policies.
func (c *Controller) Execute(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "resilience.execute",
		trace.WithAttributes(attribute.String("dependency", c.dependency)))
	defer span.End()

	release, err := c.bulkhead.Acquire(ctx)
	if err != nil {
		c.finish(span, err)
		return err
	}
	defer release()

	attempts := 0
	err = c.retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.breaker.Execute(func() error {
			attempts++
			c.observer.RecordAttempt(c.dependency)
			return fn(ctx)
		})
	})
	span.SetAttributes(attribute.Int("attempts", attempts))
	c.finish(span, err)
	return err
}

func (c *Controller) finish(span trace.Span, err error) {
	outcome := outcomeOf(err)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.observer.RecordOutcome(c.dependency, outcome)
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, ErrBulkheadFull):
		return OutcomeBulkheadFull
	default:
		return OutcomeFailure
	}
}

// Call runs fn under c and returns its value.
func Call[T any](ctx context.Context, c *Controller, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := c.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
