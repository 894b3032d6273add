package enrich

import (
	"context"
	"errors"

	"storefront/internal/platform/logger"
	"storefront/internal/remote"
	"storefront/internal/resilience"
)

// Requirement says whether an operation can return a view without a dependency.
type Requirement int

const (
	// Optional dependencies degrade to a stub holding only the foreign id.
	Optional Requirement = iota
	// Mandatory dependencies fail the whole operation.
	Mandatory
)

func (r Requirement) String() string {
	if r == Mandatory {
		return "mandatory"
	}
	return "optional"
}

// Requirements maps dependency names to their requirement for one operation.
// Dependencies it does not name are optional.
type Requirements map[string]Requirement

func (r Requirements) Of(dependency string) Requirement {
	return r[dependency]
}

// Dependency resolves foreign references to records of type T owned by another
// service.
type Dependency[T any] struct {
	Name       string
	Lookup     remote.Lookup[T]
	Controller *resilience.Controller
	// Stub builds the degraded record returned for an optional dependency.
	Stub     func(id int64) T
	Observer resilience.Observer
	Logger   *logger.Logger
}

// Resolve fetches the record with the given id under the dependency's
// resilience policies. When every attempt fails an optional dependency yields
// Stub(id) and a mandatory one yields a *DependencyError.
func (d Dependency[T]) Resolve(ctx context.Context, id int64, req Requirement) (T, error) {
	var (
		record T
		err    error
	)
	if id <= 0 {
		err = remote.ErrInvalidID
	} else {
		record, err = d.call(ctx, id)
	}
	if err == nil {
		return record, nil
	}

	var zero T
	// The caller went away; nothing is left to degrade for.
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return zero, err
	}
	if req == Mandatory {
		d.Logger.Error("mandatory dependency failed", "dependency", d.Name, "id", id, "error", err)
		return zero, &DependencyError{Dependency: d.Name, ID: id, Err: err}
	}

	d.Logger.Warn("dependency degraded to stub", "dependency", d.Name, "id", id, "error", err)
	if d.Observer != nil {
		d.Observer.RecordOutcome(d.Name, resilience.OutcomeFallback)
	}
	if d.Stub == nil {
		return zero, nil
	}
	return d.Stub(id), nil
}

func (d Dependency[T]) call(ctx context.Context, id int64) (T, error) {
	if d.Controller == nil {
		return d.Lookup.Lookup(ctx, id)
	}
	return resilience.Call(ctx, d.Controller, func(ctx context.Context) (T, error) {
		return d.Lookup.Lookup(ctx, id)
	})
}
