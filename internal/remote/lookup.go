package remote

import "context"

// Lookup resolves one remote record of type T by its id.
type Lookup[T any] interface {
	Lookup(ctx context.Context, id int64) (T, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc[T any] func(ctx context.Context, id int64) (T, error)

func (f LookupFunc[T]) Lookup(ctx context.Context, id int64) (T, error) {
	return f(ctx, id)
}

// Fetcher is the transport HTTPLookup depends on; *Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string, id int64, out any) error
}

// HTTPLookup resolves records of type T from GET {baseURL}/{id}.
type HTTPLookup[T any] struct {
	fetcher Fetcher
	baseURL string
}

func NewHTTPLookup[T any](fetcher Fetcher, baseURL string) *HTTPLookup[T] {
	return &HTTPLookup[T]{fetcher: fetcher, baseURL: baseURL}
}

// Identified is implemented by records that carry their own id. HTTPLookup uses
// it to reject bodies that decode but describe a different or empty record.
type Identified interface {
	ID() int64
}

func (l *HTTPLookup[T]) Lookup(ctx context.Context, id int64) (T, error) {
	var out, zero T
	if err := l.fetcher.Fetch(ctx, l.baseURL, id, &out); err != nil {
		return zero, err
	}
	if rec, ok := any(out).(Identified); ok && rec.ID() != id {
		return zero, &DecodeError{
			URL: URL(l.baseURL, id),
			Err: &IDMismatchError{Want: id, Got: rec.ID()},
		}
	}
	return out, nil
}

// BaseURL returns the dependency base URL this lookup targets.
func (l *HTTPLookup[T]) BaseURL() string { return l.baseURL }
