package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"

	"storefront/internal/platform/logger"
)

// Store persists the entities a service owns. Get, Update and Delete return an
// error matching ErrNotFound for missing entities.
type Store[K comparable, E any] interface {
	Get(ctx context.Context, key K) (E, error)
	List(ctx context.Context) ([]E, error)
	Save(ctx context.Context, entity E) (E, error)
	Update(ctx context.Context, entity E) (E, error)
	Delete(ctx context.Context, key K) error
}

// Policy is the per-operation enrichment configuration of a service.
type Policy struct {
	FindByID Requirements
	FindAll  Requirements
	// Enabled is read once per read operation; nil means always enabled.
	Enabled func() bool
}

func (p Policy) enabled() bool {
	return p.Enabled == nil || p.Enabled()
}

// Hooks observe successful writes. They only ever see local data.
type Hooks[K comparable, E any] struct {
	Saved   func(E)
	Updated func(E)
	Deleted func(K)
}

// Options configures a Service.
type Options[K comparable, E, V any] struct {
	Name  string
	Store Store[K, E]
	// Local builds a view from local data only.
	Local func(E) V
	// Enrich builds a view, resolving foreign references with the given
	// requirements. It must not modify the entity.
	Enrich func(ctx context.Context, entity E, req Requirements) (V, error)
	Policy Policy
	// Concurrency bounds how many list items are enriched at once.
	Concurrency int
	Hooks       Hooks[K, E]
	Logger      *logger.Logger
}

// Service serves enriched reads and local-only writes for one entity type.
type Service[K comparable, E, V any] struct {
	name        string
	store       Store[K, E]
	local       func(E) V
	enrich      func(context.Context, E, Requirements) (V, error)
	policy      Policy
	concurrency int
	hooks       Hooks[K, E]
	log         *logger.Logger
}

func NewService[K comparable, E, V any](opts Options[K, E, V]) *Service[K, E, V] {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 8
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service[K, E, V]{
		name:        opts.Name,
		store:       opts.Store,
		local:       opts.Local,
		enrich:      opts.Enrich,
		policy:      opts.Policy,
		concurrency: concurrency,
		hooks:       opts.Hooks,
		log:         log.With("service", opts.Name),
	}
}

// FindByID loads the entity and enriches it. A missing entity fails before any
// dependency is contacted.
func (s *Service[K, E, V]) FindByID(ctx context.Context, key K) (V, error) {
	s.log.Info("find by id", "key", key)
	var zero V

	entity, err := s.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if !s.policy.enabled() || s.enrich == nil {
		return s.local(entity), nil
	}
	return s.enrich(ctx, entity, s.policy.FindByID)
}

// FindAll enriches every stored entity concurrently and returns the distinct
// views in storage order.
func (s *Service[K, E, V]) FindAll(ctx context.Context) ([]V, error) {
	s.log.Info("find all")

	entities, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]V, len(entities))
	if !s.policy.enabled() || s.enrich == nil {
		for i, e := range entities {
			views[i] = s.local(e)
		}
		return Dedup(views)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range entities {
		g.Go(func() error {
			v, err := s.enrich(gctx, e, s.policy.FindAll)
			if err != nil {
				return err
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Dedup(views)
}

// Save stores the entity as given; foreign ids are not checked remotely.
func (s *Service[K, E, V]) Save(ctx context.Context, entity E) (V, error) {
	s.log.Info("save")
	var zero V
	saved, err := s.store.Save(ctx, entity)
	if err != nil {
		return zero, err
	}
	if s.hooks.Saved != nil {
		s.hooks.Saved(saved)
	}
	return s.local(saved), nil
}

// Update replaces an existing entity.
func (s *Service[K, E, V]) Update(ctx context.Context, entity E) (V, error) {
	s.log.Info("update")
	var zero V
	updated, err := s.store.Update(ctx, entity)
	if err != nil {
		return zero, err
	}
	if s.hooks.Updated != nil {
		s.hooks.Updated(updated)
	}
	return s.local(updated), nil
}

// Delete removes the entity with the given key.
func (s *Service[K, E, V]) Delete(ctx context.Context, key K) error {
	s.log.Info("delete", "key", key)
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	if s.hooks.Deleted != nil {
		s.hooks.Deleted(key)
	}
	return nil
}
