package favourites

import (
	"context"

	"storefront/internal/enrich"
	"storefront/internal/platform/logger"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/store"
)

type Config struct {
	Store       enrich.Store[Key, Favourite]
	Users       remote.Lookup[records.User]
	Products    remote.Lookup[records.Product]
	Registry    *resilience.Registry
	Observer    resilience.Observer
	Enabled     func() bool
	Concurrency int
	Logger      *logger.Logger
}

// Service serves favourites decorated with their user and product. Both are
// optional: a degraded peer yields id-only stubs.
type Service struct {
	core *enrich.Service[Key, Favourite, View]
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	users := enrich.Dependency[records.User]{
		Name:       records.DependencyUser,
		Lookup:     cfg.Users,
		Controller: cfg.Registry.Controller(records.DependencyUser),
		Stub:       records.UserStub,
		Observer:   cfg.Observer,
		Logger:     log,
	}
	products := enrich.Dependency[records.Product]{
		Name:       records.DependencyProduct,
		Lookup:     cfg.Products,
		Controller: cfg.Registry.Controller(records.DependencyProduct),
		Stub:       records.ProductStub,
		Observer:   cfg.Observer,
		Logger:     log,
	}

	core := enrich.NewService(enrich.Options[Key, Favourite, View]{
		Name:  "favourite",
		Store: cfg.Store,
		Local: Local,
		Enrich: func(ctx context.Context, f Favourite, req enrich.Requirements) (View, error) {
			user, err := users.Resolve(ctx, f.Key.UserID(), req.Of(records.DependencyUser))
			if err != nil {
				return View{}, err
			}
			product, err := products.Resolve(ctx, f.Key.ProductID(), req.Of(records.DependencyProduct))
			if err != nil {
				return View{}, err
			}
			v := Local(f)
			v.User = &user
			v.Product = &product
			return v, nil
		},
		Policy:      enrich.Policy{Enabled: cfg.Enabled},
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	return &Service{core: core}
}

func (s *Service) FindByID(ctx context.Context, key Key) (View, error) {
	return s.core.FindByID(ctx, key)
}

func (s *Service) FindAll(ctx context.Context) ([]View, error) {
	return s.core.FindAll(ctx)
}

func (s *Service) Save(ctx context.Context, in View) (View, error) {
	f, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	return s.core.Save(ctx, f)
}

func (s *Service) Update(ctx context.Context, in View) (View, error) {
	f, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	return s.core.Update(ctx, f)
}

func (s *Service) Delete(ctx context.Context, key Key) error {
	return s.core.Delete(ctx, key)
}

func NewMemoryStore() *store.Memory[Key, Favourite] {
	return store.NewMemory[Key, Favourite]("Favourite",
		func(f Favourite) Key { return f.Key }, nil)
}
