package shipping

import (
	"context"

	"storefront/internal/enrich"
	"storefront/internal/platform/logger"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/store"
)

// Config wires a shipping Service.
type Config struct {
	Store    enrich.Store[ItemKey, OrderItem]
	Products remote.Lookup[records.Product]
	Orders   remote.Lookup[records.Order]
	Registry *resilience.Registry
	Observer resilience.Observer
	// EnrichDetails is read on every read; when it reports false items are
	// returned without product or order details.
	EnrichDetails func() bool
	Concurrency   int
	Logger        *logger.Logger
}

// Service serves order items. Product and order details are decoration: when
// either service is degraded the item is returned with an id-only stub.
type Service struct {
	core *enrich.Service[ItemKey, OrderItem, View]
}

func NewService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	products := enrich.Dependency[records.Product]{
		Name:       records.DependencyProduct,
		Lookup:     cfg.Products,
		Controller: cfg.Registry.Controller(records.DependencyProduct),
		Stub:       records.ProductStub,
		Observer:   cfg.Observer,
		Logger:     log,
	}
	orders := enrich.Dependency[records.Order]{
		Name:       records.DependencyOrder,
		Lookup:     cfg.Orders,
		Controller: cfg.Registry.Controller(records.DependencyOrder),
		Stub:       records.OrderStub,
		Observer:   cfg.Observer,
		Logger:     log,
	}

	core := enrich.NewService(enrich.Options[ItemKey, OrderItem, View]{
		Name:  "order-item",
		Store: cfg.Store,
		Local: Local,
		Enrich: func(ctx context.Context, item OrderItem, req enrich.Requirements) (View, error) {
			product, err := products.Resolve(ctx, item.Key.ProductID(), req.Of(records.DependencyProduct))
			if err != nil {
				return View{}, err
			}
			order, err := orders.Resolve(ctx, item.Key.OrderID(), req.Of(records.DependencyOrder))
			if err != nil {
				return View{}, err
			}
			v := Local(item)
			v.Product = &product
			v.Order = &order
			return v, nil
		},
		Policy: enrich.Policy{
			FindByID: enrich.Requirements{},
			FindAll:  enrich.Requirements{},
			Enabled:  cfg.EnrichDetails,
		},
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	return &Service{core: core}
}

func (s *Service) FindByID(ctx context.Context, key ItemKey) (View, error) {
	return s.core.FindByID(ctx, key)
}

func (s *Service) FindAll(ctx context.Context) ([]View, error) {
	return s.core.FindAll(ctx)
}

// Save stores the item; the referenced order and product are not checked.
func (s *Service) Save(ctx context.Context, in View) (View, error) {
	item, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	return s.core.Save(ctx, item)
}

func (s *Service) Update(ctx context.Context, in View) (View, error) {
	item, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	return s.core.Update(ctx, item)
}

func (s *Service) Delete(ctx context.Context, key ItemKey) error {
	return s.core.Delete(ctx, key)
}

// NewMemoryStore keeps order items in process.
func NewMemoryStore() *store.Memory[ItemKey, OrderItem] {
	return store.NewMemory[ItemKey, OrderItem]("OrderItem",
		func(i OrderItem) ItemKey { return i.Key }, nil)
}
