package orders

import (
	"context"
	"time"

	"storefront/internal/enrich"
	"storefront/internal/platform/logger"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/store"
)

type CartConfig struct {
	Store       enrich.Store[int64, Cart]
	Users       remote.Lookup[records.User]
	Registry    *resilience.Registry
	Observer    resilience.Observer
	Enabled     func() bool
	Concurrency int
	Logger      *logger.Logger
}

// CartService serves carts with their owner. A failed user lookup fails the
// read rather than returning an anonymous cart.
type CartService struct {
	core *enrich.Service[int64, Cart, CartView]
}

func NewCartService(cfg CartConfig) *CartService {
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
	mandatory := enrich.Requirements{records.DependencyUser: enrich.Mandatory}
	core := enrich.NewService(enrich.Options[int64, Cart, CartView]{
		Name:  "cart",
		Store: cfg.Store,
		Local: LocalCart,
		Enrich: func(ctx context.Context, c Cart, req enrich.Requirements) (CartView, error) {
			user, err := users.Resolve(ctx, c.UserID, req.Of(records.DependencyUser))
			if err != nil {
				return CartView{}, err
			}
			v := LocalCart(c)
			v.User = &user
			return v, nil
		},
		Policy:      enrich.Policy{FindByID: mandatory, FindAll: mandatory, Enabled: cfg.Enabled},
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	return &CartService{core: core}
}

func (s *CartService) FindByID(ctx context.Context, id int64) (CartView, error) {
	return s.core.FindByID(ctx, id)
}

func (s *CartService) FindAll(ctx context.Context) ([]CartView, error) {
	return s.core.FindAll(ctx)
}

func (s *CartService) Save(ctx context.Context, in CartView) (CartView, error) {
	c, err := in.Entity()
	if err != nil {
		return CartView{}, err
	}
	c.CartID = 0
	return s.core.Save(ctx, c)
}

func (s *CartService) Update(ctx context.Context, in CartView) (CartView, error) {
	c, err := in.Entity()
	if err != nil {
		return CartView{}, err
	}
	return s.core.Update(ctx, c)
}

func (s *CartService) Delete(ctx context.Context, id int64) error {
	return s.core.Delete(ctx, id)
}

// Recorder observes order writes.
type Recorder interface {
	RecordOrderCreated(OrderView)
	RecordOrderUpdated(OrderView)
	RecordOrderDeleted()
}

type nopRecorder struct{}

func (nopRecorder) RecordOrderCreated(OrderView) {}
func (nopRecorder) RecordOrderUpdated(OrderView) {}
func (nopRecorder) RecordOrderDeleted()          {}

type OrderConfig struct {
	Store   enrich.Store[int64, Order]
	Metrics Recorder
	Now     func() time.Time
	Logger  *logger.Logger
}

// OrderService serves orders. Everything an order shows is owned locally, so
// no read leaves the process.
type OrderService struct {
	core    *enrich.Service[int64, Order, OrderView]
	metrics Recorder
	now     func() time.Time
}

func NewOrderService(cfg OrderConfig) *OrderService {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &OrderService{metrics: metrics, now: now}
	s.core = enrich.NewService(enrich.Options[int64, Order, OrderView]{
		Name:   "order",
		Store:  cfg.Store,
		Local:  LocalOrder,
		Logger: cfg.Logger,
		Hooks: enrich.Hooks[int64, Order]{
			Saved:   func(o Order) { metrics.RecordOrderCreated(LocalOrder(o)) },
			Updated: func(o Order) { metrics.RecordOrderUpdated(LocalOrder(o)) },
			Deleted: func(int64) { metrics.RecordOrderDeleted() },
		},
	})
	return s
}

func (s *OrderService) FindByID(ctx context.Context, id int64) (OrderView, error) {
	return s.core.FindByID(ctx, id)
}

func (s *OrderService) FindAll(ctx context.Context) ([]OrderView, error) {
	return s.core.FindAll(ctx)
}

// Save stores a new order, stamping it with the current time when no order
// date is given.
func (s *OrderService) Save(ctx context.Context, in OrderView) (OrderView, error) {
	o, err := in.Entity()
	if err != nil {
		return OrderView{}, err
	}
	o.OrderID = 0
	if o.OrderDate.IsZero() {
		o.OrderDate = records.NewTimestamp(s.now())
	}
	return s.core.Save(ctx, o)
}

func (s *OrderService) Update(ctx context.Context, in OrderView) (OrderView, error) {
	o, err := in.Entity()
	if err != nil {
		return OrderView{}, err
	}
	return s.core.Update(ctx, o)
}

// UpdateByID applies in to the order stored under id, failing with NotFound
// when there is none.
func (s *OrderService) UpdateByID(ctx context.Context, id int64, in OrderView) (OrderView, error) {
	current, err := s.core.FindByID(ctx, id)
	if err != nil {
		return OrderView{}, err
	}
	in.OrderID = id
	if in.OrderDate.IsZero() {
		in.OrderDate = current.OrderDate
	}
	return s.Update(ctx, in)
}

func (s *OrderService) Delete(ctx context.Context, id int64) error {
	return s.core.Delete(ctx, id)
}

func NewMemoryCartStore() *store.Memory[int64, Cart] {
	return store.NewMemory("Cart",
		func(c Cart) int64 { return c.CartID },
		func(c Cart, next int64) (Cart, bool) {
			if c.CartID != 0 {
				return c, false
			}
			c.CartID = next
			return c, true
		})
}

func NewMemoryOrderStore() *store.Memory[int64, Order] {
	return store.NewMemory("Order",
		func(o Order) int64 { return o.OrderID },
		func(o Order, next int64) (Order, bool) {
			if o.OrderID != 0 {
				return o, false
			}
			o.OrderID = next
			return o, true
		})
}
