package payments

import (
	"context"

	"storefront/internal/enrich"
	"storefront/internal/platform/logger"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/store"
)

// Recorder observes payment writes.
type Recorder interface {
	// RecordPayment receives the request body and the stored result.
	RecordPayment(source, persisted View)
	RecordPaymentDeletion()
}

type nopRecorder struct{}

func (nopRecorder) RecordPayment(View, View) {}
func (nopRecorder) RecordPaymentDeletion()   {}

// Config wires a payment Service.
type Config struct {
	Store       enrich.Store[int64, Payment]
	Orders      remote.Lookup[records.Order]
	Registry    *resilience.Registry
	Observer    resilience.Observer
	Metrics     Recorder
	Enabled     func() bool
	Concurrency int
	Logger      *logger.Logger
}

// Service serves payments. A payment without its order total is meaningless,
// so the order dependency is mandatory on every read.
type Service struct {
	core    *enrich.Service[int64, Payment, View]
	metrics Recorder
}

func NewService(cfg Config) *Service {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	orders := enrich.Dependency[records.Order]{
		Name:       records.DependencyOrder,
		Lookup:     cfg.Orders,
		Controller: cfg.Registry.Controller(records.DependencyOrder),
		Stub:       records.OrderStub,
		Observer:   cfg.Observer,
		Logger:     log,
	}
	mandatory := enrich.Requirements{records.DependencyOrder: enrich.Mandatory}

	core := enrich.NewService(enrich.Options[int64, Payment, View]{
		Name:  "payment",
		Store: cfg.Store,
		Local: Local,
		Enrich: func(ctx context.Context, p Payment, req enrich.Requirements) (View, error) {
			order, err := orders.Resolve(ctx, p.OrderID, req.Of(records.DependencyOrder))
			if err != nil {
				return View{}, err
			}
			v := Local(p)
			v.Order = &order
			return v, nil
		},
		Policy: enrich.Policy{
			FindByID: mandatory,
			FindAll:  mandatory,
			Enabled:  cfg.Enabled,
		},
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	return &Service{core: core, metrics: metrics}
}

func (s *Service) FindByID(ctx context.Context, id int64) (View, error) {
	return s.core.FindByID(ctx, id)
}

func (s *Service) FindAll(ctx context.Context) ([]View, error) {
	return s.core.FindAll(ctx)
}

func (s *Service) Save(ctx context.Context, in View) (View, error) {
	p, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	p.PaymentID = 0
	saved, err := s.core.Save(ctx, p)
	if err != nil {
		return View{}, err
	}
	s.metrics.RecordPayment(in, saved)
	return saved, nil
}

func (s *Service) Update(ctx context.Context, in View) (View, error) {
	p, err := in.Entity()
	if err != nil {
		return View{}, err
	}
	updated, err := s.core.Update(ctx, p)
	if err != nil {
		return View{}, err
	}
	s.metrics.RecordPayment(in, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.core.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordPaymentDeletion()
	return nil
}

// NewMemoryStore keeps payments in process, numbering them from 1.
func NewMemoryStore() *store.Memory[int64, Payment] {
	return store.NewMemory("Payment",
		func(p Payment) int64 { return p.PaymentID },
		func(p Payment, next int64) (Payment, bool) {
			if p.PaymentID != 0 {
				return p, false
			}
			p.PaymentID = next
			return p, true
		})
}
