package shipping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/enrich"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
)

type lookupCounter struct {
	mu    sync.Mutex
	calls map[int64]int
}

func (c *lookupCounter) hit(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[int64]int{}
	}
	c.calls[id]++
}

func (c *lookupCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type harness struct {
	svc         *Service
	registry    *resilience.Registry
	products    *lookupCounter
	orders      *lookupCounter
	productErr  error
	enrichItems bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 3}
	cfg.Breaker.MinCalls = 3
	h := &harness{
		products:    &lookupCounter{},
		orders:      &lookupCounter{},
		enrichItems: true,
		registry: resilience.NewRegistry("shipping", cfg,
			resilience.WithClock(func() time.Time { return now }),
			resilience.WithSleep(func(context.Context, time.Duration) error { return nil })),
	}
	h.svc = NewService(Config{
		Store: NewMemoryStore(),
		Products: remote.LookupFunc[records.Product](func(ctx context.Context, id int64) (records.Product, error) {
			h.products.hit(id)
			if h.productErr != nil {
				return records.Product{}, h.productErr
			}
			return records.Product{ProductID: id, ProductTitle: fmt.Sprintf("P%d", id)}, nil
		}),
		Orders: remote.LookupFunc[records.Order](func(ctx context.Context, id int64) (records.Order, error) {
			h.orders.hit(id)
			return records.Order{OrderID: id, OrderDesc: "desc"}, nil
		}),
		Registry:      h.registry,
		EnrichDetails: func() bool { return h.enrichItems },
	})
	return h
}

func (h *harness) save(t *testing.T, orderID, productID int64, qty int) {
	t.Helper()
	if _, err := h.svc.Save(context.Background(), View{OrderID: orderID, ProductID: productID, OrderedQuantity: qty}); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func key(t *testing.T, orderID, productID int64) ItemKey {
	t.Helper()
	k, err := NewItemKey(orderID, productID)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return k
}

func TestFindAll_ProductTitlesInInsertionOrder(t *testing.T) {
	h := newHarness(t)
	h.save(t, 7, 1, 1)
	h.save(t, 7, 2, 2)
	h.save(t, 7, 3, 3)

	views, err := h.svc.FindAll(context.Background())
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(views))
	}
	for i, v := range views {
		if v.ProductID != int64(i+1) || v.Product.ProductTitle != fmt.Sprintf("P%d", i+1) {
			t.Fatalf("view %d: unexpected %+v", i, v.Product)
		}
		if v.Order.OrderDesc != "desc" {
			t.Fatalf("view %d: expected order details", i)
		}
	}
	for id := int64(1); id <= 3; id++ {
		if h.products.calls[id] != 1 {
			t.Fatalf("expected one lookup for product %d, got %d", id, h.products.calls[id])
		}
	}
}

func TestFindByID_UnreachableProductDegradesToStub(t *testing.T) {
	h := newHarness(t)
	h.save(t, 7, 1, 4)
	h.productErr = remote.ErrReadTimeout
	k := key(t, 7, 1)

	for i := 0; i < 3; i++ {
		view, err := h.svc.FindByID(context.Background(), k)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if view.Product.ProductID != 1 || view.Product.ProductTitle != "" {
			t.Fatalf("call %d: expected stub, got %+v", i, view.Product)
		}
		if view.Order.OrderDesc != "desc" {
			t.Fatalf("call %d: order should still resolve", i)
		}
	}
	if h.products.total() != 3 {
		t.Fatalf("expected three attempts then open circuit, got %d", h.products.total())
	}
	if h.registry.Controller(records.DependencyProduct).State() != resilience.StateOpen {
		t.Fatalf("expected product circuit open")
	}
}

func TestFindByID_MissingItemMakesNoCalls(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.FindByID(context.Background(), key(t, 1, 1))
	if !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if h.products.total()+h.orders.total() != 0 {
		t.Fatalf("expected no lookups")
	}
}

func TestEnrichDetailsToggle(t *testing.T) {
	h := newHarness(t)
	h.save(t, 7, 1, 1)
	h.enrichItems = false

	view, err := h.svc.FindByID(context.Background(), key(t, 7, 1))
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if view.Product.ProductTitle != "" || view.Order.OrderDesc != "" {
		t.Fatalf("expected ids only, got %+v", view)
	}
	if h.products.total()+h.orders.total() != 0 {
		t.Fatalf("disabled enrichment must not call dependencies")
	}
}

func TestWrites_DoNotCallDependencies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	saved, err := h.svc.Save(ctx, View{Order: &records.Order{OrderID: 9}, Product: &records.Product{ProductID: 10}, OrderedQuantity: 2})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.OrderID != 9 || saved.ProductID != 10 {
		t.Fatalf("expected ids from nested records, got %+v", saved)
	}
	saved.OrderedQuantity = 5
	if _, err := h.svc.Update(ctx, saved); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.svc.Delete(ctx, key(t, 9, 10)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.products.total()+h.orders.total() != 0 {
		t.Fatalf("writes must not call dependencies")
	}
}

func TestNewItemKey_RejectsPartialKeys(t *testing.T) {
	if _, err := NewItemKey(1, 0); !errors.Is(err, enrich.ErrInvalid) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	a, _ := NewItemKey(1, 2)
	b, _ := NewItemKey(1, 2)
	if a != b {
		t.Fatalf("keys with equal parts must compare equal")
	}
}
