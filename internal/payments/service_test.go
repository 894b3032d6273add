package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/enrich"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
)

type stubRecorder struct {
	payments []View
	sources  []View
	deleted  int
}

func (s *stubRecorder) RecordPayment(source, persisted View) {
	s.sources = append(s.sources, source)
	s.payments = append(s.payments, persisted)
}

func (s *stubRecorder) RecordPaymentDeletion() { s.deleted++ }

func newRegistry() *resilience.Registry {
	cfg := resilience.DefaultConfig()
	cfg.Retry.BaseDelay = 0
	return resilience.NewRegistry("payment", cfg,
		resilience.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

// newOrderServer answers GET /api/orders/{id}; ids in missing get a 404.
func newOrderServer(t *testing.T, missing map[string]bool) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		if missing[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":` + id + `,"orderDesc":"order ` + id + `","orderFee":25.5}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestService(t *testing.T, missing map[string]bool) (*Service, *int64, *stubRecorder) {
	t.Helper()
	srv, hits := newOrderServer(t, missing)
	metrics := &stubRecorder{}
	svc := NewService(Config{
		Store:    NewMemoryStore(),
		Orders:   remote.NewHTTPLookup[records.Order](remote.NewClient(remote.Options{}), srv.URL+"/api/orders"),
		Registry: newRegistry(),
		Metrics:  metrics,
	})
	return svc, hits, metrics
}

func order(id int64) *records.Order {
	o := records.OrderStub(id)
	return &o
}

func TestService_FindByIDResolvesOrder(t *testing.T) {
	svc, hits, _ := newTestService(t, nil)
	ctx := context.Background()
	if _, err := svc.Save(ctx, View{IsPayed: true, PaymentStatus: StatusCompleted, Order: order(3)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	view, err := svc.FindByID(ctx, 1)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if view.Order == nil || view.Order.OrderDesc != "order 3" || view.Order.OrderFee != 25.5 {
		t.Fatalf("expected enriched order, got %+v", view.Order)
	}
	if atomic.LoadInt64(hits) != 1 {
		t.Fatalf("expected one order lookup, got %d", *hits)
	}
}

func TestService_MissingOrderFailsRead(t *testing.T) {
	svc, hits, _ := newTestService(t, map[string]bool{"404": true})
	ctx := context.Background()
	if _, err := svc.Save(ctx, View{PaymentStatus: StatusInProgress, Order: order(404)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, err := svc.FindByID(ctx, 1)
	var depErr *enrich.DependencyError
	if !errors.As(err, &depErr) || depErr.Dependency != records.DependencyOrder {
		t.Fatalf("expected order dependency error, got %v", err)
	}
	var httpErr *remote.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("expected upstream 404, got %v", err)
	}
	if atomic.LoadInt64(hits) != 1 {
		t.Fatalf("404 must not be retried, got %d lookups", *hits)
	}

	if _, err := svc.FindAll(ctx); !errors.As(err, &depErr) {
		t.Fatalf("expected list to fail too, got %v", err)
	}
}

func TestService_EmptyOrderBodyFailsRead(t *testing.T) {
	bodies := []string{`null`, `{}`, `{"orderId":8,"orderFee":1}`, `{"orderId":7} trailing-garbage`}

	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)

		svc := NewService(Config{
			Store:    NewMemoryStore(),
			Orders:   remote.NewHTTPLookup[records.Order](remote.NewClient(remote.Options{}), srv.URL+"/api/orders"),
			Registry: newRegistry(),
		})
		ctx := context.Background()
		if _, err := svc.Save(ctx, View{PaymentStatus: StatusInProgress, Order: order(7)}); err != nil {
			t.Fatalf("%s: save: %v", body, err)
		}

		view, err := svc.FindByID(ctx, 1)
		var depErr *enrich.DependencyError
		if !errors.As(err, &depErr) || depErr.Dependency != records.DependencyOrder {
			t.Fatalf("%s: expected order dependency error, got %v (view %+v)", body, err, view)
		}
		var decodeErr *remote.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: expected decode error, got %v", body, err)
		}
	}
}

func TestService_MissingPaymentIsNotFound(t *testing.T) {
	svc, hits, _ := newTestService(t, nil)

	if _, err := svc.FindByID(context.Background(), 99); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if atomic.LoadInt64(hits) != 0 {
		t.Fatalf("expected no order lookups, got %d", *hits)
	}
}

func TestService_WritesStayLocal(t *testing.T) {
	svc, hits, metrics := newTestService(t, nil)
	ctx := context.Background()

	in := View{IsPayed: true, PaymentStatus: StatusCompleted, Order: &records.Order{OrderID: 8, OrderFee: 40}}
	saved, err := svc.Save(ctx, in)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.PaymentID != 1 || saved.Order.OrderID != 8 || saved.Order.OrderFee != 0 {
		t.Fatalf("expected local view with order id only, got %+v", saved)
	}

	saved.IsPayed = false
	if _, err := svc.Update(ctx, saved); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, 1); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}

	if atomic.LoadInt64(hits) != 0 {
		t.Fatalf("writes must not reach the order service, got %d lookups", *hits)
	}
	if len(metrics.payments) != 2 || metrics.sources[0].Order.OrderFee != 40 || metrics.deleted != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestService_SaveRejectsInvalidPayments(t *testing.T) {
	svc, _, metrics := newTestService(t, nil)

	if _, err := svc.Save(context.Background(), View{PaymentStatus: StatusCompleted}); !errors.Is(err, enrich.ErrInvalid) {
		t.Fatalf("expected missing order to be invalid, got %v", err)
	}
	if _, err := svc.Save(context.Background(), View{PaymentStatus: "PAID", Order: order(1)}); !errors.Is(err, enrich.ErrInvalid) {
		t.Fatalf("expected unknown status to be invalid, got %v", err)
	}
	if len(metrics.payments) != 0 {
		t.Fatalf("rejected payments must not be recorded")
	}
}
