package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"storefront/cmd/server/config"
	favouritesdb "storefront/internal/db/favourites"
	paymentsdb "storefront/internal/db/payments"
	"storefront/internal/favourites"
	"storefront/internal/observability"
	"storefront/internal/payments"
	"storefront/internal/realtime"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/store"
)

func TestBuildStores_MemoryWithoutDatabaseURL(t *testing.T) {
	stores, cleanup, err := buildStores(context.Background(), config.AppConfig{ServiceName: config.ServiceOrder}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if stores.carts == nil || stores.orders == nil {
		t.Fatalf("expected memory stores, got %+v", stores)
	}
	if stores.payments != nil {
		t.Fatalf("payment store must not be built for the order service")
	}
}

func TestBuildStores_PostgresInitializesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	prev := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" || dsn != "postgres://db/payments" {
			t.Fatalf("unexpected open %s %s", driver, dsn)
		}
		return db, nil
	}
	t.Cleanup(func() { openDB = prev })

	stores, cleanup, err := buildStores(context.Background(), config.AppConfig{
		ServiceName: config.ServicePayment,
		DatabaseURL: "postgres://db/payments",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stores.payments.(*paymentsdb.PostgresStore); !ok {
		t.Fatalf("expected postgres store, got %T", stores.payments)
	}
	cleanup()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBuildStores_SchemaFailureClosesDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS payments").WillReturnError(errors.New("boom"))
	mock.ExpectClose()

	prev := openDB
	openDB = func(string, string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })

	_, _, err = buildStores(context.Background(), config.AppConfig{
		ServiceName: config.ServicePayment,
		DatabaseURL: "postgres://db/payments",
	}, nil)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBuildStores_FavouritesUseRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	stores, cleanup, err := buildStores(context.Background(), config.AppConfig{ServiceName: config.ServiceFavourite}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if _, ok := stores.favourites.(*favouritesdb.RedisStore); !ok {
		t.Fatalf("expected redis store, got %T", stores.favourites)
	}
}

func TestBuildStores_FavouritesWithoutRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	stores, cleanup, err := buildStores(context.Background(), config.AppConfig{ServiceName: config.ServiceFavourite}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if _, ok := stores.favourites.(*store.Memory[favourites.Key, favourites.Favourite]); !ok {
		t.Fatalf("expected memory store, got %T", stores.favourites)
	}
}

func TestDependenciesOf(t *testing.T) {
	cases := map[string]int{
		config.ServicePayment:   1,
		config.ServiceShipping:  2,
		config.ServiceFavourite: 2,
		config.ServiceOrder:     1,
		"unknown":               0,
	}
	for service, want := range cases {
		if got := len(dependenciesOf(service)); got != want {
			t.Fatalf("%s: expected %d dependencies, got %d", service, want, got)
		}
	}
}

func TestBuildServices_MountsSelectedService(t *testing.T) {
	registry := resilience.NewRegistry(config.ServicePayment, resilience.DefaultConfig())
	routes := buildServices(config.ServicePayment, serviceDeps{
		stores:   serviceStores{payments: payments.NewMemoryStore()},
		client:   remote.NewClient(remote.Options{}),
		remote:   config.RemoteConfig{OrderURL: "http://orders.invalid"},
		enrich:   config.EnrichConfig{Enabled: true},
		registry: registry,
		prom:     observability.NewPrometheus(config.ServicePayment),
	})
	if routes.Payments == nil {
		t.Fatalf("expected payment service")
	}
	if routes.Shipping != nil || routes.Favourites != nil || routes.Carts != nil || routes.Orders != nil {
		t.Fatalf("only the payment service should be mounted: %+v", routes)
	}
}

func TestObservabilityMux_Circuits(t *testing.T) {
	registry := resilience.NewRegistry(config.ServiceShipping, resilience.DefaultConfig())
	registry.Controller("product")
	hub := realtime.NewHub(registry.States, nil)
	mux := observabilityMux(observability.NewMetrics(), observability.NewPrometheus(config.ServiceShipping), hub, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/circuits", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var states []resilience.DependencyState
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(states) != 1 || states[0].Dependency != "product" || states[0].State != resilience.StateClosed {
		t.Fatalf("unexpected states %+v", states)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected prometheus status %d", rec.Code)
	}
}

func TestDependencyHealth_ReflectsBreakerState(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpcpkg.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	h := newDependencyHealth(healthServer, []string{"order"})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcpkg.NewClient("passthrough:///bufnet",
		grpcpkg.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpcpkg.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check(healthPrefix + "order"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}

	h.Observe(resilience.StateChange{Dependency: "order", From: resilience.StateClosed, To: resilience.StateOpen})
	if got := check(healthPrefix + "order"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status must stay SERVING, got %v", got)
	}

	h.Observe(resilience.StateChange{Dependency: "order", From: resilience.StateHalfOpen, To: resilience.StateClosed})
	if got := check(healthPrefix + "order"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING after close, got %v", got)
	}
}
