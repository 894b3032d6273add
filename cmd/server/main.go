package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront/cmd/server/config"
	httpadapter "storefront/internal/adapters/http"
	"storefront/internal/favourites"
	"storefront/internal/observability"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/platform/logger"
	"storefront/internal/realtime"
	"storefront/internal/records"
	"storefront/internal/remote"
	"storefront/internal/resilience"
	"storefront/internal/shipping"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	app, err := config.LoadApp()
	if err != nil {
		return err
	}
	lg, err := logger.New(app.LogMode)
	if err != nil {
		return err
	}
	defer lg.Sync()
	lg = lg.With("service", app.ServiceName)

	shutdownTracing := observability.InitTracing(ctx, lg, app.ServiceName)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			lg.Warn("otel shutdown", "error", err)
		}
	}()

	remoteCfg, err := config.LoadRemote(app.ServiceName)
	if err != nil {
		return err
	}
	enrichCfg, err := config.LoadEnrich()
	if err != nil {
		return err
	}
	defaults, overrides, err := config.LoadResilience()
	if err != nil {
		return err
	}
	grpcCfg, err := config.LoadGRPC()
	if err != nil {
		return err
	}
	obsCfg, err := config.LoadObservability()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	prom := observability.NewPrometheus(app.ServiceName)
	observer := resilience.Observers(metrics, prom)

	healthServer := health.NewServer()
	depHealth := newDependencyHealth(healthServer, dependenciesOf(app.ServiceName))

	var registry *resilience.Registry
	hub := realtime.NewHub(func() []resilience.DependencyState { return registry.States() }, lg)
	registry = resilience.NewRegistry(app.ServiceName, defaults,
		resilience.WithOverrides(overrides),
		resilience.WithObserver(observer),
		resilience.WithStateListener(prom.ObserveState),
		resilience.WithStateListener(hub.Publish),
		resilience.WithStateListener(depHealth.Observe),
		resilience.WithStateListener(func(c resilience.StateChange) {
			lg.Warn("circuit state changed", "dependency", c.Dependency, "from", c.From, "to", c.To)
		}),
	)
	for _, dep := range dependenciesOf(app.ServiceName) {
		prom.SetState(dep, registry.Controller(dep).State())
	}

	stores, cleanupStores, err := buildStores(ctx, app, lg)
	if err != nil {
		return err
	}
	defer cleanupStores()

	client := remote.NewClient(remote.Options{
		ConnectTimeout: remoteCfg.ConnectTimeout,
		ReadTimeout:    remoteCfg.ReadTimeout,
	})
	routes := buildServices(app.ServiceName, serviceDeps{
		stores:   stores,
		client:   client,
		remote:   remoteCfg,
		enrich:   enrichCfg,
		registry: registry,
		observer: observer,
		prom:     prom,
		log:      lg,
	})
	routes.ServiceName = app.ServiceName
	routes.Logger = lg
	routes.Metrics = metrics

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	httpSrv := &http.Server{
		Addr:              app.HTTPAddr,
		Handler:           httpadapter.NewRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", app.GRPCAddr)
	if err != nil {
		return err
	}
	limiter := newIngressLimiter(grpcCfg.RateLimitInterval, grpcCfg.RateLimitBurst, metrics)
	grpcSrv := grpcpkg.NewServer(
		grpcpkg.UnaryInterceptor(rateLimitUnaryInterceptor(limiter, metrics, lg)),
		grpcpkg.StreamInterceptor(rateLimitStreamInterceptor(limiter, metrics, lg)),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)
	if app.AppEnv != "production" {
		reflection.Register(grpcSrv)
		lg.Info("gRPC reflection enabled", "app_env", app.AppEnv)
	}

	obsSrv := &http.Server{
		Addr:              obsCfg.Addr,
		Handler:           observabilityMux(metrics, prom, hub, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 3)
	go func() {
		lg.Info("http server listening", "addr", app.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		lg.Info("grpc server listening", "addr", app.GRPCAddr)
		errCh <- grpcSrv.Serve(lis)
	}()
	go func() {
		if err := obsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("observability server error", "error", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	metrics.MarkShutdown(metrics.Snapshot().InFlight)
	depHealth.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	_ = obsSrv.Shutdown(shutdownCtx)
	lg.Info("server stopped")
	return runErr
}

// dependenciesOf lists the peers a service resolves references against.
func dependenciesOf(service string) []string {
	switch service {
	case config.ServicePayment:
		return []string{records.DependencyOrder}
	case config.ServiceShipping:
		return []string{records.DependencyProduct, records.DependencyOrder}
	case config.ServiceFavourite:
		return []string{records.DependencyUser, records.DependencyProduct}
	case config.ServiceOrder:
		return []string{records.DependencyUser}
	}
	return nil
}

type serviceDeps struct {
	stores   serviceStores
	client   *remote.Client
	remote   config.RemoteConfig
	enrich   config.EnrichConfig
	registry *resilience.Registry
	observer resilience.Observer
	prom     *observability.Prometheus
	log      *logger.Logger
}

// buildServices constructs the services selected by name and returns the
// router config that mounts them.
func buildServices(service string, d serviceDeps) httpadapter.RouterConfig {
	enabled := func() bool { return d.enrich.Enabled }
	var out httpadapter.RouterConfig
	switch service {
	case config.ServicePayment:
		out.Payments = payments.NewService(payments.Config{
			Store:       d.stores.payments,
			Orders:      remote.NewHTTPLookup[records.Order](d.client, d.remote.OrderURL),
			Registry:    d.registry,
			Observer:    d.observer,
			Metrics:     d.prom,
			Enabled:     enabled,
			Concurrency: d.enrich.Concurrency,
			Logger:      d.log,
		})
	case config.ServiceShipping:
		out.Shipping = shipping.NewService(shipping.Config{
			Store:         d.stores.shipping,
			Products:      remote.NewHTTPLookup[records.Product](d.client, d.remote.ProductURL),
			Orders:        remote.NewHTTPLookup[records.Order](d.client, d.remote.OrderURL),
			Registry:      d.registry,
			Observer:      d.observer,
			EnrichDetails: func() bool { return d.enrich.Enabled && d.enrich.OrderItemDetails },
			Concurrency:   d.enrich.Concurrency,
			Logger:        d.log,
		})
	case config.ServiceFavourite:
		out.Favourites = favourites.NewService(favourites.Config{
			Store:       d.stores.favourites,
			Users:       remote.NewHTTPLookup[records.User](d.client, d.remote.UserURL),
			Products:    remote.NewHTTPLookup[records.Product](d.client, d.remote.ProductURL),
			Registry:    d.registry,
			Observer:    d.observer,
			Enabled:     enabled,
			Concurrency: d.enrich.Concurrency,
			Logger:      d.log,
		})
	case config.ServiceOrder:
		out.Carts = orders.NewCartService(orders.CartConfig{
			Store:       d.stores.carts,
			Users:       remote.NewHTTPLookup[records.User](d.client, d.remote.UserURL),
			Registry:    d.registry,
			Observer:    d.observer,
			Enabled:     enabled,
			Concurrency: d.enrich.Concurrency,
			Logger:      d.log,
		})
		out.Orders = orders.NewOrderService(orders.OrderConfig{
			Store:   d.stores.orders,
			Metrics: d.prom,
			Logger:  d.log,
		})
	}
	return out
}

func observabilityMux(metrics *observability.Metrics, prom *observability.Prometheus, hub *realtime.Hub, registry *resilience.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))
	mux.Handle("/metrics/prometheus", prom.Handler())
	mux.Handle("/ws/circuits", hub)
	mux.HandleFunc("/circuits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(registry.States())
	})
	return mux
}
