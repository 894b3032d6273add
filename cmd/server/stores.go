package main

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"storefront/cmd/server/config"
	favouritesdb "storefront/internal/db/favourites"
	ordersdb "storefront/internal/db/orders"
	paymentsdb "storefront/internal/db/payments"
	shippingdb "storefront/internal/db/shipping"
	"storefront/internal/enrich"
	"storefront/internal/favourites"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/platform/logger"
	"storefront/internal/shipping"
)

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// serviceStores holds the store of every entity the selected service owns.
type serviceStores struct {
	payments   enrich.Store[int64, payments.Payment]
	shipping   enrich.Store[shipping.ItemKey, shipping.OrderItem]
	favourites enrich.Store[favourites.Key, favourites.Favourite]
	carts      enrich.Store[int64, orders.Cart]
	orders     enrich.Store[int64, orders.Order]
}

// buildStores opens Postgres when DATABASE_URL is set and Redis for
// favourites when REDIS_URL is set. Anything left unset is served from memory.
func buildStores(ctx context.Context, app config.AppConfig, log *logger.Logger) (serviceStores, func(), error) {
	var (
		out      serviceStores
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (serviceStores, func(), error) {
		cleanup()
		return serviceStores{}, nil, err
	}

	if app.ServiceName == config.ServiceFavourite {
		if strings.TrimSpace(os.Getenv("REDIS_URL")) == "" {
			log.Warn("REDIS_URL not set, favourites are kept in memory")
			out.favourites = favourites.NewMemoryStore()
			return out, cleanup, nil
		}
		cfg, err := config.LoadRedis()
		if err != nil {
			return fail(err)
		}
		client, err := openRedis(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				log.Warn("close redis", "error", err)
			}
		})
		out.favourites = favouritesdb.NewRedisStore(client, cfg.KeyPrefix)
		return out, cleanup, nil
	}

	if app.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, records are kept in memory", "service", app.ServiceName)
		switch app.ServiceName {
		case config.ServicePayment:
			out.payments = payments.NewMemoryStore()
		case config.ServiceShipping:
			out.shipping = shipping.NewMemoryStore()
		case config.ServiceOrder:
			out.carts = orders.NewMemoryCartStore()
			out.orders = orders.NewMemoryOrderStore()
		}
		return out, cleanup, nil
	}

	db, err := openDB("pgx", app.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() {
		if err := db.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	})

	switch app.ServiceName {
	case config.ServicePayment:
		s, err := paymentsdb.NewPostgresStoreWithSchema(ctx, db)
		if err != nil {
			return fail(err)
		}
		out.payments = s
	case config.ServiceShipping:
		s, err := shippingdb.NewPostgresStoreWithSchema(ctx, db)
		if err != nil {
			return fail(err)
		}
		out.shipping = s
	case config.ServiceOrder:
		carts, ords, err := ordersdb.NewStoresWithSchema(ctx, db)
		if err != nil {
			return fail(err)
		}
		out.carts, out.orders = carts, ords
	}
	return out, cleanup, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	if cfg.EnableOTel {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, err
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	pingCtx := ctx
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
