package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"storefront/internal/favourites"
	"storefront/internal/observability"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/platform/logger"
	"storefront/internal/shipping"
)

// RouterConfig lists the services this process serves; nil ones are not
// mounted.
type RouterConfig struct {
	ServiceName string
	Logger      *logger.Logger
	Metrics     *observability.Metrics

	Payments   *payments.Service
	Shipping   *shipping.Service
	Favourites *favourites.Service
	Carts      *orders.CartService
	Orders     *orders.OrderService
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(Metrics(cfg.Metrics))

	r.GET("/healthcheck", func(c *gin.Context) {
		c.String(nethttp.StatusOK, "ok")
	})

	api := r.Group("/api")
	if cfg.Payments != nil {
		Register[int64, payments.View](api.Group("/payments"), cfg.Payments, IDKey("paymentId"))
	}
	if cfg.Shipping != nil {
		Register[shipping.ItemKey, shipping.View](api.Group("/shippings"), cfg.Shipping, ItemKey())
	}
	if cfg.Favourites != nil {
		Register[favourites.Key, favourites.View](api.Group("/favourites"), cfg.Favourites, FavouriteKey())
	}
	if cfg.Carts != nil {
		Register[int64, orders.CartView](api.Group("/carts"), cfg.Carts, IDKey("cartId"))
	}
	if cfg.Orders != nil {
		Register[int64, orders.OrderView](api.Group("/orders"), cfg.Orders, IDKey("orderId"))
	}
	return r
}
