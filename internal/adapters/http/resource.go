package http

import (
	"context"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/enrich"
	"storefront/internal/favourites"
	"storefront/internal/records"
	"storefront/internal/shipping"
)

// Service is the uniform read/write surface every entity service exposes.
type Service[K, V any] interface {
	FindByID(ctx context.Context, key K) (V, error)
	FindAll(ctx context.Context) ([]V, error)
	Save(ctx context.Context, in V) (V, error)
	Update(ctx context.Context, in V) (V, error)
	Delete(ctx context.Context, key K) error
}

// idUpdater is implemented by services that update by path id as well as by body.
type idUpdater[K, V any] interface {
	UpdateByID(ctx context.Context, key K, in V) (V, error)
}

// Collection wraps list responses.
type Collection[V any] struct {
	Collection []V `json:"collection"`
}

// Key describes how a resource key is spelled in the route.
type Key[K any] struct {
	Params []string
	Parse  func(values []string) (K, error)
}

func (k Key[K]) path() string {
	return "/:" + strings.Join(k.Params, "/:")
}

func (k Key[K]) from(c *gin.Context) (K, error) {
	values := make([]string, len(k.Params))
	for i, p := range k.Params {
		values[i] = c.Param(p)
	}
	return k.Parse(values)
}

func IDKey(param string) Key[int64] {
	return Key[int64]{
		Params: []string{param},
		Parse: func(values []string) (int64, error) {
			return parseID(param, values[0])
		},
	}
}

func ItemKey() Key[shipping.ItemKey] {
	return Key[shipping.ItemKey]{
		Params: []string{"orderId", "productId"},
		Parse: func(values []string) (shipping.ItemKey, error) {
			orderID, err := parseID("orderId", values[0])
			if err != nil {
				return shipping.ItemKey{}, err
			}
			productID, err := parseID("productId", values[1])
			if err != nil {
				return shipping.ItemKey{}, err
			}
			return shipping.NewItemKey(orderID, productID)
		},
	}
}

func FavouriteKey() Key[favourites.Key] {
	return Key[favourites.Key]{
		Params: []string{"userId", "productId", "likeDate"},
		Parse: func(values []string) (favourites.Key, error) {
			userID, err := parseID("userId", values[0])
			if err != nil {
				return favourites.Key{}, err
			}
			productID, err := parseID("productId", values[1])
			if err != nil {
				return favourites.Key{}, err
			}
			likeDate, err := records.ParseTimestamp(values[2])
			if err != nil {
				return favourites.Key{}, enrich.Invalidf("likeDate: %v", err)
			}
			return favourites.NewKey(userID, productID, likeDate.Time)
		},
	}
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, enrich.Invalidf("%s must be an integer, got %q", name, raw)
	}
	return id, nil
}

// Register mounts list, get, create, update and delete routes for svc under g.
func Register[K, V any](g *gin.RouterGroup, svc Service[K, V], key Key[K]) {
	r := resource[K, V]{svc: svc, key: key}
	g.GET("", r.list)
	g.GET(key.path(), r.get)
	g.POST("", r.create)
	g.PUT("", r.update)
	if u, ok := svc.(idUpdater[K, V]); ok {
		g.PUT(key.path(), func(c *gin.Context) { r.updateByID(c, u) })
	}
	g.DELETE(key.path(), r.remove)
}

type resource[K, V any] struct {
	svc Service[K, V]
	key Key[K]
}

func (r resource[K, V]) list(c *gin.Context) {
	views, err := r.svc.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if views == nil {
		views = []V{}
	}
	c.JSON(nethttp.StatusOK, Collection[V]{Collection: views})
}

func (r resource[K, V]) get(c *gin.Context) {
	key, err := r.key.from(c)
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := r.svc.FindByID(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, view)
}

func (r resource[K, V]) create(c *gin.Context) {
	var in V
	if err := c.ShouldBindJSON(&in); err != nil {
		respondInvalid(c, err)
		return
	}
	view, err := r.svc.Save(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, view)
}

func (r resource[K, V]) update(c *gin.Context) {
	var in V
	if err := c.ShouldBindJSON(&in); err != nil {
		respondInvalid(c, err)
		return
	}
	view, err := r.svc.Update(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, view)
}

func (r resource[K, V]) updateByID(c *gin.Context, u idUpdater[K, V]) {
	key, err := r.key.from(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var in V
	if err := c.ShouldBindJSON(&in); err != nil {
		respondInvalid(c, err)
		return
	}
	view, err := u.UpdateByID(c.Request.Context(), key, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, view)
}

func (r resource[K, V]) remove(c *gin.Context) {
	key, err := r.key.from(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := r.svc.Delete(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, true)
}
