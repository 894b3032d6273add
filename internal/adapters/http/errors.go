package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/enrich"
	"storefront/internal/remote"
	"storefront/internal/resilience"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	// Upstream is the status a peer answered with, when a mandatory
	// dependency failed with an HTTP error.
	Upstream int `json:"upstream,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// mapError picks the response status and code for a service error.
func mapError(err error) (int, APIError) {
	apiErr := APIError{Message: err.Error()}

	var depErr *enrich.DependencyError
	var httpErr *remote.HTTPError
	switch {
	case errors.Is(err, enrich.ErrNotFound):
		apiErr.Code = "not_found"
		return nethttp.StatusNotFound, apiErr
	case errors.Is(err, enrich.ErrInvalid):
		apiErr.Code = "invalid_request"
		return nethttp.StatusBadRequest, apiErr
	case errors.Is(err, context.Canceled):
		apiErr.Code = "canceled"
		return 499, apiErr
	case !errors.As(err, &depErr):
		apiErr.Code = "internal"
		return nethttp.StatusInternalServerError, apiErr
	case errors.Is(err, resilience.ErrCircuitOpen):
		apiErr.Code = "circuit_open"
		return nethttp.StatusServiceUnavailable, apiErr
	case errors.Is(err, resilience.ErrBulkheadFull):
		apiErr.Code = "bulkhead_full"
		return nethttp.StatusServiceUnavailable, apiErr
	case remote.IsTimeout(err):
		apiErr.Code = "dependency_timeout"
		return nethttp.StatusGatewayTimeout, apiErr
	case errors.As(err, &httpErr):
		apiErr.Code = "dependency_error"
		apiErr.Upstream = httpErr.Status
		return nethttp.StatusBadGateway, apiErr
	default:
		apiErr.Code = "dependency_error"
		return nethttp.StatusBadGateway, apiErr
	}
}

func respondError(c *gin.Context, err error) {
	status, apiErr := mapError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: apiErr})
}

func respondInvalid(c *gin.Context, err error) {
	c.AbortWithStatusJSON(nethttp.StatusBadRequest, ErrorEnvelope{Error: APIError{
		Message: err.Error(),
		Code:    "invalid_request",
	}})
}
