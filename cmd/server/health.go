package main

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"storefront/internal/resilience"
)

const healthPrefix = "storefront.dependency."

// dependencyHealth mirrors breaker states into the gRPC health service: a
// dependency whose breaker is OPEN reports NOT_SERVING under its own name.
// The overall status stays SERVING since reads degrade rather than stop.
type dependencyHealth struct {
	server *health.Server
}

func newDependencyHealth(server *health.Server, deps []string) *dependencyHealth {
	h := &dependencyHealth{server: server}
	for _, dep := range deps {
		server.SetServingStatus(healthPrefix+dep, healthpb.HealthCheckResponse_SERVING)
	}
	server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}

func (h *dependencyHealth) Observe(change resilience.StateChange) {
	status := healthpb.HealthCheckResponse_SERVING
	if change.To == resilience.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(healthPrefix+change.Dependency, status)
}

// Shutdown flips every status to NOT_SERVING so probes drain traffic first.
func (h *dependencyHealth) Shutdown() {
	h.server.Shutdown()
}
