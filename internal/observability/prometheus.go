package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/resilience"
)

// Prometheus exports dependency outcomes, breaker states and write counters.
// It implements resilience.Observer, payments.Recorder and orders.Recorder.
type Prometheus struct {
	registry *prometheus.Registry

	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	circuit  *prometheus.GaugeVec

	paymentsTotal   prometheus.Counter
	paymentsFailed  prometheus.Counter
	paymentsAmount  prometheus.Counter
	paymentsDeleted prometheus.Counter

	ordersCreated prometheus.Counter
	ordersUpdated prometheus.Counter
	ordersDeleted prometheus.Counter
	orderFeeTotal prometheus.Counter
}

func NewPrometheus(service string) *Prometheus {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: constLabels})
		reg.MustRegister(c)
		return c
	}

	p := &Prometheus{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dependency_attempts_total",
			Help:        "Network attempts against a remote dependency, retries included.",
			ConstLabels: constLabels,
		}, []string{"dependency"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dependency_outcomes_total",
			Help:        "Final outcome of each dependency call.",
			ConstLabels: constLabels,
		}, []string{"dependency", "outcome"}),
		circuit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "dependency_circuit_state",
			Help:        "Breaker state per dependency: 0 closed, 1 half-open, 2 open.",
			ConstLabels: constLabels,
		}, []string{"dependency"}),

		paymentsTotal:   counter("payment_service_payments_total", "Payments processed."),
		paymentsFailed:  counter("payment_service_payments_failed_total", "Payments stored as not payed."),
		paymentsAmount:  counter("payment_service_payments_amount_total", "Order fee total carried by stored payments (USD)."),
		paymentsDeleted: counter("payment_service_payments_deleted_total", "Payments deleted."),

		ordersCreated: counter("order_service_orders_created_total", "Orders created."),
		ordersUpdated: counter("order_service_orders_updated_total", "Orders updated."),
		ordersDeleted: counter("order_service_orders_deleted_total", "Orders deleted."),
		orderFeeTotal: counter("order_service_order_fee_total", "Order fees written (USD)."),
	}
	reg.MustRegister(p.attempts, p.outcomes, p.circuit)
	return p
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) RecordAttempt(dependency string) {
	p.attempts.WithLabelValues(dependency).Inc()
}

func (p *Prometheus) RecordOutcome(dependency string, outcome resilience.Outcome) {
	p.outcomes.WithLabelValues(dependency, string(outcome)).Inc()
}

// ObserveState is a registry state listener.
func (p *Prometheus) ObserveState(change resilience.StateChange) {
	p.SetState(change.Dependency, change.To)
}

func (p *Prometheus) SetState(dependency string, state resilience.State) {
	var v float64
	switch state {
	case resilience.StateHalfOpen:
		v = 1
	case resilience.StateOpen:
		v = 2
	}
	p.circuit.WithLabelValues(dependency).Set(v)
}

// RecordPayment counts a stored payment. The amount and payed flag come from
// the request body when present.
func (p *Prometheus) RecordPayment(source, persisted payments.View) {
	p.paymentsTotal.Inc()
	metric := source
	if metric.Order == nil {
		metric = persisted
	}
	if metric.Order != nil && metric.Order.OrderFee > 0 {
		p.paymentsAmount.Add(metric.Order.OrderFee)
	}
	if !metric.IsPayed {
		p.paymentsFailed.Inc()
	}
}

func (p *Prometheus) RecordPaymentDeletion() { p.paymentsDeleted.Inc() }

func (p *Prometheus) RecordOrderCreated(v orders.OrderView) {
	p.ordersCreated.Inc()
	p.addFee(v.OrderFee)
}

func (p *Prometheus) RecordOrderUpdated(v orders.OrderView) {
	p.ordersUpdated.Inc()
	p.addFee(v.OrderFee)
}

func (p *Prometheus) RecordOrderDeleted() { p.ordersDeleted.Inc() }

func (p *Prometheus) addFee(fee float64) {
	if fee > 0 {
		p.orderFeeTotal.Add(fee)
	}
}
