package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Received prometheus.Counter
	Stored   prometheus.Counter
	// Rejected by terminal reason: invalid_input, invalid_channel, storage_error
	Rejected *prometheus.CounterVec

	// Deliveries by channel and outcome (ok or error kind)
	Deliveries      *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_received_total"})
	stored := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_stored_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orders_rejected_total"}, []string{"reason"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "order_deliveries_total"}, []string{"channel", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_delivery_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	r.MustRegister(received, stored, rejected, deliveries, latency)
	return &Registry{
		reg:             r,
		Received:        received,
		Stored:          stored,
		Rejected:        rejected,
		Deliveries:      deliveries,
		DeliveryLatency: latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
