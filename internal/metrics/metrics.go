// Package metrics exposes store counters to Prometheus. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pixstore"

type Metrics struct {
	ordersCreated  *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	ordersReleased *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	fulfillments   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the store metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders accepted and left pending.",
		}, []string{"product"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Order requests refused before a payload was issued.",
		}, []string{"reason"}),
		ordersReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_released_total",
			Help:      "Pending orders expired or cancelled, with stock returned.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_notifications_total",
			Help:      "Gateway notifications by reconciliation outcome.",
		}, []string{"outcome"}),
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillments_total",
			Help:      "Fulfillment attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.ordersCreated, m.ordersRejected, m.ordersReleased,
		m.notifications, m.fulfillments,
		m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) OrderCreated(productID string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(label(productID)).Inc()
}

func (m *Metrics) OrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(label(reason)).Inc()
}

func (m *Metrics) OrderReleased(status string) {
	if m == nil {
		return
	}
	m.ordersReleased.WithLabelValues(label(status)).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(label(outcome)).Inc()
}

func (m *Metrics) Fulfillment(result string) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(label(result)).Inc()
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, label(path), strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, label(path)).Observe(elapsed.Seconds())
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
