package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, labelName, labelValue string) float64 {
	t.Helper()
	mf := findFamily(mfs, name)
	require.NotNil(t, mf, "metric %s not found", name)
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == labelName && l.GetValue() == labelValue {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s missing label %s=%s", name, labelName, labelValue)
	return 0
}

func TestMetricsExportCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OrderCreated("proxy-br")
	m.OrderCreated("proxy-br")
	m.OrderRejected("out_of_stock")
	m.OrderReleased("expired")
	m.Notification("approved")
	m.Notification("duplicate")
	m.Fulfillment("")
	m.ObserveHTTP(http.MethodPost, "/api/v1/orders", http.StatusCreated, 20*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, counterValue(t, mfs, "pixstore_orders_created_total", "product", "proxy-br"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "pixstore_orders_rejected_total", "reason", "out_of_stock"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "pixstore_orders_released_total", "status", "expired"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "pixstore_payment_notifications_total", "outcome", "duplicate"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "pixstore_fulfillments_total", "result", "unknown"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "pixstore_http_requests_total", "status", "201"))

	hist := findFamily(mfs, "pixstore_http_request_duration_seconds")
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated("x")
		m.Notification("approved")
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}
