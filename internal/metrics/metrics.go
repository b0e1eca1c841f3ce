package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kkms_sync_operations_total",
		Help: "Resource sync operations by resource, operation and outcome.",
	}, []string{"resource", "op", "outcome"})

	duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kkms_sync_operation_duration_seconds",
		Help:    "Latency of resource sync operations including asset uploads.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "op"})

	liveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kkms_live_subscriptions",
		Help: "Open notification mailbox subscriptions.",
	})
)

func init() {
	prometheus.MustRegister(operations, duration, liveSubscriptions)
}

// Observe records one finished operation.
func Observe(resource, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operations.WithLabelValues(resource, op, outcome).Inc()
	duration.WithLabelValues(resource, op).Observe(time.Since(start).Seconds())
}

func SubscriptionOpened() { liveSubscriptions.Inc() }
func SubscriptionClosed() { liveSubscriptions.Dec() }

func Handler() http.Handler { return promhttp.Handler() }
