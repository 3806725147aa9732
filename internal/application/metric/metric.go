package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP responses with status >= 400",
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Connections currently attached to the gateway",
		},
		[]string{"transport"},
	)

	gatewayRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_rooms",
			Help: "Rooms with at least one member",
		},
	)

	gatewayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Inbound gateway events by name",
		},
		[]string{"event"},
	)

	gatewayDroppedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dropped_frames_total",
			Help: "Frames dropped by the gateway",
		},
		[]string{"reason"},
	)
)

// RecordHTTPMetrics records a finished HTTP request.
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementActiveConnections(transport string) {
	wsActiveConnections.WithLabelValues(transport).Inc()
}

func DecrementActiveConnections(transport string) {
	wsActiveConnections.WithLabelValues(transport).Dec()
}

func SetRooms(count int) {
	gatewayRooms.Set(float64(count))
}

func RecordEvent(event string) {
	gatewayEventsTotal.WithLabelValues(event).Inc()
}

func RecordDroppedFrame(reason string) {
	gatewayDroppedFramesTotal.WithLabelValues(reason).Inc()
}
