package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedline_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedline_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedline_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedline_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// RealtimeEvents counts emitted realtime events by event name and transport.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedline_realtime_events_total",
		Help: "Realtime events emitted by event and transport",
	}, []string{"event", "transport"})

	// ObjectStoreLatency records object store call latency.
	ObjectStoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedline_object_store_latency_seconds",
		Help:    "Object store call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "operation", "outcome"})

	// AuthEvents counts authentication outcomes.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedline_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})
)

// ObserveObjectStore returns a func that records the latency of one object
// store call when invoked with the call's error.
func ObserveObjectStore(driver, operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		ObjectStoreLatency.WithLabelValues(driver, operation, outcome).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthEvent increments the auth counter for event with the outcome of err.
func RecordAuthEvent(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}
