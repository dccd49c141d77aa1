package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of open WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// OnlineUsers is the gauge of users bound in the presence registry.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_online_users",
		Help: "Number of users with a registered real-time connection",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts frames dropped because a client's send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// MessagesSent counts direct messages persisted and fanned out, by entry point.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_messages_sent_total",
		Help: "Total number of direct messages stored",
	}, []string{"via"})

	// FeedItemsAssembled counts feed items by the source that contributed them.
	FeedItemsAssembled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_feed_items_total",
		Help: "Feed items returned by source",
	}, []string{"source"})

	// SearchQueries counts post searches by resolved intent.
	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_search_queries_total",
		Help: "Post searches by intent",
	}, []string{"intent"})

	// AssistantRequests counts writing assistant calls by outcome.
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_assistant_requests_total",
		Help: "Writing assistant provider calls by outcome",
	}, []string{"outcome"})

	// AssistantLatency records provider round trip latency.
	AssistantLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_assistant_latency_seconds",
		Help:    "Writing assistant provider latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"path", "status"})
)
