package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "denguegen_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "denguegen_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "denguegen_messages_sent_total",
			Help: "Total user messages accepted",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "denguegen_message_status_transitions_total",
			Help: "Applied message status transitions",
		},
		[]string{"status"},
	)

	AssistantReplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "denguegen_assistant_replies_total",
			Help: "Total simulated assistant replies appended",
		},
	)

	CancelledTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "denguegen_cancelled_transitions_total",
			Help: "Scheduled transitions cancelled before firing",
		},
	)

	ValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "denguegen_validation_rejections_total",
			Help: "Inputs rejected at the boundary",
		},
		[]string{"reason"},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "denguegen_search_queries_total",
			Help: "Total search queries",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "denguegen_active_sessions",
			Help: "Chat sessions currently held in memory",
		},
	)

	// Storage metrics
	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "denguegen_storage_failures_total",
			Help: "Swallowed storage errors",
		},
		[]string{"op"},
	)

	KvLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "denguegen_kv_latency_seconds",
			Help:    "Key-value backend operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"backend", "op"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "denguegen_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "denguegen_websocket_clients",
			Help: "Connected websocket clients on this node",
		},
	)
)
