package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Live push connections on this node",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_users_online",
			Help: "Users with a registered connection on this node",
		},
	)

	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_heartbeat_timeouts_total",
			Help: "Connections closed after missing heartbeats",
		},
	)

	NATSConnectionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_nats_connection_events_total",
			Help: "NATS connection state changes",
		},
		[]string{"event"}, // disconnected, reconnected, closed, error
	)

	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_deliveries_total",
			Help: "Push deliveries by event and result",
		},
		[]string{"event", "result"}, // delivered, absent, failed, remote
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"chat_type"},
	)

	GroupsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_groups_deleted_total",
			Help: "Groups destroyed",
		},
		[]string{"reason"}, // admin, empty
	)

	PurgeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_group_purge_failures_total",
			Help: "Group message purges that failed after the group was deleted",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)

// NATS connection events
const (
	NATSDisconnected = "disconnected"
	NATSReconnected  = "reconnected"
	NATSClosed       = "closed"
	NATSError        = "error"
)

// Delivery results
const (
	ResultDelivered = "delivered"
	ResultAbsent    = "absent"
	ResultFailed    = "failed"
	ResultRemote    = "remote"
)
