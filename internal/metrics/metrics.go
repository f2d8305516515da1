package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Room command metrics
var (
	// CommandsTotal tracks dispatched room commands by type and status
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_commands_total",
			Help: "Total room commands by type and status (applied/ignored)",
		},
		[]string{"type", "status"},
	)

	// MalformedMessagesTotal tracks inbound frames that failed to parse
	MalformedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_malformed_messages_total",
			Help: "Total inbound websocket frames dropped as unparseable",
		},
	)

	// PersistenceFailuresTotal tracks failed best-effort state saves by field
	PersistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_persistence_failures_total",
			Help: "Total failed room state saves by field",
		},
		[]string{"field"},
	)
)

// Broadcaster metrics
var (
	// BroadcasterConnectedClients tracks total connected websocket clients
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// BroadcastsTotal tracks state broadcasts pushed to the room
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_broadcasts_total",
			Help: "Total state broadcasts fanned out to the room",
		},
	)

	// BroadcastDuration tracks fan-out latency in seconds
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcaster_broadcast_duration_seconds",
			Help:    "Broadcast fan-out duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// SlowClientsEvicted tracks clients dropped because their send buffer filled
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_slow_clients_evicted_total",
			Help: "Total clients evicted due to full send buffers",
		},
	)
)

// WebSocket gateway metrics
var (
	// WebSocketConnectionsTotal tracks connection attempts by outcome
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total websocket connection attempts by outcome",
		},
		[]string{"outcome"},
	)

	// WebSocketPingFailures tracks failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed websocket keepalive pings",
		},
	)
)
