// Package metrics provides Prometheus instrumentation for the Duet pairing
// server. It exposes gauges for connection, pool and pair counts, counters
// for matchmaking and relay throughput, and a histogram for match wait time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of active WebSocket
	// connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_connections_active",
		Help: "Current number of active WebSocket connections",
	})

	// WaitingClients tracks the current size of the waiting pool.
	WaitingClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_waiting_clients",
		Help: "Current number of clients in the waiting pool",
	})

	// ActivePairs tracks the current number of active pairs.
	ActivePairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_active_pairs",
		Help: "Current number of active pairs",
	})

	// MatchesTotal counts pairings made since process start.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_matches_total",
		Help: "Total number of pairings made",
	})

	// RelayedTotal counts relayed pair events, labeled by event type:
	// "send_message", "offer", "answer", "ice-candidate", "stop_video".
	RelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_relayed_events_total",
		Help: "Total number of events relayed between paired clients",
	}, []string{"event"})

	// DroppedTotal counts inbound events dropped without a reply, labeled by
	// reason: "invalid_state", "malformed", "wrong_target", "unknown_type",
	// "unknown_client".
	DroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_dropped_events_total",
		Help: "Total number of inbound events silently dropped",
	}, []string{"reason"})

	// MatchWaitSeconds records how long clients waited in the pool before
	// being paired.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duet_match_wait_seconds",
		Help:    "Time spent in the waiting pool before a partner was found",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// EgressOverflowTotal counts connections torn down because their egress
	// queue filled up.
	EgressOverflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_egress_overflow_total",
		Help: "Total number of connections dropped due to a full egress queue",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		WaitingClients,
		ActivePairs,
		MatchesTotal,
		RelayedTotal,
		DroppedTotal,
		MatchWaitSeconds,
		EgressOverflowTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
