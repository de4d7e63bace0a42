package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	bridgeSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_submitted_total",
			Help: "Messages received on the local channel by kind",
		},
		[]string{"kind"},
	)

	bridgeForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_forwarded_total",
			Help: "Messages written to the local channel by kind",
		},
		[]string{"kind"},
	)

	bridgeDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_dropped_total",
			Help: "Inbound messages dropped by reason",
		},
		[]string{"reason"},
	)

	bridgePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpb_bridge_pending_requests",
			Help: "Requests awaiting a reply",
		},
	)

	bridgeSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_sends_total",
			Help: "Remote submissions by outcome",
		},
		[]string{"outcome"},
	)

	bridgeSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_sessions_total",
			Help: "Remote sessions by origin of the session identifier",
		},
		[]string{"origin"},
	)

	bridgeReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mcpb_bridge_reconnects_total",
			Help: "Push stream reconnect attempts",
		},
	)

	relaySessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpb_relay_sessions",
			Help: "Active relay sessions, each owning one backend",
		},
	)

	relayMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_relay_messages_total",
			Help: "Message submissions by status code",
		},
		[]string{"code"},
	)

	relayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpb_relay_published_total",
			Help: "Backend output lines by disposition",
		},
		[]string{"disposition"},
	)
)

// NewRegistry creates a registry holding all collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	Register(registry)
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Register registers bridge and relay metrics
func Register(r prometheus.Registerer) {
	r.MustRegister(bridgeSubmitted, bridgeForwarded, bridgeDropped, bridgePending, bridgeSends,
		bridgeSessions, bridgeReconnects, relaySessions, relayMessages, relayPublished)
}

// RecordSubmitted counts a local message of kind request, notification or response.
func RecordSubmitted(kind string) { bridgeSubmitted.WithLabelValues(kind).Inc() }

// RecordForwarded counts a message written to the local channel.
func RecordForwarded(kind string) { bridgeForwarded.WithLabelValues(kind).Inc() }

// RecordDropped counts an inbound message that was not forwarded.
func RecordDropped(reason string) { bridgeDropped.WithLabelValues(reason).Inc() }

func SetPending(count int) { bridgePending.Set(float64(count)) }

func RecordSend(outcome string) { bridgeSends.WithLabelValues(outcome).Inc() }

// RecordSession counts a session that became ready.
func RecordSession(selfAssigned bool) {
	origin := "server"
	if selfAssigned {
		origin = "generated"
	}
	bridgeSessions.WithLabelValues(origin).Inc()
}

func RecordReconnect() { bridgeReconnects.Inc() }

func RelaySessionOpened() { relaySessions.Inc() }

func RelaySessionClosed() { relaySessions.Dec() }

// RecordRelayMessage counts a submission answered with code.
func RecordRelayMessage(code int) { relayMessages.WithLabelValues(strconv.Itoa(code)).Inc() }

// RecordRelayOutput counts a backend line as published, duplicate or unmatched.
func RecordRelayOutput(disposition string) { relayPublished.WithLabelValues(disposition).Inc() }
