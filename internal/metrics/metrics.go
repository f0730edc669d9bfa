// Package metrics provides Prometheus instrumentation for the chat client.
// It exposes counters for frame and send throughput, notification outcomes
// and typing transitions, plus gauges for the presence count and the
// connection state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FramesTotal counts inbound frames, labeled by decoded type, "dropped"
	// (undecodable) or "oversized".
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_frames_total",
		Help: "Inbound frames received from the server",
	}, []string{"type"})

	// MessagesSentTotal counts outbound frames by type and result
	// ("ok" or "error").
	MessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_messages_sent_total",
		Help: "Outbound frames written to the connection",
	}, []string{"type", "result"})

	// NotificationsTotal counts notification decisions, labeled by result:
	// "shown", "focused", "no_permission" or "failed".
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_notifications_total",
		Help: "Notification requests by outcome",
	}, []string{"result"})

	// TypingTransitionsTotal counts typing state changes by target state.
	TypingTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_typing_transitions_total",
		Help: "Local typing state machine transitions",
	}, []string{"state"})

	// PresenceUsers mirrors the last user count reported by the server.
	PresenceUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatclient_presence_users",
		Help: "Users online as last reported by the server",
	})

	// ConnectionUp is 1 while the WebSocket connection is open.
	ConnectionUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatclient_connection_up",
		Help: "Whether the WebSocket connection is open",
	})
)

func init() {
	prometheus.MustRegister(
		FramesTotal,
		MessagesSentTotal,
		NotificationsTotal,
		TypingTransitionsTotal,
		PresenceUsers,
		ConnectionUp,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
