package session

import "github.com/prometheus/client_golang/prometheus"

var (
	// socketEvents counts handled client events by name and outcome
	// (ok|rejected|error). Unknown names are folded into "unknown".
	socketEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_socket_events_total",
			Help: "Client socket events by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// socketLat records event handling time, service call and fanout included.
	socketLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupchat_socket_event_duration_seconds",
			Help:    "Duration of client socket event handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(socketEvents, socketLat)
}
