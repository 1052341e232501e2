package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// wsConnections gauges the connections currently registered with a hub.
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_realtime_connections",
			Help: "Current number of registered websocket connections.",
		},
	)

	// wsFrames counts frames by event and delivery outcome (queued|dropped).
	// The event label is limited to the names passed to Hub.TrackEvents.
	wsFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_realtime_frames_total",
			Help: "Outbound realtime frames by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// wsDropped counts frames that could not be queued (full or closed buffer).
	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_realtime_dropped_total",
			Help: "Outbound realtime frames dropped because a connection could not accept them.",
		},
	)

	// wsInbound counts client frames by outcome (accepted|rate_limited|invalid).
	wsInbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_realtime_inbound_total",
			Help: "Inbound realtime frames by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsFrames, wsDropped, wsInbound)
}
