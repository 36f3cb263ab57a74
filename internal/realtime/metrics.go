package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inspectra",
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open websocket connections.",
	})
	onlineUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inspectra",
		Subsystem: "realtime",
		Name:      "online_users",
		Help:      "Users in the presence roster.",
	})
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inspectra",
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Inbound events by name.",
	}, []string{"event"})
	messagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inspectra",
		Subsystem: "realtime",
		Name:      "messages_persisted_total",
		Help:      "Messages stored and broadcast.",
	})
	broadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inspectra",
		Subsystem: "realtime",
		Name:      "broadcast_drops_total",
		Help:      "Connections dropped because their send queue was full.",
	})
)
