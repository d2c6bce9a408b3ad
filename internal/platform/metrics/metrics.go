package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	OpenConnections prometheus.Gauge
	MessagesRelayed prometheus.Counter
	SeenSyncs       prometheus.Counter
	SeenSyncErrors  prometheus.Counter
	RateLimited     prometheus.Counter
	PresenceEvicted prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatpulse_open_connections",
			Help: "Number of live websocket connections.",
		}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatpulse_messages_relayed_total",
			Help: "Messages fanned out by the relay.",
		}),
		SeenSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatpulse_seen_syncs_total",
			Help: "Bulk seen-state writes issued to the message store.",
		}),
		SeenSyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatpulse_seen_sync_errors_total",
			Help: "Seen-state writes that failed and were not retried.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatpulse_rate_limited_total",
			Help: "Requests rejected by the cooldown or flood guard.",
		}),
		PresenceEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatpulse_presence_evicted_total",
			Help: "Presence records removed by the janitor.",
		}),
	}
	reg.MustRegister(
		m.OpenConnections,
		m.MessagesRelayed,
		m.SeenSyncs,
		m.SeenSyncErrors,
		m.RateLimited,
		m.PresenceEvicted,
	)
	return m
}
