// Package metrics exposes the relay's Prometheus counters and gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aero_webrtc_broadcast_relay"

// Event names used as the "event" label of the events counter.
const (
	RoomCreated   = "room_created"
	HostReclaimed = "host_reclaimed"
	PINRejected   = "pin_rejected"
	ViewerJoined  = "viewer_joined"
	RoomNotFound  = "room_not_found"
	StreamEnded   = "stream_ended"
	ViewerLeft    = "viewer_left"

	RelayForwarded      = "relay_forwarded"
	RelayUnknownTarget  = "relay_unknown_target"
	RelayCrossRoom      = "relay_cross_room"
	InvalidMessage      = "invalid_message"
	UnknownMessageType  = "unknown_message_type"
	SlowConsumerDropped = "slow_consumer_dropped"

	SignalingRateLimited  = "signaling_rate_limited"
	SignalingOversize     = "signaling_oversize"
	SignalingBinaryFrame  = "signaling_binary_frame"
	SignalingOriginDenied = "signaling_origin_denied"
)

// Metrics owns a private registry so tests and multiple servers in one process
// don't collide on the global one. A nil *Metrics is a valid no-op sink.
type Metrics struct {
	reg *prometheus.Registry

	events      *prometheus.CounterVec
	rooms       prometheus.Gauge
	connections prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Signaling events by kind.",
		}, []string{"event"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms that currently have a host.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open signaling connections.",
		}),
	}
	reg.MustRegister(
		m.events,
		m.rooms,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Inc(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Events returns the counter for one event, for tests.
func (m *Metrics) Events(event string) prometheus.Counter {
	return m.events.WithLabelValues(event)
}
