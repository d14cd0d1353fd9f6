// Package metrics exposes prometheus collectors for rooms and games. The
// collectors are fed from the event publisher, so game code never touches
// them directly.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tecu23/chess-rooms/pkg/events"
	"github.com/tecu23/chess-rooms/pkg/game"
)

const namespace = "chess_rooms"

// Metrics groups the collectors of the server.
type Metrics struct {
	RoomsCreated        prometheus.Counter
	RoomsRemoved        *prometheus.CounterVec
	RoomsActive         prometheus.Gauge
	GamesStarted        prometheus.Counter
	GamesEnded          *prometheus.CounterVec
	MovesProcessed      prometheus.Counter
	PlayersJoined       prometheus.Counter
	Disconnections      prometheus.Counter
	Reconnections       prometheus.Counter
	MessagesThrottled   prometheus.Counter
	ConnectionsRejected prometheus.Counter
	PersistFailures     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_created_total",
			Help: "Rooms created, explicitly or by a first connection.",
		}),
		RoomsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_removed_total",
			Help: "Rooms removed by the sweep, by reason.",
		}, []string{"reason"}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Rooms currently held in memory.",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "games_started_total",
			Help: "Games that reached two players.",
		}),
		GamesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "games_ended_total",
			Help: "Finished games by result type.",
		}, []string{"result"}),
		MovesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "moves_processed_total",
			Help: "Accepted moves.",
		}),
		PlayersJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "players_joined_total",
			Help: "New seats taken in rooms.",
		}),
		Disconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "disconnections_total",
			Help: "Seats that lost their live connection.",
		}),
		Reconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnections_total",
			Help: "Players that took their seat back.",
		}),
		MessagesThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_throttled_total",
			Help: "Inbound messages rejected by the rate limiter.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_rejected_total",
			Help: "Connections turned away from full rooms.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persist_failures_total",
			Help: "Match records that could not be saved.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RoomsCreated, m.RoomsRemoved, m.RoomsActive, m.GamesStarted,
			m.GamesEnded, m.MovesProcessed, m.PlayersJoined, m.Disconnections, m.Reconnections,
			m.MessagesThrottled, m.ConnectionsRejected, m.PersistFailures,
		)
	}
	return m
}

// Subscribe wires the collectors to the publisher.
func (m *Metrics) Subscribe(p *events.Publisher) {
	p.Subscribe(events.EventRoomCreated, func(events.Event) {
		m.RoomsCreated.Inc()
		m.RoomsActive.Inc()
	})
	p.Subscribe(events.EventRoomRemoved, func(e events.Event) {
		reason, _ := e.Payload.(string)
		m.RoomsRemoved.WithLabelValues(reason).Inc()
		m.RoomsActive.Dec()
	})
	p.Subscribe(events.EventGameStarted, func(events.Event) { m.GamesStarted.Inc() })
	p.Subscribe(events.EventGameEnded, func(e events.Event) {
		result := "unknown"
		if rec, ok := e.Payload.(*game.MatchRecord); ok {
			result = string(rec.Result.ResultType)
		}
		m.GamesEnded.WithLabelValues(result).Inc()
	})
	p.Subscribe(events.EventMoveProcessed, func(events.Event) { m.MovesProcessed.Inc() })
	p.Subscribe(events.EventPlayerJoined, func(events.Event) { m.PlayersJoined.Inc() })
	p.Subscribe(events.EventConnectionClosed, func(events.Event) { m.Disconnections.Inc() })
	p.Subscribe(events.EventPlayerReconnected, func(events.Event) { m.Reconnections.Inc() })
	p.Subscribe(events.EventMessageThrottled, func(events.Event) { m.MessagesThrottled.Inc() })
	p.Subscribe(events.EventConnectionRejected, func(events.Event) { m.ConnectionsRejected.Inc() })
	p.Subscribe(events.EventPersistFailed, func(events.Event) { m.PersistFailures.Inc() })
}

// Handler exposes the metrics gathered by g at /metrics
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
