// Package metrics holds the Prometheus collectors shared by the turn
// pipeline, the generation client and the room hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeAIFailed      = "ai_failed"
	OutcomePersistFailed = "persist_failed"
	OutcomeConflict      = "conflict"
	OutcomeRateLimited   = "rate_limited"
	OutcomeError         = "error"
)

type Metrics struct {
	GenerationAttempts *prometheus.CounterVec // backend, outcome
	Turns              *prometheus.CounterVec // outcome
	TurnDuration       prometheus.Histogram
	RoomMembers        prometheus.Gauge
	Broadcasts         *prometheus.CounterVec // event
}

// New creates the collectors and registers them with reg. Use a fresh
// registry per test to avoid duplicate registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		GenerationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqforge_generation_attempts_total",
				Help: "Text-generation attempts by backend and outcome.",
			},
			[]string{"backend", "outcome"},
		),
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqforge_turns_total",
				Help: "Chat turns processed by outcome.",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reqforge_turn_duration_seconds",
			Help:    "Wall time of a chat turn from receipt to reply.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		RoomMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reqforge_room_members",
			Help: "Connections currently joined to a project room.",
		}),
		Broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqforge_room_broadcasts_total",
				Help: "Room broadcasts by event name.",
			},
			[]string{"event"},
		),
	}

	for _, c := range []prometheus.Collector{m.GenerationAttempts, m.Turns, m.TurnDuration, m.RoomMembers, m.Broadcasts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
