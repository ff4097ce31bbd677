// Package metrics records coaching engine counters and exposes a query
// service for aggregating them from a Prometheus server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the engine's instrument set. Create one per process;
// tests pass their own registry to avoid duplicate registration.
type Recorder struct {
	turns        *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	retries      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
}

// NewRecorder registers the coaching instruments on the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_turns_total",
			Help: "Turns processed, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_anomalies_total",
			Help: "Rejected inputs, by anomaly category.",
		}, []string{"category"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_generation_retries_total",
			Help: "Content generation retry attempts, by stage.",
		}, []string{"stage"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_fallbacks_total",
			Help: "Turns resolved by a fixed fallback reply, by stage.",
		}, []string{"stage"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coach_tokens_total",
			Help: "Estimated tokens exchanged, by session and direction.",
		}, []string{"session_id", "direction"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coach_turn_duration_seconds",
			Help:    "Wall time to resolve a turn, by stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Turn outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeSkip     = "skip"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Token direction labels.
const (
	DirectionUser      = "user"
	DirectionAssistant = "assistant"
)

func (r *Recorder) RecordTurn(stage, outcome string, d time.Duration) {
	r.turns.WithLabelValues(stage, outcome).Inc()
	r.turnDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordAnomaly(category string) {
	r.anomalies.WithLabelValues(category).Inc()
}

func (r *Recorder) RecordRetry(stage string) {
	r.retries.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordFallback(stage string) {
	r.fallbacks.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordTokens(sessionID, direction string, count int) {
	r.tokens.WithLabelValues(sessionID, direction).Add(float64(count))
}
