package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.RecordTurn("CLARIFICATION", OutcomeSuccess, 50*time.Millisecond)
	rec.RecordTurn("CLARIFICATION", OutcomeSuccess, 30*time.Millisecond)
	rec.RecordTurn("ARTICULATION", OutcomeInvalid, 10*time.Millisecond)
	rec.RecordAnomaly("empty")
	rec.RecordRetry("CLARIFICATION")
	rec.RecordFallback("PSEUDOCODE")
	rec.RecordTokens("sess-1", DirectionUser, 12)
	rec.RecordTokens("sess-1", DirectionUser, 8)

	if got := testutil.ToFloat64(rec.turns.WithLabelValues("CLARIFICATION", OutcomeSuccess)); got != 2 {
		t.Errorf("turns counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.turns.WithLabelValues("ARTICULATION", OutcomeInvalid)); got != 1 {
		t.Errorf("invalid turns counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.anomalies.WithLabelValues("empty")); got != 1 {
		t.Errorf("anomalies counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.retries.WithLabelValues("CLARIFICATION")); got != 1 {
		t.Errorf("retries counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.fallbacks.WithLabelValues("PSEUDOCODE")); got != 1 {
		t.Errorf("fallbacks counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.tokens.WithLabelValues("sess-1", DirectionUser)); got != 20 {
		t.Errorf("tokens counter = %v, want 20", got)
	}
}

func TestRecorderRegistersOnSeparateRegistries(t *testing.T) {
	// Two recorders must coexist when given distinct registries.
	a := NewRecorder(prometheus.NewRegistry())
	b := NewRecorder(prometheus.NewRegistry())

	a.RecordTurn("SUMMARY", OutcomeFallback, time.Millisecond)
	if got := testutil.ToFloat64(b.turns.WithLabelValues("SUMMARY", OutcomeFallback)); got != 0 {
		t.Errorf("recorders must not share state, got %v", got)
	}
}
