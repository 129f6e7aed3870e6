package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lumix-ai/hopfield/internal/core"
)

func TestMetricsRecordOperations(t *testing.T) {
	t.Parallel()
	m := NewMetrics()

	m.ObserveTrain(3, 2*time.Millisecond)
	m.ObserveRecall(&core.RecallResult{Sweeps: 2, Converged: true}, -12.5)
	m.ObserveRecall(&core.RecallResult{Sweeps: 100}, -3)
	m.ObserveCacheHit()
	m.ObserveError("recall")
	m.ObserveError("recall")

	if got := testutil.ToFloat64(m.trainings); got != 1 {
		t.Errorf("trainings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.storedPatterns); got != 3 {
		t.Errorf("stored patterns = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.recalls.WithLabelValues("converged")); got != 1 {
		t.Errorf("converged recalls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.recalls.WithLabelValues("exhausted")); got != 1 {
		t.Errorf("exhausted recalls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.recallEnergy); got != -3 {
		t.Errorf("last energy = %v, want -3", got)
	}
	if got := testutil.ToFloat64(m.cacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("recall")); got != 2 {
		t.Errorf("recall errors = %v, want 2", got)
	}

	n, err := testutil.GatherAndCount(m.Registry)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("registry gathered no metrics")
	}
}
