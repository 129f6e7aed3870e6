package learning

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/monitoring"
)

func newTrainer(t *testing.T, size int, cfg Config) *Trainer {
	t.Helper()
	net, err := core.NewNetwork(size)
	if err != nil {
		t.Fatal(err)
	}
	store, err := memory.Open(memory.Config{}, size)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	tr, err := NewTrainer(net, store, monitoring.NewMetrics(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func cacheHits(t *testing.T, tr *Trainer) float64 {
	t.Helper()
	families, err := tr.metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "hopfield_recall_cache_hits_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestNewTrainerSizeMismatch(t *testing.T) {
	t.Parallel()
	net, _ := core.NewNetwork(8)
	store, err := memory.Open(memory.Config{}, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := NewTrainer(net, store, monitoring.NewMetrics(), Config{}); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestAutoRetrainOnAddAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTrainer(t, 8, Config{AutoRetrain: true})

	stored := core.Pattern{1, 1, 1, 1, 0, 0, 0, 0}
	if _, err := tr.AddPattern(ctx, "half", stored); err != nil {
		t.Fatal(err)
	}
	if tr.Generation() != 1 {
		t.Errorf("generation = %d, want 1", tr.Generation())
	}

	res, err := tr.Recall(core.Pattern{1, 1, 1, 0, 0, 0, 0, 0}, core.DefaultMaxIterations)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Pattern.Equal(stored) {
		t.Errorf("recalled %v, want %v", res.Pattern, stored)
	}

	if err := tr.DeletePattern(ctx, "half"); err != nil {
		t.Fatal(err)
	}
	if got := len(tr.Network().Patterns()); got != 0 {
		t.Errorf("network still trained on %d patterns", got)
	}
	// untrained again: everything collapses to ones
	res, err = tr.Recall(core.Pattern{1, 1, 1, 0, 0, 0, 0, 0}, core.DefaultMaxIterations)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pattern.Sum() != 8 {
		t.Errorf("recall on untrained network = %v, want all ones", res.Pattern)
	}
}

func TestRetrainFailureKeepsStoredChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "patterns.db")

	// a narrower writer on the same file leaves a row the 8-cell store rejects
	narrow, err := memory.Open(memory.Config{Path: path}, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer narrow.Close()
	if _, err := narrow.Add(ctx, "short", core.Pattern{1, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}

	store, err := memory.Open(memory.Config{Path: path}, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	net, err := core.NewNetwork(8)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := NewTrainer(net, store, monitoring.NewMetrics(), Config{AutoRetrain: true})
	if err != nil {
		t.Fatal(err)
	}

	entry, err := tr.AddPattern(ctx, "wide", core.Pattern{1, 1, 1, 1, 0, 0, 0, 0})
	if !errors.Is(err, ErrRetrainFailed) || !errors.Is(err, core.ErrDimensionMismatch) {
		t.Fatalf("add error = %v, want ErrRetrainFailed wrapping ErrDimensionMismatch", err)
	}
	if entry.Name != "wide" || entry.ID == 0 {
		t.Errorf("entry = %+v, want the stored row", entry)
	}
	if _, err := store.Get(ctx, "wide"); err != nil {
		t.Errorf("pattern not kept: %v", err)
	}
	if tr.Generation() != 0 {
		t.Errorf("generation = %d after failed retrain", tr.Generation())
	}

	if err := tr.DeletePattern(ctx, "wide"); !errors.Is(err, ErrRetrainFailed) {
		t.Fatalf("delete error = %v, want ErrRetrainFailed", err)
	}
	if _, err := store.Get(ctx, "wide"); !errors.Is(err, memory.ErrPatternNotFound) {
		t.Errorf("pattern survived delete: %v", err)
	}
}

func TestManualRetrain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTrainer(t, 4, Config{AutoRetrain: false})

	if _, err := tr.AddPattern(ctx, "a", core.Pattern{1, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if tr.Generation() != 0 || len(tr.Network().Patterns()) != 0 {
		t.Fatal("network trained without auto_retrain")
	}
	if err := tr.Retrain(ctx); err != nil {
		t.Fatal(err)
	}
	if tr.Generation() != 1 || len(tr.Network().Patterns()) != 1 {
		t.Errorf("generation=%d patterns=%d after Retrain", tr.Generation(), len(tr.Network().Patterns()))
	}
}

func TestRecallCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTrainer(t, 6, Config{AutoRetrain: true})
	if _, err := tr.AddPattern(ctx, "p", core.Pattern{1, 0, 1, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}

	probe := core.Pattern{1, 0, 1, 0, 1, 1}
	first, err := tr.Recall(probe, 10)
	if err != nil {
		t.Fatal(err)
	}
	first.History[0][0] = 0
	first.Pattern[0] = 0

	second, err := tr.Recall(probe, 10)
	if err != nil {
		t.Fatal(err)
	}
	if second.History[0][0] != 1 || second.Pattern[0] != 1 {
		t.Error("cached result shares memory with an earlier caller")
	}
	if got := cacheHits(t, tr); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	// new weights invalidate the cache
	if _, err := tr.AddPattern(ctx, "q", core.Pattern{0, 1, 0, 1, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if tr.cache.Len() != 0 {
		t.Errorf("cache holds %d entries after retrain", tr.cache.Len())
	}
}

func TestRecallRejectsBadProbe(t *testing.T) {
	t.Parallel()
	tr := newTrainer(t, 4, Config{})
	if _, err := tr.Recall(core.Pattern{1, 0}, 10); !errors.Is(err, core.ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := tr.Recall(core.Pattern{1, 0, 2, 0}, 10); !errors.Is(err, core.ErrNonBinary) {
		t.Errorf("error = %v, want ErrNonBinary", err)
	}
	if _, err := tr.Recall(core.Pattern{1, 0, 1, 0}, -1); !errors.Is(err, core.ErrInvalidIterationBound) {
		t.Errorf("error = %v, want ErrInvalidIterationBound", err)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTrainer(t, 4, Config{AutoRetrain: true})
	if _, err := tr.AddPattern(ctx, "a", core.Pattern{1, 0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	res, err := tr.Recall(core.Pattern{1, 0, 1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := tr.Summary(res)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Converged in 1 iterations.", "Energy: -6.000", "Final pattern sum: 2"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}
}
