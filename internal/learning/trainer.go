// internal/learning/trainer.go
package learning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/monitoring"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

// ErrRetrainFailed - the store change was saved but the weights still reflect
// the previous contents
var ErrRetrainFailed = errors.New("learning: change saved but retrain failed")

type Config struct {
	AutoRetrain     bool `yaml:"auto_retrain"`
	RecallCacheSize int  `yaml:"recall_cache_size"`
}

// Trainer - keeps a network trained on the contents of a pattern store
type Trainer struct {
	network    *core.Network
	memory     *memory.Store
	metrics    *monitoring.Metrics
	config     Config
	cache      *lru.Cache[string, *core.RecallResult]
	generation atomic.Uint64
	mu         sync.Mutex // serialises retrains
}

func NewTrainer(network *core.Network, store *memory.Store, metrics *monitoring.Metrics, config Config) (*Trainer, error) {
	if network.Size() != store.Size() {
		return nil, fmt.Errorf("%w: network size %d, store size %d",
			core.ErrDimensionMismatch, network.Size(), store.Size())
	}
	size := config.RecallCacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *core.RecallResult](size)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		network: network,
		memory:  store,
		metrics: metrics,
		config:  config,
		cache:   cache,
	}, nil
}

func (t *Trainer) Network() *core.Network { return t.network }

func (t *Trainer) Memory() *memory.Store { return t.memory }

// Generation - incremented on every successful retrain
func (t *Trainer) Generation() uint64 { return t.generation.Load() }

// Retrain rebuilds the weights from every stored pattern.
func (t *Trainer) Retrain(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, err := t.memory.Patterns(ctx)
	if err != nil {
		t.metrics.ObserveError("train")
		return fmt.Errorf("failed to load patterns: %w", err)
	}

	start := time.Now()
	if err := t.network.Train(stored); err != nil {
		t.metrics.ObserveError("train")
		return err
	}
	elapsed := time.Since(start)

	t.generation.Add(1)
	t.cache.Purge()
	t.metrics.ObserveTrain(len(stored), elapsed)

	log.Info().
		Int("patterns", len(stored)).
		Int("size", t.network.Size()).
		Dur("duration", elapsed).
		Msg("Hebbian training complete")
	return nil
}

// AddPattern stores p and, with AutoRetrain, refreshes the weights. When only
// the retrain fails the stored entry is still returned, with ErrRetrainFailed.
func (t *Trainer) AddPattern(ctx context.Context, name string, p core.Pattern) (memory.Entry, error) {
	entry, err := t.memory.Add(ctx, name, p)
	if err != nil {
		t.metrics.ObserveError("add")
		return memory.Entry{}, err
	}
	log.Info().Str("name", entry.Name).Int("active", p.Sum()).Msg("Pattern stored")

	if t.config.AutoRetrain {
		if err := t.Retrain(ctx); err != nil {
			return entry, fmt.Errorf("%w: %w", ErrRetrainFailed, err)
		}
	}
	return entry, nil
}

func (t *Trainer) DeletePattern(ctx context.Context, name string) error {
	if err := t.memory.Delete(ctx, name); err != nil {
		t.metrics.ObserveError("delete")
		return err
	}
	log.Info().Str("name", name).Msg("Pattern deleted")

	if t.config.AutoRetrain {
		if err := t.Retrain(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRetrainFailed, err)
		}
	}
	return nil
}

// Recall answers from the cache when the same probe was relaxed against the
// current weights. The result is always a private copy.
func (t *Trainer) Recall(probe core.Pattern, maxIterations int) (*core.RecallResult, error) {
	if err := probe.Validate(t.network.Size()); err != nil {
		t.metrics.ObserveError("recall")
		return nil, fmt.Errorf("recall: %w", err)
	}

	key := t.cacheKey(probe, maxIterations)
	if cached, ok := t.cache.Get(key); ok {
		t.metrics.ObserveCacheHit()
		return cached.Clone(), nil
	}

	res, err := t.network.RecallWithLimit(probe, maxIterations)
	if err != nil {
		t.metrics.ObserveError("recall")
		return nil, err
	}
	energy, err := t.network.Energy(res.Pattern)
	if err != nil {
		return nil, err
	}
	t.metrics.ObserveRecall(res, energy)

	log.Debug().
		Int("sweeps", res.Sweeps).
		Bool("converged", res.Converged).
		Float64("energy", energy).
		Msg("Recall finished")

	t.cache.Add(key, res.Clone())
	return res, nil
}

func (t *Trainer) Energy(p core.Pattern) (float64, error) {
	e, err := t.network.Energy(p)
	if err != nil {
		t.metrics.ObserveError("energy")
	}
	return e, err
}

// Summary - short report of a recall run
func (t *Trainer) Summary(res *core.RecallResult) (string, error) {
	energy, err := t.network.Energy(res.Pattern)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if res.Converged {
		fmt.Fprintf(&b, "Converged in %d iterations.\n", res.Sweeps)
	} else {
		fmt.Fprintf(&b, "Stopped after %d iterations without converging.\n", res.Sweeps)
	}
	fmt.Fprintf(&b, "Energy: %.3f\n", energy)
	fmt.Fprintf(&b, "Final pattern sum: %d", res.Pattern.Sum())
	return b.String(), nil
}

func (t *Trainer) cacheKey(probe core.Pattern, maxIterations int) string {
	return strconv.FormatUint(t.generation.Load(), 10) + ":" +
		strconv.Itoa(maxIterations) + ":" + patterns.Format(probe)
}
