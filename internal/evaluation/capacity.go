// internal/evaluation/capacity.go
package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

type Config struct {
	MaxLoad       int     `yaml:"max_load"`
	Trials        int     `yaml:"trials"`
	NoiseLevel    float64 `yaml:"noise_level"`
	MaxConcurrent int     `yaml:"max_concurrent"`
	MaxIterations int     `yaml:"max_iterations"`
	Seed          int64   `yaml:"seed"`
}

// LoadResult - aggregate over all trials at one load
type LoadResult struct {
	Load       int
	Trials     int
	Recovered  int
	MeanSweeps float64
	Exhausted  int // trials that hit the sweep cap
}

func (r LoadResult) RecoveryRate() float64 {
	if r.Trials == 0 {
		return 0
	}
	return float64(r.Recovered) / float64(r.Trials)
}

// Report - capacity curve for one network size
type Report struct {
	Size     int
	Results  []LoadResult
	Duration time.Duration
}

type trialOutcome struct {
	recovered bool
	converged bool
	sweeps    int
}

// RunCapacity measures how recall degrades as more random patterns are stored.
// Each trial owns its network, so trials run in parallel; progress is called
// once per finished trial and must be safe for concurrent use.
func RunCapacity(ctx context.Context, size int, cfg Config, progress func()) (*Report, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidSize, size)
	}
	if cfg.MaxLoad <= 0 || cfg.Trials <= 0 {
		return nil, fmt.Errorf("max_load and trials must be positive (got %d, %d)", cfg.MaxLoad, cfg.Trials)
	}
	if cfg.NoiseLevel < 0 || cfg.NoiseLevel > 1 {
		return nil, fmt.Errorf("noise_level %v outside [0,1]", cfg.NoiseLevel)
	}
	concurrent := cfg.MaxConcurrent
	if concurrent <= 0 {
		concurrent = 1
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = core.DefaultMaxIterations
	}

	start := time.Now()
	outcomes := make([][]trialOutcome, cfg.MaxLoad)
	for i := range outcomes {
		outcomes[i] = make([]trialOutcome, cfg.Trials)
	}

	sem := semaphore.NewWeighted(int64(concurrent))
	g, gctx := errgroup.WithContext(ctx)

	for load := 1; load <= cfg.MaxLoad; load++ {
		for trial := 0; trial < cfg.Trials; trial++ {
			if err := sem.Acquire(gctx, 1); err != nil {
				// a failed trial cancelled gctx; Wait reports it
				break
			}
			load, trial := load, trial
			g.Go(func() error {
				defer sem.Release(1)
				seed := cfg.Seed + int64(load)*1_000_003 + int64(trial)
				out, err := runTrial(size, load, trial, seed, cfg.NoiseLevel, maxIterations)
				if err != nil {
					return fmt.Errorf("load %d trial %d: %w", load, trial, err)
				}
				outcomes[load-1][trial] = out
				if progress != nil {
					progress()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Size: size, Results: make([]LoadResult, cfg.MaxLoad)}
	for i, trials := range outcomes {
		r := LoadResult{Load: i + 1, Trials: len(trials)}
		sweeps := 0
		for _, o := range trials {
			if o.recovered {
				r.Recovered++
			}
			if !o.converged {
				r.Exhausted++
			}
			sweeps += o.sweeps
		}
		r.MeanSweeps = float64(sweeps) / float64(len(trials))
		report.Results[i] = r
	}
	report.Duration = time.Since(start)

	log.Info().
		Int("size", size).
		Int("max_load", cfg.MaxLoad).
		Int("trials", cfg.Trials).
		Dur("duration", report.Duration).
		Msg("Capacity evaluation finished")
	return report, nil
}

func runTrial(size, load, trial int, seed int64, noise float64, maxIterations int) (trialOutcome, error) {
	rng := rand.New(rand.NewSource(seed))

	stored := make([]core.Pattern, load)
	for k := range stored {
		stored[k] = patterns.Random(rng, size)
	}

	net, err := core.NewNetwork(size)
	if err != nil {
		return trialOutcome{}, err
	}
	if err := net.Train(stored); err != nil {
		return trialOutcome{}, err
	}

	target := stored[trial%load]
	probe, _, err := patterns.AddNoise(rng, target, noise)
	if err != nil {
		return trialOutcome{}, err
	}
	res, err := net.RecallWithLimit(probe, maxIterations)
	if err != nil {
		return trialOutcome{}, err
	}
	return trialOutcome{
		recovered: res.Pattern.Equal(target),
		converged: res.Converged,
		sweeps:    res.Sweeps,
	}, nil
}
