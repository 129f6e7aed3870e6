// internal/patterns/noise.go
package patterns

import (
	"fmt"
	"math/rand"

	"github.com/lumix-ai/hopfield/internal/core"
)

// Config - noise injection settings
type Config struct {
	Level float64 `yaml:"level"`
	Seed  int64   `yaml:"seed"` // 0 means time-seeded
}

// DefaultNoiseLevel - fraction of cells flipped by AddNoise when unset
const DefaultNoiseLevel = 0.15

// AddNoise returns a copy of p with exactly int(len(p)*level) distinct cells flipped.
func AddNoise(rng *rand.Rand, p core.Pattern, level float64) (core.Pattern, int, error) {
	if level < 0 || level > 1 {
		return nil, 0, fmt.Errorf("noise level %v outside [0,1]", level)
	}
	flips := int(float64(len(p)) * level)
	out := p.Clone()
	for _, idx := range rng.Perm(len(p))[:flips] {
		out[idx] = 1 - out[idx]
	}
	return out, flips, nil
}

// Random - uniformly random pattern of n cells
func Random(rng *rand.Rand, n int) core.Pattern {
	p := make(core.Pattern, n)
	for i := range p {
		p[i] = rng.Intn(2)
	}
	return p
}
