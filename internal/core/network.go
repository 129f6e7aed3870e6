// internal/core/network.go
package core

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxIterations - sweep cap used by Recall
const DefaultMaxIterations = 100

// Network - Hopfield associative memory trained with the Hebbian rule.
// Train holds the write lock; Recall and Energy share the read lock.
type Network struct {
	size     int
	weights  *mat.SymDense
	patterns []Pattern
	mu       sync.RWMutex
}

// RecallResult - outcome of one relaxation run
type RecallResult struct {
	Pattern   Pattern
	History   []Pattern // probe followed by one snapshot per sweep
	Sweeps    int
	Converged bool
}

// Clone returns a deep copy the caller may mutate freely.
func (r *RecallResult) Clone() *RecallResult {
	out := &RecallResult{
		Pattern:   r.Pattern.Clone(),
		History:   make([]Pattern, len(r.History)),
		Sweeps:    r.Sweeps,
		Converged: r.Converged,
	}
	for i, h := range r.History {
		out.History[i] = h.Clone()
	}
	return out
}

// NewNetwork - untrained network of size neurons (all-zero weights)
func NewNetwork(size int) (*Network, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	return &Network{
		size:    size,
		weights: mat.NewSymDense(size, nil),
	}, nil
}

func (n *Network) Size() int { return n.size }

// Train rebuilds the weight matrix from scratch:
// W = sum of v vᵀ over the bipolar patterns, diagonal zeroed, then divided by K.
// An empty set leaves the all-zero matrix. Nothing changes if any pattern is invalid.
func (n *Network) Train(patterns []Pattern) error {
	for k, p := range patterns {
		if err := p.Validate(n.size); err != nil {
			return fmt.Errorf("train: pattern %d: %w", k, err)
		}
	}

	w := mat.NewSymDense(n.size, nil)
	for _, p := range patterns {
		w.SymRankOne(w, 1, mat.NewVecDense(n.size, p.Bipolar()))
	}

	for i := 0; i < n.size; i++ {
		w.SetSym(i, i, 0)
	}

	if k := len(patterns); k > 0 {
		count := float64(k)
		for i := 0; i < n.size; i++ {
			for j := i + 1; j < n.size; j++ {
				w.SetSym(i, j, w.At(i, j)/count)
			}
		}
	}

	stored := make([]Pattern, len(patterns))
	for k, p := range patterns {
		stored[k] = p.Clone()
	}

	n.mu.Lock()
	n.weights = w
	n.patterns = stored
	n.mu.Unlock()
	return nil
}

// Recall relaxes probe with the default sweep cap.
func (n *Network) Recall(probe Pattern) (*RecallResult, error) {
	return n.RecallWithLimit(probe, DefaultMaxIterations)
}

// RecallWithLimit runs up to maxIterations asynchronous sweeps, stopping early
// once a sweep leaves the state unchanged. Running out of sweeps is not an error;
// check Converged.
func (n *Network) RecallWithLimit(probe Pattern, maxIterations int) (*RecallResult, error) {
	if maxIterations < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIterationBound, maxIterations)
	}
	if err := probe.Validate(n.size); err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	state := probe.Bipolar()
	prev := make([]float64, n.size)
	result := &RecallResult{
		History: []Pattern{probe.Clone()},
	}

	for sweep := 0; sweep < maxIterations; sweep++ {
		copy(prev, state)
		n.sweep(state)

		result.Sweeps++
		result.History = append(result.History, FromBipolar(state))

		if floats.Equal(prev, state) {
			result.Converged = true
			break
		}
	}

	result.Pattern = FromBipolar(state)
	return result, nil
}

// sweep updates neurons 0..N-1 in place; later neurons see earlier updates.
// net == 0 resolves to +1.
func (n *Network) sweep(state []float64) {
	for i := 0; i < n.size; i++ {
		net := 0.0
		for j := 0; j < n.size; j++ {
			net += n.weights.At(i, j) * state[j]
		}
		if net >= 0 {
			state[i] = 1
		} else {
			state[i] = -1
		}
	}
}

// Energy - E = -0.5 vᵀWv for the bipolar encoding of p
func (n *Network) Energy(p Pattern) (float64, error) {
	if err := p.Validate(n.size); err != nil {
		return 0, fmt.Errorf("energy: %w", err)
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	v := mat.NewVecDense(n.size, p.Bipolar())
	return -0.5 * mat.Inner(v, n.weights, v), nil
}

// Weights returns a copy of the current weight matrix.
func (n *Network) Weights() *mat.SymDense {
	n.mu.RLock()
	defer n.mu.RUnlock()

	w := mat.NewSymDense(n.size, nil)
	w.CopySym(n.weights)
	return w
}

// Patterns returns a copy of the set used for the last Train call.
func (n *Network) Patterns() []Pattern {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Pattern, len(n.patterns))
	for i, p := range n.patterns {
		out[i] = p.Clone()
	}
	return out
}
