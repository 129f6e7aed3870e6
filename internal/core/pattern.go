// internal/core/pattern.go
package core

import "fmt"

// Pattern - binary pattern, one value in {0,1} per neuron
type Pattern []int

// Clone returns an independent copy.
func (p Pattern) Clone() Pattern {
	if p == nil {
		return nil
	}
	out := make(Pattern, len(p))
	copy(out, p)
	return out
}

func (p Pattern) Equal(other Pattern) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Sum - number of active (1) cells
func (p Pattern) Sum() int {
	total := 0
	for _, v := range p {
		total += v
	}
	return total
}

// Hamming - number of positions where p and other differ.
// Panics if lengths differ.
func (p Pattern) Hamming(other Pattern) int {
	if len(p) != len(other) {
		panic(fmt.Sprintf("hamming: length %d != %d", len(p), len(other)))
	}
	d := 0
	for i := range p {
		if p[i] != other[i] {
			d++
		}
	}
	return d
}

// Validate checks the pattern fits a network of size n.
func (p Pattern) Validate(n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: pattern has %d elements, network size is %d", ErrDimensionMismatch, len(p), n)
	}
	for i, v := range p {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: value %d at index %d", ErrNonBinary, v, i)
		}
	}
	return nil
}

// Bipolar - 2b-1 encoding into {-1,+1}
func (p Pattern) Bipolar() []float64 {
	v := make([]float64, len(p))
	for i, b := range p {
		v[i] = float64(2*b - 1)
	}
	return v
}

// FromBipolar maps a {-1,+1} state back to {0,1}.
func FromBipolar(state []float64) Pattern {
	p := make(Pattern, len(state))
	for i, s := range state {
		if s > 0 {
			p[i] = 1
		}
	}
	return p
}
