// internal/core/errors.go
package core

import "errors"

// Every message carries the "hopfield:" prefix. Callers match with errors.Is;
// the engine wraps these with the offending sizes/indices.
var (
	// ErrInvalidSize - network size must be a positive integer
	ErrInvalidSize = errors.New("hopfield: network size must be positive")

	// ErrDimensionMismatch - a pattern length differs from the network size
	ErrDimensionMismatch = errors.New("hopfield: dimension mismatch")

	// ErrNonBinary - a pattern holds a value outside {0,1}
	ErrNonBinary = errors.New("hopfield: non-binary pattern value")

	// ErrInvalidIterationBound - max iterations is negative
	ErrInvalidIterationBound = errors.New("hopfield: max iterations must be >= 0")
)
