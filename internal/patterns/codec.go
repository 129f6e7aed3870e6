// internal/patterns/codec.go
package patterns

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/lumix-ai/hopfield/internal/core"
)

var ErrParse = errors.New("patterns: invalid pattern text")

// Parse - reads '0'/'1' cells; whitespace and , / | separators are ignored
func Parse(s string) (core.Pattern, error) {
	p := make(core.Pattern, 0, len(s))
	for i, r := range s {
		switch {
		case r == '0':
			p = append(p, 0)
		case r == '1':
			p = append(p, 1)
		case r == ',' || r == '/' || r == '|' || unicode.IsSpace(r):
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrParse, r, i)
		}
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: no cells", ErrParse)
	}
	return p, nil
}

// Format - compact "0101" form accepted by Parse
func Format(p core.Pattern) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, v := range p {
		if v == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Grid renders p as rows of width cells, '#' for 1 and '.' for 0.
// A short last row is printed as-is.
func Grid(p core.Pattern, width int) string {
	if width <= 0 {
		width = len(p)
	}
	var b strings.Builder
	for i, v := range p {
		if i > 0 && i%width == 0 {
			b.WriteByte('\n')
		}
		if v == 1 {
			b.WriteByte('#')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
