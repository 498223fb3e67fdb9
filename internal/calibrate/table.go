// Package calibrate maps raw sensor ranges onto ordered discrete alert bands.
package calibrate

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults of the reference indicator board (16-bit ADC, 10 LEDs).
const (
	DefaultRawMin = 13475
	DefaultRawMax = 64655
	DefaultBands  = 10
)

var (
	// ErrInvalidRange is returned when raw_max <= raw_min.
	ErrInvalidRange = errors.New("raw max must be greater than raw min")
	// ErrInvalidBands is returned when the band count is below one.
	ErrInvalidBands = errors.New("band count must be at least 1")
)

// Table holds N ascending cut points derived from a raw range.
// It is immutable after construction.
type Table struct {
	rawMin int
	rawMax int
	cuts   []int
}

// New builds a table for the given range and band count.
// Cut point i is rawMin + floor((rawMax-rawMin)*(i+1)/n).
func New(rawMin, rawMax, n int) (*Table, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBands, n)
	}
	if rawMax <= rawMin {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidRange, rawMin, rawMax)
	}
	if n > rawMax-rawMin {
		// Cut points would repeat and the bar could not be strictly ascending.
		return nil, fmt.Errorf("%w: %d bands over a span of %d", ErrInvalidBands, n, rawMax-rawMin)
	}

	span := int64(rawMax - rawMin)
	cuts := make([]int, n)
	for i := 0; i < n; i++ {
		cuts[i] = rawMin + int(span*int64(i+1)/int64(n))
	}

	return &Table{rawMin: rawMin, rawMax: rawMax, cuts: cuts}, nil
}

// MustNew is like New but panics on error. Intended for constants.
func MustNew(rawMin, rawMax, n int) *Table {
	t, err := New(rawMin, rawMax, n)
	if err != nil {
		panic(err)
	}
	return t
}

// Bands returns the number of bands.
func (t *Table) Bands() int {
	return len(t.cuts)
}

// Cuts returns a copy of the cut points.
func (t *Table) Cuts() []int {
	out := make([]int, len(t.cuts))
	copy(out, t.cuts)
	return out
}

// Cut returns cut point i.
func (t *Table) Cut(i int) int {
	return t.cuts[i]
}

// Range returns the raw range the table was built from.
func (t *Table) Range() (rawMin, rawMax int) {
	return t.rawMin, t.rawMax
}

// Activate returns the bar activation vector for v. Band i is active iff
// v >= cut[i], so once a band is lit all lower bands are lit too.
func (t *Table) Activate(v int) []bool {
	out := make([]bool, len(t.cuts))
	for i, c := range t.cuts {
		out[i] = v >= c
	}
	return out
}

// Level returns the number of active bands for v.
func (t *Table) Level(v int) int {
	n := 0
	for _, c := range t.cuts {
		if v < c {
			break
		}
		n++
	}
	return n
}

// Percent maps v onto 0-100 across the raw range, clamped.
func (t *Table) Percent(v int) int {
	if v <= t.rawMin {
		return 0
	}
	if v >= t.rawMax {
		return 100
	}
	return int(int64(v-t.rawMin) * 100 / int64(t.rawMax-t.rawMin))
}

// Bar renders an activation vector as a text bar, e.g. "[###-------]".
func Bar(active []bool) string {
	var b strings.Builder
	b.Grow(len(active) + 2)
	b.WriteByte('[')
	for _, on := range active {
		if on {
			b.WriteByte('#')
		} else {
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}
