package document

import "fmt"

// Range is a half-open interval [Start, End) over the Unicode scalars of a Text.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// NewRange returns the range [start, end).
func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

// At returns the empty range positioned at i.
func At(i int) Range {
	return Range{Start: i, End: i}
}

// Len returns the number of scalars covered by r.
func (r Range) Len() int { return r.End - r.Start }

// IsEmpty reports whether r covers no scalars.
func (r Range) IsEmpty() bool { return r.End <= r.Start }

// Valid reports whether r lies within 0...length.
func (r Range) Valid(length int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= length
}

// Shift moves r by d scalars.
func (r Range) Shift(d int) Range {
	return Range{Start: r.Start + d, End: r.End + d}
}

// Intersect returns the overlap of r and o, if any.
func (r Range) Intersect(o Range) (Range, bool) {
	out := Range{Start: max(r.Start, o.Start), End: min(r.End, o.End)}
	if out.Start >= out.End {
		return Range{}, false
	}
	return out, true
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}
