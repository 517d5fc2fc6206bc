package document

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// Attribute is a formatting tag applied over a run of text. Value carries
// the payload of valued attributes such as links.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Common attributes.
var (
	Bold          = Attribute{Name: "bold"}
	Italic        = Attribute{Name: "italic"}
	Underline     = Attribute{Name: "underline"}
	Strikethrough = Attribute{Name: "strikethrough"}
	InlineCode    = Attribute{Name: "code"}
)

// Link returns a link attribute pointing at url.
func Link(url string) Attribute {
	return Attribute{Name: "link", Value: url}
}

func (a Attribute) String() string {
	if a.Value == "" {
		return a.Name
	}
	return a.Name + "=" + a.Value
}

func compareAttributes(a, b Attribute) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

// Span is an attribute applied over a range of scalars.
type Span struct {
	Attribute Attribute `json:"attribute"`
	Range     Range     `json:"range"`
}

// Text is attributed text: a sequence of Unicode scalars plus attribute
// spans. A Text value is immutable; every operation returns a new value, so
// copies are cheap snapshots.
//
// Spans of one attribute are kept sorted, disjoint and non-adjacent.
// Different attributes may overlap freely.
type Text struct {
	runes []rune
	spans []Span
}

// NewText returns unattributed text holding s.
func NewText(s string) Text {
	if s == "" {
		return Text{}
	}
	return Text{runes: []rune(s)}
}

// NewAttributedText returns s with every attribute applied over its full length.
func NewAttributedText(s string, attrs ...Attribute) Text {
	t := NewText(s)
	return t.AddAttributes(attrs, NewRange(0, t.Len()))
}

// Len returns the number of scalars.
func (t Text) Len() int { return len(t.runes) }

// IsEmpty reports whether t holds no scalars.
func (t Text) IsEmpty() bool { return len(t.runes) == 0 }

func (t Text) String() string { return string(t.runes) }

// Spans returns a copy of the attribute spans.
func (t Text) Spans() []Span { return slices.Clone(t.spans) }

func (t Text) mustContain(r Range) {
	if !r.Valid(len(t.runes)) {
		panic(fmt.Sprintf("document: range %s out of bounds [0,%d]", r, len(t.runes)))
	}
}

// Extract returns the attributed subtext covered by r.
func (t Text) Extract(r Range) Text {
	t.mustContain(r)
	out := Text{runes: slices.Clone(t.runes[r.Start:r.End])}
	for _, s := range t.spans {
		if in, ok := s.Range.Intersect(r); ok {
			out.spans = append(out.spans, Span{Attribute: s.Attribute, Range: in.Shift(-r.Start)})
		}
	}
	return out
}

// Insert splices s into t at position at.
func (t Text) Insert(s Text, at int) Text {
	return t.ReplaceSubrange(At(at), s)
}

// Remove deletes count scalars starting at position at.
func (t Text) Remove(count, at int) Text {
	return t.ReplaceSubrange(NewRange(at, at+count), Text{})
}

// Append returns t followed by s.
func (t Text) Append(s Text) Text {
	return t.ReplaceSubrange(At(t.Len()), s)
}

// ReplaceSubrange replaces the scalars in r with the contents of with.
// Spans crossing the edges of r are clipped; the inserted text carries
// only its own attributes.
func (t Text) ReplaceSubrange(r Range, with Text) Text {
	t.mustContain(r)

	runes := make([]rune, 0, len(t.runes)-r.Len()+len(with.runes))
	runes = append(runes, t.runes[:r.Start]...)
	runes = append(runes, with.runes...)
	runes = append(runes, t.runes[r.End:]...)

	delta := len(with.runes) - r.Len()
	spans := make([]Span, 0, len(t.spans)+len(with.spans))
	for _, s := range t.spans {
		if s.Range.Start < r.Start {
			spans = append(spans, Span{Attribute: s.Attribute, Range: NewRange(s.Range.Start, min(s.Range.End, r.Start))})
		}
		if s.Range.End > r.End {
			spans = append(spans, Span{Attribute: s.Attribute, Range: NewRange(max(s.Range.Start, r.End)+delta, s.Range.End+delta)})
		}
	}
	for _, s := range with.spans {
		spans = append(spans, Span{Attribute: s.Attribute, Range: s.Range.Shift(r.Start)})
	}
	if len(runes) == 0 {
		runes = nil
	}
	return Text{runes: runes, spans: normalize(spans)}
}

// AddAttributes applies attrs over r.
func (t Text) AddAttributes(attrs []Attribute, r Range) Text {
	t.mustContain(r)
	if r.IsEmpty() || len(attrs) == 0 {
		return t
	}
	spans := slices.Clone(t.spans)
	for _, a := range attrs {
		spans = append(spans, Span{Attribute: a, Range: r})
	}
	return Text{runes: t.runes, spans: normalize(spans)}
}

// RemoveAttributes clears attrs over r, splitting spans that extend past it.
func (t Text) RemoveAttributes(attrs []Attribute, r Range) Text {
	t.mustContain(r)
	if r.IsEmpty() || len(attrs) == 0 {
		return t
	}
	spans := make([]Span, 0, len(t.spans)+1)
	for _, s := range t.spans {
		if !slices.Contains(attrs, s.Attribute) {
			spans = append(spans, s)
			continue
		}
		if _, ok := s.Range.Intersect(r); !ok {
			spans = append(spans, s)
			continue
		}
		if s.Range.Start < r.Start {
			spans = append(spans, Span{Attribute: s.Attribute, Range: NewRange(s.Range.Start, r.Start)})
		}
		if s.Range.End > r.End {
			spans = append(spans, Span{Attribute: s.Attribute, Range: NewRange(r.End, s.Range.End)})
		}
	}
	return Text{runes: t.runes, spans: normalize(spans)}
}

// HasAttribute reports whether every scalar in r carries a. An empty range
// never carries anything.
func (t Text) HasAttribute(a Attribute, r Range) bool {
	if r.IsEmpty() || !r.Valid(len(t.runes)) {
		return false
	}
	for _, s := range t.spans {
		if s.Attribute == a && s.Range.Start <= r.Start && s.Range.End >= r.End {
			return true
		}
	}
	return false
}

// AttributesAt returns the attributes applied to the scalar at position i.
func (t Text) AttributesAt(i int) []Attribute {
	var out []Attribute
	for _, s := range t.spans {
		if s.Range.Start <= i && i < s.Range.End {
			out = append(out, s.Attribute)
		}
	}
	return out
}

// Equal reports whether t and o hold the same scalars and spans.
func (t Text) Equal(o Text) bool {
	return slices.Equal(t.runes, o.runes) && slices.Equal(t.spans, o.spans)
}

// normalize sorts spans by attribute then position, merges overlapping or
// touching spans of the same attribute and drops empty ones. It reuses the
// backing array of spans, so callers must pass a slice they own.
func normalize(spans []Span) []Span {
	spans = slices.DeleteFunc(spans, func(s Span) bool { return s.Range.IsEmpty() })
	if len(spans) == 0 {
		return nil
	}
	slices.SortFunc(spans, func(a, b Span) int {
		if c := compareAttributes(a.Attribute, b.Attribute); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Range.Start, b.Range.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Range.End, b.Range.End)
	})
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if last.Attribute == s.Attribute && s.Range.Start <= last.Range.End {
			last.Range.End = max(last.Range.End, s.Range.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

type textJSON struct {
	String string `json:"string"`
	Spans  []Span `json:"spans,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(textJSON{String: t.String(), Spans: t.spans})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	var raw textJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewText(raw.String)
	for _, s := range raw.Spans {
		if !s.Range.Valid(out.Len()) {
			return fmt.Errorf("document: span %s %s out of bounds [0,%d]", s.Attribute, s.Range, out.Len())
		}
	}
	out.spans = normalize(slices.Clone(raw.Spans))
	*t = out
	return nil
}
