package session

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
	"github.com/starford/sowilo/internal/script"
)

// View is the headless UI state of a session: caret, selection, expanded
// elements, zoom breadcrumb and toggled formatting buttons. It implements
// command.Context.
type View struct {
	focus    command.Focus
	hasFocus bool

	sel    document.Range
	hasSel bool

	expanded   map[uuid.UUID]struct{}
	breadcrumb []uuid.UUID
	active     map[document.Attribute]bool
}

var _ command.Context = (*View)(nil)

// NewView returns an empty view.
func NewView() *View {
	return &View{
		expanded: make(map[uuid.UUID]struct{}),
		active:   make(map[document.Attribute]bool),
	}
}

func (v *View) Focus() (command.Focus, bool) { return v.focus, v.hasFocus }

func (v *View) SetFocus(f command.Focus) {
	v.focus, v.hasFocus = f, true
}

func (v *View) ClearFocus() {
	v.focus, v.hasFocus = command.Focus{}, false
}

func (v *View) Selection() (document.Range, bool) { return v.sel, v.hasSel }

func (v *View) SetSelection(r document.Range) {
	v.sel, v.hasSel = r, true
}

func (v *View) ClearSelection() {
	v.sel, v.hasSel = document.Range{}, false
}

func (v *View) Expand(_, elementID uuid.UUID) {
	v.expanded[elementID] = struct{}{}
}

func (v *View) RemoveFromBreadcrumb(_, elementID uuid.UUID) {
	v.breadcrumb = slices.DeleteFunc(v.breadcrumb, func(id uuid.UUID) bool { return id == elementID })
}

func (v *View) SetAttributeActive(attr document.Attribute, active bool) {
	v.active[attr] = active
}

var _ script.Navigator = (*View)(nil)

// ZoomInto appends an element to the breadcrumb.
func (v *View) ZoomInto(elementID uuid.UUID) {
	v.breadcrumb = append(v.breadcrumb, elementID)
}

// ZoomOut drops the innermost breadcrumb entry. It reports false when the
// view already shows the whole note.
func (v *View) ZoomOut() bool {
	if len(v.breadcrumb) == 0 {
		return false
	}
	v.breadcrumb = v.breadcrumb[:len(v.breadcrumb)-1]
	return true
}

// Reset forgets all state, e.g. after the note was reloaded.
func (v *View) Reset() {
	*v = *NewView()
}

// State is a serializable copy of a View.
type State struct {
	Focus      *command.Focus  `json:"focus,omitempty"`
	Selection  *document.Range `json:"selection,omitempty"`
	Expanded   []uuid.UUID     `json:"expanded"`
	Breadcrumb []uuid.UUID     `json:"breadcrumb"`
	Active     []string        `json:"active"`
	// Caret lists the attributes of the character before the caret, the
	// formatting typed text would sit next to.
	Caret []string `json:"caret"`
}

// Snapshot copies the view into a State.
func (v *View) Snapshot() State {
	s := State{
		Expanded:   make([]uuid.UUID, 0, len(v.expanded)),
		Breadcrumb: slices.Clone(v.breadcrumb),
		Active:     []string{},
		Caret:      []string{},
	}
	if s.Breadcrumb == nil {
		s.Breadcrumb = []uuid.UUID{}
	}
	if v.hasFocus {
		f := v.focus
		s.Focus = &f
	}
	if v.hasSel {
		r := v.sel
		s.Selection = &r
	}
	for id := range v.expanded {
		s.Expanded = append(s.Expanded, id)
	}
	slices.SortFunc(s.Expanded, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	for attr, on := range v.active {
		if on {
			s.Active = append(s.Active, attr.String())
		}
	}
	slices.Sort(s.Active)
	return s
}
