// Package script describes edits declaratively. A Step names one editing
// operation with its arguments; steps are decoded from JSON (API, MCP) or
// YAML (replay files), validated and turned into commands.
package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
)

// Step operations.
const (
	OpType            = "type"
	OpInsertText      = "insert_text"
	OpDeleteText      = "delete_text"
	OpBackspace       = "backspace"
	OpForwardDelete   = "forward_delete"
	OpReplaceText     = "replace_text"
	OpInsertElement   = "insert_element"
	OpDeleteElement   = "delete_element"
	OpReparent        = "reparent"
	OpIndent          = "indent"
	OpOutdent         = "outdent"
	OpSplit           = "split"
	OpFormatKind      = "format_kind"
	OpFormatAttribute = "format_attribute"
	OpFocus           = "focus"
	OpSelect          = "select"
	OpUndo            = "undo"
	OpRedo            = "redo"
	OpZoom            = "zoom"
	OpZoomOut         = "zoom_out"
)

var ops = []any{
	OpType, OpInsertText, OpDeleteText, OpBackspace, OpForwardDelete, OpReplaceText,
	OpInsertElement, OpDeleteElement, OpReparent, OpIndent, OpOutdent, OpSplit,
	OpFormatKind, OpFormatAttribute, OpFocus, OpSelect, OpUndo, OpRedo,
	OpZoom, OpZoomOut,
}

var attributes = []any{"bold", "italic", "underline", "strikethrough", "code", "link"}

var kinds = []any{
	string(document.KindPlain), string(document.KindHeading1), string(document.KindHeading2),
	string(document.KindHeading3), string(document.KindQuote), string(document.KindCode),
	string(document.KindTodo), string(document.KindDone), string(document.KindImage),
}

// Step is one declarative edit.
//
// Element, Parent and After reference elements either by uuid or by an
// index path from the root such as "0" (first top-level element) or "2.1"
// (second child of the third). An empty Parent means the root; an empty
// After inserts at the head.
type Step struct {
	Op        string `json:"op" yaml:"op"`
	Element   string `json:"element,omitempty" yaml:"element,omitempty"`
	Parent    string `json:"parent,omitempty" yaml:"parent,omitempty"`
	After     string `json:"after,omitempty" yaml:"after,omitempty"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	Cursor    int    `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Start     int    `json:"start,omitempty" yaml:"start,omitempty"`
	End       int    `json:"end,omitempty" yaml:"end,omitempty"`
	Index     int    `json:"index,omitempty" yaml:"index,omitempty"`
	Kind      string `json:"kind,omitempty" yaml:"kind,omitempty"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
}

func needsElement(op string) bool {
	switch op {
	case OpInsertElement, OpSelect, OpUndo, OpRedo, OpZoomOut, "":
		return false
	}
	return true
}

func isRange(op string) bool {
	return op == OpDeleteText || op == OpReplaceText || op == OpSelect || op == OpFormatAttribute
}

// Validate checks the arguments required by the operation.
func (s *Step) Validate() error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.Op, validation.Required, validation.In(ops...)),
		validation.Field(&s.Element, validation.When(needsElement(s.Op), validation.Required)),
		validation.Field(&s.Text, validation.When(s.Op == OpType || s.Op == OpInsertText, validation.Required)),
		validation.Field(&s.Cursor, validation.Min(0)),
		validation.Field(&s.Start, validation.Min(0)),
		validation.Field(&s.Index, validation.Min(0)),
		validation.Field(&s.Kind,
			validation.When(s.Op == OpFormatKind, validation.Required),
			validation.In(kinds...)),
		validation.Field(&s.File, validation.When(s.Kind == string(document.KindImage), validation.Required)),
		validation.Field(&s.Attribute,
			validation.When(s.Op == OpFormatAttribute, validation.Required),
			validation.In(attributes...)),
		validation.Field(&s.URL, validation.When(s.Attribute == "link", validation.Required)),
	)
	if err != nil {
		return err
	}
	if isRange(s.Op) && s.End < s.Start {
		return validation.Errors{"end": errors.New("must be no less than start")}
	}
	return nil
}

// IsNavigation reports whether op only moves the view (zoom) and leaves
// both the note and the history untouched.
func IsNavigation(op string) bool {
	return op == OpZoom || op == OpZoomOut
}

// Build turns the step into a command against note n. History operations
// (undo, redo) and navigation have no command and are rejected here.
func (s *Step) Build(n *document.Note) (command.Command, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("script: %s: %w: %v", s.Op, apperr.ErrInvalid, err)
	}

	var el uuid.UUID
	if needsElement(s.Op) {
		id, err := Resolve(n, s.Element)
		if err != nil {
			return nil, err
		}
		el = id
	}

	switch s.Op {
	case OpType:
		return command.TypeText(n.ID, el, s.Text, s.Cursor), nil
	case OpInsertText:
		return command.NewInsertText(n.ID, el, document.NewText(s.Text), s.Cursor), nil
	case OpDeleteText:
		return command.NewDeleteText(n.ID, el, document.NewRange(s.Start, s.End)), nil
	case OpBackspace:
		return command.Backspace(n.ID, el, s.Cursor), nil
	case OpForwardDelete:
		return command.ForwardDelete(n.ID, el, s.Cursor), nil
	case OpReplaceText:
		return command.NewReplaceText(n.ID, el, document.NewRange(s.Start, s.End), document.NewText(s.Text)), nil
	case OpInsertElement:
		return s.buildInsert(n)
	case OpDeleteElement:
		return command.NewDeleteElement(n.ID, el), nil
	case OpReparent:
		parent, err := s.resolveParent(n)
		if err != nil {
			return nil, err
		}
		return command.NewReparentElement(n.ID, el, parent, s.Index), nil
	case OpIndent:
		return command.Indent(n, el)
	case OpOutdent:
		return command.Outdent(n, el)
	case OpSplit:
		return command.SplitElement(n, el, s.Cursor)
	case OpFormatKind:
		kind, err := s.kind()
		if err != nil {
			return nil, err
		}
		return command.NewFormatKind(n.ID, el, kind), nil
	case OpFormatAttribute:
		attr := s.attribute()
		if s.Start == 0 && s.End == 0 {
			return &command.FormatText{NoteID: n.ID, ElementID: el, Attribute: &attr}, nil
		}
		return command.NewFormatAttribute(n.ID, el, attr, document.NewRange(s.Start, s.End)), nil
	case OpFocus:
		return command.NewFocusElement(n.ID, el, s.Cursor), nil
	case OpSelect:
		return command.NewSetSelection(document.NewRange(s.Start, s.End)), nil
	}
	return nil, fmt.Errorf("script: %s has no command: %w", s.Op, apperr.ErrInvalid)
}

func (s *Step) buildInsert(n *document.Note) (command.Command, error) {
	parent, err := s.resolveParent(n)
	if err != nil {
		return nil, err
	}
	var after uuid.UUID
	if s.After != "" {
		if after, err = Resolve(n, s.After); err != nil {
			return nil, err
		}
	}
	kind := document.Plain()
	if s.Kind != "" {
		if kind, err = s.kind(); err != nil {
			return nil, err
		}
	}
	return command.NewInsertElement(n.ID, parent, document.NewElement(kind, document.NewText(s.Text)), after)
}

func (s *Step) resolveParent(n *document.Note) (uuid.UUID, error) {
	if s.Parent == "" {
		return n.Root().ID, nil
	}
	return Resolve(n, s.Parent)
}

func (s *Step) kind() (document.Kind, error) {
	t, err := document.ParseKindType(s.Kind)
	if err != nil {
		return document.Kind{}, fmt.Errorf("script: %w: %v", apperr.ErrInvalid, err)
	}
	if t != document.KindImage {
		return document.OfType(t), nil
	}
	fileID, err := uuid.Parse(s.File)
	if err != nil {
		return document.Kind{}, fmt.Errorf("script: file %q: %w", s.File, apperr.ErrInvalid)
	}
	return document.Image(fileID, "", document.DisplayInfo{}), nil
}

func (s *Step) attribute() document.Attribute {
	if s.Attribute == "link" {
		return document.Link(s.URL)
	}
	return document.Attribute{Name: s.Attribute}
}

// Resolve maps an element reference (uuid or index path) to an element id
// of n.
func Resolve(n *document.Note, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if _, ok := n.Find(id); !ok {
			return uuid.Nil, fmt.Errorf("script: element %s: %w", id, apperr.ErrNotFound)
		}
		return id, nil
	}
	if ref == "" {
		return uuid.Nil, fmt.Errorf("script: empty element reference: %w", apperr.ErrInvalid)
	}
	cur := n.Root()
	for _, part := range strings.Split(ref, ".") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return uuid.Nil, fmt.Errorf("script: element path %q: %w", ref, apperr.ErrInvalid)
		}
		if i >= cur.ChildCount() {
			return uuid.Nil, fmt.Errorf("script: element path %q: %w", ref, apperr.ErrNotFound)
		}
		cur = cur.Child(i)
	}
	return cur.ID, nil
}
