package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/command"
	"github.com/starford/sowilo/internal/document"
)

// Script is a replay file: an optional starting outline in Markdown and
// the steps to apply to it.
type Script struct {
	Title   string `yaml:"title"`
	Outline string `yaml:"outline"`
	Steps   []Step `yaml:"steps"`
}

// Validate validates the script and each of its steps.
func (s *Script) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Steps, validation.Required),
	); err != nil {
		return err
	}
	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Load reads and validates a YAML script. Unknown keys are rejected.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("script: parse: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("script: %w: %v", apperr.ErrInvalid, err)
	}
	return &s, nil
}

// ErrRejected is returned when a step built fine but its command, or the
// undo or redo it asked for, did not apply.
var ErrRejected = errors.New("step rejected")

// Result reports one applied step.
type Result struct {
	Op      string    `json:"op"`
	Command string    `json:"command,omitempty"`
	Element uuid.UUID `json:"element,omitzero"`
}

// Navigator is implemented by contexts that can zoom into an element,
// showing it as the root of the outline.
type Navigator interface {
	ZoomInto(elementID uuid.UUID)
	ZoomOut() bool
}

// Runner applies steps to one note through a history manager. Context may
// be nil for headless runs.
type Runner struct {
	Manager *command.Manager
	Context command.Context
	Notes   command.NoteResolver
	NoteID  uuid.UUID
}

// Apply runs steps in order and stops at the first failure. Steps applied
// before the failure stay applied, each as its own undo step.
func (r *Runner) Apply(steps []Step) ([]Result, error) {
	results := make([]Result, 0, len(steps))
	for i := range steps {
		res, err := r.apply(&steps[i])
		if err != nil {
			return results, fmt.Errorf("script: step %d (%s): %w", i, steps[i].Op, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) apply(s *Step) (Result, error) {
	res := Result{Op: s.Op}
	switch s.Op {
	case OpUndo:
		res.Command = r.Manager.UndoName()
		if !r.Manager.Undo(r.Context) {
			return res, ErrRejected
		}
		return res, nil
	case OpRedo:
		res.Command = r.Manager.RedoName()
		if !r.Manager.Redo(r.Context) {
			return res, ErrRejected
		}
		return res, nil
	}

	n, ok := r.Notes.Note(r.NoteID)
	if !ok {
		return res, fmt.Errorf("note %s: %w", r.NoteID, apperr.ErrNotFound)
	}
	if IsNavigation(s.Op) {
		return r.navigate(n, s)
	}
	cmd, err := s.Build(n)
	if err != nil {
		return res, err
	}
	res.Command = cmd.Name()
	res.Element = createdElement(cmd)
	if !r.Manager.Run(cmd, r.Context) {
		return res, ErrRejected
	}
	return res, nil
}

func (r *Runner) navigate(n *document.Note, s *Step) (Result, error) {
	res := Result{Op: s.Op}
	if err := s.Validate(); err != nil {
		return res, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	nav, ok := r.Context.(Navigator)
	if !ok {
		return res, ErrRejected
	}
	if s.Op == OpZoomOut {
		if !nav.ZoomOut() {
			return res, ErrRejected
		}
		return res, nil
	}
	id, err := Resolve(n, s.Element)
	if err != nil {
		return res, err
	}
	nav.ZoomInto(id)
	res.Element = id
	return res, nil
}

func createdElement(cmd command.Command) uuid.UUID {
	switch c := cmd.(type) {
	case *command.InsertElement:
		return c.ElementID
	case *command.Group:
		for _, sub := range c.Commands() {
			if id := createdElement(sub); id != uuid.Nil {
				return id
			}
		}
	}
	return uuid.Nil
}
