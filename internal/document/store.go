package document

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store is the in-memory registry notes are looked up in by id. A note may
// be replaced at any time (for example when it is reloaded from disk), so
// callers must not hold on to a *Note across operations.
type Store struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]*Note
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{notes: make(map[uuid.UUID]*Note)}
}

// Note returns the current note with the given id.
func (s *Store) Note(id uuid.UUID) (*Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	return n, ok
}

// Put adds n or replaces the note with the same id.
func (s *Store) Put(n *Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
}

// Delete removes the note with the given id.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	return ok
}

// List returns all notes ordered by title, then id.
func (s *Store) List() []*Note {
	s.mu.RLock()
	out := make([]*Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Note) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// ResolveElement looks up a note and one of its elements.
func (s *Store) ResolveElement(noteID, elementID uuid.UUID) (*Note, *Element, bool) {
	n, ok := s.Note(noteID)
	if !ok {
		return nil, nil, false
	}
	e, ok := n.Find(elementID)
	if !ok {
		return nil, nil, false
	}
	return n, e, true
}
