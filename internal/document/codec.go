package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
)

type elementJSON struct {
	ID       uuid.UUID     `json:"id"`
	Kind     Kind          `json:"kind"`
	Text     Text          `json:"text"`
	Children []elementJSON `json:"children,omitempty"`
}

type noteJSON struct {
	ID        uuid.UUID   `json:"id"`
	Title     string      `json:"title"`
	UpdatedAt time.Time   `json:"updated_at"`
	Root      elementJSON `json:"root"`
}

func toJSON(e *Element) elementJSON {
	out := elementJSON{ID: e.ID, Kind: e.Kind, Text: e.Text}
	for _, c := range e.children {
		out.Children = append(out.Children, toJSON(c))
	}
	return out
}

func fromJSON(raw elementJSON, seen map[uuid.UUID]struct{}) (*Element, error) {
	if raw.ID == uuid.Nil {
		return nil, fmt.Errorf("document: decode: element without id: %w", apperr.ErrInvalid)
	}
	if _, dup := seen[raw.ID]; dup {
		return nil, fmt.Errorf("document: decode: duplicate element %s: %w", raw.ID, apperr.ErrInvalid)
	}
	seen[raw.ID] = struct{}{}
	if raw.Kind.Type == "" {
		raw.Kind = Plain()
	}
	e := &Element{ID: raw.ID, Kind: raw.Kind, Text: raw.Text}
	for _, rc := range raw.Children {
		c, err := fromJSON(rc, seen)
		if err != nil {
			return nil, err
		}
		c.parent = e.ID
		e.children = append(e.children, c)
	}
	return e, nil
}

// EncodeElement serializes e and its whole subtree into a snapshot that
// shares nothing with the live tree.
func EncodeElement(e *Element) ([]byte, error) {
	data, err := json.Marshal(toJSON(e))
	if err != nil {
		return nil, fmt.Errorf("document: encode element %s: %w", e.ID, err)
	}
	return data, nil
}

// DecodeElement rebuilds a detached subtree from a snapshot.
func DecodeElement(data []byte) (*Element, error) {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: decode element: %w", err)
	}
	return fromJSON(raw, make(map[uuid.UUID]struct{}))
}

// EncodeNote serializes n in the vault document format.
func EncodeNote(n *Note) ([]byte, error) {
	data, err := json.MarshalIndent(noteJSON{
		ID:        n.ID,
		Title:     n.Title,
		UpdatedAt: n.UpdatedAt,
		Root:      toJSON(n.root),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("document: encode note %s: %w", n.ID, err)
	}
	return append(data, '\n'), nil
}

// DecodeNote parses a vault document.
func DecodeNote(data []byte) (*Note, error) {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: decode note: %w", err)
	}
	if raw.ID == uuid.Nil {
		return nil, fmt.Errorf("document: decode note: missing id: %w", apperr.ErrInvalid)
	}
	if raw.Root.ID == uuid.Nil {
		raw.Root.ID = uuid.New()
	}
	root, err := fromJSON(raw.Root, make(map[uuid.UUID]struct{}))
	if err != nil {
		return nil, err
	}
	n := newNote(raw.ID, raw.Title, root)
	n.UpdatedAt = raw.UpdatedAt
	return n, nil
}

// Checksum returns the hex-encoded SHA-256 digest of an encoded document.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
