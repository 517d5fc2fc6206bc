package document

import (
	"fmt"

	"github.com/google/uuid"
)

// KindType tags the variant of an element Kind.
type KindType string

const (
	KindPlain    KindType = "plain"
	KindHeading1 KindType = "heading1"
	KindHeading2 KindType = "heading2"
	KindHeading3 KindType = "heading3"
	KindQuote    KindType = "quote"
	KindCode     KindType = "code"
	KindTodo     KindType = "todo"
	KindDone     KindType = "done"
	KindImage    KindType = "image"
)

var kindTypes = []KindType{
	KindPlain, KindHeading1, KindHeading2, KindHeading3,
	KindQuote, KindCode, KindTodo, KindDone, KindImage,
}

// ParseKindType returns the KindType named s.
func ParseKindType(s string) (KindType, error) {
	for _, k := range kindTypes {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("document: unknown kind %q", s)
}

// DisplayInfo describes how an image is laid out.
type DisplayInfo struct {
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// ImageInfo is the payload of an image kind.
type ImageInfo struct {
	FileID  uuid.UUID   `json:"file_id"`
	Origin  string      `json:"origin,omitempty"`
	Display DisplayInfo `json:"display,omitzero"`
}

// Kind is the structural variant of an element. Only image kinds carry a
// payload; Kind values are comparable with ==.
type Kind struct {
	Type  KindType  `json:"type"`
	Image ImageInfo `json:"image,omitzero"`
}

// Plain returns the generic bullet kind.
func Plain() Kind { return Kind{Type: KindPlain} }

// Heading returns the heading kind for level 1-3.
func Heading(level int) Kind {
	switch level {
	case 1:
		return Kind{Type: KindHeading1}
	case 2:
		return Kind{Type: KindHeading2}
	default:
		return Kind{Type: KindHeading3}
	}
}

// Image returns an image kind referencing fileID.
func Image(fileID uuid.UUID, origin string, display DisplayInfo) Kind {
	return Kind{Type: KindImage, Image: ImageInfo{FileID: fileID, Origin: origin, Display: display}}
}

// OfType returns the payload-free kind of type t.
func OfType(t KindType) Kind { return Kind{Type: t} }

// IsImage reports whether k is an image kind.
func (k Kind) IsImage() bool { return k.Type == KindImage }

// HeadingLevel returns 1-3 for headings and 0 otherwise.
func (k Kind) HeadingLevel() int {
	switch k.Type {
	case KindHeading1:
		return 1
	case KindHeading2:
		return 2
	case KindHeading3:
		return 3
	}
	return 0
}

func (k Kind) String() string {
	if k.IsImage() {
		return fmt.Sprintf("image(%s)", k.Image.FileID)
	}
	return string(k.Type)
}
