// Package outline converts notes to and from a Markdown outline: YAML
// frontmatter followed by one line per element, nested by two-space
// indentation.
//
//	---
//	title: Groceries
//	---
//	# Heading
//	- bullet with **bold**, _italic_, ~~struck~~, `code` and [a link](https://x)
//	  - [ ] todo child
//	  - [x] done child
//	> quote
//	```code line```
//	![caption](/files/<uuid>)
//
// Underline has no Markdown form and is dropped on export.
package outline

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/document"
)

// FilePrefix is the URL path images point at.
const FilePrefix = "/files/"

type frontmatter struct {
	Title string `yaml:"title,omitempty"`
	ID    string `yaml:"id,omitempty"`
}

// Import parses a Markdown outline into a new note. The note keeps the id
// from the frontmatter when there is a valid one.
func Import(data []byte) (*document.Note, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	n := document.NewNote(fm.Title)
	if fm.ID != "" {
		id, err := uuid.Parse(fm.ID)
		if err != nil {
			return nil, fmt.Errorf("outline: frontmatter id %q: %w", fm.ID, apperr.ErrInvalid)
		}
		n.ID = id
	}

	// stack[d] is the last element placed at depth d.
	var stack []*document.Element
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		depth, rest := indentation(line)
		depth = min(depth, len(stack))
		parent := n.Root()
		if depth > 0 {
			parent = stack[depth-1]
		}
		el := parseLine(rest)
		if err := n.Insert(parent.ID, el, parent.ChildCount()); err != nil {
			return nil, fmt.Errorf("outline: import: %w", err)
		}
		stack = append(stack[:depth], el)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("outline: import: %w", err)
	}
	if n.Title == "" && n.Len() > 0 {
		n.Title = n.Root().Child(0).Text.String()
	}
	return n, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without frontmatter the entire content is body.
func splitFrontmatter(data []byte) (frontmatter, string, error) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), nil
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data), nil
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return fm, "", fmt.Errorf("outline: frontmatter: %w: %v", apperr.ErrInvalid, err)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body, nil
}

func indentation(line string) (int, string) {
	spaces := 0
	for i, r := range line {
		switch r {
		case ' ':
			spaces++
		case '\t':
			spaces += 2
		default:
			return spaces / 2, line[i:]
		}
	}
	return spaces / 2, ""
}

var linePrefixes = []struct {
	prefix string
	kind   document.Kind
}{
	{"- [ ] ", document.OfType(document.KindTodo)},
	{"- [x] ", document.OfType(document.KindDone)},
	{"- [X] ", document.OfType(document.KindDone)},
	{"- ", document.Plain()},
	{"### ", document.Heading(3)},
	{"## ", document.Heading(2)},
	{"# ", document.Heading(1)},
	{"> ", document.OfType(document.KindQuote)},
}

func parseLine(s string) *document.Element {
	if s == "-" {
		return document.NewElement(document.Plain(), document.Text{})
	}
	if el, ok := parseImage(s); ok {
		return el
	}
	if len(s) >= 6 && strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		return document.NewElement(document.OfType(document.KindCode), document.NewText(s[3:len(s)-3]))
	}
	for _, p := range linePrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return document.NewElement(p.kind, parseInline(s[len(p.prefix):]))
		}
	}
	return document.NewElement(document.Plain(), parseInline(s))
}

// parseImage recognises ![alt](/files/<uuid>).
func parseImage(s string) (*document.Element, bool) {
	if !strings.HasPrefix(s, "![") || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	mid := strings.Index(s, "](")
	if mid < 0 {
		return nil, false
	}
	target := s[mid+2 : len(s)-1]
	if !strings.HasPrefix(target, FilePrefix) {
		return nil, false
	}
	fileID, err := uuid.Parse(strings.TrimPrefix(target, FilePrefix))
	if err != nil {
		return nil, false
	}
	kind := document.Image(fileID, "", document.DisplayInfo{})
	return document.NewElement(kind, document.NewText(unescape(s[2:mid]))), true
}

// Export renders n as a Markdown outline.
func Export(n *document.Note) ([]byte, error) {
	var buf bytes.Buffer
	fm, err := yaml.Marshal(frontmatter{Title: n.Title, ID: n.ID.String()})
	if err != nil {
		return nil, fmt.Errorf("outline: export: %w", err)
	}
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")

	var walk func(e *document.Element, depth int)
	walk = func(e *document.Element, depth int) {
		for _, c := range e.Children() {
			buf.WriteString(strings.Repeat("  ", depth))
			writeElement(&buf, c)
			buf.WriteByte('\n')
			walk(c, depth+1)
		}
	}
	walk(n.Root(), 0)
	return buf.Bytes(), nil
}

func writeElement(buf *bytes.Buffer, e *document.Element) {
	switch e.Kind.Type {
	case document.KindImage:
		fmt.Fprintf(buf, "![%s](%s%s)", escape(e.Text.String()), FilePrefix, e.Kind.Image.FileID)
		return
	case document.KindCode:
		buf.WriteString("```" + e.Text.String() + "```")
		return
	case document.KindHeading1:
		buf.WriteString("# ")
	case document.KindHeading2:
		buf.WriteString("## ")
	case document.KindHeading3:
		buf.WriteString("### ")
	case document.KindQuote:
		buf.WriteString("> ")
	case document.KindTodo:
		buf.WriteString("- [ ] ")
	case document.KindDone:
		buf.WriteString("- [x] ")
	default:
		if e.Text.IsEmpty() {
			buf.WriteString("-")
			return
		}
		buf.WriteString("- ")
	}
	buf.WriteString(renderInline(e.Text))
}
