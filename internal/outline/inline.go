package outline

import (
	"strings"

	"github.com/starford/sowilo/internal/document"
)

type marker struct {
	name  string
	open  string
	close string
}

// Rendering order, outermost first.
var markers = []marker{
	{name: "link", open: "["},
	{name: "bold", open: "**", close: "**"},
	{name: "italic", open: "_", close: "_"},
	{name: "strikethrough", open: "~~", close: "~~"},
	{name: "code", open: "`", close: "`"},
}

const specials = "\\*_~`[]"

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescape(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\\' && i+1 < len(rs) {
			i++
		}
		b.WriteRune(rs[i])
	}
	return b.String()
}

// renderInline writes t with Markdown emphasis. Attributes are opened in
// marker order and closed innermost first, reopening any that continue.
func renderInline(t document.Text) string {
	runes := []rune(t.String())
	spans := t.Spans()
	activeAt := func(i int) []document.Attribute {
		var out []document.Attribute
		for _, m := range markers {
			for _, sp := range spans {
				if sp.Attribute.Name == m.name && sp.Range.Start <= i && i < sp.Range.End {
					out = append(out, sp.Attribute)
					break
				}
			}
		}
		return out
	}

	var b strings.Builder
	var stack []document.Attribute
	closeFrom := func(k int) {
		for j := len(stack) - 1; j >= k; j-- {
			b.WriteString(closing(stack[j]))
		}
		stack = stack[:k]
	}
	for i := 0; i <= len(runes); i++ {
		var want []document.Attribute
		if i < len(runes) {
			want = activeAt(i)
		}
		// Keep the longest prefix of the stack that is still wanted.
		k := 0
		for k < len(stack) && contains(want, stack[k]) {
			k++
		}
		closeFrom(k)
		for _, a := range want {
			if !contains(stack, a) {
				b.WriteString(opening(a))
				stack = append(stack, a)
			}
		}
		if i == len(runes) {
			break
		}
		if contains(stack, document.InlineCode) {
			b.WriteRune(runes[i])
		} else {
			b.WriteString(escape(string(runes[i])))
		}
	}
	return b.String()
}

func contains(attrs []document.Attribute, a document.Attribute) bool {
	for _, x := range attrs {
		if x == a {
			return true
		}
	}
	return false
}

func opening(a document.Attribute) string {
	for _, m := range markers {
		if m.name == a.Name {
			return m.open
		}
	}
	return ""
}

func closing(a document.Attribute) string {
	if a.Name == "link" {
		return "](" + a.Value + ")"
	}
	for _, m := range markers {
		if m.name == a.Name {
			return m.close
		}
	}
	return ""
}

type span struct {
	attr       document.Attribute
	start, end int
}

// parseInline reads Markdown emphasis into attributed text. Markers without
// a closing counterpart are kept as literal text.
func parseInline(s string) document.Text {
	rs := []rune(s)
	var (
		out       []rune
		spans     []span
		open      = map[string]int{}
		linkStart []int
	)
	toggle := func(name, tok string, i int) bool {
		if start, ok := open[name]; ok {
			delete(open, name)
			if start < len(out) {
				spans = append(spans, span{attr: document.Attribute{Name: name}, start: start, end: len(out)})
			}
			return true
		}
		if !strings.Contains(string(rs[i+len(tok):]), tok) {
			return false
		}
		open[name] = len(out)
		return true
	}

	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\\' && i+1 < len(rs):
			i++
			out = append(out, rs[i])
		case c == '`':
			end := indexRune(rs, '`', i+1)
			if end < 0 {
				out = append(out, c)
				continue
			}
			start := len(out)
			out = append(out, rs[i+1:end]...)
			if start < len(out) {
				spans = append(spans, span{attr: document.InlineCode, start: start, end: len(out)})
			}
			i = end
		case c == '*' && i+1 < len(rs) && rs[i+1] == '*':
			if toggle("bold", "**", i) {
				i++
			} else {
				out = append(out, c)
			}
		case c == '~' && i+1 < len(rs) && rs[i+1] == '~':
			if toggle("strikethrough", "~~", i) {
				i++
			} else {
				out = append(out, c)
			}
		case c == '*' || c == '_':
			if !toggle("italic", string(c), i) {
				out = append(out, c)
			}
		case c == '[' && strings.Contains(string(rs[i+1:]), "]("):
			linkStart = append(linkStart, len(out))
		case c == ']' && len(linkStart) > 0 && i+1 < len(rs) && rs[i+1] == '(':
			end := indexRune(rs, ')', i+2)
			if end < 0 {
				out = append(out, c)
				continue
			}
			start := linkStart[len(linkStart)-1]
			linkStart = linkStart[:len(linkStart)-1]
			if start < len(out) {
				spans = append(spans, span{attr: document.Link(string(rs[i+2 : end])), start: start, end: len(out)})
			}
			i = end
		default:
			out = append(out, c)
		}
	}

	t := document.NewText(string(out))
	for _, sp := range spans {
		t = t.AddAttributes([]document.Attribute{sp.attr}, document.NewRange(sp.start, sp.end))
	}
	return t
}

func indexRune(rs []rune, r rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
