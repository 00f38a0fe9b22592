// Package textbase is the plain-text flattening primitive. It knows nothing
// about headings, tables or math: callers are expected to have rewritten those
// into Raw leaves before handing a tree over.
package textbase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// Flattener converts a tree to plain text.
type Flattener struct {
	// Width wraps paragraph text at this many characters. Zero disables wrapping.
	Width int
}

// Flatten renders n and its descendants as plain text.
func (f Flattener) Flatten(n *doctree.Node) string {
	if n == nil {
		return ""
	}
	return f.block(n)
}

// block renders n in a block context.
func (f Flattener) block(n *doctree.Node) string {
	switch n.Kind {
	case doctree.KindText, doctree.KindRaw:
		return n.Text
	case doctree.KindParagraph:
		return f.wrap(f.inlines(n.Children))
	case doctree.KindTitle, doctree.KindMath, doctree.KindMathBlock,
		doctree.KindEmphasis, doctree.KindStrong:
		return f.inline(n)
	}

	// Document, Section, Entry, Table, Row and unknown containers.
	var blocks []string
	for _, c := range n.Children {
		if s := f.block(c); strings.TrimSpace(s) != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// span is a run of inline output. Raw spans are never split or reflowed.
type span struct {
	text string
	raw  bool
}

func (f Flattener) inlines(nodes []*doctree.Node) []span {
	var out []span
	for _, c := range nodes {
		out = append(out, f.inlineSpans(c)...)
	}
	return out
}

func (f Flattener) inlineSpans(n *doctree.Node) []span {
	switch n.Kind {
	case doctree.KindText:
		return []span{{text: n.Text}}
	case doctree.KindRaw:
		return []span{{text: n.Text, raw: true}}
	case doctree.KindEmphasis:
		return mark("*", f.inlines(n.Children))
	case doctree.KindStrong:
		return mark("**", f.inlines(n.Children))
	}
	return f.inlines(n.Children)
}

func mark(m string, inner []span) []span {
	out := make([]span, 0, len(inner)+2)
	out = append(out, span{text: m})
	out = append(out, inner...)
	return append(out, span{text: m})
}

// inline renders n inside running text.
func (f Flattener) inline(n *doctree.Node) string {
	return join(f.inlineSpans(n))
}

func join(spans []span) string {
	var sb strings.Builder
	for _, sp := range spans {
		sb.WriteString(sp.text)
	}
	return sb.String()
}

// wrap breaks each line of the paragraph greedily at spaces so no line
// exceeds Width, except for single words longer than Width. A Raw span
// joins the word it touches and is kept whole.
func (f Flattener) wrap(spans []span) string {
	if f.Width <= 0 {
		return join(spans)
	}

	var (
		lines [][]string
		words []string
		word  strings.Builder
		open  bool
	)
	flush := func() {
		if open {
			words = append(words, word.String())
			word.Reset()
			open = false
		}
	}
	for _, sp := range spans {
		if sp.raw {
			word.WriteString(sp.text)
			open = true
			continue
		}
		for _, r := range sp.text {
			switch {
			case r == '\n':
				flush()
				lines = append(lines, words)
				words = nil
			case unicode.IsSpace(r):
				flush()
			default:
				word.WriteRune(r)
				open = true
			}
		}
	}
	flush()
	lines = append(lines, words)

	out := make([]string, 0, len(lines))
	for _, ws := range lines {
		out = append(out, fill(ws, f.Width)...)
	}
	return strings.Join(out, "\n")
}

func fill(words []string, width int) []string {
	if len(words) == 0 {
		return []string{""}
	}
	var (
		lines   []string
		current strings.Builder
		n       int
	)
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > width {
			lines = append(lines, current.String())
			current.Reset()
			n = 0
		}
		if n > 0 {
			current.WriteByte(' ')
			n++
		}
		current.WriteString(w)
		n += wl
	}
	return append(lines, current.String())
}
