package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/dgallion1/mdbuild/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark with GFM tables.
// A YAML front matter title is kept as the document title attribute, and
// fenced blocks tagged "math" become display math.
type MarkdownParser struct{}

type markdownMeta struct {
	Title string `yaml:"title"`
}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var meta markdownMeta
	src, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	out := newOutline()
	if t := strings.TrimSpace(meta.Title); t != "" {
		out.root.SetAttr(doctree.AttrTitle, t)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			title := &doctree.Node{Kind: doctree.KindTitle, Children: mdInlines(h, src)}
			out.heading(h.Level, title)
			continue
		}
		out.add(mdBlock(n, src))
	}

	return out.root, nil
}

// mdBlock converts a block node. Nodes with no content return nil.
func mdBlock(n ast.Node, src []byte) *doctree.Node {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return doctree.NewParagraph(mdInlines(node, src)...)
	case *ast.Heading:
		// Headings nested in containers carry no section.
		return doctree.NewParagraph(doctree.NewStrong(mdInlines(node, src)...))
	case *ast.FencedCodeBlock:
		code := strings.TrimRight(mdLines(node, src), "\n")
		if string(node.Language(src)) == "math" {
			return doctree.NewMathBlock(code)
		}
		return doctree.NewUnknown("literal_block", doctree.NewText(code))
	case *ast.CodeBlock:
		return doctree.NewUnknown("literal_block", doctree.NewText(strings.TrimRight(mdLines(node, src), "\n")))
	case *extast.Table:
		t := doctree.NewTable()
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			// Header and body rows both hold cells directly.
			row := doctree.NewRow()
			for cell := c.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row.Append(doctree.NewEntry(mdInlines(cell, src)...))
			}
			t.Append(row)
		}
		return t
	case *ast.List:
		return mdContainer("bullet_list", node, src)
	case *ast.ListItem:
		return mdContainer("list_item", node, src)
	case *ast.Blockquote:
		return mdContainer("block_quote", node, src)
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return nil
	default:
		return mdContainer(strings.ToLower(n.Kind().String()), n, src)
	}
}

func mdContainer(tag string, n ast.Node, src []byte) *doctree.Node {
	u := doctree.NewUnknown(tag)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if b := mdBlock(c, src); b != nil {
			u.Append(b)
		}
	}
	return u
}

func mdLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

// mdInlines converts the inline children of n.
func mdInlines(n ast.Node, src []byte) []*doctree.Node {
	var out []*doctree.Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if in := mdInline(c, src); in != nil {
			out = append(out, in)
		}
	}
	return out
}

func mdInline(n ast.Node, src []byte) *doctree.Node {
	switch node := n.(type) {
	case *ast.Text:
		s := string(node.Segment.Value(src))
		switch {
		case node.HardLineBreak():
			s += "\n"
		case node.SoftLineBreak():
			s += " "
		}
		return doctree.NewText(s)
	case *ast.String:
		return doctree.NewText(string(node.Value))
	case *ast.Emphasis:
		if node.Level >= 2 {
			return doctree.NewStrong(mdInlines(node, src)...)
		}
		return doctree.NewEmphasis(mdInlines(node, src)...)
	case *ast.CodeSpan:
		return doctree.NewUnknown("literal", mdInlines(node, src)...)
	case *ast.Link:
		return doctree.NewUnknown("reference", mdInlines(node, src)...)
	case *ast.AutoLink:
		return doctree.NewText(string(node.URL(src)))
	case *ast.Image:
		return doctree.NewUnknown("image", mdInlines(node, src)...)
	case *ast.RawHTML:
		return nil
	default:
		return doctree.NewUnknown(strings.ToLower(n.Kind().String()), mdInlines(node, src)...)
	}
}
