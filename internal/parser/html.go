package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/mdbuild/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Headings open sections, <title> becomes the
// title attribute, and elements with class "math" become math nodes.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := newOutline()
	if title := findTitle(doc); title != "" {
		out.root.SetAttr(doctree.AttrTitle, title)
	}

	body := findBody(doc)
	if body == nil {
		body = doc
	}

	// Top level: headings open sections, everything else is a block.
	var inline []*doctree.Node
	flush := func() {
		if p := htmlParagraph(inline); p != nil {
			out.add(p)
		}
		inline = nil
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if level := headingLevel(c.Data); level > 0 {
					flush()
					out.heading(level, &doctree.Node{Kind: doctree.KindTitle, Children: htmlInlines(c)})
					continue
				}
				if c.Data == "div" || c.Data == "section" || c.Data == "article" || c.Data == "main" {
					if !hasClass(c, "math") {
						flush()
						walk(c)
						continue
					}
				}
				if isBlock(c) {
					flush()
					out.add(htmlBlock(c))
					continue
				}
			}
			if in := htmlInline(c); in != nil {
				inline = append(inline, in)
			}
		}
	}
	walk(body)
	flush()

	return out.root, nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "table": true, "ul": true, "ol": true, "li": true,
	"blockquote": true, "pre": true, "section": true, "article": true, "main": true,
	"thead": true, "tbody": true, "tfoot": true, "tr": true, "td": true, "th": true,
	"dl": true, "dt": true, "dd": true, "figure": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// skipTags carry no document content.
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "header": true,
	"head": true, "title": true, "noscript": true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && blockTags[n.Data]
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, f := range strings.Fields(a.Val) {
				if f == class {
					return true
				}
			}
		}
	}
	return false
}

// htmlBlock converts a block-level element.
func htmlBlock(n *html.Node) *doctree.Node {
	if skipTags[n.Data] {
		return nil
	}
	if hasClass(n, "math") {
		return doctree.NewMathBlock(strings.TrimSpace(textContent(n)))
	}
	if level := headingLevel(n.Data); level > 0 {
		// Headings nested in containers carry no section.
		return doctree.NewParagraph(doctree.NewStrong(htmlInlines(n)...))
	}

	switch n.Data {
	case "p", "dt":
		return htmlParagraph(htmlInlines(n))
	case "pre":
		return doctree.NewUnknown("literal_block", doctree.NewText(strings.Trim(textContent(n), "\n")))
	case "table":
		t := doctree.NewTable()
		htmlTableBody(n, t)
		return t
	case "tr":
		return htmlRow(n)
	case "td", "th":
		return doctree.NewEntry(htmlChildren(n)...)
	}
	return doctree.NewUnknown(n.Data, htmlChildren(n)...)
}

// htmlTableBody keeps thead/tbody/tfoot as wrappers around their rows.
func htmlTableBody(n *html.Node, parent *doctree.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "tr":
			parent.Append(htmlRow(c))
		case "thead", "tbody", "tfoot":
			group := doctree.NewUnknown(c.Data)
			htmlTableBody(c, group)
			parent.Append(group)
		}
	}
}

func htmlRow(n *html.Node) *doctree.Node {
	row := doctree.NewRow()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			row.Append(doctree.NewEntry(htmlChildren(c)...))
		}
	}
	return row
}

// htmlChildren converts the mixed content of a container. Runs of inline
// content are grouped into paragraphs.
func htmlChildren(n *html.Node) []*doctree.Node {
	var out, inline []*doctree.Node
	flush := func() {
		if p := htmlParagraph(inline); p != nil {
			out = append(out, p)
		}
		inline = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			flush()
			if b := htmlBlock(c); b != nil {
				out = append(out, b)
			}
			continue
		}
		if in := htmlInline(c); in != nil {
			inline = append(inline, in)
		}
	}
	flush()
	return out
}

// htmlParagraph wraps inline nodes, dropping runs that are only whitespace.
func htmlParagraph(inline []*doctree.Node) *doctree.Node {
	var text strings.Builder
	for _, in := range inline {
		text.WriteString(doctree.Text(in))
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil
	}
	return doctree.NewParagraph(trimInlines(inline)...)
}

// trimInlines strips leading and trailing whitespace from the outer text leaves.
func trimInlines(inline []*doctree.Node) []*doctree.Node {
	if n := len(inline); n > 0 {
		if inline[0].Kind == doctree.KindText {
			inline[0].Text = strings.TrimLeft(inline[0].Text, " \t\r\n")
		}
		if inline[n-1].Kind == doctree.KindText {
			inline[n-1].Text = strings.TrimRight(inline[n-1].Text, " \t\r\n")
		}
	}
	return inline
}

func htmlInlines(n *html.Node) []*doctree.Node {
	var out []*doctree.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if in := htmlInline(c); in != nil {
			out = append(out, in)
		}
	}
	return trimInlines(out)
}

var whitespace = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ")

func htmlInline(n *html.Node) *doctree.Node {
	if n.Type == html.TextNode {
		return doctree.NewText(whitespace.Replace(n.Data))
	}
	if n.Type != html.ElementNode || skipTags[n.Data] {
		return nil
	}
	if hasClass(n, "math") {
		return doctree.NewMath(strings.TrimSpace(textContent(n)))
	}

	switch n.Data {
	case "em", "i":
		return doctree.NewEmphasis(htmlInlines(n)...)
	case "strong", "b":
		return doctree.NewStrong(htmlInlines(n)...)
	case "br":
		return doctree.NewText("\n")
	case "a":
		return doctree.NewUnknown("reference", htmlInlines(n)...)
	case "code", "tt":
		return doctree.NewUnknown("literal", doctree.NewText(textContent(n)))
	}
	return doctree.NewUnknown(n.Data, htmlInlines(n)...)
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
