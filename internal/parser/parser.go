package parser

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// Parser converts raw document bytes into a document tree rooted at a
// KindDocument node.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Node, error)
}

// Options tunes the loaders.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Docname turns a source path relative to the source root into a docname:
// slash separated, extension removed.
func Docname(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// outline builds nested sections from a flat stream of headings and blocks.
type outline struct {
	root  *doctree.Node
	stack []frame
}

type frame struct {
	node  *doctree.Node
	level int
}

func newOutline() *outline {
	root := doctree.NewDocument()
	return &outline{root: root, stack: []frame{{node: root, level: 0}}}
}

// heading opens a section at level holding title. Open sections at the same
// or a deeper level are closed first.
func (o *outline) heading(level int, title *doctree.Node) {
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	sec := doctree.NewSection(title)
	o.top().Append(sec)
	o.stack = append(o.stack, frame{node: sec, level: level})
}

// add appends blocks to the innermost open section.
func (o *outline) add(blocks ...*doctree.Node) {
	for _, b := range blocks {
		if b != nil {
			o.top().Append(b)
		}
	}
}

func (o *outline) top() *doctree.Node {
	return o.stack[len(o.stack)-1].node
}

// paragraph returns a paragraph of one text leaf, or nil for blank text.
func paragraph(text string) *doctree.Node {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return doctree.NewParagraph(doctree.NewText(text))
}

// table builds a table node from rows of cell text.
func table(rows [][]string) *doctree.Node {
	t := doctree.NewTable()
	for _, cells := range rows {
		row := doctree.NewRow()
		for _, c := range cells {
			row.Append(doctree.NewEntry(doctree.NewText(c)))
		}
		t.Append(row)
	}
	return t
}
