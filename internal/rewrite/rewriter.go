package rewrite

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// lineBreaks matches a run of line breaks with the indentation around them.
var lineBreaks = regexp.MustCompile(`[ \t]*\n\s*`)

var (
	ErrNestedTable = errors.New("nested tables are not supported")
	ErrNoOpenTable = errors.New("no open table")
)

// visitFunc handles one node. A non-nil result replaces the node in its
// parent's child list.
type visitFunc func(w *Walker, n *doctree.Node) (*doctree.Node, error)

type handler struct {
	visit  visitFunc // Pre-order. A replacement skips the children and depart.
	depart visitFunc // Post-order, after all children were walked.
}

var handlers map[doctree.Kind]handler

func init() {
	handlers = map[doctree.Kind]handler{
		doctree.KindDocument:  {},
		doctree.KindParagraph: {},
		doctree.KindText:      {},
		doctree.KindRaw:       {},
		doctree.KindEmphasis:  {},
		doctree.KindStrong:    {},
		doctree.KindSection:   {visit: enterSection, depart: departSection},
		doctree.KindTitle:     {visit: visitTitle},
		doctree.KindMath:      {visit: visitMath},
		doctree.KindMathBlock: {visit: visitMathBlock},
		doctree.KindTable:     {visit: enterTable, depart: departTable},
		doctree.KindRow:       {visit: enterRow, depart: departRow},
		doctree.KindEntry:     {depart: departEntry},
	}
}

// fallback handles node kinds without a handler entry.
var fallback = handler{visit: visitUnknown}

// Walker rewrites a tree in place so the base flattener can render it:
// titles, math and tables become Raw leaves. A Walker holds per-tree state
// and must not be shared between concurrent traversals.
type Walker struct {
	sub   *SubRenderer
	log   *slog.Logger
	depth int
	table *Table
}

func NewWalker(sub *SubRenderer, log *slog.Logger) *Walker {
	return &Walker{sub: sub, log: log}
}

// Rewrite walks the tree rooted at root and returns the root to flatten.
// That is root itself unless root was replaced.
func (w *Walker) Rewrite(root *doctree.Node) (*doctree.Node, error) {
	w.depth = 0
	w.table = nil
	repl, err := w.walk(root)
	if err != nil {
		return nil, err
	}
	if repl != nil {
		return repl, nil
	}
	return root, nil
}

func (w *Walker) walk(n *doctree.Node) (*doctree.Node, error) {
	h, ok := handlers[n.Kind]
	if !ok {
		h = fallback
	}

	if h.visit != nil {
		repl, err := h.visit(w, n)
		if err != nil {
			return nil, err
		}
		if repl != nil {
			return repl, nil
		}
	}

	for i, c := range n.Children {
		repl, err := w.walk(c)
		if err != nil {
			return nil, err
		}
		if repl != nil {
			n.Children[i] = repl
		}
	}

	if h.depart != nil {
		return h.depart(w, n)
	}
	return nil, nil
}

func enterSection(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	w.depth++
	return nil, nil
}

func departSection(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	w.depth--
	return nil, nil
}

func visitTitle(w *Walker, n *doctree.Node) (*doctree.Node, error) {
	return doctree.NewRaw(strings.Repeat("#", w.depth) + " " + doctree.Text(n)), nil
}

func visitMath(_ *Walker, n *doctree.Node) (*doctree.Node, error) {
	return doctree.NewRaw("$" + doctree.Text(n) + "$"), nil
}

func visitMathBlock(w *Walker, n *doctree.Node) (*doctree.Node, error) {
	content := w.sub.Render(n.Children...)
	return doctree.NewRaw("$$\n" + content + "\n$$"), nil
}

func enterTable(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	if w.table != nil {
		return nil, ErrNestedTable
	}
	w.table = &Table{}
	return nil, nil
}

func departTable(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	t := w.table
	w.table = nil
	if err := t.CloseTable(); err != nil {
		return nil, fmt.Errorf("close table: %w", err)
	}
	text, err := t.Render()
	if err != nil {
		return nil, fmt.Errorf("render table: %w", err)
	}
	return doctree.NewRaw(text), nil
}

func enterRow(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	if w.table == nil {
		return nil, fmt.Errorf("row: %w", ErrNoOpenTable)
	}
	return nil, w.table.OpenRow()
}

func departRow(w *Walker, _ *doctree.Node) (*doctree.Node, error) {
	return nil, w.table.CloseRow()
}

// departEntry captures a cell once its children are rewritten, so inline
// math and the like are already flat text.
func departEntry(w *Walker, n *doctree.Node) (*doctree.Node, error) {
	if w.table == nil {
		return nil, fmt.Errorf("entry: %w", ErrNoOpenTable)
	}
	content := strings.TrimSpace(w.sub.Render(n.Children...))
	content = lineBreaks.ReplaceAllString(content, " ")
	return nil, w.table.AddCell(content)
}

func visitUnknown(w *Walker, n *doctree.Node) (*doctree.Node, error) {
	w.log.Debug("unhandled node kind", "tag", n.Name(), "depth", w.depth)
	return nil, nil
}
