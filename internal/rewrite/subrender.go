package rewrite

import (
	"strings"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// Flattener is the base text rendering primitive.
type Flattener interface {
	Flatten(n *doctree.Node) string
}

// SubRenderer flattens isolated fragments through the base flattener only,
// never through the stateful Walker.
type SubRenderer struct {
	base Flattener
}

func NewSubRenderer(base Flattener) *SubRenderer {
	return &SubRenderer{base: base}
}

// Render attaches nodes to a throwaway document root, flattens it and trims
// surrounding whitespace.
func (r *SubRenderer) Render(nodes ...*doctree.Node) string {
	root := doctree.NewDocument(nodes...)
	return strings.TrimSpace(r.base.Flatten(root))
}
