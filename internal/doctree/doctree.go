package doctree

import "strings"

// Kind tags the variant a Node holds.
type Kind int

const (
	KindUnknown Kind = iota
	KindDocument
	KindSection
	KindTitle
	KindParagraph
	KindText
	KindEmphasis
	KindStrong
	KindMath
	KindMathBlock
	KindTable
	KindRow
	KindEntry
	KindRaw
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindDocument:  "document",
	KindSection:   "section",
	KindTitle:     "title",
	KindParagraph: "paragraph",
	KindText:      "text",
	KindEmphasis:  "emphasis",
	KindStrong:    "strong",
	KindMath:      "math",
	KindMathBlock: "math_block",
	KindTable:     "table",
	KindRow:       "row",
	KindEntry:     "entry",
	KindRaw:       "raw",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Node is one element of a document tree.
type Node struct {
	Kind     Kind
	Tag      string            // Source tag name, set for KindUnknown
	Text     string            // Payload of Text and Raw leaves
	Attrs    map[string]string // Document-level attributes (e.g. "title")
	Children []*Node
}

// AttrTitle is the document attribute holding an explicit title.
const AttrTitle = "title"

// Name returns the tag for unknown nodes and the kind name otherwise.
func (n *Node) Name() string {
	if n.Kind == KindUnknown && n.Tag != "" {
		return n.Tag
	}
	return n.Kind.String()
}

// Append adds children and returns the receiver.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns a document attribute, or "" if unset.
func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// SetAttr sets a document attribute.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

func NewDocument(children ...*Node) *Node { return &Node{Kind: KindDocument, Children: children} }
func NewSection(children ...*Node) *Node { return &Node{Kind: KindSection, Children: children} }
func NewParagraph(children ...*Node) *Node { return &Node{Kind: KindParagraph, Children: children} }
func NewEmphasis(children ...*Node) *Node { return &Node{Kind: KindEmphasis, Children: children} }
func NewStrong(children ...*Node) *Node { return &Node{Kind: KindStrong, Children: children} }
func NewTable(children ...*Node) *Node { return &Node{Kind: KindTable, Children: children} }
func NewRow(children ...*Node) *Node { return &Node{Kind: KindRow, Children: children} }
func NewEntry(children ...*Node) *Node { return &Node{Kind: KindEntry, Children: children} }
func NewText(s string) *Node { return &Node{Kind: KindText, Text: s} }
func NewRaw(s string) *Node { return &Node{Kind: KindRaw, Text: s} }

// NewTitle builds a title holding a single text leaf.
func NewTitle(s string) *Node { return &Node{Kind: KindTitle, Children: []*Node{NewText(s)}} }

// NewMath builds inline math with the given source.
func NewMath(s string) *Node { return &Node{Kind: KindMath, Children: []*Node{NewText(s)}} }

// NewMathBlock builds display math with the given source.
func NewMathBlock(s string) *Node { return &Node{Kind: KindMathBlock, Children: []*Node{NewText(s)}} }

// NewUnknown builds a node of a kind this package has no variant for.
func NewUnknown(tag string, children ...*Node) *Node {
	return &Node{Kind: KindUnknown, Tag: tag, Children: children}
}

// Text returns the concatenated leaf payload of the subtree rooted at n.
func Text(n *Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Kind == KindText || c.Kind == KindRaw {
			sb.WriteString(c.Text)
		}
		return true
	})
	return sb.String()
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// FirstOfKind returns the first node of the given kind in pre-order, or nil.
func FirstOfKind(root *Node, kind Kind) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == kind {
			found = n
			return false
		}
		return true
	})
	return found
}
