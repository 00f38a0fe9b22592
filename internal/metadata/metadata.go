// Package metadata captures per-document header fields from a tree before it
// is rewritten and serializes them as front matter and as a sidecar object.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// PageExtension is the extension used for the canonical page URL.
const PageExtension = ".html"

// Header is the metadata of one document. It is never modified after capture.
type Header struct {
	Docname string
	Title   *string // nil when the document has no title
	PageURL string  // base URL + docname + ".html"
	SelfURL string  // base URL + docname + output suffix
}

// Builder captures and serializes Headers.
type Builder struct {
	BaseURL           string
	OutputSuffix      string
	UseTitleAttribute bool
	SourceURIKey      string
}

// Capture reads the header fields from the original, not yet rewritten tree.
func (b Builder) Capture(docname string, root *doctree.Node) Header {
	base := strings.TrimRight(b.BaseURL, "/")
	return Header{
		Docname: docname,
		Title:   b.resolveTitle(root),
		PageURL: base + "/" + docname + PageExtension,
		SelfURL: base + "/" + docname + b.OutputSuffix,
	}
}

func (b Builder) resolveTitle(root *doctree.Node) *string {
	if root == nil {
		return nil
	}
	if b.UseTitleAttribute {
		if title := root.Attr(doctree.AttrTitle); title != "" {
			return &title
		}
	}
	if n := doctree.FirstOfKind(root, doctree.KindTitle); n != nil {
		title := doctree.Text(n)
		return &title
	}
	return nil
}

type frontMatter struct {
	Title *string `yaml:"title"`
	URL   string  `yaml:"url"`
}

// FrontMatter renders the inline header block.
func (h Header) FrontMatter() ([]byte, error) {
	body, err := yaml.Marshal(frontMatter{Title: h.Title, URL: h.SelfURL})
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(body)
	buf.WriteString("---\n")
	return buf.Bytes(), nil
}

// Attribute is one entry of the sidecar metadataAttributes object. Fields
// are declared in key order so the encoding stays sorted.
type Attribute struct {
	IncludeForEmbedding bool           `json:"includeForEmbedding"`
	Value               AttributeValue `json:"value"`
}

type AttributeValue struct {
	StringValue *string `json:"stringValue"`
	Type        string  `json:"type"`
}

// Sidecar is the companion metadata object written next to the body.
type Sidecar struct {
	MetadataAttributes map[string]Attribute `json:"metadataAttributes"`
}

func stringAttribute(v *string) Attribute {
	return Attribute{
		Value:               AttributeValue{Type: "STRING", StringValue: v},
		IncludeForEmbedding: true,
	}
}

// Sidecar builds the sidecar object for h.
func (b Builder) Sidecar(h Header) Sidecar {
	url := h.PageURL
	return Sidecar{MetadataAttributes: map[string]Attribute{
		"title":        stringAttribute(h.Title),
		b.SourceURIKey: stringAttribute(&url),
	}}
}

// Encode serializes s with sorted keys and four-space indentation, after
// validating it against the sidecar schema.
func (s Sidecar) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode sidecar: %w", err)
	}
	if err := Validate(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
