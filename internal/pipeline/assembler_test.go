package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/doctree"
	"github.com/dgallion1/mdbuild/internal/rewrite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDoc() *doctree.Node {
	return doctree.NewDocument(
		doctree.NewSection(
			doctree.NewTitle("Section A"),
			doctree.NewParagraph(doctree.NewText("Hello")),
		),
	)
}

func testOptions() config.Options {
	opts := config.DefaultOptions()
	opts.BaseURL = "/path/to/site_root/"
	return opts
}

func TestAssembler_BodyOnly(t *testing.T) {
	sink := NewMemSink()
	a := NewAssembler(testOptions(), sink, discardLogger())

	res, err := a.Build("doc1", sampleDoc())
	require.NoError(t, err)

	assert.Equal(t, []string{"doc1.md"}, sink.Order())
	body, ok := sink.File("doc1.md")
	require.True(t, ok)
	assert.Equal(t, "# Section A\n\nHello\n", string(body))

	assert.Equal(t, []State{StateIdle, StateBodyWritten, StateDone}, res.States)
	assert.Empty(t, res.SidecarFile)
	assert.Nil(t, res.Header)
}

func TestAssembler_HeaderPrefix(t *testing.T) {
	opts := testOptions()
	opts.IncludeHeader = true
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	_, err := a.Build("doc1", sampleDoc())
	require.NoError(t, err)

	body, _ := sink.File("doc1.md")
	want := "---\ntitle: Section A\nurl: /path/to/site_root/doc1.md\n---\n\n# Section A\n\nHello\n"
	assert.Equal(t, want, string(body))
	assert.False(t, sink.Exists("doc1.md"+config.MetadataSuffix), "sidecar written without the metadata flag")
}

func TestAssembler_SidecarAfterBody(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = true
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	res, err := a.Build("guide/doc1", sampleDoc())
	require.NoError(t, err)

	assert.Equal(t, []string{"guide/doc1.md", "guide/doc1.md.metadata.json"}, sink.Order())
	assert.Equal(t, []State{StateIdle, StateMetadataCaptured, StateBodyWritten, StateMetadataWritten, StateDone}, res.States)
	assert.Equal(t, StateDone, res.State())

	// Metadata alone does not prefix the body.
	body, _ := sink.File("guide/doc1.md")
	assert.Equal(t, "# Section A\n\nHello\n", string(body))

	raw, _ := sink.File("guide/doc1.md.metadata.json")
	var got map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	attrs := got["metadataAttributes"]
	assert.Equal(t, "Section A", attrs["title"]["value"].(map[string]any)["stringValue"])
	assert.Equal(t, "/path/to/site_root/guide/doc1.html",
		attrs[config.BedrockSourceURIKey]["value"].(map[string]any)["stringValue"])
}

func TestAssembler_TitleCapturedBeforeRewrite(t *testing.T) {
	opts := testOptions()
	opts.IncludeHeader = true
	opts.IncludeMetadata = true
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	res, err := a.Build("doc1", sampleDoc())
	require.NoError(t, err)
	require.NotNil(t, res.Header)
	require.NotNil(t, res.Header.Title)
	// After rewriting the title would read "# Section A".
	assert.Equal(t, "Section A", *res.Header.Title)
}

func TestAssembler_NoTitle(t *testing.T) {
	opts := testOptions()
	opts.IncludeHeader = true
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	_, err := a.Build("plain", doctree.NewDocument(doctree.NewParagraph(doctree.NewText("just text"))))
	require.NoError(t, err)

	body, _ := sink.File("plain.md")
	assert.Equal(t, "---\ntitle: null\nurl: /path/to/site_root/plain.md\n---\n\njust text\n", string(body))
}

func TestAssembler_WrapKeepsInlineMathWhole(t *testing.T) {
	opts := testOptions()
	opts.TextWidth = 12
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	doc := doctree.NewDocument(doctree.NewParagraph(
		doctree.NewText("see "),
		doctree.NewMath("a + b + c + d"),
		doctree.NewText(" ok"),
	))
	_, err := a.Build("math", doc)
	require.NoError(t, err)

	body, _ := sink.File("math.md")
	assert.Equal(t, "see\n$a + b + c + d$\nok\n", string(body))
}

func TestAssembler_LegacySuffix(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = true
	opts.OutputSuffix = ".txt"
	opts.MetadataSuffix = config.LegacyMetadataSuffix
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	res, err := a.Build("doc1", sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "doc1.txt", res.BodyFile)
	assert.Equal(t, "doc1.txt.manifest.json", res.SidecarFile)
	assert.Equal(t, opts.SidecarFile("doc1"), res.SidecarFile)
}

func TestAssembler_RaggedTableWritesNothing(t *testing.T) {
	opts := testOptions()
	opts.IncludeHeader = true
	opts.IncludeMetadata = true
	sink := NewMemSink()
	a := NewAssembler(opts, sink, discardLogger())

	doc := doctree.NewDocument(
		doctree.NewSection(
			doctree.NewTitle("Broken"),
			doctree.NewTable(
				doctree.NewRow(doctree.NewEntry(doctree.NewText("a")), doctree.NewEntry(doctree.NewText("b"))),
				doctree.NewRow(doctree.NewEntry(doctree.NewText("c"))),
			),
		),
	)

	res, err := a.Build("broken", doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rewrite.ErrRaggedTable), "got %v", err)
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, sink.Order())
	assert.Equal(t, StateMetadataCaptured, res.State())
}

type failingSink struct {
	*MemSink
	fail string
}

func (s failingSink) WriteFile(name string, data []byte) error {
	if name == s.fail {
		return errors.New("disk full")
	}
	return s.MemSink.WriteFile(name, data)
}

func TestAssembler_SidecarRequiresBody(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = true
	// The body write "succeeds" without storing anything.
	sink := &lyingSink{MemSink: NewMemSink()}
	a := NewAssembler(opts, sink, discardLogger())

	_, err := a.Build("doc1", sampleDoc())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBodyMissing), "got %v", err)
	assert.Empty(t, sink.Order())
}

type lyingSink struct {
	*MemSink
}

func (s *lyingSink) WriteFile(name string, data []byte) error { return nil }

func TestAssembler_SinkFailure(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = true
	sink := failingSink{MemSink: NewMemSink(), fail: "doc1.md.metadata.json"}
	a := NewAssembler(opts, sink, discardLogger())

	res, err := a.Build("doc1", sampleDoc())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write_sidecar")
	assert.Equal(t, StateBodyWritten, res.State())
	assert.Equal(t, []string{"doc1.md"}, sink.Order())
}

func TestFSSink_WritesNestedFiles(t *testing.T) {
	dir := t.TempDir()
	sink := FSSink{Dir: dir}

	require.False(t, sink.Exists("a/b.md"))
	require.NoError(t, sink.WriteFile("a/b.md", []byte("x\n")))
	require.True(t, sink.Exists("a/b.md"))
	require.False(t, sink.Exists("a"), "directories are not files")

	data, err := os.ReadFile(filepath.Join(dir, "a", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))

	// Overwrite replaces the content.
	require.NoError(t, sink.WriteFile("a/b.md", []byte("y\n")))
	data, _ = os.ReadFile(filepath.Join(dir, "a", "b.md"))
	assert.Equal(t, "y\n", string(data))
}

func TestAssembler_FSSinkEndToEnd(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.IncludeHeader = true
	opts.IncludeMetadata = true
	a := NewAssembler(opts, FSSink{Dir: dir}, discardLogger())

	_, err := a.Build("sub/doc1", sampleDoc())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "sub", "doc1.md"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sub", "doc1.md.metadata.json"))
	require.NoError(t, err)
}

func TestFSSink_ReadAndRemove(t *testing.T) {
	sink := FSSink{Dir: t.TempDir()}
	require.NoError(t, sink.WriteFile("doc.md", []byte("body\n")))

	data, err := sink.ReadFile("doc.md")
	require.NoError(t, err)
	assert.Equal(t, "body\n", string(data))

	require.NoError(t, sink.Remove("doc.md"))
	assert.False(t, sink.Exists("doc.md"))
	require.NoError(t, sink.Remove("doc.md"), "removing a missing file is not an error")
}
