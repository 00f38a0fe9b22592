package rewrite

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/mdbuild/internal/doctree"
	"github.com/dgallion1/mdbuild/internal/textbase"
)

func newTestWalker(log *slog.Logger) *Walker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewWalker(NewSubRenderer(textbase.Flattener{}), log)
}

// render rewrites root and flattens the result the way the assembler does.
func render(t *testing.T, root *doctree.Node) string {
	t.Helper()
	out, err := newTestWalker(nil).Rewrite(root)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	return textbase.Flattener{}.Flatten(out)
}

func TestRewrite_HeadingDepth(t *testing.T) {
	for depth := 1; depth <= 4; depth++ {
		inner := doctree.NewSection(doctree.NewTitle("Deep"))
		for i := 1; i < depth; i++ {
			inner = doctree.NewSection(inner)
		}
		got := render(t, doctree.NewDocument(inner))
		want := strings.Repeat("#", depth) + " Deep"
		if got != want {
			t.Errorf("depth %d: expected %q, got %q", depth, want, got)
		}
	}
}

func TestRewrite_SiblingSectionsRestoreDepth(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewSection(
			doctree.NewTitle("Top"),
			doctree.NewSection(doctree.NewTitle("Child")),
			doctree.NewParagraph(doctree.NewText("body")),
		),
		doctree.NewSection(doctree.NewTitle("Next")),
	)

	got := render(t, root)
	want := "# Top\n\n## Child\n\nbody\n\n# Next"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewrite_Math(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewParagraph(doctree.NewText("area "), doctree.NewMath("x^2")),
		doctree.NewMathBlock("a=b"),
	)

	got := render(t, root)
	want := "area $x^2$\n\n$$\na=b\n$$"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewrite_MathBlockReplacedByRaw(t *testing.T) {
	root := doctree.NewDocument(doctree.NewMathBlock("a=b"))
	out, err := newTestWalker(nil).Rewrite(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	child := out.Children[0]
	if child.Kind != doctree.KindRaw {
		t.Fatalf("expected raw leaf, got %s", child.Kind)
	}
	if diff := cmp.Diff([]string{"$$", "a=b", "$$"}, strings.Split(child.Text, "\n")); diff != "" {
		t.Errorf("math block mismatch (-want +got):\n%s", diff)
	}
}

func TestRewrite_Table(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewTable(
			doctree.NewUnknown("thead",
				doctree.NewRow(
					doctree.NewEntry(doctree.NewParagraph(doctree.NewText("a"))),
					doctree.NewEntry(doctree.NewParagraph(doctree.NewText("bb"))),
				),
			),
			doctree.NewUnknown("tbody",
				doctree.NewRow(
					doctree.NewEntry(doctree.NewParagraph(doctree.NewText("ccc"))),
					doctree.NewEntry(doctree.NewParagraph(doctree.NewMath("d"))),
				),
			),
		),
	)

	got := render(t, root)
	want := "| a   | bb  |\n|-----|-----|\n| ccc | $d$ |"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestRewrite_EntryCollapsesNewlines(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewTable(
			doctree.NewRow(doctree.NewEntry(
				doctree.NewParagraph(doctree.NewText("  line one\nline two")),
				doctree.NewParagraph(doctree.NewText("para two  ")),
			)),
		),
	)

	got := render(t, root)
	want := "| line one line two para two |\n|----------------------------|"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRewrite_RaggedTableFails(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewTable(
			doctree.NewRow(doctree.NewEntry(doctree.NewText("a")), doctree.NewEntry(doctree.NewText("b"))),
			doctree.NewRow(doctree.NewEntry(doctree.NewText("c"))),
		),
	)
	_, err := newTestWalker(nil).Rewrite(root)
	if !errors.Is(err, ErrRaggedTable) {
		t.Fatalf("expected ErrRaggedTable, got %v", err)
	}
}

func TestRewrite_NestedTableFails(t *testing.T) {
	root := doctree.NewDocument(
		doctree.NewTable(
			doctree.NewRow(doctree.NewEntry(
				doctree.NewTable(doctree.NewRow(doctree.NewEntry(doctree.NewText("x")))),
			)),
		),
	)
	_, err := newTestWalker(nil).Rewrite(root)
	if !errors.Is(err, ErrNestedTable) {
		t.Fatalf("expected ErrNestedTable, got %v", err)
	}
}

func TestRewrite_RowOutsideTableFails(t *testing.T) {
	root := doctree.NewDocument(doctree.NewRow(doctree.NewEntry(doctree.NewText("x"))))
	_, err := newTestWalker(nil).Rewrite(root)
	if !errors.Is(err, ErrNoOpenTable) {
		t.Fatalf("expected ErrNoOpenTable, got %v", err)
	}
}

func TestRewrite_EntryOutsideRowFails(t *testing.T) {
	root := doctree.NewDocument(doctree.NewTable(doctree.NewEntry(doctree.NewText("x"))))
	_, err := newTestWalker(nil).Rewrite(root)
	if !errors.Is(err, ErrNoOpenRow) {
		t.Fatalf("expected ErrNoOpenRow, got %v", err)
	}
}

func TestRewrite_UnknownKindIsLoggedAndKept(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	root := doctree.NewDocument(
		doctree.NewUnknown("admonition",
			doctree.NewParagraph(doctree.NewText("note "), doctree.NewMath("y")),
		),
	)
	out, err := newTestWalker(log).Rewrite(root)
	if err != nil {
		t.Fatalf("unknown kinds must not fail traversal: %v", err)
	}

	if got := (textbase.Flattener{}).Flatten(out); got != "note $y$" {
		t.Errorf("expected children of unknown node to be rewritten, got %q", got)
	}
	if !strings.Contains(buf.String(), "tag=admonition") {
		t.Errorf("expected diagnostic naming the tag, got %q", buf.String())
	}
}

func TestRewrite_WalkerIsReusable(t *testing.T) {
	w := newTestWalker(nil)
	bad := doctree.NewDocument(
		doctree.NewSection(doctree.NewTable(doctree.NewRow(doctree.NewEntry(doctree.NewTable())))),
	)
	if _, err := w.Rewrite(bad); !errors.Is(err, ErrNestedTable) {
		t.Fatalf("expected ErrNestedTable, got %v", err)
	}

	good := doctree.NewDocument(doctree.NewSection(doctree.NewTitle("T")))
	out, err := w.Rewrite(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := (textbase.Flattener{}).Flatten(out); got != "# T" {
		t.Errorf("expected state reset between trees, got %q", got)
	}
}
