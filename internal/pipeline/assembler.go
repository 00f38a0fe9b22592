package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/doctree"
	"github.com/dgallion1/mdbuild/internal/metadata"
	"github.com/dgallion1/mdbuild/internal/rewrite"
	"github.com/dgallion1/mdbuild/internal/textbase"
)

// State is the progress of one document through the assembler.
type State string

const (
	StateIdle             State = "idle"
	StateMetadataCaptured State = "metadata_captured"
	StateBodyWritten      State = "body_written"
	StateMetadataWritten  State = "metadata_written"
	StateDone             State = "done"
)

// ErrBodyMissing is returned when the sidecar stage finds no body file.
var ErrBodyMissing = errors.New("body file missing")

// Result describes one finished document build.
type Result struct {
	Docname     string
	BodyFile    string
	SidecarFile string // empty when sidecar output is off
	Header      *metadata.Header
	States      []State
}

// State returns the last state reached.
func (r Result) State() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// build carries one document through the stages.
type build struct {
	docname string
	root    *doctree.Node
	header  *metadata.Header
	log     *slog.Logger
	result  *Result
}

type stage struct {
	name    string
	reaches State
	run     func(a *Assembler, b *build) error
}

var (
	captureStage = stage{name: "capture_metadata", reaches: StateMetadataCaptured, run: (*Assembler).captureMetadata}
	bodyStage    = stage{name: "write_body", reaches: StateBodyWritten, run: (*Assembler).writeBody}
	sidecarStage = stage{name: "write_sidecar", reaches: StateMetadataWritten, run: (*Assembler).writeSidecar}
)

// stagesFor returns the ordered stages the options enable. Metadata must be
// captured before the body stage rewrites the tree.
func stagesFor(opts config.Options) []stage {
	var stages []stage
	if opts.IncludeHeader || opts.IncludeMetadata {
		stages = append(stages, captureStage)
	}
	stages = append(stages, bodyStage)
	if opts.IncludeMetadata {
		stages = append(stages, sidecarStage)
	}
	return stages
}

// Assembler turns one document tree into its output files.
type Assembler struct {
	opts      config.Options
	sink      Sink
	log       *slog.Logger
	meta      metadata.Builder
	flattener textbase.Flattener
	stages    []stage
}

func NewAssembler(opts config.Options, sink Sink, log *slog.Logger) *Assembler {
	return &Assembler{
		opts: opts,
		sink: sink,
		log:  log,
		meta: metadata.Builder{
			BaseURL:           opts.BaseURL,
			OutputSuffix:      opts.OutputSuffix,
			UseTitleAttribute: opts.UseTitleAttribute,
			SourceURIKey:      opts.SourceURIKey,
		},
		flattener: textbase.Flattener{Width: opts.TextWidth},
		stages:    stagesFor(opts),
	}
}

// Build runs every enabled stage for one document. The tree is rewritten in
// place and must not be reused. A failing stage aborts only this document.
func (a *Assembler) Build(docname string, root *doctree.Node) (Result, error) {
	res := Result{Docname: docname, States: []State{StateIdle}}
	b := &build{
		docname: docname,
		root:    root,
		log:     a.log.With("docname", docname),
		result:  &res,
	}

	for _, st := range a.stages {
		if err := st.run(a, b); err != nil {
			b.log.Error("build failed", "stage", st.name, "error", err)
			return res, fmt.Errorf("%s: %s: %w", docname, st.name, err)
		}
		res.States = append(res.States, st.reaches)
	}
	res.States = append(res.States, StateDone)
	b.log.Info("document built", "body", res.BodyFile, "sidecar", res.SidecarFile)
	return res, nil
}

func (a *Assembler) captureMetadata(b *build) error {
	h := a.meta.Capture(b.docname, b.root)
	b.header = &h
	b.result.Header = &h
	return nil
}

func (a *Assembler) writeBody(b *build) error {
	w := rewrite.NewWalker(rewrite.NewSubRenderer(a.flattener), b.log)
	root, err := w.Rewrite(b.root)
	if err != nil {
		return err
	}

	text := a.flattener.Flatten(root)
	if text != "" && text[len(text)-1] != '\n' {
		text += "\n"
	}

	var out []byte
	if a.opts.IncludeHeader && b.header != nil {
		fm, err := b.header.FrontMatter()
		if err != nil {
			return err
		}
		out = append(fm, '\n')
	}
	out = append(out, text...)

	name := a.opts.BodyFile(b.docname)
	if err := a.sink.WriteFile(name, out); err != nil {
		return err
	}
	b.result.BodyFile = name
	return nil
}

func (a *Assembler) writeSidecar(b *build) error {
	body := a.opts.BodyFile(b.docname)
	if !a.sink.Exists(body) {
		return fmt.Errorf("%w: %s", ErrBodyMissing, body)
	}

	data, err := a.meta.Sidecar(*b.header).Encode()
	if err != nil {
		return err
	}

	name := a.opts.SidecarFile(b.docname)
	if err := a.sink.WriteFile(name, data); err != nil {
		return err
	}
	b.result.SidecarFile = name
	return nil
}
