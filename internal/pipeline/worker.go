package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/mdbuild/internal/parser"
)

// Source is one document handed to the pipeline: the raw file and the
// docname it builds to.
type Source struct {
	Docname  string
	Filename string
	Data     []byte
}

// Worker parses sources and runs them through the assembler.
type Worker struct {
	assembler *Assembler
	parserOpt parser.Options
	log       *slog.Logger
}

func NewWorker(assembler *Assembler, parserOpt parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		assembler: assembler,
		parserOpt: parserOpt,
		log:       log,
	}
}

// Build parses one source and assembles its output files.
func (w *Worker) Build(src Source) (Result, error) {
	p, err := parser.ForFile(src.Filename, w.parserOpt)
	if err != nil {
		return Result{Docname: src.Docname}, err
	}

	root, err := p.Parse(bytes.NewReader(src.Data), src.Filename)
	if err != nil {
		return Result{Docname: src.Docname}, fmt.Errorf("parse %s: %w", src.Filename, err)
	}

	return w.assembler.Build(src.Docname, root)
}

// Process runs a queued job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "docname", job.Docname)
	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "queued")
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpt)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	root, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Rewrite and write output files.
	job.SetStatus(StatusBuilding, string(StateIdle))
	res, err := w.assembler.Build(job.Docname, root)
	job.SetResult(res)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, string(res.State()))
		return
	}
	job.SetFileData(nil)
	job.SetStatus(StatusCompleted, string(res.State()))
}
