package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/parser"
)

// Orchestrator builds documents in parallel. Each document gets its own
// walker, so the only shared state is the read-only options and the sink.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	assembler *Assembler
	log       *slog.Logger
	cfg       config.Config
	parserOpt parser.Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start before Submit.
func NewOrchestrator(cfg config.Config, sink Sink, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		assembler: NewAssembler(cfg.Options, sink, log),
		log:       log,
		cfg:       cfg,
		parserOpt: parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
	}
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.assembler, o.parserOpt, o.log)
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for n := 0; n < o.cfg.WorkerCount; n++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Outcome is the result of one document in a batch build.
type Outcome struct {
	Source Source
	Result Result
	Err    error
}

// BuildAll builds every source with up to WorkerCount documents in flight
// and returns outcomes in source order. A failed document does not stop the
// others. Sources not started before ctx is cancelled fail with ctx's error.
func (o *Orchestrator) BuildAll(ctx context.Context, sources []Source) []Outcome {
	outcomes := make([]Outcome, len(sources))
	sem := make(chan struct{}, o.cfg.WorkerCount)
	var wg sync.WaitGroup

	for i, src := range sources {
		outcomes[i].Source = src
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			outcomes[i].Err = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i].Result, outcomes[i].Err = o.newWorker().Build(src)
		}(i, src)
	}
	wg.Wait()

	failed := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed++
		}
	}
	o.log.Info("batch build complete", "documents", len(sources), "failed", failed)
	return outcomes
}
