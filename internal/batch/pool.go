// Package batch processes many documents with a fixed set of workers.
package batch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quotient-labs/quotient/internal/inventory"
)

// DefaultWorkers is the worker count when none is configured.
const DefaultWorkers = 4

// Processor turns one document into a result.
type Processor interface {
	ProcessPath(ctx context.Context, path string, maxItems int) (*inventory.Result, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, path string, maxItems int) (*inventory.Result, error)

func (f ProcessorFunc) ProcessPath(ctx context.Context, path string, maxItems int) (*inventory.Result, error) {
	return f(ctx, path, maxItems)
}

// Config configures a Pool.
type Config struct {
	Workers  int // default: DefaultWorkers
	MaxItems int // per document; zero means no cap
	Logger   *slog.Logger
}

// Outcome is the result of one document. Exactly one of Result and Error
// is set.
type Outcome struct {
	Path   string            `json:"path"`
	Result *inventory.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Report collects the outcomes of a run in input order.
type Report struct {
	Outcomes  []Outcome     `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Items     int           `json:"items"`
	Duration  time.Duration `json:"duration"`
}

// Status is a live view of a Pool.
type Status struct {
	Workers   int `json:"workers"`
	InFlight  int `json:"in_flight"`
	Completed int `json:"completed"`
	Queued    int `json:"queued"`
}

// Pool runs documents through a Processor. Every worker pulls from one
// shared queue.
type Pool struct {
	proc     Processor
	workers  int
	maxItems int
	logger   *slog.Logger

	queued    atomic.Int32
	inFlight  atomic.Int32
	completed atomic.Int32
}

type unit struct {
	index int
	path  string
}

// New creates a Pool.
func New(proc Processor, cfg Config) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		proc:     proc,
		workers:  workers,
		maxItems: cfg.MaxItems,
		logger:   logger.With("component", "batch", "workers", workers),
	}
}

// Run processes paths and returns once every document is done. A failing
// document is recorded in its Outcome and does not stop the others. When
// ctx is cancelled, unstarted documents are marked with the context error
// and Run returns it alongside the partial report.
func (p *Pool) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{Outcomes: make([]Outcome, len(paths))}

	queue := make(chan unit, len(paths))
	for i, path := range paths {
		report.Outcomes[i].Path = path
		queue <- unit{index: i, path: path}
	}
	close(queue)
	p.queued.Add(int32(len(paths)))

	workers := min(p.workers, len(paths))
	p.logger.Info("batch starting", "documents", len(paths), "active_workers", workers)

	// Workers only return ctx errors, so g.Wait reports cancellation.
	g, gctx := errgroup.WithContext(ctx)
	for id := range workers {
		g.Go(func() error {
			return p.worker(gctx, id, queue, report.Outcomes)
		})
	}
	err := g.Wait()

	// Anything left in the queue never started.
	for u := range queue {
		report.Outcomes[u.index].Error = "not started"
		if ctx.Err() != nil {
			report.Outcomes[u.index].Error = "not started: " + ctx.Err().Error()
		}
		p.queued.Add(-1)
	}

	for _, o := range report.Outcomes {
		if o.Result != nil {
			report.Succeeded++
			report.Items += len(o.Result.Items)
			continue
		}
		report.Failed++
	}
	report.Duration = time.Since(start)
	p.logger.Info("batch finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"items", report.Items,
		"duration", report.Duration)
	return report, err
}

// worker processes units from the shared queue. Each unit writes only its
// own outcome slot.
func (p *Pool) worker(ctx context.Context, id int, queue <-chan unit, outcomes []Outcome) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-queue:
			if !ok {
				return nil
			}
			p.queued.Add(-1)
			p.inFlight.Add(1)
			res, err := p.proc.ProcessPath(ctx, u.path, p.maxItems)
			p.inFlight.Add(-1)
			p.completed.Add(1)

			if err != nil {
				outcomes[u.index].Error = err.Error()
				p.logger.Warn("document failed", "worker_id", id, "path", u.path, "error", err)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				continue
			}
			outcomes[u.index].Result = res
			p.logger.Debug("document done", "worker_id", id, "path", u.path, "items", len(res.Items))
		}
	}
}

// Status returns current pool status.
func (p *Pool) Status() Status {
	return Status{
		Workers:   p.workers,
		InFlight:  int(p.inFlight.Load()),
		Completed: int(p.completed.Load()),
		Queued:    int(p.queued.Load()),
	}
}
