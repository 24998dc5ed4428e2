// Package worker drains queued runs, evaluates them and persists their reports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/guardrail/internal/adapters/mq/queue"
	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/pkg/logger"
	"github.com/okian/guardrail/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Runner evaluates a run into a report.
type Runner interface {
	Run(ctx context.Context, run model.Run) (model.Report, error)
}

// Store persists reports.
type Store interface {
	Put(ctx context.Context, r model.Report) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes queued runs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	store  Store
	name   string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Runner, s Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   r,
		store:    s,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing run", logger.String("run_id", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when the worker loop has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// process evaluates one run. The report is stored as running first so that
// pollers see progress, then replaced by the final report.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(1)
	defer func() {
		metrics.UpdateWorkerActiveCount(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	running := model.PendingReport(job)
	running.Status = model.StatusRunning
	running.StartedAt = &start
	if err := w.store.Put(ctx, running); err != nil {
		w.fail("store_error")
		return fmt.Errorf("store running report for %s: %w", job.ID, err)
	}

	rep, err := w.runner.Run(ctx, job)
	if err != nil {
		w.fail("run_error")
		finished := time.Now()
		rep = running
		rep.Status = model.StatusFailed
		rep.Reason = "evaluation aborted: " + err.Error()
		rep.FinishedAt = &finished
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// the store may share the cancelled context
			ctx = context.WithoutCancel(ctx)
		}
	}
	if perr := w.store.Put(ctx, rep); perr != nil {
		w.fail("store_error")
		return errors.Join(err, fmt.Errorf("store report for %s: %w", job.ID, perr))
	}

	metrics.RecordRunCompleted(string(rep.Status))
	metrics.RecordRunDuration(float64(time.Since(start).Milliseconds()))
	w.logger.Info(ctx, "run finished",
		logger.String("run_id", rep.RunID),
		logger.String("status", string(rep.Status)),
		logger.String("strategy", rep.Strategy),
		logger.Int("violations", rep.Violations()),
		logger.Int("fatal", len(rep.Fatal)),
	)
	return err
}

func (w *InMemoryWorker) fail(kind string) {
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", kind)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	cancelRuns context.CancelFunc
}

// NewPool creates a new worker pool. A non-positive count sizes the pool from the CPU count.
func NewPool(workerCount int, q Queue, r Runner, s Store) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, r, s, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool. Workers outlive the cancellation of
// ctx: they stop on Stop or Shutdown, so queued runs are drained after the
// caller's context is gone.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelRuns = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
}

func (p *Pool) abortRuns() {
	if p.cancelRuns != nil {
		p.cancelRuns()
	}
}

// Stop signals every worker and waits briefly for each to return.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.stop()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	p.abortRuns()
}

// Shutdown closes the queue and lets workers drain it. When ctx (or the pool
// timeout) expires first, in-flight evaluations are cancelled and Shutdown
// waits briefly for their failed reports to be stored before returning.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var busy []int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			busy = append(busy, i)
		}
	}
	p.abortRuns()
	if len(busy) == 0 {
		return nil
	}

	for _, i := range busy {
		w := p.workers[i]
		w.stop()
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			// a Put after this point may hit a closed store; the worker logs it
			p.logger.Warn(ctx, "worker did not stop after cancellation", logger.Int("worker_id", i))
		}
	}
	p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("busy_workers", len(busy)))
	return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
}
