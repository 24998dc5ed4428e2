// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/guardrail/internal/adapters/mq/queue"
	"github.com/okian/guardrail/internal/adapters/mq/worker"
	"github.com/okian/guardrail/internal/adapters/repository"
	"github.com/okian/guardrail/internal/domain/constraint"
	"github.com/okian/guardrail/internal/domain/dedupe"
	"github.com/okian/guardrail/internal/domain/guard"
	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/internal/domain/runner"
	"github.com/okian/guardrail/pkg/logger"
	"github.com/okian/guardrail/pkg/metrics"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Service implements the API dependencies for run evaluation.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   queue.Queue
	checker *guard.Checker
	runner  *runner.InMemoryRunner
	pool    *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	mode            constraint.Mode
	storeKind       string
	sqlitePath      string
	parallelism     int
	maxFindings     int
	violationBudget int
	defaults        runner.Defaults
	now             func() time.Time

	// State
	started   bool
	selection constraint.Selection

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvaluatorMode selects the constraint evaluator: auto, solver or direct.
func WithEvaluatorMode(mode constraint.Mode) Option {
	return func(s *Service) {
		s.mode = mode
	}
}

// WithMemoryStore keeps reports in process memory.
func WithMemoryStore() Option {
	return func(s *Service) {
		s.storeKind = StoreMemory
	}
}

// WithSQLiteStore persists reports in the SQLite database at path.
func WithSQLiteStore(path string) Option {
	return func(s *Service) {
		s.storeKind = StoreSQLite
		s.sqlitePath = path
	}
}

// WithStore uses an already opened store. The service closes it on Stop;
// a restarted service opens its configured backend instead.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithScanParallelism bounds concurrent record checks within one run.
func WithScanParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithMaxFindings caps the record findings kept in a report.
func WithMaxFindings(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFindings = n
		}
	}
}

// WithViolationBudget sets how many record violations a run tolerates.
func WithViolationBudget(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.violationBudget = n
		}
	}
}

// WithDefaults sets the check parameters used when a manifest omits them.
func WithDefaults(d runner.Defaults) Option {
	return func(s *Service) {
		if d.Tolerance > 0 {
			s.defaults.Tolerance = d.Tolerance
		}
		if d.MinCount > 0 {
			s.defaults.MinCount = d.MinCount
		}
		if len(d.AllowedLabels) > 0 {
			s.defaults.AllowedLabels = append([]int(nil), d.AllowedLabels...)
		}
	}
}

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   1024,
		dedupeSize:  50000,
		mode:        constraint.ModeAuto,
		storeKind:   StoreMemory,
		maxFindings: 1000,
		defaults: runner.Defaults{
			Tolerance:     guard.DefaultSamplingTolerance,
			MinCount:      guard.DefaultMinClassCount,
			AllowedLabels: guard.DefaultAllowedLabels(),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves the evaluator, opens the store and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting guardrail service...")

	sel, err := constraint.Resolve(s.mode)
	if err != nil {
		return fmt.Errorf("resolve evaluator: %w", err)
	}
	s.selection = sel
	if err := metrics.SetEvaluatorStrategy(sel.Strategy, sel.Evaluator.Name()); err != nil {
		s.logger.Warn(ctx, "failed to publish evaluator strategy", logger.Error(err))
	}
	if sel.Fallback {
		metrics.RecordEvaluatorFallback(sel.Reason)
		s.logger.Warn(ctx, "solver unavailable, using direct evaluation",
			logger.String("mode", string(s.mode)),
			logger.String("reason", sel.Reason),
		)
	}
	s.logger.Info(ctx, "constraint evaluator selected",
		logger.String("strategy", sel.Strategy),
		logger.String("evaluator", sel.Evaluator.Name()),
		logger.String("reason", sel.Reason),
	)

	if s.store == nil {
		st, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = st
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.checker = guard.New(guard.WithEvaluator(sel.Evaluator))
	s.runner = runner.NewInMemoryRunner(
		runner.WithChecker(s.checker),
		runner.WithScanParallelism(s.parallelism),
		runner.WithMaxFindings(s.maxFindings),
		runner.WithViolationBudget(s.violationBudget),
		runner.WithDefaults(s.defaults),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.runner, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "guardrail service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("store", s.storeKind),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.storeKind {
	case StoreMemory, "":
		s.logger.Info(ctx, "using in-memory report store")
		return repository.NewMemoryStore(ctx), nil
	case StoreSQLite:
		st, err := repository.NewSQLiteStore(ctx, s.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open report store: %w", err)
		}
		s.logger.Info(ctx, "using sqlite report store", logger.String("path", s.sqlitePath))
		return st, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, s.storeKind)
	}
}

// Stop drains queued runs, stops the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping guardrail service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close report store: %w", err))
	}
	s.store = nil

	s.started = false
	s.logger.Info(ctx, "guardrail service stopped")
	return errors.Join(errs...)
}

// Submit validates m and queues it as a new run. A key already bound to a
// run resolves to that run instead.
func (s *Service) Submit(ctx context.Context, m model.Manifest, key string) (model.Submission, error) {
	if err := m.Validate(); err != nil {
		return model.Submission{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Submission{}, ErrNotStarted
	}

	run := model.Run{ID: uuid.NewString(), Manifest: m, SubmittedAt: s.now().UTC()}
	if key != "" {
		if existing, claimed := s.deduper.Claim(ctx, key, run.ID); !claimed {
			return s.duplicate(ctx, existing)
		}
	}

	if err := s.store.Put(ctx, model.PendingReport(run)); err != nil {
		s.release(ctx, key)
		return model.Submission{}, fmt.Errorf("store pending report: %w", err)
	}
	if !s.queue.Enqueue(ctx, run) {
		s.release(ctx, key)
		if s.queue.IsClosed() {
			return model.Submission{}, queue.ErrClosed
		}
		s.logger.Warn(ctx, "run rejected, queue full", logger.String("run_id", run.ID))
		return model.Submission{}, queue.ErrFull
	}

	metrics.RecordRunSubmitted()
	s.logger.Debug(ctx, "run queued",
		logger.String("run_id", run.ID),
		logger.String("name", m.Name),
		logger.Int("records", m.Records()),
	)
	return model.Submission{RunID: run.ID, Status: model.StatusPending}, nil
}

func (s *Service) duplicate(ctx context.Context, runID string) (model.Submission, error) {
	metrics.RecordRunDuplicate()
	sub := model.Submission{RunID: runID, Status: model.StatusPending, Duplicate: true}
	rep, err := s.store.Get(ctx, runID)
	switch {
	case err == nil:
		sub.Status = rep.Status
	case errors.Is(err, repository.ErrNotFound):
		// the first submission has claimed the key but not stored its report yet
	default:
		return model.Submission{}, err
	}
	return sub, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key != "" {
		s.deduper.Release(ctx, key)
	}
}

// Report returns the report of one run.
func (s *Service) Report(ctx context.Context, runID string) (model.Report, error) {
	st, err := s.activeStore()
	if err != nil {
		return model.Report{}, err
	}
	return st.Get(ctx, runID)
}

// Reports returns up to limit reports, newest first.
func (s *Service) Reports(ctx context.Context, limit int) ([]model.Report, error) {
	st, err := s.activeStore()
	if err != nil {
		return nil, err
	}
	return st.List(ctx, limit)
}

func (s *Service) activeStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Checker returns the checker backing the synchronous check endpoints.
func (s *Service) Checker() *guard.Checker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.checker == nil {
		return guard.New()
	}
	return s.checker
}

// Selection reports the evaluator chosen at Start.
func (s *Service) Selection() constraint.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"store":      s.storeKind,
		"queueSize":  s.queueSize,
		"dedupeSize": s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["workerCount"] = s.pool.Size()
	stats["queueLength"] = queueLen
	stats["idempotencyKeys"] = s.deduper.Size()
	stats["strategy"] = s.selection.Strategy
	stats["evaluator"] = s.selection.Evaluator.Name()
	stats["fallback"] = s.selection.Fallback
	if n, err := s.store.Count(ctx); err == nil {
		stats["storedReports"] = n
		metrics.UpdateStoredReports(n)
	}
	metrics.UpdateQueueSize(queueLen)
	return stats
}
