// Package runner defines the contract for evaluating a manifest into a report.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/guardrail/internal/domain/guard"
	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/pkg/metrics"
)

// Default runner configuration constants.
const (
	defaultMaxFindings     = 1000
	defaultViolationBudget = 0
)

// Defaults fill the optional parameters a manifest leaves out.
type Defaults struct {
	Tolerance     float64
	MinCount      int
	AllowedLabels []int
}

// Option applies a configuration option to the InMemoryRunner.
type Option func(*InMemoryRunner)

// WithChecker sets the checker used for record-level checks.
func WithChecker(c *guard.Checker) Option {
	return func(r *InMemoryRunner) {
		if c != nil {
			r.checker = c
		}
	}
}

// WithScanParallelism bounds concurrent scan tasks. Non-positive means GOMAXPROCS.
func WithScanParallelism(n int) Option {
	return func(r *InMemoryRunner) {
		r.parallelism = n
	}
}

// WithMaxFindings caps the record findings kept in a report.
func WithMaxFindings(n int) Option {
	return func(r *InMemoryRunner) {
		if n > 0 {
			r.maxFindings = n
		}
	}
}

// WithViolationBudget sets how many record violations a run tolerates before
// failing. A negative budget never fails a run on record violations.
func WithViolationBudget(n int) Option {
	return func(r *InMemoryRunner) {
		r.budget = n
	}
}

// WithDefaults sets the defaults for tolerance, minimum class count and label
// domain. Zero fields keep the built-in defaults.
func WithDefaults(d Defaults) Option {
	return func(r *InMemoryRunner) {
		if d.Tolerance > 0 {
			r.defaults.Tolerance = d.Tolerance
		}
		if d.MinCount > 0 {
			r.defaults.MinCount = d.MinCount
		}
		if len(d.AllowedLabels) > 0 {
			r.defaults.AllowedLabels = append([]int(nil), d.AllowedLabels...)
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *InMemoryRunner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner evaluates a run.
type Runner interface {
	// Run checks every section of the manifest, honoring ctx for cancellation.
	// A returned error means the run could not be evaluated, not that it failed.
	Run(ctx context.Context, run model.Run) (model.Report, error)
}

// InMemoryRunner implements Runner with the guard checks in process.
type InMemoryRunner struct {
	checker     *guard.Checker
	parallelism int
	maxFindings int
	budget      int
	defaults    Defaults
	now         func() time.Time
}

// NewInMemoryRunner creates a runner with configuration options.
func NewInMemoryRunner(opts ...Option) *InMemoryRunner {
	r := &InMemoryRunner{
		maxFindings: defaultMaxFindings,
		budget:      defaultViolationBudget,
		defaults: Defaults{
			Tolerance:     guard.DefaultSamplingTolerance,
			MinCount:      guard.DefaultMinClassCount,
			AllowedLabels: guard.DefaultAllowedLabels(),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.checker == nil {
		r.checker = guard.New()
	}
	return r
}

// Run implements Runner.
func (r *InMemoryRunner) Run(ctx context.Context, run model.Run) (model.Report, error) {
	started := r.now()
	rep := model.PendingReport(run)
	rep.Status = model.StatusRunning
	rep.Strategy = r.checker.Evaluator().Name()
	rep.StartedAt = &started

	m := run.Manifest
	if err := r.scanRecords(ctx, &rep, m); err != nil {
		return model.Report{}, err
	}
	r.checkDataset(&rep, m)

	finished := r.now()
	rep.FinishedAt = &finished
	rep.Status = model.StatusPassed
	switch violations := rep.Violations(); {
	case len(rep.Fatal) > 0:
		rep.Status = model.StatusFailed
		rep.Reason = fmt.Sprintf("%d dataset invariant(s) failed", len(rep.Fatal))
	case r.budget >= 0 && violations > r.budget:
		rep.Status = model.StatusFailed
		rep.Reason = fmt.Sprintf("%d record violation(s) exceed budget %d", violations, r.budget)
	}
	return rep, nil
}

func (r *InMemoryRunner) scanRecords(ctx context.Context, rep *model.Report, m model.Manifest) error {
	if len(m.Triplets) > 0 {
		err := scanSection(ctx, r, rep, guard.InvariantEventTriplet, m.Triplets,
			func(t model.EventTriplet) string { return t.ID },
			func(t model.EventTriplet) guard.Result {
				return r.checker.EventTriplet(t.Onset, t.Apex, t.Offset, t.NFrames)
			})
		if err != nil {
			return err
		}
	}
	if len(m.Windows) > 0 {
		err := scanSection(ctx, r, rep, guard.InvariantWindowBounds, m.Windows,
			func(w model.Window) string { return w.ID },
			func(w model.Window) guard.Result {
				return r.checker.WindowBounds(w.Start, w.Length, w.NFrames)
			})
		if err != nil {
			return err
		}
	}
	if len(m.Sampling) > 0 {
		err := scanSection(ctx, r, rep, guard.InvariantSampling, m.Sampling,
			func(s model.SamplingDescriptor) string { return s.ID },
			func(s model.SamplingDescriptor) guard.Result {
				tol := r.defaults.Tolerance
				if s.Tolerance != nil {
					tol = *s.Tolerance
				}
				return r.checker.SamplingConsistency(s.Frames, s.FPS, s.DurationSec, tol)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func scanSection[T any](
	ctx context.Context,
	r *InMemoryRunner,
	rep *model.Report,
	check string,
	items []T,
	idOf func(T) string,
	fn func(T) guard.Result,
) error {
	start := time.Now()
	findings, tally, err := guard.Scan(ctx, items, r.parallelism, fn)
	if err != nil {
		return fmt.Errorf("%s: %w", check, err)
	}
	metrics.RecordCheckLatency(check, rep.Strategy, float64(time.Since(start).Microseconds())/1000/float64(len(items)))
	metrics.RecordChecks(check, guard.KindOK.String(), tally.Passed)
	metrics.RecordChecks(check, guard.KindViolation.String(), tally.Violations)
	metrics.RecordChecks(check, guard.KindPrecondition.String(), tally.Preconditions)

	rep.Tallies = append(rep.Tallies, model.Tally{
		Check:         check,
		Checked:       tally.Checked,
		Passed:        tally.Passed,
		Violations:    tally.Violations,
		Preconditions: tally.Preconditions,
	})
	for _, f := range findings {
		if len(rep.Findings) >= r.maxFindings {
			rep.FindingsTruncated = true
			break
		}
		rep.Findings = append(rep.Findings, model.Finding{
			Check:    check,
			Index:    f.Index,
			RecordID: idOf(items[f.Index]),
			Kind:     f.Result.Kind.String(),
			Message:  f.Result.Message,
		})
	}
	return nil
}

func (r *InMemoryRunner) checkDataset(rep *model.Report, m model.Manifest) {
	record := func(check string, err error) {
		outcome := guard.KindOK.String()
		if err != nil {
			outcome = guard.KindViolation.String()
			invariant := guard.InvariantOf(err)
			rep.Fatal = append(rep.Fatal, model.FatalFinding{Check: check, Invariant: invariant, Message: err.Error()})
			metrics.RecordFinding(invariant)
		}
		metrics.RecordCheck(check, outcome)
	}

	if s := m.Splits; s != nil {
		for _, part := range []struct {
			name string
			ids  []string
		}{{"train", s.Train}, {"val", s.Val}, {"test", s.Test}} {
			record(guard.InvariantUniqueIDs, guard.AssertUniqueIDs(part.name, part.ids))
		}
		record(guard.InvariantDisjointSplits, guard.AssertDisjointSplits(s.Train, s.Val, s.Test))
	}
	if c := m.Classes; c != nil {
		minCount := r.defaults.MinCount
		if c.MinCount != nil {
			minCount = *c.MinCount
		}
		record(guard.InvariantClassPresence, guard.MinClassPresence(c.LabelsBySplit, minCount))
	}
	if d := m.LabelDomain; d != nil {
		allowed := d.Allowed
		if len(allowed) == 0 {
			allowed = r.defaults.AllowedLabels
		}
		record(guard.InvariantLabelDomain, guard.AssertLabelDomain(d.Labels, allowed))
	}
	if lr := m.LabelRange; lr != nil {
		record(guard.InvariantLabelRange, guard.AssertLabelRange(lr.Labels, lr.Min, lr.Max))
	}
}
