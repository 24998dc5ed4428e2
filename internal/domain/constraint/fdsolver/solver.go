package fdsolver

import (
	"context"
	"fmt"
)

const (
	defaultNodeLimit = 100000
	// maxRounds caps propagation sweeps per node; search takes over after it.
	maxRounds = 256
)

// Status is the outcome of a search.
type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Solution maps variable names to the values of the first model found.
type Solution map[string]int64

// Option configures a Solver.
type Option func(*Solver)

// WithNodeLimit caps the number of search nodes. Non-positive values keep the default.
func WithNodeLimit(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.nodeLimit = n
		}
	}
}

// Solver searches a Model. A Solver may be reused across models and goroutines.
type Solver struct {
	nodeLimit int
}

// NewSolver creates a solver.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{nodeLimit: defaultNodeLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats reports the work done by one Solve call.
type Stats struct {
	Nodes        int
	Propagations int
}

type search struct {
	model *Model
	limit int
	stats Stats
}

// Solve decides the model. Unknown is returned together with ErrNodeLimit
// or the context error when the search stops early.
func (s *Solver) Solve(ctx context.Context, m *Model) (Status, Solution, Stats, error) {
	doms := make([]Interval, len(m.vars))
	for i, v := range m.vars {
		doms[i] = v.domain
	}
	st := &search{model: m, limit: s.nodeLimit}
	status, final, err := st.run(ctx, doms)
	if status != Sat {
		return status, nil, st.stats, err
	}
	sol := make(Solution, len(m.vars))
	for i, v := range m.vars {
		sol[v.name] = final[i].Lo
	}
	return Sat, sol, st.stats, nil
}

func (st *search) run(ctx context.Context, doms []Interval) (Status, []Interval, error) {
	if err := ctx.Err(); err != nil {
		return Unknown, nil, fmt.Errorf("fdsolver: %w", err)
	}
	st.stats.Nodes++
	if st.stats.Nodes > st.limit {
		return Unknown, nil, fmt.Errorf("%w: %d", ErrNodeLimit, st.limit)
	}
	if !st.fixpoint(doms) {
		return Unsat, nil, nil
	}

	branch := -1
	for i, d := range doms {
		if d.Fixed() {
			continue
		}
		if branch < 0 || d.Size() < doms[branch].Size() {
			branch = i
		}
	}
	if branch < 0 {
		for _, c := range st.model.constraints {
			if !c.holds(doms) {
				return Unsat, nil, nil
			}
		}
		return Sat, doms, nil
	}

	left, right := doms[branch].Split()
	for _, half := range []Interval{left, right} {
		child := make([]Interval, len(doms))
		copy(child, doms)
		child[branch] = half
		status, final, err := st.run(ctx, child)
		if status != Unsat {
			return status, final, err
		}
	}
	return Unsat, nil, nil
}

// fixpoint propagates every constraint until no domain changes or the
// round cap is hit. It returns false when a domain empties.
func (st *search) fixpoint(doms []Interval) bool {
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, c := range st.model.constraints {
			st.stats.Propagations++
			ch, ok := c.propagate(doms)
			if !ok {
				return false
			}
			changed = changed || ch
		}
		if !changed {
			return true
		}
	}
	return true
}
