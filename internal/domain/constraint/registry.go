package constraint

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a solver-backed evaluator.
type Factory func() (Evaluator, error)

// Strategy names reported in a Selection.
const (
	StrategySolver = "solver"
	StrategyDirect = "direct"
)

// Mode is the configured evaluator preference.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeSolver Mode = "solver"
	ModeDirect Mode = "direct"
)

// ParseMode maps a configuration string to a Mode. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSolver, ModeDirect:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Selection records which evaluator is in use and why.
type Selection struct {
	Evaluator Evaluator
	Strategy  string
	Fallback  bool
	Reason    string
}

var (
	registryMu sync.RWMutex
	solvers    = make(map[string]Factory)

	probeOnce sync.Once
	probed    Selection
)

// RegisterSolver makes a solver-backed evaluator available to Default.
// It panics if name is empty, factory is nil or name is registered twice.
func RegisterSolver(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name == "" {
		panic("constraint: RegisterSolver with empty name")
	}
	if factory == nil {
		panic("constraint: RegisterSolver factory is nil")
	}
	if _, dup := solvers[name]; dup {
		panic("constraint: RegisterSolver called twice for " + name)
	}
	solvers[name] = factory
}

// Solvers returns the sorted names of the registered solvers.
func Solvers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(solvers))
	for name := range solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the process-wide evaluator. The first call probes the
// registered solvers; the outcome is kept for the lifetime of the process.
func Default() Evaluator {
	return Selected().Evaluator
}

// Selected returns the memoized probe outcome.
func Selected() Selection {
	probeOnce.Do(func() { probed = probe() })
	return probed
}

// Resolve returns the evaluator for a configured mode. A solver mode without
// a usable solver degrades to Direct and reports Fallback.
func Resolve(mode Mode) (Selection, error) {
	switch mode {
	case ModeAuto, "":
		return Selected(), nil
	case ModeSolver:
		sel := Selected()
		if sel.Strategy != StrategySolver {
			sel.Fallback = true
		}
		return sel, nil
	case ModeDirect:
		return Selection{Evaluator: Direct{}, Strategy: StrategyDirect, Reason: "configured"}, nil
	default:
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

func probe() Selection {
	names := Solvers()
	if len(names) == 0 {
		return fallback("no solver linked")
	}
	registryMu.RLock()
	factory := solvers[names[0]]
	registryMu.RUnlock()

	ev, err := factory()
	if err != nil {
		return fallback(fmt.Sprintf("%s: %v", names[0], err))
	}
	if err := selfCheck(ev); err != nil {
		return fallback(err.Error())
	}
	return Selection{Evaluator: ev, Strategy: StrategySolver, Reason: "solver " + ev.Name()}
}

func fallback(reason string) Selection {
	return Selection{Evaluator: Direct{}, Strategy: StrategyDirect, Fallback: true, Reason: reason}
}

// selfCheck compares ev with Direct on a few known problems.
func selfCheck(ev Evaluator) error {
	x, y, z := Var("x"), Var("y"), Var("z")
	probes := []*Problem{
		NewProblem().Bind("x", 0).Bind("y", 5).Bind("z", 10).Require(Chain(RelLt, x, y, z)...),
		NewProblem().Bind("x", 5).Bind("y", 3).Bind("z", 8).Require(Chain(RelLt, x, y, z)...),
		NewProblem().Bind("x", 2).Bind("y", 3).Bind("z", 5).Require(Eq(x.Plus(y), z), Le(Const(0), x)),
		NewProblem().Bind("x", 2).Bind("y", 3).Bind("z", 6).Require(Le(x.Plus(y), z.AddConst(-2))),
	}
	for i, p := range probes {
		want, err := Direct{}.Satisfiable(p)
		if err != nil {
			return fmt.Errorf("self-check %d: %w", i, err)
		}
		got, err := ev.Satisfiable(p)
		if err != nil {
			return fmt.Errorf("%w: self-check %d: %w", ErrSolverUnavailable, i, err)
		}
		if got != want {
			return fmt.Errorf("%w: self-check %d disagrees with direct evaluation", ErrSolverUnavailable, i)
		}
	}
	return nil
}
