package constraint

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func tripletProblem(onset, apex, offset, n int64) *Problem {
	return NewProblem().
		Bind("onset", onset).Bind("apex", apex).Bind("offset", offset).Bind("n", n).
		Require(Le(Const(0), Var("onset"))).
		Require(Chain(RelLt, Var("onset"), Var("apex"), Var("offset"))...).
		Require(Le(Var("offset"), Var("n").AddConst(-1)))
}

func TestExpr(t *testing.T) {
	Convey("Given linear expressions", t, func() {
		a, b := Var("a"), Var("b")

		Convey("When terms cancel", func() {
			e := a.Plus(b).Minus(a)

			Convey("Then only the remaining variable is kept", func() {
				So(e.Vars(), ShouldResemble, []string{"b"})
				So(e.String(), ShouldEqual, "b")
			})
		})

		Convey("When rendered with coefficients and constants", func() {
			e := a.Scale(2).Minus(b).AddConst(-3)

			Convey("Then the string is readable", func() {
				So(e.String(), ShouldEqual, "2*a - b - 3")
				So(Const(7).String(), ShouldEqual, "7")
			})
		})

		Convey("When evaluated", func() {
			v, err := a.Plus(b).AddConst(1).Eval(map[string]int64{"a": 2, "b": 3})

			Convey("Then the value is computed", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, int64(6))
			})
		})

		Convey("When a variable is missing", func() {
			_, err := a.Eval(map[string]int64{})

			Convey("Then ErrUnboundVariable is returned", func() {
				So(errors.Is(err, ErrUnboundVariable), ShouldBeTrue)
			})
		})

		Convey("When the sum overflows", func() {
			_, err := a.Plus(b).Eval(map[string]int64{"a": math.MaxInt64, "b": 1})

			Convey("Then ErrOverflow is returned", func() {
				So(errors.Is(err, ErrOverflow), ShouldBeTrue)
			})
		})
	})
}

func TestDirect(t *testing.T) {
	Convey("Given the direct evaluator", t, func() {
		ev := Direct{}
		So(ev.Name(), ShouldEqual, DirectName)

		Convey("When the triplet is ordered and in range", func() {
			ok, err := ev.Satisfiable(tripletProblem(0, 5, 10, 100))

			Convey("Then it is satisfiable", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When onset is after apex", func() {
			ok, err := ev.Satisfiable(tripletProblem(5, 3, 8, 100))

			Convey("Then it is unsatisfiable", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When offset equals n", func() {
			ok, _ := ev.Satisfiable(tripletProblem(0, 5, 100, 100))

			Convey("Then it is unsatisfiable", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a constraint uses an unbound variable", func() {
			p := NewProblem().Bind("x", 1).Require(Lt(Var("x"), Var("y")))
			_, err := ev.Satisfiable(p)

			Convey("Then validation fails", func() {
				So(errors.Is(err, ErrUnboundVariable), ShouldBeTrue)
			})
		})

		Convey("When a variable has an empty name", func() {
			_, err := ev.Satisfiable(NewProblem().Bind(" ", 1))

			Convey("Then the problem is invalid", func() {
				So(errors.Is(err, ErrInvalidProblem), ShouldBeTrue)
			})
		})
	})
}

func TestHoldsBeyondInt64(t *testing.T) {
	Convey("Given constraints whose sides leave the int64 range", t, func() {
		values := map[string]int64{"a": math.MaxInt64, "b": 1, "n": 100}
		sum := Var("a").Plus(Var("b"))

		Convey("Then the comparison is decided exactly", func() {
			ok, err := Le(sum, Var("n")).Holds(values)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			ok, err = Lt(Var("n"), sum).Holds(values)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, err = Eq(sum, sum).Holds(values)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("Then Direct reports unsatisfiable instead of ErrOverflow", func() {
			ok, err := Direct{}.Satisfiable(tripletProblem(0, 1, 2, math.MinInt64))
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Then an unbound variable is still an error", func() {
			_, err := Le(sum, Var("missing")).Holds(values)
			So(errors.Is(err, ErrUnboundVariable), ShouldBeTrue)
		})
	})
}

func TestProblem(t *testing.T) {
	Convey("Given a problem", t, func() {
		p := NewProblem().Bind("start", 90).Bind("length", 20).Bind("n", 100)

		Convey("When a name is bound again", func() {
			p.Bind("start", 10)

			Convey("Then the value is replaced in place", func() {
				v, ok := p.Value("start")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, int64(10))
				So(p.Assignments(), ShouldEqual, "start=10, length=20, n=100")
			})
		})

		Convey("When assignments are rendered", func() {
			Convey("Then bind order is preserved", func() {
				So(p.Assignments(), ShouldEqual, "start=90, length=20, n=100")
				So(len(p.Bindings()), ShouldEqual, 3)
			})
		})

		Convey("When chaining fewer than two expressions", func() {
			Convey("Then no constraints are produced", func() {
				So(Chain(RelLt, Var("a")), ShouldBeEmpty)
			})
		})

		Convey("When a constraint is rendered", func() {
			c := Le(Var("start").Plus(Var("length")), Var("n"))

			Convey("Then the relation symbol is used", func() {
				So(c.String(), ShouldEqual, "length + start <= n")
				So(c.Diff().Constant(), ShouldEqual, int64(0))
			})
		})
	})
}

type stubEvaluator struct {
	name   string
	invert bool
	err    error
}

func (s stubEvaluator) Name() string { return s.name }

func (s stubEvaluator) Satisfiable(p *Problem) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	ok, err := Direct{}.Satisfiable(p)
	if s.invert {
		return !ok, err
	}
	return ok, err
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		resetRegistry()
		Reset(resetRegistry)

		Convey("When no solver is linked", func() {
			sel := Selected()

			Convey("Then direct is used as a fallback", func() {
				So(sel.Strategy, ShouldEqual, StrategyDirect)
				So(sel.Fallback, ShouldBeTrue)
				So(Default().Name(), ShouldEqual, DirectName)
			})
		})

		Convey("When a correct solver is registered", func() {
			RegisterSolver("stub", func() (Evaluator, error) { return stubEvaluator{name: "stub"}, nil })

			Convey("Then it is selected and memoized", func() {
				sel := Selected()
				So(sel.Strategy, ShouldEqual, StrategySolver)
				So(sel.Fallback, ShouldBeFalse)
				So(Default().Name(), ShouldEqual, "stub")
				So(Solvers(), ShouldResemble, []string{"stub"})
			})
		})

		Convey("When the solver disagrees with direct evaluation", func() {
			RegisterSolver("liar", func() (Evaluator, error) { return stubEvaluator{name: "liar", invert: true}, nil })

			Convey("Then direct is used permanently", func() {
				sel := Selected()
				So(sel.Strategy, ShouldEqual, StrategyDirect)
				So(sel.Fallback, ShouldBeTrue)
				So(sel.Reason, ShouldContainSubstring, "disagrees")
			})
		})

		Convey("When the solver cannot be constructed", func() {
			RegisterSolver("broken", func() (Evaluator, error) { return nil, errors.New("missing library") })

			Convey("Then direct is used and the reason is kept", func() {
				sel := Selected()
				So(sel.Strategy, ShouldEqual, StrategyDirect)
				So(sel.Reason, ShouldContainSubstring, "missing library")
			})
		})

		Convey("When the same name is registered twice", func() {
			factory := func() (Evaluator, error) { return Direct{}, nil }
			RegisterSolver("dup", factory)

			Convey("Then registration panics", func() {
				So(func() { RegisterSolver("dup", factory) }, ShouldPanic)
				So(func() { RegisterSolver("", factory) }, ShouldPanic)
				So(func() { RegisterSolver("nil", nil) }, ShouldPanic)
			})
		})

		Convey("When modes are resolved without a solver", func() {
			solver, err := Resolve(ModeSolver)
			So(err, ShouldBeNil)
			direct, err := Resolve(ModeDirect)
			So(err, ShouldBeNil)
			_, badErr := Resolve(Mode("quantum"))

			Convey("Then solver mode degrades to direct", func() {
				So(solver.Strategy, ShouldEqual, StrategyDirect)
				So(solver.Fallback, ShouldBeTrue)
				So(direct.Fallback, ShouldBeFalse)
				So(errors.Is(badErr, ErrUnknownMode), ShouldBeTrue)
			})
		})

		Convey("When modes are parsed", func() {
			Convey("Then known modes are accepted case-insensitively", func() {
				m, err := ParseMode(" Solver ")
				So(err, ShouldBeNil)
				So(m, ShouldEqual, ModeSolver)
				m, err = ParseMode("")
				So(err, ShouldBeNil)
				So(m, ShouldEqual, ModeAuto)
				_, err = ParseMode("smt")
				So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
			})
		})
	})
}
