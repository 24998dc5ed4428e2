package guard

import (
	"github.com/okian/guardrail/internal/domain/constraint"
)

// EventTriplet checks 0 <= onset < apex < offset <= nFrames-1.
func (c *Checker) EventTriplet(onset, apex, offset, nFrames int) Result {
	p := constraint.NewProblem().
		Bind("onset", int64(onset)).
		Bind("apex", int64(apex)).
		Bind("offset", int64(offset)).
		Bind("n", int64(nFrames))
	p.Require(constraint.Le(constraint.Const(0), constraint.Var("onset")))
	p.Require(constraint.Chain(constraint.RelLt,
		constraint.Var("onset"), constraint.Var("apex"), constraint.Var("offset"))...)
	p.Require(constraint.Le(constraint.Var("offset"), constraint.Var("n").AddConst(-1)))

	return c.decide(p, "Violation: ("+p.Assignments()+")")
}

// WindowBounds checks that [start, start+length) lies inside [0, nFrames).
// A zero-length window is legal; negative start or length is not.
func (c *Checker) WindowBounds(start, length, nFrames int) Result {
	p := constraint.NewProblem().
		Bind("start", int64(start)).
		Bind("length", int64(length)).
		Bind("n", int64(nFrames))
	p.Require(
		constraint.Le(constraint.Const(0), constraint.Var("start")),
		constraint.Le(constraint.Const(0), constraint.Var("length")),
		constraint.Le(constraint.Var("start").Plus(constraint.Var("length")), constraint.Var("n")),
	)

	return c.decide(p, "Window out of bounds: "+p.Assignments())
}

func (c *Checker) decide(p *constraint.Problem, violation string) Result {
	ok, err := c.satisfiable(p)
	if err != nil {
		return Precondition("Cannot evaluate " + p.Assignments() + ": " + err.Error())
	}
	if !ok {
		return Violation(violation)
	}
	return Pass()
}
