// Package constraint describes bound linear integer problems and decides
// whether they are satisfiable.
//
// A Problem binds named variables to concrete values and requires a
// conjunction of linear comparisons over them. Evaluators decide the
// conjunction. Direct evaluates it in host arithmetic; a solver-backed
// evaluator can be linked in through RegisterSolver.
package constraint

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

// Term is one coefficient-variable product of a linear expression.
type Term struct {
	Var  string
	Coef int64
}

// Expr is a linear integer expression: Σ coef·var + constant.
// The zero value is the constant 0.
type Expr struct {
	coefs    map[string]int64
	constant int64
}

// Var returns the expression consisting of the single variable name.
func Var(name string) Expr {
	return Expr{coefs: map[string]int64{name: 1}}
}

// Const returns the constant expression v.
func Const(v int64) Expr {
	return Expr{constant: v}
}

func (e Expr) clone() Expr {
	out := Expr{constant: e.constant, coefs: make(map[string]int64, len(e.coefs))}
	for k, v := range e.coefs {
		out.coefs[k] = v
	}
	return out
}

// Plus returns e + o.
func (e Expr) Plus(o Expr) Expr {
	out := e.clone()
	for k, v := range o.coefs {
		out.coefs[k] += v
		if out.coefs[k] == 0 {
			delete(out.coefs, k)
		}
	}
	out.constant += o.constant
	return out
}

// Minus returns e - o.
func (e Expr) Minus(o Expr) Expr {
	return e.Plus(o.Scale(-1))
}

// AddConst returns e + c.
func (e Expr) AddConst(c int64) Expr {
	out := e.clone()
	out.constant += c
	return out
}

// Scale returns k·e.
func (e Expr) Scale(k int64) Expr {
	out := Expr{constant: e.constant * k, coefs: make(map[string]int64, len(e.coefs))}
	if k == 0 {
		out.constant = 0
		return out
	}
	for name, c := range e.coefs {
		out.coefs[name] = c * k
	}
	return out
}

// Terms returns the non-zero terms ordered by variable name.
func (e Expr) Terms() []Term {
	out := make([]Term, 0, len(e.coefs))
	for name, c := range e.coefs {
		if c != 0 {
			out = append(out, Term{Var: name, Coef: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}

// Constant returns the constant part of e.
func (e Expr) Constant() int64 { return e.constant }

// Vars returns the variable names referenced by e, sorted.
func (e Expr) Vars() []string {
	terms := e.Terms()
	names := make([]string, len(terms))
	for i, t := range terms {
		names[i] = t.Var
	}
	return names
}

// Eval computes e under the given values. Arithmetic is checked.
func (e Expr) Eval(values map[string]int64) (int64, error) {
	acc := e.constant
	for _, t := range e.Terms() {
		v, ok := values[t.Var]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnboundVariable, t.Var)
		}
		p, ok := mulChecked(t.Coef, v)
		if !ok {
			return 0, fmt.Errorf("%w: %d*%s", ErrOverflow, t.Coef, t.Var)
		}
		if acc, ok = addChecked(acc, p); !ok {
			return 0, fmt.Errorf("%w: %s", ErrOverflow, e)
		}
	}
	return acc, nil
}

// evalBig computes e without a range limit.
func (e Expr) evalBig(values map[string]int64) (*big.Int, error) {
	acc := big.NewInt(e.constant)
	var p big.Int
	for _, t := range e.Terms() {
		v, ok := values[t.Var]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, t.Var)
		}
		p.Mul(big.NewInt(t.Coef), big.NewInt(v))
		acc.Add(acc, &p)
	}
	return acc, nil
}

// String renders e as "a + 2*b - 3".
func (e Expr) String() string {
	var b strings.Builder
	for i, t := range e.Terms() {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			b.WriteString("-")
			coef = -coef
		case i > 0 && coef < 0:
			b.WriteString(" - ")
			coef = -coef
		case i > 0:
			b.WriteString(" + ")
		}
		if coef != 1 {
			fmt.Fprintf(&b, "%d*", coef)
		}
		b.WriteString(t.Var)
	}
	switch {
	case b.Len() == 0:
		fmt.Fprintf(&b, "%d", e.constant)
	case e.constant > 0:
		fmt.Fprintf(&b, " + %d", e.constant)
	case e.constant < 0:
		fmt.Fprintf(&b, " - %d", -e.constant)
	}
	return b.String()
}

func addChecked(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}
