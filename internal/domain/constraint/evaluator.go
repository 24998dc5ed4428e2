package constraint

// Evaluator decides whether every constraint of a bound problem holds.
// Implementations must be safe for concurrent use and must agree with Direct
// on every problem both accept.
type Evaluator interface {
	Name() string
	Satisfiable(p *Problem) (bool, error)
}

// DirectName is the name reported by the direct strategy.
const DirectName = "direct"

// Direct evaluates constraints with native comparisons on the bound values.
type Direct struct{}

// Name implements Evaluator.
func (Direct) Name() string { return DirectName }

// Satisfiable implements Evaluator.
func (Direct) Satisfiable(p *Problem) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	values := p.Values()
	for _, c := range p.constraints {
		ok, err := c.Holds(values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
