package expr

import (
	"fmt"
	"math/big"

	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// DegreeIn returns the degree of e in v: the maximum exponent of v across
// e's terms, or 0 if v does not occur. Returns 0 for NonTerm (degree is
// undefined for the sentinel; callers must check IsNonTerm first when that
// distinction matters).
func (e Expression) DegreeIn(v vars.Var) int64 {
	var max int64
	for _, t := range e.terms {
		if d := t.degreeOf(v); d > max {
			max = d
		}
	}
	return max
}

// CoefficientAt returns the sub-expression multiplying v^degree, i.e. the
// sum of every term containing v exactly to the given degree, with that
// factor of v removed. The result may itself contain other variables.
func (e Expression) CoefficientAt(v vars.Var, degree int64) Expression {
	out := Zero()
	for _, t := range e.terms {
		if t.degreeOf(v) != degree {
			continue
		}
		var reduced []VarPower
		for _, p := range t.Powers {
			if p.Var.Equal(v) {
				continue
			}
			reduced = append(reduced, p)
		}
		out = out.addTerm(Term{Coeff: t.Coeff, Powers: reduced})
	}
	return out
}

// IsPolynomial reports whether e is a polynomial, i.e. not the NonTerm
// sentinel. The canonical representation guarantees every non-sentinel
// Expression is a polynomial by construction.
func (e Expression) IsPolynomial() bool { return !e.nonTerm }

// LinearIn reports whether e is linear in the given variable set: every
// term's total degree restricted to set is at most 1. This correctly
// rejects a cross term like x*y when both x and y are in set (restricted
// degree 2) while allowing a coefficient that itself depends on variables
// outside set.
func (e Expression) LinearIn(set *vars.Set) bool {
	if e.nonTerm {
		return false
	}
	for _, t := range e.terms {
		if t.totalDegreeIn(set) > 1 {
			return false
		}
	}
	return true
}

// FreeVars returns the set of variables occurring in e.
func (e Expression) FreeVars() *vars.Set {
	s := vars.NewSet()
	for _, t := range e.terms {
		for _, p := range t.Powers {
			s.Add(p.Var)
		}
	}
	return s
}

// CoeffPolicy selects how strict solve-term-for-variable's coefficient
// requirement is, per spec.md 4.1.
type CoeffPolicy int

const (
	// CoeffUnit requires the coefficient of x to be exactly +1 or -1.
	CoeffUnit CoeffPolicy = iota
	// CoeffIntegral allows any integer coefficient that evenly divides
	// every coefficient of the remaining (non-x) part, guaranteeing the
	// solved term is integer-valued for all integer inputs.
	CoeffIntegral
	// CoeffAny allows any nonzero rational coefficient.
	CoeffAny
)

// SolveTermForVariable solves p == 0 for x, where p must have degree
// exactly 1 in x, returning t such that p == 0 iff x == t. Fails
// (ok==false) when the degree is not 1 or when coefficient policy is
// violated, per spec.md 4.1.
func SolveTermForVariable(p Expression, x vars.Var, policy CoeffPolicy) (t Expression, ok bool) {
	if p.nonTerm {
		return Expression{}, false
	}
	if p.DegreeIn(x) != 1 {
		return Expression{}, false
	}
	coeffExpr := p.CoefficientAt(x, 1)
	a, isConst := coeffExpr.IsConst()
	if !isConst || a.IsZero() {
		return Expression{}, false
	}
	rest := p.CoefficientAt(x, 0)

	switch policy {
	case CoeffUnit:
		if !(a.Equal(ratio.One()) || a.Equal(ratio.One().Neg())) {
			return Expression{}, false
		}
	case CoeffIntegral:
		if !a.IsInt() {
			return Expression{}, false
		}
		for _, rt := range rest.terms {
			if !rt.Coeff.IsInt() {
				return Expression{}, false
			}
			if new(big.Int).Mod(rt.Coeff.Num, a.Num).Sign() != 0 {
				return Expression{}, false
			}
		}
	case CoeffAny:
		// no further restriction
	default:
		panic(fmt.Sprintf("expr: unknown coefficient policy %d", policy))
	}

	negRestOverA := Mul(Neg(rest), Const(ratio.One().Quo(a)))
	return negRestOverA, true
}
