package recurrence

import (
	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// Result is the recurrence oracle's successful output, per spec.md 4.3:
// ū1(N)...ūk(N) for the dependency-ordered variables plus c̄(N) for the
// cumulative cost.
type Result struct {
	Order  []vars.Var
	PerVar map[int64]ClosedForm
	Cost   ClosedForm
}

// Solve closes the recurrence for the given update, evaluated in dependency
// order, with cost charged once per iteration. N is the fresh counter
// variable the resulting closed forms are expressed in terms of; the
// caller (pkg/backward) is responsible for allocating it
// (vars.FreshTemp("N")). Returns ok=false when the system is not C-finite
// within this solver's supported shapes (see ClosedForm's doc comment and
// sumPolyOverRange's degree cap).
func Solve(u its.Update, cost expr.Expression, n vars.Var) (Result, bool) {
	order, ok := DependencyOrder(u)
	if !ok {
		return Result{}, false
	}

	perVar := make(map[int64]ClosedForm, len(order))
	for _, v := range order {
		t := u.Apply(v)
		cf, ok := solveOne(v, t, perVar, n)
		if !ok {
			return Result{}, false
		}
		perVar[v.ID()] = cf
	}

	costCF, ok := accumulate(cost, perVar, n)
	if !ok {
		return Result{}, false
	}

	return Result{Order: order, PerVar: perVar, Cost: costCF}, true
}

// solveOne closes the single first-order recurrence V(n) = alpha*V(n-1) +
// g(n-1), where alpha is t's coefficient of v, g(m) is t's v-free remainder
// with every already-solved dependency substituted by its own closed form
// at m, and V(n-1)/g(n-1) both denote the pre-update (iteration n-1) state.
func solveOne(v vars.Var, t expr.Expression, perVar map[int64]ClosedForm, n vars.Var) (ClosedForm, bool) {
	if t.DegreeIn(v) > 1 {
		return ClosedForm{}, false
	}
	alphaExpr := t.CoefficientAt(v, 1)
	alpha, isConst := alphaExpr.IsConst()
	if !isConst {
		return ClosedForm{}, false
	}
	rest := t.CoefficientAt(v, 0)

	g, ok := substituteClosedForms(rest, perVar, n)
	if !ok {
		return ClosedForm{}, false
	}

	if alpha.IsZero() {
		// v := g (α=0): V(N) = g(N-1), the forcing term one iteration back.
		shifted := g.SubstVar(map[int64]expr.Expression{n.ID(): expr.Sub(expr.FromVar(n), expr.ConstInt(1))})
		return ClosedForm{Poly: shifted}, true
	}

	if alpha.Equal(ratio.One()) {
		// V(N) = V(0) + Σ_{m=0}^{N-1} g(m).
		sum, ok := sumPolyOverRange(g, n)
		if !ok {
			return ClosedForm{}, false
		}
		return ClosedForm{Poly: expr.Add(expr.FromVar(v), sum)}, true
	}

	// alpha != 0, 1: geometric. Only a forcing term constant in n is solved
	// (variation of parameters for a non-constant forcing term is out of
	// scope here; see ClosedForm's doc comment).
	if g.DegreeIn(n) != 0 {
		return ClosedForm{}, false
	}
	oneMinusAlpha := ratio.One().Sub(alpha)
	if oneMinusAlpha.IsZero() {
		return ClosedForm{}, false
	}
	steadyState := expr.Mul(g, expr.Const(ratio.One().Quo(oneMinusAlpha)))
	geomCoeff := expr.Sub(expr.FromVar(v), steadyState)
	return ClosedForm{Poly: steadyState, GeomCoeff: geomCoeff, GeomBase: alpha, HasGeom: true}, true
}

// substituteClosedForms substitutes every already-solved dependency
// occurring in e by its own closed form (in terms of the same counter n),
// leaving exogenous (never-updated) variables untouched. Fails if any
// referenced variable's closed form is non-polynomial (see ClosedForm's
// doc comment).
func substituteClosedForms(e expr.Expression, perVar map[int64]ClosedForm, n vars.Var) (expr.Expression, bool) {
	s := expr.NewSubst()
	for _, dep := range e.FreeVars().Slice() {
		cf, known := perVar[dep.ID()]
		if !known {
			continue // exogenous (non-updated) variable: passes through unchanged
		}
		if !cf.IsPolynomial() {
			return expr.Expression{}, false
		}
		s[dep.ID()] = cf.Poly
	}
	return e.SubstVar(s), true
}

// accumulate closes Σ_{m=0}^{N-1} cost(state after m iterations), i.e. the
// cumulative cost after N iterations (cost is charged once per iteration,
// using the pre-update state, so the same reindexing as the α=1 case of
// solveOne applies directly here).
func accumulate(cost expr.Expression, perVar map[int64]ClosedForm, n vars.Var) (ClosedForm, bool) {
	g, ok := substituteClosedForms(cost, perVar, n)
	if !ok {
		return ClosedForm{}, false
	}
	sum, ok := sumPolyOverRange(g, n)
	if !ok {
		return ClosedForm{}, false
	}
	return ClosedForm{Poly: sum}, true
}

// sumPolyOverRange returns Σ_{k=0}^{n-1} f(k) as a closed-form polynomial in
// n, decomposing f degree-by-degree in n (CoefficientAt strips n, leaving
// the rest as an n-independent scalar factor) and applying Faulhaber's
// formula per degree. Supports degree 0, 1, 2; fails above that.
func sumPolyOverRange(f expr.Expression, n vars.Var) (expr.Expression, bool) {
	maxDeg := f.DegreeIn(n)
	if maxDeg > 2 {
		return expr.Expression{}, false
	}
	result := expr.Zero()
	for d := int64(0); d <= maxDeg; d++ {
		coeff := f.CoefficientAt(n, d)
		if coeff.IsZero() {
			continue
		}
		s, ok := faulhaber(n, d)
		if !ok {
			return expr.Expression{}, false
		}
		result = expr.Add(result, expr.Mul(coeff, s))
	}
	return result, true
}

// faulhaber returns Σ_{k=0}^{n-1} k^d as a closed-form polynomial in n.
func faulhaber(n vars.Var, d int64) (expr.Expression, bool) {
	nv := expr.FromVar(n)
	switch d {
	case 0:
		return nv, true
	case 1:
		// n(n-1)/2
		return expr.Mul(expr.Const(ratio.New(1, 2)), expr.Mul(nv, expr.Sub(nv, expr.ConstInt(1)))), true
	case 2:
		// (n-1)n(2n-1)/6
		two_n_minus_1 := expr.Sub(expr.Mul(expr.ConstInt(2), nv), expr.ConstInt(1))
		return expr.Mul(expr.Const(ratio.New(1, 6)), expr.Mul(expr.Mul(expr.Sub(nv, expr.ConstInt(1)), nv), two_n_minus_1)), true
	default:
		return expr.Expression{}, false
	}
}
