package farkas

import (
	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// row is a single linear inequality Σ Coeffs[v]*v <= Bound, restricted to a
// fixed set of allowed (template) variables — the shape Farkas' lemma needs
// the premise side of an implication in.
type row struct {
	coeffs map[int64]ratio.Rat
	bound  ratio.Rat
}

func (r row) coeffOf(id int64) ratio.Rat {
	if c, ok := r.coeffs[id]; ok {
		return c
	}
	return ratio.Zero()
}

// extractRow reads e, already in canonical "<=0" form (its.Atom.Normalize's
// output shape), as a row over allowed. Fails if e mentions a variable
// outside allowed, or any monomial of degree > 1 in an allowed variable —
// both mean the caller handed this atom a guard that isn't linear in its
// relevant variables, which pkg/linearize is supposed to have already ruled
// out upstream.
func extractRow(e expr.Expression, allowed *vars.Set) (row, bool) {
	r := row{coeffs: make(map[int64]ratio.Rat)}
	constPart := ratio.Zero()
	for _, t := range e.Terms() {
		switch len(t.Powers) {
		case 0:
			constPart = constPart.Add(t.Coeff)
		case 1:
			p := t.Powers[0]
			if p.Exp != 1 || !allowed.Contains(p.Var) {
				return row{}, false
			}
			r.coeffs[p.Var.ID()] = r.coeffOf(p.Var.ID()).Add(t.Coeff)
		default:
			return row{}, false
		}
	}
	r.bound = constPart.Neg()
	return r, true
}

// negateToLE returns the canonical "<=0" form of not(e<=0), i.e. of e>0,
// reusing its.Guard.Normalize's integer-semantics GT handling (e>0 becomes
// -e+1<=0) rather than re-deriving the same shift here.
func negateToLE(e expr.Expression) expr.Expression {
	g := its.NewGuard(its.Atom{LHS: e, Rel: its.GT, RHS: expr.Zero()}).Normalize()
	return g.Atoms[0].LHS
}
