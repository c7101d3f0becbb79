package recurrence

import (
	"fmt"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
)

// ClosedForm is the value of a recurrence variable (or the cumulative cost)
// after N iterations: Poly + GeomCoeff*GeomBase^N, where Poly and GeomCoeff
// are ordinary polynomials (in N and the rule's other variables) and
// GeomBase is a fixed rational base.
//
// This is a deliberately narrower representation than a fully general
// C-finite closed form: pkg/expr's Expression type is strictly polynomial
// (see its package doc), so a closed form with a nontrivial geometric
// factor cannot be embedded back into an accelerated rule's Update as-is.
// pkg/backward's scope decision (DESIGN.md) is that such a rule still
// yields a sound Exp/NestedExp complexity verdict from GeomBase, but is not
// chained or accelerated further — exactly the same "stop, report the best
// partial bound" discipline spec.md 5 already prescribes for deadlines.
type ClosedForm struct {
	Poly      expr.Expression
	GeomCoeff expr.Expression
	GeomBase  ratio.Rat
	HasGeom   bool
}

// Polynomial returns the closed form Poly (HasGeom must be false).
func Polynomial(p expr.Expression) ClosedForm { return ClosedForm{Poly: p} }

// IsPolynomial reports whether c has no geometric component.
func (c ClosedForm) IsPolynomial() bool { return !c.HasGeom }

// AsExpression returns c as a plain polynomial Expression. Only valid when
// IsPolynomial; callers must check first.
func (c ClosedForm) AsExpression() expr.Expression { return c.Poly }

func (c ClosedForm) String() string {
	if !c.HasGeom {
		return c.Poly.String()
	}
	return fmt.Sprintf("%s*%s^N + %s", c.GeomCoeff, c.GeomBase, c.Poly)
}
