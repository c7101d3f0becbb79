// Package backward implements backward acceleration (spec.md 4.6): given a
// linear self-loop, construct the inverse update, check that the guard is
// monotone under it, close the N-fold iterated update/cost via the
// recurrence oracle, and instantiate the iteration counter N with its
// derivable upper bounds.
//
// Grounded directly on
// original_source/src/accelerate/backwardacceleration.cpp's
// BackwardAcceleration class (computeInverseUpdate, checkGuardImplication,
// buildAcceleratedRule, computeUpperbounds, replaceByUpperbounds, run) —
// read in full, since spec.md 4.6 describes the three inverse-update cases
// and the guard-shift construction only in prose.
package backward

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/farkas"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/recurrence"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// FailureKind classifies why Accelerate did not produce an accelerated
// rule.
type FailureKind int

const (
	Success FailureKind = iota
	// NotApplicable means the rule is branching; backward acceleration is
	// only defined for linear rules (spec.md 4.6).
	NotApplicable
	// DependencyCycle means the update's variable-reference graph has a
	// genuine multi-variable cycle (recurrence.DependencyOrder failed).
	DependencyCycle
	// NoInverse means no inverse update could be constructed: a
	// nonconstant or nonlinear right-hand side, or an alpha=0 case neither
	// of the two special forms covers.
	NoInverse
	// GuardNotImplied means the monotonicity check failed: the guard does
	// not provably hold one iteration earlier under the inverse update.
	GuardNotImplied
	// RecurrenceUnsolved means the recurrence oracle could not close the
	// N-fold update or cost.
	RecurrenceUnsolved
	// GeomOnly means the recurrence closed but at least one variable's
	// closed form has a nontrivial geometric component, which cannot be
	// embedded into an its.Update (pkg/expr is strictly polynomial). The
	// caller still gets a sound Exp/NestedExp complexity witness via
	// GeomBase, but no chainable rule.
	GeomOnly
)

func (k FailureKind) String() string {
	switch k {
	case Success:
		return "success"
	case NotApplicable:
		return "not-applicable"
	case DependencyCycle:
		return "dependency-cycle"
	case NoInverse:
		return "no-inverse"
	case GuardNotImplied:
		return "guard-not-implied"
	case RecurrenceUnsolved:
		return "recurrence-unsolved"
	case GeomOnly:
		return "geom-only"
	default:
		return "unknown"
	}
}

// Result is the outcome of Accelerate.
type Result struct {
	Kind FailureKind
	// Rules holds one or more accelerated rules, valid iff Kind ==
	// Success: either every derivable upper bound on N instantiated into
	// its own rule, or (when N has no usable bound, or too many) a single
	// rule with N left symbolic in its guard.
	Rules []*its.Rule
	// GeomBase is the geometric growth base, valid iff Kind == GeomOnly.
	GeomBase ratio.Rat
}

// InverseUpdate constructs U⁻¹ for every relevant variable of guard under
// u, per spec.md 4.6's three cases (v := alpha*v+beta with alpha a nonzero
// constant; v := beta, alpha=0, distinguishing which fixed point beta
// satisfies). Variables u does not update, or that are not relevant to
// guard, are left as the implicit identity. Fails if any relevant
// variable's update is nonlinear in itself, has a non-constant
// coefficient, or is an alpha=0 case neither special form resolves.
func InverseUpdate(guard its.Guard, u its.Update) (its.Update, bool) {
	order, ok := recurrence.DependencyOrder(u)
	if !ok {
		return its.Update{}, false
	}
	relevant := farkas.RelevantVariables(guard, u)
	updateSubs := u.AsSubst()

	inverse := its.NewUpdate()
	for _, v := range order {
		if !relevant.Contains(v) {
			continue
		}
		rhs := u.Apply(v)
		if rhs.DegreeIn(v) > 1 {
			return its.Update{}, false
		}
		alphaExpr := rhs.CoefficientAt(v, 1)
		beta := rhs.CoefficientAt(v, 0)
		alpha, isConst := alphaExpr.IsConst()
		if !isConst {
			return its.Update{}, false
		}

		if alpha.IsZero() {
			// v := beta (v does not occur in its own update). We only know
			// the inverse in two special cases (metering.cpp's comment:
			// "in all other cases, we have no idea").
			switch {
			case rhs.SubstVar(updateSubs).Equal(rhs):
				// update(update(v)) == update(v): beta is already a fixed
				// point of u, so u itself is its own (partial) inverse here.
				inverse = inverse.Set(v, rhs)
			case rhs.SubstVar(inverse.AsSubst()).SubstVar(updateSubs).Equal(rhs):
				once := rhs.SubstVar(inverse.AsSubst())
				inverse = inverse.Set(v, once.SubstVar(inverse.AsSubst()))
			default:
				return its.Update{}, false
			}
			continue
		}

		betaSub := beta.SubstVar(inverse.AsSubst())
		invRHS := expr.Mul(expr.Sub(expr.FromVar(v), betaSub), expr.Const(ratio.One().Quo(alpha)))
		inverse = inverse.Set(v, invRHS)
	}
	return inverse, true
}

// monotonicityHolds checks guard ⇒ reduced[U⁻¹], atom by atom (a
// conjunction of atoms is implied iff each conjunct is), per spec.md 4.6.
func monotonicityHolds(oracle *smt.Oracle, guard, reduced its.Guard, inverse its.Update, timeout time.Duration) bool {
	shifted := reduced.SubstVar(inverse.AsSubst())
	for _, a := range shifted.Atoms {
		if !oracle.Implies(guard, a, timeout, smt.UnsatFavoured) {
			return false
		}
	}
	return true
}

// acceleratedGuard builds the guard spec.md 4.6 describes: the original
// guard, N>0, and the original guard evaluated N-1 iterations in (the
// original guard with U^N substituted in, then N shifted to N-1) —
// justified by the monotonicity check having already established the
// guard holds at every earlier iteration.
func acceleratedGuard(orig its.Guard, iteratedUpdate its.Update, n vars.Var) its.Guard {
	atoms := append([]its.Atom(nil), orig.Atoms...)
	atoms = append(atoms, its.Atom{LHS: expr.FromVar(n), Rel: its.GT, RHS: expr.Zero()})

	iterSubst := iteratedUpdate.AsSubst()
	shiftN := expr.NewSubst()
	shiftN.Set(n, expr.Sub(expr.FromVar(n), expr.ConstInt(1)))
	for _, a := range orig.Atoms {
		atoms = append(atoms, a.SubstVar(iterSubst).SubstVar(shiftN))
	}
	return its.Guard{Atoms: atoms}
}

// Accelerate attempts to backward-accelerate rule's single self-loop
// branch, per spec.md 4.6. maxBounds caps how many upper-bound
// instantiations of N are produced before giving up and keeping N
// symbolic (spec.md 4.6: "when there are too many strict bounds ... the
// rule is kept with N symbolic").
func Accelerate(oracle *smt.Oracle, rule *its.Rule, timeout time.Duration, maxBounds int) Result {
	if !rule.IsLinear() {
		return Result{Kind: NotApplicable}
	}
	u := rule.SingleUpdate()

	inverse, ok := InverseUpdate(rule.Guard, u)
	if !ok {
		if _, depOK := recurrence.DependencyOrder(u); !depOK {
			return Result{Kind: DependencyCycle}
		}
		return Result{Kind: NoInverse}
	}

	reduced := farkas.ReducedGuard(oracle, rule.Guard, timeout)
	if !monotonicityHolds(oracle, rule.Guard, reduced, inverse, timeout) {
		return Result{Kind: GuardNotImplied}
	}

	n := vars.FreshTemp("N")
	solved, ok := recurrence.Solve(u, rule.Cost, n)
	if !ok {
		return Result{Kind: RecurrenceUnsolved}
	}
	for _, v := range solved.Order {
		if !solved.PerVar[v.ID()].IsPolynomial() {
			return Result{Kind: GeomOnly, GeomBase: solved.PerVar[v.ID()].GeomBase}
		}
	}

	iteratedUpdate := its.NewUpdate()
	for _, v := range solved.Order {
		iteratedUpdate = iteratedUpdate.Set(v, solved.PerVar[v.ID()].AsExpression())
	}

	newGuard := acceleratedGuard(rule.Guard, iteratedUpdate, n)
	accelerated := its.Derived(rule.Source, newGuard, solved.Cost.AsExpression(),
		[]its.Branch{{Target: rule.SingleTarget(), Update: iteratedUpdate}}, "backward-accelerated", rule)

	return Result{Kind: Success, Rules: replaceByUpperBounds(n, accelerated, maxBounds)}
}

// replaceByUpperBounds instantiates n with each of its derivable upper
// bounds, producing one rule per bound; falls back to the symbolic-N rule
// when no bound can be found or there are more than maxBounds of them.
func replaceByUpperBounds(n vars.Var, rule *its.Rule, maxBounds int) []*its.Rule {
	bounds, ok := computeUpperBounds(n, rule.Guard)
	if !ok || len(bounds) > maxBounds {
		return []*its.Rule{rule}
	}

	out := make([]*its.Rule, 0, len(bounds))
	for _, bound := range bounds {
		s := expr.NewSubst()
		s.Set(n, bound)
		out = append(out, its.Derived(rule.Source, rule.Guard.SubstVar(s), rule.Cost.SubstVar(s),
			substBranches(rule.RHS, s), "backward-instantiated", rule))
	}
	return out
}

func substBranches(rhs []its.Branch, s expr.Subst) []its.Branch {
	out := make([]its.Branch, len(rhs))
	for i, b := range rhs {
		u := its.NewUpdate()
		for _, v := range b.Update.Domain() {
			u = u.Set(v, b.Update.Apply(v).SubstVar(s))
		}
		out[i] = its.Branch{Target: b.Target, Update: u}
	}
	return out
}

// computeUpperBounds returns every upper bound on n derivable from guard,
// per spec.md 4.6's last paragraph: a single equality bound short-circuits
// (it alone pins N), otherwise every "N <= ..." atom is solved for N.
// "N >= ..." atoms (lower bounds) are not useful for instantiation and are
// skipped.
func computeUpperBounds(n vars.Var, guard its.Guard) ([]expr.Expression, bool) {
	for _, a := range guard.Atoms {
		if a.Rel != its.EQ || !a.FreeVars().Contains(n) {
			continue
		}
		diff := expr.Sub(a.LHS, a.RHS)
		solved, ok := expr.SolveTermForVariable(diff, n, expr.CoeffIntegral)
		if !ok {
			return nil, false
		}
		return []expr.Expression{solved}, true
	}

	var bounds []expr.Expression
	for _, a := range guard.Atoms {
		if a.Rel == its.EQ || !a.FreeVars().Contains(n) {
			continue
		}
		for _, normalized := range its.NewGuard(a).Normalize().Atoms {
			if normalized.LHS.DegreeIn(n) != 1 {
				continue
			}
			coeff, isConst := normalized.LHS.CoefficientAt(n, 1).IsConst()
			if !isConst || coeff.Sign() < 0 {
				continue // a lower bound (N >= ...); not useful here
			}
			solved, ok := expr.SolveTermForVariable(normalized.LHS, n, expr.CoeffIntegral)
			if !ok {
				return nil, false
			}
			bounds = append(bounds, solved)
		}
	}
	if len(bounds) == 0 {
		return nil, false
	}
	return bounds, true
}
