package farkas

import (
	"fmt"
	"math/big"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// FailureKind classifies why metering-function synthesis did not produce a
// usable m(x), per spec.md 4.4's failure taxonomy.
type FailureKind int

const (
	// Success means Result.Metering is a valid metering function.
	Success FailureKind = iota
	// Unbounded means the rule has no reachable guard at all (an empty
	// reduced guard trivially admits no decreasing quantity to bound it).
	Unbounded
	// Nonlinear means the guard or update is not linear in the relevant
	// variables, so it cannot be expressed as a Farkas row at all. Should
	// not occur on rules that already passed pkg/linearize.
	Nonlinear
	// ConflictVar means relevant-variable selection produced a system this
	// synthesiser's (simplified) search gives up on rather than resolving by
	// re-splitting the conflicting variable. Not produced by this
	// implementation (see DESIGN.md); kept in the taxonomy for API
	// completeness and for heuristics layered on top to return in the
	// future.
	ConflictVar
	// Unsat means the Farkas system itself has no solution: no linear
	// metering function of this template exists for this rule.
	Unsat
)

func (k FailureKind) String() string {
	switch k {
	case Success:
		return "success"
	case Unbounded:
		return "unbounded"
	case Nonlinear:
		return "nonlinear"
	case ConflictVar:
		return "conflict-var"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Result is the outcome of Synthesize.
type Result struct {
	Kind         FailureKind
	Metering     expr.Expression // valid iff Kind == Success
	RelevantVars []vars.Var

	// Witness is non-nil when Metering carries a fresh integral witness
	// variable in place of a rational-coefficient bound (spec.md 4.4): the
	// equality constraint tying that variable to the scaled metering
	// function, which callers must conjoin into the accelerated rule's
	// guard alongside substituting Metering for the iteration counter.
	Witness *its.Atom
}

// Template is the metering function's shape, c0 + sum(c_i * x_i), with one
// fresh Farkas coefficient variable per relevant program variable plus a
// fresh constant term, per spec.md 4.4.
type Template struct {
	coeffs map[int64]vars.Var
	relvar []vars.Var
	constC vars.Var
}

// NewTemplate allocates a fresh coefficient variable per relevant variable.
func NewTemplate(relevant []vars.Var) Template {
	t := Template{coeffs: make(map[int64]vars.Var, len(relevant)), relvar: relevant, constC: vars.FreshTemp("c0")}
	for _, v := range relevant {
		t.coeffs[v.ID()] = vars.FreshTemp(fmt.Sprintf("c_%s", v.String()))
	}
	return t
}

// Expr returns the metering expression m(x) = c0 + sum(c_i * x_i).
func (t Template) Expr() expr.Expression {
	m := expr.FromVar(t.constC)
	for _, v := range t.relvar {
		m = expr.Add(m, expr.Mul(expr.FromVar(t.coeffs[v.ID()]), expr.FromVar(v)))
	}
	return m
}

// ParamVars returns every fresh coefficient variable of the template,
// constant term included.
func (t Template) ParamVars() []vars.Var {
	out := make([]vars.Var, 0, len(t.coeffs)+1)
	out = append(out, t.constC)
	for _, v := range t.relvar {
		out = append(out, t.coeffs[v.ID()])
	}
	return out
}

// Synthesize attempts to find a linear metering function for rule, per
// spec.md 4.4: M1 (per reduced-guard atom, its negation forces m<=0), M2
// (the guard entails m positive), M3 (the guard entails m decreases by at
// least 1 per application of the rule's update). Only applicable to linear
// rules; callers must have already selected a single branch's update for a
// branching rule (e.g. the branch pkg/chain or pkg/driver is currently
// bounding).
func Synthesize(oracle *smt.Oracle, guard its.Guard, u its.Update, timeout time.Duration) Result {
	reduced := ReducedGuard(oracle, guard, timeout)
	if reduced.IsEmpty() {
		return Result{Kind: Unbounded}
	}
	relevant := RelevantVariables(reduced, u).Slice()
	var programOnly []vars.Var
	for _, v := range relevant {
		if v.IsProgram() {
			programOnly = append(programOnly, v)
		}
	}

	tmpl := NewTemplate(programOnly)
	allowed := vars.NewSet()
	for _, v := range programOnly {
		allowed.Add(v)
	}

	var atoms []its.Atom
	addRows := func(premiseRows []row, conclusion expr.Expression) bool {
		g, _, ok := farkasEliminate(premiseRows, programOnly, conclusion)
		if !ok {
			return false
		}
		atoms = append(atoms, g.Atoms...)
		return true
	}

	m := tmpl.Expr()

	// M1: for every reduced-guard atom g_j, not(g_j) ⇒ m(x) <= 0. Grounded
	// on nl_metering.cpp's genNotGuardImplication: the premise is just the
	// single negated atom (plus any atoms mentioning no relevant variable
	// at all, which this implementation drops rather than tracks
	// separately — see DESIGN.md). reduced is already normalized
	// (ReducedGuard built it from g.Normalize()).
	for _, a := range reduced.Atoms {
		negRow, ok := extractRow(negateToLE(a.LHS), allowed)
		if !ok {
			return Result{Kind: Nonlinear}
		}
		if !addRows([]row{negRow}, m) {
			return Result{Kind: Nonlinear}
		}
	}

	// M2: guard (restricted to relevant variables; atoms mentioning a
	// variable outside the template are dropped, matching
	// restrictGuardToVariables) ⇒ m(x) >= 1, i.e. -m(x) <= -1.
	fullRows, ok := rowsOf(restrictToVars(guard, allowed), allowed)
	if !ok {
		return Result{Kind: Nonlinear}
	}
	if !addRows(fullRows, expr.Add(expr.Neg(m), expr.ConstInt(1))) {
		return Result{Kind: Nonlinear}
	}

	// M3: guard ⇒ m(x) - m(U(x)) <= 1.
	mPrime := m.SubstVar(u.AsSubst())
	delta := expr.Sub(m, mPrime)
	if !delta.LinearIn(allowed) {
		return Result{Kind: Nonlinear}
	}
	if !addRows(fullRows, expr.Sub(delta, expr.ConstInt(1))) {
		return Result{Kind: Nonlinear}
	}

	// Every fresh lambda variable introduced above must also be >= 0;
	// farkasEliminate already added those atoms into the accumulated list.
	combined := its.Guard{Atoms: atoms}
	model := oracle.ModelOrNil(combined, timeout)
	if model == nil {
		return Result{Kind: Unsat}
	}

	if isTrivial(*model, tmpl) {
		return Result{Kind: Unsat}
	}

	metering, witness := integralize(instantiate(tmpl, *model))
	return Result{Kind: Success, Metering: metering, RelevantVars: programOnly, Witness: witness}
}

// restrictToVars drops every atom of g that mentions a variable outside
// allowed, grounded on metertools.cpp's restrictGuardToVariables: such an
// atom cannot contribute a Farkas row over the template anyway (it has no
// relevant variable to bound), so dropping it only loses premise strength
// that nothing in the template could have used.
func restrictToVars(g its.Guard, allowed *vars.Set) its.Guard {
	norm := g.Normalize()
	var kept []its.Atom
	for _, a := range norm.Atoms {
		within := true
		for _, v := range a.FreeVars().Slice() {
			if !allowed.Contains(v) {
				within = false
				break
			}
		}
		if within {
			kept = append(kept, a)
		}
	}
	return its.Guard{Atoms: kept}
}

// rowsOf extracts one row per atom of g.Normalize(), failing the whole batch
// if any atom isn't linear in allowed.
func rowsOf(g its.Guard, allowed *vars.Set) ([]row, bool) {
	norm := g.Normalize()
	out := make([]row, 0, len(norm.Atoms))
	for _, a := range norm.Atoms {
		r, ok := extractRow(a.LHS, allowed)
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// farkasEliminate builds the parameter-only constraints equivalent to
// "premise (a conjunction of rows over relevant) implies conclusion <= 0",
// via Farkas' lemma: exists lambda >= 0 such that lambda^T*A = c (the
// per-variable coefficient equalities) and lambda^T*b <= delta (the bound
// inequality), where c and delta are read off conclusion symbolically (they
// may themselves be expressions in tmpl's fresh parameter variables, as M3's
// per-relevant-variable coefficients are).
func farkasEliminate(premise []row, relevant []vars.Var, conclusion expr.Expression) (its.Guard, []vars.Var, bool) {
	relevantSet := vars.NewSet()
	for _, v := range relevant {
		relevantSet.Add(v)
	}
	if !conclusion.LinearIn(relevantSet) {
		return its.Guard{}, nil, false
	}
	lambdas := make([]vars.Var, len(premise))
	for i := range premise {
		lambdas[i] = vars.FreshTemp(fmt.Sprintf("lambda%d", i))
	}
	var atoms []its.Atom
	for _, lam := range lambdas {
		atoms = append(atoms, its.Atom{LHS: expr.FromVar(lam), Rel: its.GE, RHS: expr.Zero()})
	}
	for _, v := range relevant {
		lhsSum := expr.Zero()
		for j, r := range premise {
			a := r.coeffOf(v.ID())
			if a.IsZero() {
				continue
			}
			lhsSum = expr.Add(lhsSum, expr.Mul(expr.FromVar(lambdas[j]), expr.Const(a)))
		}
		ck := conclusion.CoefficientAt(v, 1)
		atoms = append(atoms, its.Atom{LHS: lhsSum, Rel: its.EQ, RHS: ck})
	}
	zeroSubst := expr.NewSubst()
	for _, v := range relevant {
		zeroSubst.Set(v, expr.Zero())
	}
	d := conclusion.SubstVar(zeroSubst)
	boundSum := expr.Zero()
	for j, r := range premise {
		boundSum = expr.Add(boundSum, expr.Mul(expr.FromVar(lambdas[j]), expr.Const(r.bound)))
	}
	atoms = append(atoms, its.Atom{LHS: boundSum, Rel: its.LE, RHS: expr.Neg(d)})
	return its.Guard{Atoms: atoms}, lambdas, true
}

// isTrivial reports whether every coefficient of tmpl is zero in model —
// the degenerate metering function that always decreases by exactly its own
// constant shift is not a useful bound. Farkas' lemma, applied to a system
// with the all-zero point feasible, can otherwise return it; filtering it
// out here is a model-level stand-in for the disjunctive non-triviality
// constraint spec.md 4.4 describes (the Fourier-Motzkin backend only
// decides conjunctions — see DESIGN.md).
func isTrivial(model smt.Model, tmpl Template) bool {
	for _, v := range tmpl.relvar {
		c := tmpl.coeffs[v.ID()]
		if val, ok := model.Get(c); ok && !val.IsZero() {
			return false
		}
	}
	return true
}

// instantiate reads the template's fresh coefficient variables out of model
// and substitutes them into tmpl.Expr(), producing a metering function over
// only the rule's program variables. Coefficients absent from model (the
// solver left them unconstrained) default to 0, same as ratio.Zero via
// expr.Zero.
func instantiate(tmpl Template, model smt.Model) expr.Expression {
	s := expr.NewSubst()
	for _, p := range tmpl.ParamVars() {
		if val, ok := model.Get(p); ok {
			s.Set(p, expr.Const(val))
		} else {
			s.Set(p, expr.Zero())
		}
	}
	return tmpl.Expr().SubstVar(s)
}

// integralize enforces spec.md 4.4's integrality requirement on an
// instantiated metering function: the SMT model extracted in Synthesize is
// rational (pkg/smt.Model), so m may carry coefficients with a denominator
// other than 1, and the driver substitutes the result directly for the
// integer iteration counter N (pkg/driver's closeViaMetering). If m is
// already integral this is a no-op. Otherwise m is scaled by the lcm of its
// coefficients' denominators — clearing every fraction — and a fresh
// integral program variable is introduced in m's place, tied back to the
// scaled, now-integer-coefficient polynomial by the equality constraint
// witness*lcm = lcm*m. The caller must conjoin that constraint into the
// accelerated rule's guard; only states where m actually takes an integer
// value admit a witness satisfying it, so the substitution stays sound.
func integralize(m expr.Expression) (expr.Expression, *its.Atom) {
	lcm := big.NewInt(1)
	for _, t := range m.Terms() {
		if !t.Coeff.IsInt() {
			lcm = ratio.Lcm(lcm, t.Coeff.Den)
		}
	}
	if lcm.Cmp(big.NewInt(1)) == 0 {
		return m, nil
	}

	scale := expr.Const(ratio.FromBigInt(lcm))
	scaled := expr.Mul(scale, m)

	witness := vars.FreshProgram("meteringWitness")
	constraint := its.Atom{LHS: expr.Mul(scale, expr.FromVar(witness)), Rel: its.EQ, RHS: scaled}
	return expr.FromVar(witness), &constraint
}
