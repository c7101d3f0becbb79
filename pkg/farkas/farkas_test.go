package farkas

import (
	"testing"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

func oracle() *smt.Oracle { return smt.Default(nil) }

func TestReducedGuardDropsImpliedAtom(t *testing.T) {
	x := vars.FreshProgram("x")
	g := its.NewGuard(
		its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.ConstInt(0)},
		its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.ConstInt(-5)},
	)
	reduced := ReducedGuard(oracle(), g, time.Second)
	if len(reduced.Atoms) != 1 {
		t.Fatalf("expected the x>=-5 atom to be dropped as implied by x>=0, got %d atoms: %s", len(reduced.Atoms), reduced)
	}
}

func TestReducedGuardEmptyOnTrue(t *testing.T) {
	reduced := ReducedGuard(oracle(), its.True(), time.Second)
	if !reduced.IsEmpty() {
		t.Fatalf("expected the empty guard to reduce to empty, got %s", reduced)
	}
}

func TestRelevantVariablesPullsInUpdateDependency(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")
	reduced := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.ConstInt(0)})
	u := its.NewUpdate().Set(x, expr.FromVar(y))
	set := RelevantVariables(reduced, u)
	if !set.Contains(x) || !set.Contains(y) {
		t.Fatalf("expected {x,y}, got %v", set.Slice())
	}
}

func TestRelevantVariablesStaysClosedUnderIdentity(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")
	reduced := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.ConstInt(0)})
	u := its.NewUpdate() // identity on everything, including x
	set := RelevantVariables(reduced, u)
	if !set.Contains(x) || set.Contains(y) {
		t.Fatalf("expected only {x}, got %v", set.Slice())
	}
}

// TestSynthesizeDecrement covers guard x>=0, update x:=x-1: the Farkas
// system this rule produces pins a unique solution, m(x) = x+1 (verified by
// hand: M1 forces c_x>=c_0, M2 forces c_0>=1, M3 forces c_x<=1, and M1
// combined with M2 forces c_x>=1, so c_x=c_0=1).
func TestSynthesizeDecrement(t *testing.T) {
	x := vars.FreshProgram("x")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.Zero()})
	u := its.NewUpdate().Set(x, expr.Sub(expr.FromVar(x), expr.ConstInt(1)))

	res := Synthesize(oracle(), guard, u, time.Second)
	if res.Kind != Success {
		t.Fatalf("expected Success, got %s", res.Kind)
	}

	cx, ok := res.Metering.CoefficientAt(x, 1).IsConst()
	if !ok || !cx.Equal(ratio.One()) {
		t.Errorf("expected coefficient of x to be 1, got %v (const=%v)", cx, ok)
	}
	c0, ok := res.Metering.CoefficientAt(x, 0).IsConst()
	if !ok || !c0.Equal(ratio.One()) {
		t.Errorf("expected constant term to be 1, got %v (const=%v)", c0, ok)
	}
}

// TestSynthesizeIncrementBounded covers guard x<=10, update x:=x+1: the
// Farkas system again pins a unique solution, m(x) = 11-x (by the same
// kind of hand derivation as TestSynthesizeDecrement, mirrored about the
// upper bound).
func TestSynthesizeIncrementBounded(t *testing.T) {
	x := vars.FreshProgram("x")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.LE, RHS: expr.ConstInt(10)})
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))

	res := Synthesize(oracle(), guard, u, time.Second)
	if res.Kind != Success {
		t.Fatalf("expected Success, got %s", res.Kind)
	}

	cx, ok := res.Metering.CoefficientAt(x, 1).IsConst()
	if !ok || !cx.Equal(ratio.One().Neg()) {
		t.Errorf("expected coefficient of x to be -1, got %v (const=%v)", cx, ok)
	}
	c0, ok := res.Metering.CoefficientAt(x, 0).IsConst()
	if !ok || !c0.Equal(ratio.FromInt(11)) {
		t.Errorf("expected constant term to be 11, got %v (const=%v)", c0, ok)
	}
}

func TestSynthesizeUnboundedOnTrivialGuard(t *testing.T) {
	x := vars.FreshProgram("x")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	res := Synthesize(oracle(), its.True(), u, time.Second)
	if res.Kind != Unbounded {
		t.Fatalf("expected Unbounded for an always-true guard, got %s", res.Kind)
	}
}

// TestSynthesizeNonlinearGuard covers a guard that is quadratic in its
// relevant variable: extractRow must reject the degree-2 monomial rather
// than silently truncating it, so Synthesize reports Nonlinear instead of
// fabricating an unsound metering function.
func TestSynthesizeNonlinearGuard(t *testing.T) {
	x := vars.FreshProgram("x")
	sq := expr.Mul(expr.FromVar(x), expr.FromVar(x))
	guard := its.NewGuard(its.Atom{LHS: sq, Rel: its.LE, RHS: expr.ConstInt(100)})
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))

	res := Synthesize(oracle(), guard, u, time.Second)
	if res.Kind != Nonlinear {
		t.Fatalf("expected Nonlinear, got %s", res.Kind)
	}
}

func TestSynthesizeWithHeuristicsPassesThroughSuccess(t *testing.T) {
	x := vars.FreshProgram("x")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.GE, RHS: expr.Zero()})
	u := its.NewUpdate().Set(x, expr.Sub(expr.FromVar(x), expr.ConstInt(1)))

	res := SynthesizeWithHeuristics(oracle(), guard, u, time.Second, 3)
	if res.Kind != Success {
		t.Fatalf("expected Success, got %s", res.Kind)
	}
}

func TestIntegralizeLeavesIntegerMeteringUnchanged(t *testing.T) {
	x := vars.FreshProgram("x")
	m := expr.Add(expr.FromVar(x), expr.ConstInt(1))

	out, witness := integralize(m)
	if witness != nil {
		t.Fatalf("expected no witness for an already-integral metering function, got %v", witness)
	}
	if !out.Equal(m) {
		t.Errorf("expected m unchanged, got %s", out)
	}
}

// TestIntegralizeScalesRationalCoefficients covers m(x) = x/2 + 3/2: the
// lcm of its denominators is 2, so the witness must satisfy
// witness*2 = x + 3.
func TestIntegralizeScalesRationalCoefficients(t *testing.T) {
	x := vars.FreshProgram("x")
	half := ratio.New(1, 2)
	m := expr.Add(expr.Mul(expr.Const(half), expr.FromVar(x)), expr.Const(ratio.New(3, 2)))

	out, witness := integralize(m)
	if witness == nil {
		t.Fatal("expected a witness constraint for a rational metering function")
	}
	if _, ok := out.IsConst(); ok {
		t.Fatalf("expected out to be the fresh witness variable, got constant %s", out)
	}

	wantRHS := expr.Add(expr.FromVar(x), expr.ConstInt(3))
	if !witness.RHS.Equal(wantRHS) {
		t.Errorf("expected witness RHS %s, got %s", wantRHS, witness.RHS)
	}
	if witness.Rel != its.EQ {
		t.Errorf("expected an equality constraint, got %s", witness.Rel)
	}

	lhsCoeff := witness.LHS.CoefficientAt(relevantVarIn(witness.LHS), 1)
	two, ok := lhsCoeff.IsConst()
	if !ok || !two.Equal(ratio.FromInt(2)) {
		t.Errorf("expected witness LHS coefficient 2, got %v (const=%v)", lhsCoeff, ok)
	}
}

// relevantVarIn returns the single free variable of a linear expression,
// used by TestIntegralizeScalesRationalCoefficients to probe the witness
// variable's coefficient without hard-coding its generated name.
func relevantVarIn(e expr.Expression) vars.Var {
	for _, v := range e.FreeVars().Slice() {
		return v
	}
	return vars.Var{}
}
