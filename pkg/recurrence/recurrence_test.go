package recurrence

import (
	"testing"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

func TestDependencyOrderSelfLoopIsNotACycle(t *testing.T) {
	x := vars.FreshProgram("x")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	order, ok := DependencyOrder(u)
	if !ok || len(order) != 1 {
		t.Fatalf("expected a valid single-variable order, got %v, %v", order, ok)
	}
}

func TestDependencyOrderDetectsMutualCycle(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")
	u := its.NewUpdate().
		Set(x, expr.FromVar(y)).
		Set(y, expr.FromVar(x))
	if _, ok := DependencyOrder(u); ok {
		t.Fatal("expected a mutual-dependency cycle to be rejected")
	}
}

func TestDependencyOrderRespectsChain(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")
	// y depends on x, so x must precede y.
	u := its.NewUpdate().
		Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1))).
		Set(y, expr.Add(expr.FromVar(y), expr.FromVar(x)))
	order, ok := DependencyOrder(u)
	if !ok || len(order) != 2 {
		t.Fatalf("expected a 2-variable order, got %v, %v", order, ok)
	}
	if !order[0].Equal(x) || !order[1].Equal(y) {
		t.Errorf("expected order [x, y], got %v", order)
	}
}

func TestSolveArithmeticCounter(t *testing.T) {
	x := vars.FreshProgram("x")
	n := vars.FreshTemp("N")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	res, ok := Solve(u, expr.ConstInt(1), n)
	if !ok {
		t.Fatal("expected the counter recurrence to close")
	}
	cf := res.PerVar[x.ID()]
	if !cf.IsPolynomial() {
		t.Fatal("expected a polynomial closed form for x")
	}
	want := expr.Add(expr.FromVar(x), expr.FromVar(n))
	if !cf.Poly.Equal(want) {
		t.Errorf("x(N) = %s, want %s", cf.Poly, want)
	}
	if !res.Cost.Poly.Equal(expr.FromVar(n)) {
		t.Errorf("cost(N) = %s, want N", res.Cost.Poly)
	}
}

func TestSolveChainedDependency(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")
	n := vars.FreshTemp("N")
	u := its.NewUpdate().
		Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1))).
		Set(y, expr.Add(expr.FromVar(y), expr.FromVar(x)))
	res, ok := Solve(u, expr.ConstInt(0), n)
	if !ok {
		t.Fatal("expected the chained recurrence to close")
	}
	// x(N) = x+N; y accumulates x(k) for k=0..N-1, i.e. y + N*x + N(N-1)/2.
	xN := res.PerVar[x.ID()]
	if !xN.Poly.Equal(expr.Add(expr.FromVar(x), expr.FromVar(n))) {
		t.Errorf("x(N) = %s", xN.Poly)
	}
	yN := res.PerVar[y.ID()]
	want := expr.Add(expr.FromVar(y), expr.Add(
		expr.Mul(expr.FromVar(n), expr.FromVar(x)),
		expr.Mul(expr.Const(ratio.New(1, 2)), expr.Mul(expr.FromVar(n), expr.Sub(expr.FromVar(n), expr.ConstInt(1)))),
	))
	if !yN.Poly.Equal(want) {
		t.Errorf("y(N) = %s, want %s", yN.Poly, want)
	}
}

func TestSolveGeometric(t *testing.T) {
	v := vars.FreshProgram("v")
	n := vars.FreshTemp("N")
	// v := 2v+1
	u := its.NewUpdate().Set(v, expr.Add(expr.Mul(expr.ConstInt(2), expr.FromVar(v)), expr.ConstInt(1)))
	res, ok := Solve(u, expr.ConstInt(1), n)
	if !ok {
		t.Fatal("expected the geometric recurrence to close")
	}
	cf := res.PerVar[v.ID()]
	if cf.IsPolynomial() {
		t.Fatal("expected a geometric closed form")
	}
	if !cf.GeomBase.Equal(ratio.FromInt(2)) {
		t.Errorf("geometric base = %s, want 2", cf.GeomBase)
	}
	// steady state should be -1, coefficient v+1, i.e. v(N) = (v+1)*2^N - 1.
	if !cf.Poly.Equal(expr.ConstInt(-1)) {
		t.Errorf("steady state = %s, want -1", cf.Poly)
	}
	want := expr.Add(expr.FromVar(v), expr.ConstInt(1))
	if !cf.GeomCoeff.Equal(want) {
		t.Errorf("geometric coefficient = %s, want %s", cf.GeomCoeff, want)
	}
}

func TestSolveFailsOnNonlinearUpdate(t *testing.T) {
	x := vars.FreshProgram("x")
	n := vars.FreshTemp("N")
	u := its.NewUpdate().Set(x, expr.Mul(expr.FromVar(x), expr.FromVar(x)))
	if _, ok := Solve(u, expr.ConstInt(1), n); ok {
		t.Fatal("expected a quadratic update to fail closing")
	}
}
