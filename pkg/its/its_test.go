package its

import (
	"testing"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

func TestGuardNormalizeLT(t *testing.T) {
	x := vars.FreshProgram("x")
	n := vars.FreshProgram("n")
	g := NewGuard(Atom{LHS: expr.FromVar(x), Rel: LT, RHS: expr.FromVar(n)})
	norm := g.Normalize()
	if len(norm.Atoms) != 1 || norm.Atoms[0].Rel != LE {
		t.Fatalf("expected single <= atom, got %v", norm)
	}
	// x < n  =>  x+1 <= n  =>  (x+1-n) <= 0
	want := expr.Sub(expr.Add(expr.FromVar(x), expr.ConstInt(1)), expr.FromVar(n))
	if !norm.Atoms[0].LHS.Equal(want) {
		t.Errorf("normalized LHS = %s, want %s", norm.Atoms[0].LHS, want)
	}
}

func TestGuardNormalizeEqualitySplits(t *testing.T) {
	x := vars.FreshProgram("x")
	g := NewGuard(Atom{LHS: expr.FromVar(x), Rel: EQ, RHS: expr.ConstInt(5)})
	norm := g.Normalize()
	if len(norm.Atoms) != 2 {
		t.Fatalf("expected equality to split into 2 atoms, got %d", len(norm.Atoms))
	}
	for _, a := range norm.Atoms {
		if a.Rel != LE {
			t.Errorf("expected <= atom, got %s", a.Rel)
		}
	}
}

func TestUpdateComposeSimultaneous(t *testing.T) {
	x := vars.FreshProgram("x")
	y := vars.FreshProgram("y")

	// U1: x' = x-1, y' = y   (a self-loop decrementing x)
	u1 := NewUpdate().Set(x, expr.Sub(expr.FromVar(x), expr.ConstInt(1)))
	// U2: x' = x, y' = y+x   (uses the *pre*-U2 value of x, i.e. U1's x)
	u2 := NewUpdate().Set(y, expr.Add(expr.FromVar(y), expr.FromVar(x)))

	composed := u2.Compose(u1)
	// composed(x) should be x-1 (from u1, since u2 doesn't touch x)
	if !composed.Apply(x).Equal(expr.Sub(expr.FromVar(x), expr.ConstInt(1))) {
		t.Errorf("composed x = %s, want x-1", composed.Apply(x))
	}
	// composed(y) should be y + (x-1), i.e. u2's formula with u1 substituted in
	want := expr.Add(expr.FromVar(y), expr.Sub(expr.FromVar(x), expr.ConstInt(1)))
	if !composed.Apply(y).Equal(want) {
		t.Errorf("composed y = %s, want %s", composed.Apply(y), want)
	}
}

func TestRuleSelfLoop(t *testing.T) {
	l0 := Location("l0")
	x := vars.FreshProgram("x")
	u := NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	r := NewRule(l0, True(), expr.ConstInt(1), []Branch{{Target: l0, Update: u}})
	if !r.IsSelfLoop() {
		t.Error("expected self-loop")
	}
	if !r.IsLinear() || r.IsBranching() {
		t.Error("expected linear, non-branching rule")
	}
}

func TestITSAddRemoveRule(t *testing.T) {
	l0, l1 := Location("l0"), Location("l1")
	sys := New(l0)
	u := NewUpdate()
	r := NewRule(l0, True(), expr.ConstInt(1), []Branch{{Target: l1, Update: u}})
	sys.AddRule(r)

	if !sys.HasLocation(l1) {
		t.Error("expected target location to be registered")
	}
	if len(sys.RulesFrom(l0)) != 1 {
		t.Error("expected one rule from l0")
	}
	if len(sys.RulesInto(l1)) != 1 {
		t.Error("expected one rule into l1")
	}
	sys.RemoveRule(r.ID)
	if len(sys.Rules()) != 0 {
		t.Error("expected rule removal to take effect")
	}
}

func TestDerivedRuleRecordsProvenance(t *testing.T) {
	l0 := Location("l0")
	parent := NewRule(l0, True(), expr.ConstInt(1), []Branch{{Target: l0, Update: NewUpdate()}})
	child := Derived(l0, True(), expr.ConstInt(2), []Branch{{Target: l0, Update: NewUpdate()}}, "accelerated", parent)
	if len(child.Provenance) != 1 || child.Provenance[0] != parent.ID {
		t.Errorf("expected provenance [%s], got %v", parent.ID, child.Provenance)
	}
	if child.Origin != "accelerated" {
		t.Errorf("expected origin accelerated, got %s", child.Origin)
	}
}
