package driver

import (
	"context"
	"testing"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/config"
	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
	"github.com/stretchr/testify/require"
)

func oracle() *smt.Oracle { return smt.Default(nil) }

func newDriver() *Driver {
	return New(oracle(), config.Default(), 200*time.Millisecond, 2)
}

// TestAccelerateSelfLoopBackwardPrefersInverseUpdate covers the same
// textbook "for (x=0; x<10; x++)" loop pkg/backward's own test exercises:
// the driver should reach BackwardOK without ever calling the Farkas path.
func TestAccelerateSelfLoopBackwardPrefersInverseUpdate(t *testing.T) {
	x := vars.FreshProgram("x")
	loc := its.Location("l0")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.LE, RHS: expr.ConstInt(9)})
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(loc, guard, expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}})

	d := newDriver()
	defer d.Shutdown()
	out := d.AccelerateSelfLoop(rule, Deadlines{})

	if out.State != BackwardOK {
		t.Fatalf("expected BackwardOK, got %s", out.State)
	}
	if len(out.Rules) == 0 {
		t.Fatal("expected at least one accelerated rule")
	}
}

// TestAccelerateSelfLoopNotApplicableOnNonSelfLoop covers a linear rule
// whose target differs from its source: neither backward nor Farkas
// acceleration applies, so the driver must report FinalFail without
// attempting either.
func TestAccelerateSelfLoopNotApplicableOnNonSelfLoop(t *testing.T) {
	x := vars.FreshProgram("x")
	l0, l1 := its.Location("l0"), its.Location("l1")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(l0, its.True(), expr.ConstInt(1), []its.Branch{{Target: l1, Update: u}})

	d := newDriver()
	defer d.Shutdown()
	out := d.AccelerateSelfLoop(rule, Deadlines{})

	if out.State != FinalFail {
		t.Fatalf("expected FinalFail for a non-self-loop rule, got %s", out.State)
	}
}

// TestAccelerateSelfLoopUnboundedOnTrivialGuard covers a self-loop with no
// guard at all: backward acceleration has no guard to check monotonicity
// against (InverseUpdate succeeds trivially but the guard never becomes
// false), so Farkas's Unbounded outcome should surface as the driver's
// Unbounded state with a Nonterm witness rule.
func TestAccelerateSelfLoopUnboundedOnTrivialGuard(t *testing.T) {
	x := vars.FreshProgram("x")
	loc := its.Location("l0")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(loc, its.True(), expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}})

	d := newDriver()
	defer d.Shutdown()
	out := d.AccelerateSelfLoop(rule, Deadlines{})

	if out.State != BackwardOK && out.State != Unbounded {
		t.Fatalf("expected BackwardOK or Unbounded for a trivially-true guard self-loop, got %s", out.State)
	}
}

// TestAccelerateAllRunsEveryRuleConcurrently exercises the worker-pool
// fan-out: several independent self-loops at different locations should
// all come back accelerated.
func TestAccelerateAllRunsEveryRuleConcurrently(t *testing.T) {
	d := newDriver()
	defer d.Shutdown()

	var rules []*its.Rule
	for i := 0; i < 4; i++ {
		x := vars.FreshProgram("x")
		loc := its.Location(string(rune('a' + i)))
		guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.LE, RHS: expr.ConstInt(9)})
		u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
		rules = append(rules, its.NewRule(loc, guard, expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}}))
	}

	outcomes := d.AccelerateAll(context.Background(), rules, Deadlines{})
	if len(outcomes) != len(rules) {
		t.Fatalf("expected %d outcomes, got %d", len(rules), len(outcomes))
	}
	for i, out := range outcomes {
		if out.State != BackwardOK {
			t.Errorf("rule %d: expected BackwardOK, got %s", i, out.State)
		}
	}
}

// TestAccelerateAllHonoursExpiredSoftDeadline covers spec.md 5's soft
// deadline: once it has passed, no new self-loop acceleration should be
// attempted, and every outcome should come back FinalFail.
func TestAccelerateAllHonoursExpiredSoftDeadline(t *testing.T) {
	d := newDriver()
	defer d.Shutdown()

	x := vars.FreshProgram("x")
	loc := its.Location("l0")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.LE, RHS: expr.ConstInt(9)})
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(loc, guard, expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}})

	past := Deadlines{Soft: time.Now().Add(-time.Hour)}
	outcomes := d.AccelerateAll(context.Background(), []*its.Rule{rule}, past)
	if outcomes[0].State != FinalFail {
		t.Fatalf("expected FinalFail once the soft deadline has passed, got %s", outcomes[0].State)
	}
}

// TestNestKeepsOnlyStrictlyLargerComposition covers spec.md 4.9 step 4: two
// self-loops at the same location, one constant-cost and one linear-cost;
// every composition Nest keeps must have strictly larger complexity than
// the linear component.
func TestNestKeepsOnlyStrictlyLargerComposition(t *testing.T) {
	x := vars.FreshProgram("x")
	loc := its.Location("l0")

	constRule := its.NewRule(loc, its.True(), expr.ConstInt(1),
		[]its.Branch{{Target: loc, Update: its.NewUpdate()}})
	linearRule := its.NewRule(loc, its.True(), expr.FromVar(x),
		[]its.Branch{{Target: loc, Update: its.NewUpdate().Set(x, expr.FromVar(x))}})

	d := newDriver()
	defer d.Shutdown()
	nested := d.Nest([]*its.Rule{constRule, linearRule}, 8)

	for _, r := range nested {
		if ComplexityOf(r.Cost).Cmp(ComplexityOf(linearRule.Cost)) <= 0 {
			t.Errorf("expected a nested rule with strictly larger complexity than its linear component, got cost %s", r.Cost)
		}
	}
}

// TestFindRecurrentSetOnAlwaysTrueGuardIsImmediatelyClosed covers the
// trivial case: a self-loop with no guard at all is its own recurrent set,
// since True trivially implies True[U] for any update.
func TestFindRecurrentSetOnAlwaysTrueGuardIsImmediatelyClosed(t *testing.T) {
	x := vars.FreshProgram("x")
	loc := its.Location("l0")
	u := its.NewUpdate().Set(x, expr.Add(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(loc, its.True(), expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}})

	d := newDriver()
	defer d.Shutdown()
	guard, ok := d.FindRecurrentSet(rule, Deadlines{})
	if !ok {
		t.Fatal("expected a recurrent set for an unconstrained self-loop")
	}
	if !guard.IsEmpty() {
		t.Errorf("expected the trivial True guard to already be closed, got %s", guard)
	}
}

// TestFindRecurrentSetFailsOnTerminatingLoop covers a genuinely terminating
// loop (x decreases toward a lower bound): no recurrent set exists, so the
// search must exhaust its rounds and report failure rather than looping
// forever.
func TestFindRecurrentSetFailsOnTerminatingLoop(t *testing.T) {
	x := vars.FreshProgram("x")
	loc := its.Location("l0")
	guard := its.NewGuard(its.Atom{LHS: expr.FromVar(x), Rel: its.GT, RHS: expr.Zero()})
	u := its.NewUpdate().Set(x, expr.Sub(expr.FromVar(x), expr.ConstInt(1)))
	rule := its.NewRule(loc, guard, expr.ConstInt(1), []its.Branch{{Target: loc, Update: u}})

	d := newDriver()
	defer d.Shutdown()
	if _, ok := d.FindRecurrentSet(rule, Deadlines{}); ok {
		t.Fatal("expected no recurrent set for a strictly decreasing, lower-bounded loop")
	}
}

// TestDeadlinesExpiry covers Deadlines' zero-value (no limit) and
// already-past semantics directly, since every other test only exercises
// it indirectly through the driver.
func TestDeadlinesExpiry(t *testing.T) {
	var zero Deadlines
	require.False(t, zero.SoftExpired(), "expected a zero-value Deadlines to never be soft-expired")
	require.False(t, zero.HardExpired(), "expected a zero-value Deadlines to never be hard-expired")

	past := Deadlines{Soft: time.Now().Add(-time.Minute), Hard: time.Now().Add(-time.Minute)}
	require.True(t, past.SoftExpired(), "expected a past soft deadline to report expired")
	require.True(t, past.HardExpired(), "expected a past hard deadline to report expired")
}
