// Package driver implements the acceleration driver (spec.md 4.9): the
// per-self-loop state machine that simplifies a rule, tries backward
// acceleration first, falls back to Farkas metering on three outcome
// branches, nests accelerated self-loops against one another, and fans
// independent self-loops out across a worker pool.
//
// Grounded on gokando/pkg/minikanren/search.go's DFSSearch.Search
// frame-stack style for the Fresh -> ... -> Terminal state walk (a self-loop
// is pushed, worked until it reaches a terminal state or needs to recurse
// once on a split, exactly the way that search drives its own frame stack),
// and on gokando/internal/parallel/pool.go (already adapted, see DESIGN.md)
// for the concurrent fan-out spec.md 5 and property 8 license.
package driver

import (
	"context"
	"time"

	"github.com/aprove-developers/loat-accel/internal/parallel"
	"github.com/aprove-developers/loat-accel/pkg/asymptotic"
	"github.com/aprove-developers/loat-accel/pkg/backward"
	"github.com/aprove-developers/loat-accel/pkg/chain"
	"github.com/aprove-developers/loat-accel/pkg/config"
	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/farkas"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/linearize"
	"github.com/aprove-developers/loat-accel/pkg/proof"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/recurrence"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// State is a self-loop's position in spec.md 4.9's state machine:
// Fresh -> (BackwardOK | FarkasOK | Unbounded | FinalFail), with FarkasOK
// revisitable as NestedOK once nesting succeeds against another
// accelerated self-loop at the same location.
type State int

const (
	Fresh State = iota
	BackwardOK
	FarkasOK
	NestedOK
	Unbounded
	FinalFail
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case BackwardOK:
		return "backward-ok"
	case FarkasOK:
		return "farkas-ok"
	case NestedOK:
		return "nested-ok"
	case Unbounded:
		return "unbounded"
	case FinalFail:
		return "final-fail"
	default:
		return "unknown"
	}
}

// Deadlines carries the soft and hard time limits of spec.md 5. The soft
// deadline is checked between major phases (one self-loop acceleration, one
// chaining pass) and stops introducing new work in favour of the best
// partial bound found so far; the hard deadline is checked between SMT
// calls and aborts the current attempt immediately. A zero time.Time means
// no limit.
type Deadlines struct {
	Soft time.Time
	Hard time.Time
}

func (d Deadlines) SoftExpired() bool { return !d.Soft.IsZero() && !time.Now().Before(d.Soft) }
func (d Deadlines) HardExpired() bool { return !d.Hard.IsZero() && !time.Now().Before(d.Hard) }

// Outcome is one self-loop's terminal result.
type Outcome struct {
	State      State
	Rules      []*its.Rule
	Complexity asymptotic.Complexity
}

// Driver runs the acceleration state machine over an ITS's self-loops,
// guarded by a single shared smt.Oracle and config.Options.
type Driver struct {
	Oracle  *smt.Oracle
	Config  config.Options
	Timeout time.Duration // per-SMT-call timeout
	Sketch  *proof.Sketch

	pool *parallel.WorkerPool
}

// New returns a Driver backed by a worker pool of maxWorkers, used to fan
// independent self-loop accelerations out concurrently (spec.md 5, property
// 8: each self-loop's acceleration is independent of every other).
func New(oracle *smt.Oracle, cfg config.Options, timeout time.Duration, maxWorkers int) *Driver {
	return &Driver{
		Oracle:  oracle,
		Config:  cfg,
		Timeout: timeout,
		Sketch:  proof.New(),
		pool:    parallel.NewWorkerPool(maxWorkers),
	}
}

// Shutdown waits for any in-flight acceleration attempts to finish.
func (d *Driver) Shutdown() { d.pool.Shutdown() }

// AccelerateAll runs AccelerateSelfLoop over every rule of rules
// concurrently, returning one Outcome per input rule in the same order.
// Stops submitting new work once dl's soft deadline has passed; loops
// still in flight are allowed to finish.
func (d *Driver) AccelerateAll(ctx context.Context, rules []*its.Rule, dl Deadlines) []Outcome {
	out := make([]Outcome, len(rules))
	done := make(chan struct{}, len(rules))
	submitted := 0
	for i, r := range rules {
		i, r := i, r
		if dl.SoftExpired() {
			out[i] = Outcome{State: FinalFail}
			continue
		}
		err := d.pool.Submit(ctx, func() {
			out[i] = d.AccelerateSelfLoop(r, dl)
			done <- struct{}{}
		})
		if err != nil {
			out[i] = Outcome{State: FinalFail}
			continue
		}
		submitted++
	}
	for i := 0; i < submitted; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			return out
		}
	}
	return out
}

// AccelerateSelfLoop runs the state machine of spec.md 4.9 on a single
// rule: simplify, try backward acceleration, else Farkas metering with its
// three-way branching.
func (d *Driver) AccelerateSelfLoop(rule *its.Rule, dl Deadlines) Outcome {
	if dl.HardExpired() {
		return Outcome{State: FinalFail}
	}
	if rule.IsBranching() {
		return d.accelerateBranching(rule, dl)
	}
	if !rule.IsSelfLoop() {
		return Outcome{State: FinalFail}
	}
	return d.accelerateLinear(rule, dl, 0)
}

// accelerateBranching implements the PartialDeletionHeuristic (spec.md 4.9,
// 6): when metering the whole branching rule would not even apply (only
// linear rules reach backward/Farkas), try each self-loop branch in
// isolation and keep whichever ones accelerate; the branches that don't
// target the rule's own source are left for pkg/chain to compose normally.
func (d *Driver) accelerateBranching(rule *its.Rule, dl Deadlines) Outcome {
	if !d.Config.PartialDeletionHeuristic {
		return Outcome{State: FinalFail}
	}
	var rules []*its.Rule
	best := asymptotic.Unknown()
	state := FinalFail
	for _, b := range rule.RHS {
		if b.Target != rule.Source {
			continue
		}
		isolated := its.Derived(rule.Source, rule.Guard, rule.Cost,
			[]its.Branch{{Target: b.Target, Update: b.Update}}, "partial-deletion", rule)
		out := d.accelerateLinear(isolated, dl, 0)
		if out.State == FinalFail {
			continue
		}
		rules = append(rules, out.Rules...)
		if state == FinalFail {
			best = out.Complexity
		} else {
			best = asymptotic.Join(best, out.Complexity)
		}
		state = out.State
	}
	if state == FinalFail {
		return Outcome{State: FinalFail}
	}
	d.Sketch.Addf("accelerate", "branching rule at %s: accelerated via partial deletion of its self-loop branch", rule.Source)
	return Outcome{State: state, Rules: rules, Complexity: best}
}

// accelerateLinear runs the 5-step algorithm of spec.md 4.9 on a linear
// self-loop. splits counts ConflictVar-driven recursions; spec.md 4.9 only
// licenses recursing once.
func (d *Driver) accelerateLinear(rule *its.Rule, dl Deadlines, splits int) Outcome {
	work := rule
	if d.Config.SimplifyRulesBefore {
		work = simplifySelfLoop(d.Oracle, work, d.Timeout)
	}

	linearized, undo, ok := d.linearizeIfNeeded(work)
	if !ok {
		d.Sketch.Addf("accelerate", "self-loop at %s: linearisation failed, giving up", work.Source)
		return Outcome{State: FinalFail}
	}
	work = linearized

	if dl.HardExpired() {
		return Outcome{State: FinalFail}
	}

	// An empty guard never stops the loop: hand it to Farkas, whose
	// Unbounded outcome yields the nonterm witness, rather than letting
	// backward acceleration return a rule whose N has no upper bound.
	if work.Guard.IsEmpty() {
		return d.accelerateViaFarkas(work, undo, dl, splits)
	}

	if res := backward.Accelerate(d.Oracle, work, d.Timeout, d.Config.MaxUpperboundsForPropagation); res.Kind == backward.Success {
		rules := undoRules(res.Rules, undo)
		d.Sketch.Addf("accelerate", "self-loop at %s backward-accelerated via inverse update", work.Source)
		return Outcome{State: BackwardOK, Rules: rules, Complexity: estimateComplexity(rules)}
	}

	if dl.HardExpired() {
		return Outcome{State: FinalFail}
	}

	return d.accelerateViaFarkas(work, undo, dl, splits)
}

// accelerateViaFarkas drives spec.md 4.9 step 3's three-outcome branching:
// Success closes the recurrence with the metering function as the
// iteration count; ConflictVar splits the loop on the conflicting pair and
// recurses once; Unsat (and Nonlinear, which should not occur on an
// already-linearised rule) fail this attempt. The temp-var instantiation
// fallback already ran inside SynthesizeWithHeuristics; no separate guard
// strengthening is applied.
func (d *Driver) accelerateViaFarkas(rule *its.Rule, undo []linearize.Substitution, dl Deadlines, splits int) Outcome {
	if dl.HardExpired() {
		return Outcome{State: FinalFail}
	}
	u := rule.SingleUpdate()
	res := farkas.SynthesizeWithHeuristics(d.Oracle, rule.Guard, u, d.Timeout, d.Config.TempVarInstantiationMaxBounds)

	switch res.Kind {
	case farkas.Success:
		accelerated, ok := d.closeViaMetering(rule, res)
		if !ok {
			d.Sketch.Addf("accelerate", "self-loop at %s: metering function %s found but recurrence did not close", rule.Source, res.Metering)
			return Outcome{State: FinalFail}
		}
		rules := undoRules(accelerated, undo)
		d.Sketch.Addf("accelerate", "self-loop at %s accelerated via metering function %s", rule.Source, res.Metering)
		return Outcome{State: FarkasOK, Rules: rules, Complexity: estimateComplexity(rules)}

	case farkas.Unbounded:
		nt := its.Derived(rule.Source, rule.Guard, expr.NonTerm(), rule.RHS, "nonterminating", rule)
		rules := undoRules([]*its.Rule{nt}, undo)
		d.Sketch.Addf("accelerate", "self-loop at %s has no terminating constraint: nonterminating", rule.Source)
		return Outcome{State: Unbounded, Rules: rules, Complexity: asymptotic.Nonterm()}

	case farkas.ConflictVar:
		if splits > 0 || len(res.RelevantVars) < 2 {
			return Outcome{State: FinalFail}
		}
		return d.splitAndRecurse(rule, undo, res.RelevantVars[0], res.RelevantVars[1], dl, splits)

	default: // Nonlinear, Unsat
		d.Sketch.Addf("accelerate", "self-loop at %s: metering synthesis failed (%s)", rule.Source, res.Kind)
		return Outcome{State: FinalFail}
	}
}

// splitAndRecurse implements spec.md 4.9's ConflictVar branch: add a>b to
// one copy of the rule and b>a to the other, and recurse once on each
// (splits+1 forbids a second split). Both successful halves are kept,
// since together they cover the same cases the unsplit guard did.
func (d *Driver) splitAndRecurse(rule *its.Rule, undo []linearize.Substitution, a, b vars.Var, dl Deadlines, splits int) Outcome {
	aGtB := its.Atom{LHS: expr.FromVar(a), Rel: its.GT, RHS: expr.FromVar(b)}
	bGtA := its.Atom{LHS: expr.FromVar(b), Rel: its.GT, RHS: expr.FromVar(a)}

	rule1 := its.Derived(rule.Source, rule.Guard.Conjoin(its.NewGuard(aGtB)), rule.Cost, rule.RHS, "split", rule)
	rule2 := its.Derived(rule.Source, rule.Guard.Conjoin(its.NewGuard(bGtA)), rule.Cost, rule.RHS, "split", rule)

	out1 := d.accelerateViaFarkas(rule1, undo, dl, splits+1)
	out2 := d.accelerateViaFarkas(rule2, undo, dl, splits+1)

	var rules []*its.Rule
	best := asymptotic.Unknown()
	succeeded := false
	for _, o := range []Outcome{out1, out2} {
		if o.State == FinalFail {
			continue
		}
		rules = append(rules, o.Rules...)
		if succeeded {
			best = asymptotic.Join(best, o.Complexity)
		} else {
			best = o.Complexity
		}
		succeeded = true
	}
	if !succeeded {
		return Outcome{State: FinalFail}
	}
	d.Sketch.Addf("accelerate", "self-loop at %s split on conflicting variables %s/%s", rule.Source, a, b)
	return Outcome{State: FarkasOK, Rules: rules, Complexity: best}
}

// closeViaMetering closes the recurrence for rule's update and cost, then
// substitutes the metering function directly for the iteration count N:
// since farkas.Synthesize already proved N <= m(x) (M1-M3), m(x) is itself
// a sound bound to instantiate the closed form at, exactly as spec.md 4.9
// step 3's Success branch describes ("close the recurrence using the
// metering function as N"). When res.Metering carries a fresh integral
// witness variable in place of a rational bound (spec.md 4.4,
// farkas.integralize), res.Witness's equality constraint is conjoined into
// the accelerated rule's guard so N is only ever instantiated at an
// integer.
func (d *Driver) closeViaMetering(rule *its.Rule, res farkas.Result) ([]*its.Rule, bool) {
	u := rule.SingleUpdate()
	n := vars.FreshTemp("N")
	solved, ok := recurrence.Solve(u, rule.Cost, n)
	if !ok {
		return nil, false
	}
	for _, v := range solved.Order {
		if !solved.PerVar[v.ID()].IsPolynomial() {
			return nil, false
		}
	}

	s := expr.NewSubst()
	s.Set(n, res.Metering)

	iteratedUpdate := its.NewUpdate()
	for _, v := range solved.Order {
		iteratedUpdate = iteratedUpdate.Set(v, solved.PerVar[v.ID()].AsExpression().SubstVar(s))
	}

	guard := rule.Guard
	if res.Witness != nil {
		guard = guard.Conjoin(its.NewGuard(*res.Witness))
	}

	accelerated := its.Derived(rule.Source, guard, solved.Cost.AsExpression().SubstVar(s),
		[]its.Branch{{Target: rule.SingleTarget(), Update: iteratedUpdate}}, "farkas-accelerated", rule)
	return []*its.Rule{accelerated}, true
}

// linearizeIfNeeded runs pkg/linearize when rule's guard or update is not
// already linear in its own variables; ok is false when the rule is
// nonlinear and either Config.AllowLinearization is off or linearisation
// itself fails (spec.md 4.5's unlinearisable-term case).
func (d *Driver) linearizeIfNeeded(rule *its.Rule) (*its.Rule, []linearize.Substitution, bool) {
	u := rule.SingleUpdate()
	relevant := vars.NewSet()
	relevant.AddAll(rule.Guard.FreeVars())
	relevant.AddAll(u.FreeVars())
	for _, v := range u.Domain() {
		relevant.Add(v)
	}

	if rule.Guard.LinearIn(relevant) && allUpdatesLinear(u, relevant) {
		return rule, nil, true
	}
	if !d.Config.AllowLinearization {
		return nil, nil, false
	}

	result, ok := linearize.Linearize(rule.Guard, u)
	if !ok {
		return nil, nil, false
	}
	linearized := its.Derived(rule.Source, result.Guard, rule.Cost,
		[]its.Branch{{Target: rule.SingleTarget(), Update: result.Update}}, "linearized", rule)
	return linearized, result.Subs, true
}

func allUpdatesLinear(u its.Update, relevant *vars.Set) bool {
	for _, v := range u.Domain() {
		if !u.Apply(v).LinearIn(relevant) {
			return false
		}
	}
	return true
}

// undoRules reverses subs (newest-first, per Substitution's doc comment)
// across every rule's guard and cost, restoring the original variables a
// linearisation pass abstracted away.
func undoRules(rules []*its.Rule, subs []linearize.Substitution) []*its.Rule {
	if len(subs) == 0 {
		return rules
	}
	out := make([]*its.Rule, len(rules))
	for i, r := range rules {
		guard := make([]its.Atom, len(r.Guard.Atoms))
		for j, a := range r.Guard.Atoms {
			guard[j] = its.Atom{LHS: linearize.Undo(a.LHS, subs), Rel: a.Rel, RHS: linearize.Undo(a.RHS, subs)}
		}
		rhs := make([]its.Branch, len(r.RHS))
		for j, b := range r.RHS {
			upd := its.NewUpdate()
			for _, v := range b.Update.Domain() {
				upd = upd.Set(v, linearize.Undo(b.Update.Apply(v), subs))
			}
			rhs[j] = its.Branch{Target: b.Target, Update: upd}
		}
		out[i] = its.Derived(r.Source, its.Guard{Atoms: guard}, linearize.Undo(r.Cost, subs), rhs, r.Origin, r)
	}
	return out
}

// simplifySelfLoop drops guard atoms already implied by the rest of the
// guard before acceleration is attempted, the cheapest win available before
// spending a backward/Farkas attempt on a needlessly large guard.
func simplifySelfLoop(oracle *smt.Oracle, rule *its.Rule, timeout time.Duration) *its.Rule {
	atoms := rule.Guard.Atoms
	kept := make([]its.Atom, 0, len(atoms))
	for i, a := range atoms {
		rest := its.Guard{Atoms: append(append([]its.Atom(nil), atoms[:i]...), atoms[i+1:]...)}
		if oracle.Implies(rest, a, timeout, smt.UnsatFavoured) {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == len(atoms) {
		return rule
	}
	return its.Derived(rule.Source, its.Guard{Atoms: kept}, rule.Cost, rule.RHS, "simplified", rule)
}

// estimateComplexity joins the asymptotic complexity of every rule's cost,
// used both to report a self-loop's Outcome and to rank nesting attempts.
func estimateComplexity(rules []*its.Rule) asymptotic.Complexity {
	best := asymptotic.Unknown()
	for i, r := range rules {
		c := ComplexityOf(r.Cost)
		if i == 0 {
			best = c
			continue
		}
		best = asymptotic.Join(best, c)
	}
	return best
}

func ComplexityOf(cost expr.Expression) asymptotic.Complexity {
	if cost.IsNonTerm() {
		return asymptotic.Nonterm()
	}
	if _, ok := cost.IsConst(); ok {
		return asymptotic.Const()
	}
	var degree int64
	for _, t := range cost.Terms() {
		var d int64
		for _, p := range t.Powers {
			d += p.Exp
		}
		if d > degree {
			degree = d
		}
	}
	return asymptotic.Poly(ratio.FromInt(degree))
}

// Nest implements spec.md 4.9 step 4: for every pair of accelerated
// self-loops at the same location, compose them in both orders and keep a
// composition only if it admits a strictly larger complexity than either
// component. maxAttempts bounds the number of pairs considered, per the
// spec's "iteration-bounded to prevent explosion".
func (d *Driver) Nest(loops []*its.Rule, maxAttempts int) []*its.Rule {
	var nested []*its.Rule
	attempts := 0
	for i, outer := range loops {
		for j, inner := range loops {
			if i == j || attempts >= maxAttempts {
				continue
			}
			attempts++
			if composed, ok := d.nestPair(outer, inner); ok {
				nested = append(nested, composed)
			}
		}
	}
	return nested
}

// nestPair composes outer after inner (inner runs first) and keeps the
// result only when its complexity strictly exceeds both components'.
func (d *Driver) nestPair(outer, inner *its.Rule) (*its.Rule, bool) {
	composed, ok := chain.Linear(d.Oracle, d.Timeout, d.Config.ChainCheckSat, inner, outer)
	if !ok {
		return nil, false
	}
	composedCx := ComplexityOf(composed.Cost)
	if composedCx.Cmp(ComplexityOf(outer.Cost)) <= 0 || composedCx.Cmp(ComplexityOf(inner.Cost)) <= 0 {
		return nil, false
	}
	nested := its.Derived(composed.Source, composed.Guard, composed.Cost, composed.RHS, "nested", outer, inner)
	d.Sketch.Addf("accelerate", "nested self-loop at %s: composing with inner self-loop admits strictly larger complexity %s", nested.Source, composedCx)
	return nested, true
}

// maxRecurrentSetRounds bounds FindRecurrentSet's strengthening loop. A
// genuine recurrent set either stabilises in a handful of rounds or
// doesn't exist within this search's reach; this is a runaway guard, not a
// tuning knob.
const maxRecurrentSetRounds = 8

// FindRecurrentSet implements the NonTermMode supplement: a nontermination
// witness is a sub-guard G' with G' => G (true by construction, since G'
// only ever conjoins more atoms onto G) and G' => G'[U] (closed under the
// self-loop's update, so once entered the loop can never leave it). It is
// searched for by repeatedly strengthening the candidate with its own
// image under U (the condition under which the *next* state still
// satisfies the candidate) until the candidate is closed or the search
// gives up. Only meaningful on a self-loop rule; NonTermMode's driver-level
// decision to call this instead of AccelerateSelfLoop belongs to the
// caller (config.Options.NonTermMode).
func (d *Driver) FindRecurrentSet(rule *its.Rule, dl Deadlines) (its.Guard, bool) {
	if !rule.IsSelfLoop() {
		return its.Guard{}, false
	}
	u := rule.SingleUpdate()
	subst := u.AsSubst()
	candidate := rule.Guard

	for iter := 0; iter < maxRecurrentSetRounds; iter++ {
		if dl.HardExpired() || dl.SoftExpired() {
			return its.Guard{}, false
		}
		if !d.Oracle.Check(candidate, d.Timeout, smt.SatFavoured) {
			return its.Guard{}, false
		}
		if closed := d.isClosedUnder(candidate, subst); closed {
			d.Sketch.Addf("nonterm", "self-loop at %s: found a recurrent set %s closed under its own update", rule.Source, candidate)
			return candidate, true
		}
		candidate = candidate.Conjoin(candidate.SubstVar(subst))
	}
	return its.Guard{}, false
}

// isClosedUnder reports whether candidate => candidate[subst] atom by atom.
func (d *Driver) isClosedUnder(candidate its.Guard, subst expr.Subst) bool {
	for _, a := range candidate.Atoms {
		if !d.Oracle.Implies(candidate, a.SubstVar(subst), d.Timeout, smt.UnsatFavoured) {
			return false
		}
	}
	return true
}
