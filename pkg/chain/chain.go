// Package chain implements rule chaining (spec.md 4.7): composing a rule
// R₁ ending at a location ℓ with a rule R₂ starting at ℓ into a single rule
// that executes R₁ then R₂, plus the three special shapes the acceleration
// driver uses to simplify a graph (linear path contraction, location
// elimination, branch chaining).
//
// Grounded on the teacher's (gokando) control_flow.go Ifa/Ifte-style branch
// composition: a branching rule is split into its target-matching branches
// and its untouched remainder, each composed or preserved independently,
// then the pieces are recombined — the same "compose the matching goal,
// leave the rest alone" shape control_flow.go uses for conjunctive branch
// composition over minikanren goals.
package chain

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/smt"
)

// Linear composes r1 and r2 per spec.md 4.7's Linear×Linear recipe: both
// must be linear, and r1's single branch must target r2's source. Returns
// ok=false if the shapes don't match, or if checkSat is set and the
// composed guard is found unsatisfiable.
func Linear(oracle *smt.Oracle, timeout time.Duration, checkSat bool, r1, r2 *its.Rule) (*its.Rule, bool) {
	if !r1.IsLinear() || !r2.IsLinear() || r1.SingleTarget() != r2.Source {
		return nil, false
	}
	rs, ok := Branching(oracle, timeout, checkSat, r1, r2)
	if !ok || len(rs) != 1 {
		return nil, false
	}
	return rs[0], true
}

// Branching composes r1 with r2 per spec.md 4.7's Branching×Anything
// recipe: every branch of r1 that targets r2's source is replaced, in
// place, by r2's own branches (one output rule per such pairing); branches
// of r1 that don't target r2's source are preserved verbatim as a single
// remainder rule. Reports ok=false if r1 has no branch targeting r2's
// source at all — there is nothing to chain.
//
// A branch whose composed guard is found unsatisfiable (when checkSat is
// set) is pruned rather than failing the whole composition — spec.md 4.7's
// "skip composition" escape hatch for Linear×Linear generalizes the same
// way here, one matched branch at a time.
func Branching(oracle *smt.Oracle, timeout time.Duration, checkSat bool, r1, r2 *its.Rule) ([]*its.Rule, bool) {
	matching, remainder := splitBranches(r1, r2.Source)
	if len(matching) == 0 {
		return nil, false
	}

	var out []*its.Rule
	for _, b := range matching {
		shiftedR2Guard := r2.Guard.SubstVar(b.Update.AsSubst())
		newGuard := r1.Guard.Conjoin(shiftedR2Guard)
		if checkSat && oracle != nil && !oracle.Check(newGuard, timeout, smt.SatFavoured) {
			continue
		}
		newCost := expr.Add(r1.Cost, r2.Cost.SubstVar(b.Update.AsSubst()))
		for _, c := range r2.RHS {
			composedUpdate := c.Update.Compose(b.Update)
			out = append(out, its.Derived(r1.Source, newGuard, newCost,
				[]its.Branch{{Target: c.Target, Update: composedUpdate}}, "chained", r1, r2))
		}
	}
	if remainder != nil {
		out = append(out, remainder)
	}
	return out, true
}

// splitBranches partitions r's branches by whether they target loc.
// remainder is nil when every branch matches (nothing left to preserve).
func splitBranches(r *its.Rule, loc its.Location) (matching []its.Branch, remainder *its.Rule) {
	var rest []its.Branch
	for _, b := range r.RHS {
		if b.Target == loc {
			matching = append(matching, b)
		} else {
			rest = append(rest, b)
		}
	}
	if len(rest) > 0 {
		remainder = its.Derived(r.Source, r.Guard, r.Cost, rest, "chain-remainder", r)
	}
	return matching, remainder
}

// ContractLinearPath implements spec.md 4.7's linear path contraction: if
// loc has exactly one incoming rule, itself linear and targeting loc
// directly, and one or more outgoing rules that are all linear and share a
// single common target (not loc itself, to avoid manufacturing a
// self-loop), composes the incoming rule with each outgoing rule and
// deletes loc. Reports whether the contraction was applied.
func ContractLinearPath(g *its.ITS, loc its.Location, oracle *smt.Oracle, timeout time.Duration, checkSat bool) bool {
	incoming := g.RulesInto(loc)
	if len(incoming) != 1 {
		return false
	}
	in := incoming[0]
	if !in.IsLinear() || in.SingleTarget() != loc {
		return false
	}
	outgoing := g.RulesFrom(loc)
	if len(outgoing) == 0 {
		return false
	}
	target := outgoing[0].SingleTarget()
	for _, r := range outgoing {
		if !r.IsLinear() || r.SingleTarget() != target {
			return false
		}
	}
	if loc == target {
		return false
	}

	composed := make([]*its.Rule, 0, len(outgoing))
	for _, out := range outgoing {
		r, ok := Linear(oracle, timeout, checkSat, in, out)
		if !ok {
			return false
		}
		composed = append(composed, r)
	}

	g.RemoveRule(in.ID)
	for _, out := range outgoing {
		g.RemoveRule(out.ID)
	}
	for _, r := range composed {
		g.AddRule(r)
	}
	g.RemoveLocation(loc)
	return true
}

// BranchChain implements spec.md 4.7's branch chaining: composes r1 (whose
// matching branches target loc) with every rule currently leaving loc,
// replacing r1 in g by the resulting composed rules plus r1's preserved
// remainder. Unlike EliminateLocation, loc and its outgoing rules are left
// untouched — other incoming rules into loc still have somewhere to go.
func BranchChain(g *its.ITS, r1 *its.Rule, loc its.Location, oracle *smt.Oracle, timeout time.Duration, checkSat bool) bool {
	outgoing := g.RulesFrom(loc)
	if len(outgoing) == 0 {
		return false
	}

	var composed []*its.Rule
	for _, out := range outgoing {
		rs, ok := Branching(oracle, timeout, checkSat, r1, out)
		if !ok {
			return false
		}
		composed = append(composed, rs...)
	}

	g.RemoveRule(r1.ID)
	for _, r := range composed {
		g.AddRule(r)
	}
	return true
}

// EliminateLocation implements spec.md 4.7's location elimination: composes
// every rule into loc with every rule out of loc (via BranchChain, so each
// incoming rule's non-matching branches are preserved), then deletes loc
// and its outgoing rules. Refuses to run if loc has a self-loop — that must
// be accelerated or otherwise removed first, or elimination would silently
// drop it.
func EliminateLocation(g *its.ITS, loc its.Location, oracle *smt.Oracle, timeout time.Duration, checkSat bool) bool {
	outgoing := g.RulesFrom(loc)
	for _, r := range outgoing {
		if r.IsSelfLoop() {
			return false
		}
	}

	for _, in := range g.RulesInto(loc) {
		if !BranchChain(g, in, loc, oracle, timeout, checkSat) {
			return false
		}
	}
	for _, r := range outgoing {
		g.RemoveRule(r.ID)
	}
	g.RemoveLocation(loc)
	return true
}
