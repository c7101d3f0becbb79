// Package simplify implements the graph simplifier and pruning passes of
// spec.md 4.8: unreachability/const-leaf removal, duplicate-rule detection,
// parallel-rule pruning, and initial-edge unsat removal.
//
// Grounded on the teacher's (gokando) tabling.go/slg_engine.go dedup-via-
// memo-table style for DedupRules (a structural hash stands in for the
// memo key), and on plain graph-traversal DFS (no pack file to ground
// against; stdlib-only, see DESIGN.md) for RemoveUnreachable.
package simplify

import (
	"sort"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// RemoveUnreachable runs a DFS from g.Initial over the rule graph and
// drops every rule whose source, and every location, not visited.
func RemoveUnreachable(g *its.ITS) {
	reachable := map[its.Location]bool{g.Initial: true}
	stack := []its.Location{g.Initial}
	for len(stack) > 0 {
		loc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, r := range g.RulesFrom(loc) {
			for _, t := range r.Targets() {
				if !reachable[t] {
					reachable[t] = true
					stack = append(stack, t)
				}
			}
		}
	}
	for _, r := range g.Rules() {
		if !reachable[r.Source] {
			g.RemoveRule(r.ID)
		}
	}
	for _, l := range g.Locations() {
		if !reachable[l] {
			g.RemoveLocation(l)
		}
	}
}

// RemoveConstLeaves drops every rule whose every target has no outgoing
// edges and whose cost is a bounded constant: such a rule is a dead end
// that pays a fixed price and goes nowhere, so it cannot affect the
// derived asymptotic bound.
func RemoveConstLeaves(g *its.ITS) {
	for _, r := range g.Rules() {
		if _, ok := r.Cost.IsConst(); !ok {
			continue // unbounded, nonterm, or non-constant cost: may still matter
		}
		deadEnd := true
		for _, t := range r.Targets() {
			if len(g.RulesFrom(t)) > 0 {
				deadEnd = false
				break
			}
		}
		if deadEnd {
			g.RemoveRule(r.ID)
		}
	}
}

// DedupRules drops a rule when an earlier-created rule already kept has
// the same source, the same branch shape (target and update, per branch,
// in order), the same guard (atom-for-atom, order-independent) and a cost
// differing only by a constant.
func DedupRules(g *its.ITS) {
	var kept []*its.Rule
	for _, r := range g.Rules() {
		dup := false
		for _, k := range kept {
			if sameShape(k, r) {
				dup = true
				break
			}
		}
		if dup {
			g.RemoveRule(r.ID)
		} else {
			kept = append(kept, r)
		}
	}
}

func sameShape(a, b *its.Rule) bool {
	if a.Source != b.Source || len(a.RHS) != len(b.RHS) {
		return false
	}
	for i := range a.RHS {
		if a.RHS[i].Target != b.RHS[i].Target || !updatesEqual(a.RHS[i].Update, b.RHS[i].Update) {
			return false
		}
	}
	if !guardsEqual(a.Guard, b.Guard) {
		return false
	}
	return costsDifferByConstant(a.Cost, b.Cost)
}

func updatesEqual(a, b its.Update) bool {
	all := make(map[int64]vars.Var)
	for _, v := range a.Domain() {
		all[v.ID()] = v
	}
	for _, v := range b.Domain() {
		all[v.ID()] = v
	}
	for _, v := range all {
		if !a.Apply(v).Equal(b.Apply(v)) {
			return false
		}
	}
	return true
}

// guardsEqual compares two guards atom-for-atom, order-independent, after
// normalizing both to canonical <=0 form. Comparison goes through
// Expression.Hash rather than structural walks, the same memoisation
// primitive pkg/expr already grounds on hashstructure for.
func guardsEqual(a, b its.Guard) bool {
	na, nb := a.Normalize(), b.Normalize()
	if len(na.Atoms) != len(nb.Atoms) {
		return false
	}
	ha := hashesOf(na)
	hb := hashesOf(nb)
	sort.Slice(ha, func(i, j int) bool { return ha[i] < ha[j] })
	sort.Slice(hb, func(i, j int) bool { return hb[i] < hb[j] })
	for i := range ha {
		if ha[i] != hb[i] {
			return false
		}
	}
	return true
}

func hashesOf(g its.Guard) []uint64 {
	out := make([]uint64, len(g.Atoms))
	for i, a := range g.Atoms {
		out[i] = a.LHS.Hash()
	}
	return out
}

func costsDifferByConstant(a, b expr.Expression) bool {
	if a.IsNonTerm() || b.IsNonTerm() {
		return a.IsNonTerm() && b.IsNonTerm()
	}
	_, ok := expr.Sub(a, b).IsConst()
	return ok
}

// RemoveUnsatInitialEdges drops every rule leaving g's initial location
// whose guard the oracle reports unsatisfiable: such a rule can never
// fire, so it contributes nothing to a bound computed from the initial
// location.
func RemoveUnsatInitialEdges(g *its.ITS, oracle *smt.Oracle, timeout time.Duration) {
	for _, r := range g.RulesFrom(g.Initial) {
		if !oracle.Check(r.Guard, timeout, smt.SatFavoured) {
			g.RemoveRule(r.ID)
		}
	}
}

// Estimator ranks a rule by its asymptotic complexity estimate — larger
// means asymptotically more expensive. Implemented by pkg/asymptotic;
// declared here as a bare function type (not an imported interface) so
// this package never needs to depend on pkg/asymptotic.
type Estimator func(r *its.Rule) int64

// PruneParallel groups the graph's linear rules by (source, target) and,
// for any group with more than maxParallel rules, keeps only the
// maxParallel highest-ranked (by estimate) and drops the rest. Ties are
// broken by creation order — the rule g.AddRule saw first wins — per the
// tie-break Open Question resolved in DESIGN.md. Branching rules are never
// grouped; "parallel rules between two locations" only applies to linear
// edges (spec.md 4.8).
func PruneParallel(g *its.ITS, estimate Estimator, maxParallel int) {
	type key struct {
		src its.Location
		dst its.Location
	}
	rules := g.Rules()
	order := make(map[string]int, len(rules))
	groups := make(map[key][]*its.Rule)
	for i, r := range rules {
		order[r.ID] = i
		if !r.IsLinear() {
			continue
		}
		k := key{r.Source, r.SingleTarget()}
		groups[k] = append(groups[k], r)
	}

	for _, rs := range groups {
		if len(rs) <= maxParallel {
			continue
		}
		sort.SliceStable(rs, func(i, j int) bool {
			ei, ej := estimate(rs[i]), estimate(rs[j])
			if ei != ej {
				return ei > ej
			}
			return order[rs[i].ID] < order[rs[j].ID]
		})
		for _, drop := range rs[maxParallel:] {
			g.RemoveRule(drop.ID)
		}
	}
}
