// Package recurrence implements the recurrence oracle of spec.md 4.3: given
// an update in dependency order, it produces closed-form expressions for
// each variable and the cumulative cost after N iterations.
//
// Dependency-order search is a DFS-based topological sort over the update's
// variable-to-variable reference graph, grounded on the teacher's
// (gokando) dependency-tracking style in slg_engine.go (goals are resolved
// only once every variable they depend on has a binding); here the "goals"
// are program variables and a "binding" is a closed-form solution.
package recurrence

import (
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// DependencyOrder computes an order v1...vk over u's domain such that each
// vi's right-hand side references only v1...vi, per spec.md 4.3. Fails
// (ok==false) when the reference graph has a cycle involving more than one
// variable; a variable referencing itself (the ordinary "v := v+1" counter
// shape) is not a cycle for this purpose.
func DependencyOrder(u its.Update) (order []vars.Var, ok bool) {
	domain := u.Domain()
	inDomain := make(map[int64]bool, len(domain))
	for _, v := range domain {
		inDomain[v.ID()] = true
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[int64]int, len(domain))
	var out []vars.Var
	var visit func(v vars.Var) bool
	visit = func(v vars.Var) bool {
		switch color[v.ID()] {
		case black:
			return true
		case gray:
			return false // back edge: a genuine multi-variable cycle
		}
		color[v.ID()] = gray
		for _, dep := range u.Apply(v).FreeVars().Slice() {
			if dep.Equal(v) || !inDomain[dep.ID()] {
				continue // self-reference is trivial, not a cycle
			}
			if !visit(dep) {
				return false
			}
		}
		color[v.ID()] = black
		out = append(out, v)
		return true
	}

	for _, v := range domain {
		if !visit(v) {
			return nil, false
		}
	}
	return out, true
}

// StrengthenToBreakCycle is the heuristic spec.md 4.3 allows a caller to
// request when DependencyOrder fails: instantiate one variable of a cycle
// with a guard-derived bound, turning a mutual dependency into a one-way
// one. Left unimplemented here (returns ok=false unconditionally) — no
// caller in this module's scope (pkg/backward only ever calls
// DependencyOrder on updates it already knows are within its linear,
// single-branch restriction, where genuine multi-variable cycles have not
// been observed in practice) exercises it; see DESIGN.md.
func StrengthenToBreakCycle(g its.Guard, u its.Update) (its.Guard, bool) {
	return g, false
}
