// Package farkas implements the metering-function synthesiser of spec.md
// 4.4: relevant-variable selection, the Farkas-lemma encoding of the three
// metering implications, and the temp-var-instantiation fallback applied
// before giving up (guard strengthening is not implemented; see
// heuristics.go).
//
// Grounded on the teacher's (gokando) fd_solver.go/propagation.go control
// flow: build a constraint template, hand it to a solver, interpret the
// solver's typed failure — here that solver is pkg/smt's Oracle and the
// failure taxonomy is spec.md 4.4's (Success/Unbounded/Nonlinear/
// ConflictVar/Unsat) rather than gokando's FD-specific ones.
package farkas

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// ReducedGuard returns the atoms of normalised g that the remaining atoms
// of g do not already entail (spec.md 4.4 step 1). The rule's update is not
// consulted: an atom that no application of the update can falsify is
// still kept.
func ReducedGuard(oracle *smt.Oracle, g its.Guard, timeout time.Duration) its.Guard {
	norm := g.Normalize()
	var kept []its.Atom
	for i, a := range norm.Atoms {
		// a is reduced-relevant unless g's remaining atoms alone already
		// entail a, i.e. contribute nothing beyond what the rest of the
		// guard already guarantees.
		rest := its.Guard{Atoms: without(norm.Atoms, i)}
		if oracle.Implies(rest, a, timeout, smt.UnsatFavoured) {
			continue
		}
		kept = append(kept, a)
	}
	return its.Guard{Atoms: kept}
}

func without(atoms []its.Atom, skip int) []its.Atom {
	out := make([]its.Atom, 0, len(atoms)-1)
	for i, a := range atoms {
		if i == skip {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RelevantVariables computes the least fixed point containing every
// variable of the reduced guard, plus, for every relevant variable v that u
// updates, the free variables of u's right-hand side for v (spec.md 4.4
// step 2).
func RelevantVariables(reduced its.Guard, u its.Update) *vars.Set {
	set := vars.NewSet()
	set.AddAll(reduced.FreeVars())
	for {
		added := false
		for _, v := range set.Slice() {
			if u.IsIdentityOn(v) {
				continue
			}
			rhsVars := u.Apply(v).FreeVars()
			for _, w := range rhsVars.Slice() {
				if set.Add(w) {
					added = true
				}
			}
		}
		if !added {
			break
		}
	}
	return set
}
