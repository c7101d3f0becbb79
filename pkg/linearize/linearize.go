// Package linearize implements the linearisation pass of spec.md 4.5:
// rewriting nonlinear monomials (x^k, k>=2, or x*y for distinct x,y) by
// fresh program variables whenever doing so is sound, and retaining the
// inverse substitution so a later closed form can be expressed back in the
// rule's original variables.
//
// Grounded on the teacher's (gokando) nominal_subst.go substitution-map
// style: build a replacement map, rebuild every term through it, never
// mutate the input. The monomial-factoring primitive itself
// (Expression.SubstMonomial) lives in pkg/expr; this package only decides
// which monomial is a legal substitution target and drives the fixpoint
// loop over a rule's guard and update.
package linearize

import (
	"fmt"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// Substitution records one fresh-variable abstraction: Fresh stands for the
// monomial Inverse wherever it occurred. Subs are listed in the order they
// were introduced; Undo must walk them newest-first, since a later
// monomial may itself mention an earlier Fresh (spec.md 4.5 doesn't
// prohibit re-linearising a variable born from a previous round).
type Substitution struct {
	Fresh   vars.Var
	Inverse expr.Expression
}

// maxRounds bounds the fixpoint loop. A legitimate rule never needs more
// than a handful of rounds (each round strictly reduces the total nonlinear
// term count); this is a runaway guard, not a tuning knob.
const maxRounds = 32

// Result is the linearised rule plus the bookkeeping needed to undo it.
type Result struct {
	Guard its.Guard
	Update its.Update
	Subs  []Substitution
}

// Linearize rewrites guard and u's nonlinear monomials by fresh variables
// until both are linear, or reports ok=false when a nonlinear term remains
// that cannot be soundly abstracted (spec.md 4.5's failure case, surfaced
// by pkg/farkas and pkg/backward as FailureKind Nonlinear).
func Linearize(guard its.Guard, u its.Update) (Result, bool) {
	curGuard := guard.Normalize()
	curUpdate := u
	var subs []Substitution

	for round := 0; round < maxRounds; round++ {
		exprs := collect(curGuard, curUpdate)
		offender, found := firstNonlinearTerm(exprs)
		if !found {
			return Result{Guard: curGuard, Update: curUpdate, Subs: subs}, true
		}

		pattern, ok := monomialPattern(offender)
		if !ok {
			return Result{}, false
		}
		monVars := pattern.Powers

		for _, p := range monVars {
			if p.Var.IsTemp() {
				// Open Question (b): temporaries are never linearisation
				// targets, regardless of how they occur.
				return Result{}, false
			}
			if !curUpdate.IsIdentityOn(p.Var) {
				return Result{}, false
			}
		}
		if !soundInContext(monVars, pattern, exprs) {
			return Result{}, false
		}

		fresh := vars.FreshProgram(monomialName(pattern))
		curGuard = substGuard(curGuard, pattern, fresh)
		curUpdate = substUpdate(curUpdate, pattern, fresh)
		if isEvenSinglePower(pattern) {
			nonneg := its.NewGuard(its.Atom{LHS: expr.FromVar(fresh), Rel: its.GE, RHS: expr.Zero()}).Normalize()
			curGuard = curGuard.Conjoin(nonneg)
		}
		subs = append(subs, Substitution{Fresh: fresh, Inverse: expr.FromTerms([]expr.Term{pattern})})
	}
	return Result{}, false
}

// Undo substitutes every fresh variable in e back to the monomial it
// abstracted, newest substitution first so that a fresh variable appearing
// inside an older substitution's own Inverse resolves all the way down to
// the rule's original variables (spec.md 4.5: "the inverse substitution is
// applied to obtain the result in original variables").
func Undo(e expr.Expression, subs []Substitution) expr.Expression {
	out := e
	for i := len(subs) - 1; i >= 0; i-- {
		s := expr.NewSubst()
		s.Set(subs[i].Fresh, subs[i].Inverse)
		out = out.SubstVar(s)
	}
	return out
}

func collect(g its.Guard, u its.Update) []expr.Expression {
	out := make([]expr.Expression, 0, len(g.Atoms)+len(u.Domain()))
	for _, a := range g.Atoms {
		out = append(out, a.LHS)
	}
	for _, v := range u.Domain() {
		out = append(out, u.Apply(v))
	}
	return out
}

func termDegree(t expr.Term) int64 {
	var d int64
	for _, p := range t.Powers {
		d += p.Exp
	}
	return d
}

// firstNonlinearTerm returns the first term, across exprs, whose total
// degree exceeds 1. Scan order (expression order, then canonical term
// order within each expression) is deterministic so a rule's linearisation
// is reproducible across runs.
func firstNonlinearTerm(exprs []expr.Expression) (expr.Term, bool) {
	for _, e := range exprs {
		for _, t := range e.Terms() {
			if termDegree(t) > 1 {
				return t, true
			}
		}
	}
	return expr.Term{}, false
}

// monomialPattern recognises the two shapes spec.md 4.5 allows as
// substitution targets: a single variable raised to a power >= 2, or the
// product of two distinct variables each to the power 1. A term that
// doesn't match either shape exactly (e.g. x^2*y, or a three-way product)
// is not decomposed further — see DESIGN.md for why this is a deliberate
// simplification rather than a full recursive factoring.
func monomialPattern(t expr.Term) (expr.Term, bool) {
	switch len(t.Powers) {
	case 1:
		if t.Powers[0].Exp >= 2 {
			return expr.Term{Coeff: ratio.One(), Powers: t.Powers}, true
		}
	case 2:
		if t.Powers[0].Exp == 1 && t.Powers[1].Exp == 1 && !t.Powers[0].Var.Equal(t.Powers[1].Var) {
			return expr.Term{Coeff: ratio.One(), Powers: t.Powers}, true
		}
	}
	return expr.Term{}, false
}

// soundInContext checks spec.md 4.5's soundness rule: every variable of
// the monomial must occur, in every term across guard and update, either
// not at all or in exactly this monomial's shape — never linearly, never
// raised to a different power, never multiplied by a third variable from
// the same monomial set.
func soundInContext(monVars []expr.VarPower, pattern expr.Term, exprs []expr.Expression) bool {
	shape := make(map[int64]int64, len(monVars))
	for _, p := range monVars {
		shape[p.Var.ID()] = p.Exp
	}
	for _, e := range exprs {
		for _, t := range e.Terms() {
			restricted := make(map[int64]int64)
			mentions := false
			for _, p := range t.Powers {
				if _, isMonVar := shape[p.Var.ID()]; isMonVar {
					restricted[p.Var.ID()] = p.Exp
					mentions = true
				}
			}
			if !mentions {
				continue
			}
			if len(restricted) != len(shape) {
				return false
			}
			for id, exp := range shape {
				if restricted[id] != exp {
					return false
				}
			}
		}
	}
	return true
}

func isEvenSinglePower(pattern expr.Term) bool {
	return len(pattern.Powers) == 1 && pattern.Powers[0].Exp%2 == 0
}

func monomialName(pattern expr.Term) string {
	name := ""
	for _, p := range pattern.Powers {
		if name != "" {
			name += "_"
		}
		name += fmt.Sprintf("%s%d", p.Var.String(), p.Exp)
	}
	return "z_" + name
}

func substGuard(g its.Guard, pattern expr.Term, fresh vars.Var) its.Guard {
	out := make([]its.Atom, len(g.Atoms))
	for i, a := range g.Atoms {
		lhs, _ := a.LHS.SubstMonomial(pattern, fresh)
		out[i] = its.Atom{LHS: lhs, Rel: a.Rel, RHS: a.RHS}
	}
	return its.Guard{Atoms: out}
}

func substUpdate(u its.Update, pattern expr.Term, fresh vars.Var) its.Update {
	out := its.NewUpdate()
	for _, v := range u.Domain() {
		rhs, _ := u.Apply(v).SubstMonomial(pattern, fresh)
		out = out.Set(v, rhs)
	}
	return out
}
