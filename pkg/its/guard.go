// Package its implements the core data model of spec.md 3: Guard, Update,
// Rule, and the ITS (Integer Transition System) itself, grounded on the
// teacher's (gokando) constraint_types.go conjunctive-constraint-list shape
// and its copy-on-write FDStore/SolverState convention (substitutions never
// mutate their argument).
package its

import (
	"fmt"
	"strings"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// Relation is one of the five relational operators spec.md 3 allows.
// Disequality is deliberately absent: the spec disallows it.
type Relation int

const (
	LE Relation = iota
	LT
	EQ
	GE
	GT
)

func (r Relation) String() string {
	switch r {
	case LE:
		return "<="
	case LT:
		return "<"
	case EQ:
		return "="
	case GE:
		return ">="
	case GT:
		return ">"
	default:
		return "?"
	}
}

// Atom is a single relational constraint LHS Rel RHS.
type Atom struct {
	LHS expr.Expression
	Rel Relation
	RHS expr.Expression
}

func (a Atom) String() string {
	return fmt.Sprintf("%s %s %s", a.LHS, a.Rel, a.RHS)
}

// FreeVars returns the variables occurring in a.
func (a Atom) FreeVars() *vars.Set {
	s := a.LHS.FreeVars()
	s.AddAll(a.RHS.FreeVars())
	return s
}

// SubstVar applies s to both sides of a.
func (a Atom) SubstVar(s expr.Subst) Atom {
	return Atom{LHS: a.LHS.SubstVar(s), Rel: a.Rel, RHS: a.RHS.SubstVar(s)}
}

// normalizeToLE rewrites a to one or two atoms using only <=, per spec.md 3
// invariant 1 and 4.1's canonical-form requirement: "A<B becomes A+1<=B
// under integer semantics; equalities are split into two <=".
func (a Atom) normalizeToLE() []Atom {
	diff := expr.Sub(a.LHS, a.RHS) // LHS - RHS
	switch a.Rel {
	case LE:
		return []Atom{{LHS: diff, Rel: LE, RHS: expr.Zero()}}
	case LT:
		return []Atom{{LHS: expr.Add(diff, expr.ConstInt(1)), Rel: LE, RHS: expr.Zero()}}
	case GE:
		return []Atom{{LHS: expr.Neg(diff), Rel: LE, RHS: expr.Zero()}}
	case GT:
		return []Atom{{LHS: expr.Add(expr.Neg(diff), expr.ConstInt(1)), Rel: LE, RHS: expr.Zero()}}
	case EQ:
		return []Atom{
			{LHS: diff, Rel: LE, RHS: expr.Zero()},
			{LHS: expr.Neg(diff), Rel: LE, RHS: expr.Zero()},
		}
	default:
		panic(fmt.Sprintf("its: unknown relation %d", a.Rel))
	}
}

// Guard is a finite conjunction of relational atoms (spec.md 3).
type Guard struct {
	Atoms []Atom
}

// NewGuard builds a guard from its conjuncts.
func NewGuard(atoms ...Atom) Guard { return Guard{Atoms: atoms} }

// True returns the empty (trivially satisfied) guard.
func True() Guard { return Guard{} }

// Conjoin returns the conjunction of g and other.
func (g Guard) Conjoin(other Guard) Guard {
	out := make([]Atom, 0, len(g.Atoms)+len(other.Atoms))
	out = append(out, g.Atoms...)
	out = append(out, other.Atoms...)
	return Guard{Atoms: out}
}

// Normalize rewrites every atom to use only <=, per spec.md 3 invariant 1.
func (g Guard) Normalize() Guard {
	out := make([]Atom, 0, len(g.Atoms))
	for _, a := range g.Atoms {
		out = append(out, a.normalizeToLE()...)
	}
	return Guard{Atoms: out}
}

// FreeVars returns the variables occurring anywhere in g.
func (g Guard) FreeVars() *vars.Set {
	s := vars.NewSet()
	for _, a := range g.Atoms {
		s.AddAll(a.FreeVars())
	}
	return s
}

// SubstVar applies s to every atom of g, returning a new Guard.
func (g Guard) SubstVar(s expr.Subst) Guard {
	out := make([]Atom, len(g.Atoms))
	for i, a := range g.Atoms {
		out[i] = a.SubstVar(s)
	}
	return Guard{Atoms: out}
}

// LinearIn reports whether every atom of g is linear in the given variable
// set (spec.md 3 invariant 3, checked post-linearisation).
func (g Guard) LinearIn(set *vars.Set) bool {
	for _, a := range g.Atoms {
		diff := expr.Sub(a.LHS, a.RHS)
		if !diff.LinearIn(set) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether g has no conjuncts (trivially true).
func (g Guard) IsEmpty() bool { return len(g.Atoms) == 0 }

func (g Guard) String() string {
	if g.IsEmpty() {
		return "true"
	}
	parts := make([]string, len(g.Atoms))
	for i, a := range g.Atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, " /\\ ")
}
