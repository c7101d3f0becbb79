package its

import (
	"sort"
	"strings"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// Update is a total function from a finite subset of program variables to
// expressions; unmentioned variables are the identity (spec.md 3). All
// right-hand sides refer to the pre-state — an Update never references the
// post-state of another variable, so it can always be read as a single
// simultaneous assignment.
type Update struct {
	assigns map[int64]expr.Expression
	vars    map[int64]vars.Var // retained so Domain() can report the Var, not just its ID
}

// NewUpdate returns the identity update (changes nothing).
func NewUpdate() Update {
	return Update{assigns: make(map[int64]expr.Expression), vars: make(map[int64]vars.Var)}
}

// Set installs v := rhs into u, returning u (u is mutated in place; callers
// that need the old value should clone first via Update.Clone).
func (u Update) Set(v vars.Var, rhs expr.Expression) Update {
	u.assigns[v.ID()] = rhs
	u.vars[v.ID()] = v
	return u
}

// Clone returns an independent copy of u.
func (u Update) Clone() Update {
	out := NewUpdate()
	for id, e := range u.assigns {
		out.assigns[id] = e
		out.vars[id] = u.vars[id]
	}
	return out
}

// Apply returns the right-hand side assigned to v, or the identity
// expression FromVar(v) if v is unmentioned.
func (u Update) Apply(v vars.Var) expr.Expression {
	if rhs, ok := u.assigns[v.ID()]; ok {
		return rhs
	}
	return expr.FromVar(v)
}

// Domain returns the variables explicitly assigned by u, in a stable
// (ID-ascending) order so that dependency-order search (pkg/recurrence) is
// deterministic.
func (u Update) Domain() []vars.Var {
	ids := make([]int64, 0, len(u.vars))
	for id := range u.vars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]vars.Var, len(ids))
	for i, id := range ids {
		out[i] = u.vars[id]
	}
	return out
}

// IsIdentityOn reports whether u leaves v unchanged.
func (u Update) IsIdentityOn(v vars.Var) bool {
	rhs, ok := u.assigns[v.ID()]
	return !ok || rhs.Equal(expr.FromVar(v))
}

// AsSubst converts u into a simultaneous expr.Subst, which is exactly how
// Expression.SubstVar and Guard.SubstVar apply an Update: unmentioned
// variables already default to the identity in both representations.
func (u Update) AsSubst() expr.Subst {
	s := expr.NewSubst()
	for id, e := range u.assigns {
		s[id] = e
	}
	return s
}

// FreeVars returns every variable occurring on any right-hand side of u.
func (u Update) FreeVars() *vars.Set {
	s := vars.NewSet()
	for _, e := range u.assigns {
		s.AddAll(e.FreeVars())
	}
	return s
}

// Compose returns the update that results from applying inner then u: for
// every variable v in the union of both domains, the composed value is u's
// formula for v with inner substituted into its free variables. This is
// exactly spec.md 4.7's "new update = U2∘U1" where u plays U2 and inner
// plays U1.
func (u Update) Compose(inner Update) Update {
	out := NewUpdate()
	seen := make(map[int64]bool)
	for _, v := range u.Domain() {
		seen[v.ID()] = true
		out = out.Set(v, u.Apply(v).SubstVar(inner.AsSubst()))
	}
	for _, v := range inner.Domain() {
		if seen[v.ID()] {
			continue
		}
		out = out.Set(v, u.Apply(v).SubstVar(inner.AsSubst()))
	}
	return out
}

func (u Update) String() string {
	vs := u.Domain()
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String() + "' = " + u.Apply(v).String()
	}
	return strings.Join(parts, ", ")
}
