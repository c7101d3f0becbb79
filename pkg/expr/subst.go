package expr

import "github.com/aprove-developers/loat-accel/pkg/vars"

// Subst is a simultaneous variable-to-expression substitution. All
// replacements are computed against the original expression (not
// sequentially), matching the spec's requirement that an update is a "total
// function ... applied simultaneously".
type Subst map[int64]Expression

// Get looks up the replacement for v, if any.
func (s Subst) Get(v vars.Var) (Expression, bool) {
	e, ok := s[v.ID()]
	return e, ok
}

// Set installs v -> e in the substitution.
func (s Subst) Set(v vars.Var, e Expression) { s[v.ID()] = e }

// NewSubst returns an empty substitution.
func NewSubst() Subst { return make(Subst) }

// SubstVar applies s to e simultaneously, expanding and re-combining into
// canonical form. A variable absent from s is left as the identity,
// matching the Update convention of spec.md 3 ("unmentioned variables are
// the identity").
func (e Expression) SubstVar(s Subst) Expression {
	if e.nonTerm {
		return NonTerm()
	}
	out := Zero()
	for _, t := range e.terms {
		out = Add(out, substTerm(t, s))
	}
	return out
}

func substTerm(t Term, s Subst) Expression {
	result := Const(t.Coeff)
	for _, p := range t.Powers {
		var factor Expression
		if repl, ok := s[p.Var.ID()]; ok {
			factor = repl
		} else {
			factor = FromVar(p.Var)
		}
		result = Mul(result, Pow(factor, p.Exp))
	}
	return result
}

// SubstMonomial rewrites every occurrence of the monomial pattern (a
// variable-powers multiset with coefficient 1) by fresh, scaling any
// residual power down, and is the structural "term->term" substitution
// pkg/linearize uses to abstract a nonlinear monomial behind a fresh
// variable (spec.md 4.1, 4.5). Pattern must be a single, non-constant
// monomial (len(pattern.Powers) >= 1); ok is false otherwise or if the
// pattern does not occur.
func (e Expression) SubstMonomial(pattern Term, fresh vars.Var) (result Expression, ok bool) {
	if e.nonTerm || len(pattern.Powers) == 0 {
		return Expression{}, false
	}
	changed := false
	out := Zero()
	for _, t := range e.terms {
		nt, hit := factorOutMonomial(t, pattern, fresh)
		if hit {
			changed = true
		}
		out = out.addTerm(nt)
	}
	return out, changed
}

// factorOutMonomial rewrites t by dividing out pattern's variable powers
// and multiplying in fresh once per full match of the pattern's shape,
// keeping any excess power of a pattern variable (e.g. x^3 against pattern
// x^2 leaves one factor of x alongside the fresh variable).
func factorOutMonomial(t Term, pattern Term, fresh vars.Var) (Term, bool) {
	remaining := make(map[int64]VarPower)
	for _, p := range t.Powers {
		remaining[p.Var.ID()] = p
	}
	for _, pp := range pattern.Powers {
		cur, ok := remaining[pp.Var.ID()]
		if !ok || cur.Exp < pp.Exp {
			return t, false
		}
		if cur.Exp == pp.Exp {
			delete(remaining, cur.Var.ID())
		} else {
			remaining[pp.Var.ID()] = VarPower{Var: cur.Var, Exp: cur.Exp - pp.Exp}
		}
	}
	newPowers := make([]VarPower, 0, len(remaining)+1)
	for _, p := range remaining {
		newPowers = append(newPowers, p)
	}
	newPowers = append(newPowers, VarPower{Var: fresh, Exp: 1})
	sortPowers(newPowers)
	return Term{Coeff: t.Coeff, Powers: newPowers}, true
}
