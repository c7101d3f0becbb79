// Package expr implements the symbolic arithmetic layer of the acceleration
// engine (spec.md 4.1): a canonical, always-expanded polynomial
// representation over vars.Var, plus the distinguished "nonterm" sentinel
// meaning infinite cost.
//
// Every Expression is kept in canonical expanded form: a sorted, deduplicated
// list of monomials (Terms), each a rational coefficient times a sorted
// product of variable powers. Arithmetic operations (Add, Mul, Pow) always
// return a new, already-canonical Expression — mirroring the teacher's
// (gokando) rule that substitution never mutates its argument and always
// rebuilds (spec.md 5).
package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// VarPower is one variable raised to an integer exponent within a monomial.
// Exp is always >= 1; a variable absent from Powers has implicit exponent 0.
type VarPower struct {
	Var vars.Var
	Exp int64
}

// Term is a single monomial: Coeff * prod(Powers). Powers is sorted by
// Var.ID ascending and contains at most one VarPower per variable.
type Term struct {
	Coeff  ratio.Rat
	Powers []VarPower
}

// degreeOf returns the exponent of v within t, or 0 if v does not occur.
func (t Term) degreeOf(v vars.Var) int64 {
	for _, p := range t.Powers {
		if p.Var.Equal(v) {
			return p.Exp
		}
	}
	return 0
}

// totalDegreeIn returns the sum of exponents of the variables in set within t.
func (t Term) totalDegreeIn(set *vars.Set) int64 {
	var d int64
	for _, p := range t.Powers {
		if set.Contains(p.Var) {
			d += p.Exp
		}
	}
	return d
}

// key renders the monomial shape (not the coefficient) as a sortable,
// comparable string, used to combine like terms and to canonically order
// the term list.
func (t Term) key() string {
	var b strings.Builder
	for _, p := range t.Powers {
		fmt.Fprintf(&b, "#%d^%d", p.Var.ID(), p.Exp)
	}
	return b.String()
}

// Expression is a polynomial over vars.Var with rational coefficients, or
// the distinguished NonTerm sentinel (spec.md 3: "nonterm sentinel").
type Expression struct {
	nonTerm bool
	terms   []Term // canonical: sorted by key(), combined, zero coefficients dropped
}

// NonTerm returns the distinguished sentinel meaning "infinite cost" /
// "undefined". It propagates through Add, Mul, and Pow.
func NonTerm() Expression { return Expression{nonTerm: true} }

// Zero returns the additive identity.
func Zero() Expression { return Expression{} }

// Const returns the constant expression r.
func Const(r ratio.Rat) Expression {
	if r.IsZero() {
		return Zero()
	}
	return Expression{terms: []Term{{Coeff: r}}}
}

// ConstInt returns the constant expression n.
func ConstInt(n int64) Expression { return Const(ratio.FromInt(n)) }

// FromVar returns the expression consisting of the single variable v.
func FromVar(v vars.Var) Expression {
	return Expression{terms: []Term{{Coeff: ratio.One(), Powers: []VarPower{{Var: v, Exp: 1}}}}}
}

// FromTerms builds a canonical Expression from a (possibly unsorted,
// possibly redundant) list of terms. Used by pkg/linearize to rebuild an
// expression after rewriting a monomial to a fresh variable.
func FromTerms(terms []Term) Expression {
	e := Expression{}
	for _, t := range terms {
		e = e.addTerm(t)
	}
	return e
}

// IsNonTerm reports whether e is the nonterm sentinel.
func (e Expression) IsNonTerm() bool { return e.nonTerm }

// IsZero reports whether e is the constant 0 (never true for NonTerm).
func (e Expression) IsZero() bool { return !e.nonTerm && len(e.terms) == 0 }

// IsConst reports whether e is a constant (degree 0 in every variable), and
// if so returns its value.
func (e Expression) IsConst() (ratio.Rat, bool) {
	if e.nonTerm {
		return ratio.Rat{}, false
	}
	if len(e.terms) == 0 {
		return ratio.Zero(), true
	}
	if len(e.terms) == 1 && len(e.terms[0].Powers) == 0 {
		return e.terms[0].Coeff, true
	}
	return ratio.Rat{}, false
}

// Terms returns a defensive copy of e's canonical monomial list. Empty for
// the zero expression and for NonTerm.
func (e Expression) Terms() []Term {
	out := make([]Term, len(e.terms))
	copy(out, e.terms)
	return out
}

func sortPowers(p []VarPower) {
	sort.Slice(p, func(i, j int) bool { return p[i].Var.ID() < p[j].Var.ID() })
}

// addTerm inserts t into e's canonical term list, combining with an
// existing term of the same monomial shape if present, and returns the
// (still canonical) result. A resulting zero coefficient removes the term.
func (e Expression) addTerm(t Term) Expression {
	if t.Coeff.IsZero() {
		return e
	}
	sortPowers(t.Powers)
	k := t.key()
	terms := make([]Term, len(e.terms))
	copy(terms, e.terms)
	for i, existing := range terms {
		if existing.key() == k {
			sum := existing.Coeff.Add(t.Coeff)
			if sum.IsZero() {
				terms = append(terms[:i], terms[i+1:]...)
			} else {
				terms[i] = Term{Coeff: sum, Powers: existing.Powers}
			}
			return canonicalSort(Expression{terms: terms})
		}
	}
	terms = append(terms, t)
	return canonicalSort(Expression{terms: terms})
}

func canonicalSort(e Expression) Expression {
	sort.Slice(e.terms, func(i, j int) bool { return e.terms[i].key() < e.terms[j].key() })
	return e
}

// Add returns a+b. If either operand is NonTerm, the result is NonTerm
// (spec.md 3, and the cost-propagation rule of spec.md 4.7).
func Add(a, b Expression) Expression {
	if a.nonTerm || b.nonTerm {
		return NonTerm()
	}
	out := a
	for _, t := range b.terms {
		out = out.addTerm(t)
	}
	return out
}

// Sub returns a-b.
func Sub(a, b Expression) Expression { return Add(a, Neg(b)) }

// Neg returns -a.
func Neg(a Expression) Expression {
	if a.nonTerm {
		return NonTerm()
	}
	out := make([]Term, len(a.terms))
	for i, t := range a.terms {
		out[i] = Term{Coeff: t.Coeff.Neg(), Powers: t.Powers}
	}
	return Expression{terms: out}
}

// mulTerm multiplies two monomials.
func mulTerm(a, b Term) Term {
	coeff := a.Coeff.Mul(b.Coeff)
	powers := make(map[int64]VarPower, len(a.Powers)+len(b.Powers))
	for _, p := range a.Powers {
		powers[p.Var.ID()] = p
	}
	for _, p := range b.Powers {
		if existing, ok := powers[p.Var.ID()]; ok {
			powers[p.Var.ID()] = VarPower{Var: existing.Var, Exp: existing.Exp + p.Exp}
		} else {
			powers[p.Var.ID()] = p
		}
	}
	out := make([]VarPower, 0, len(powers))
	for _, p := range powers {
		out = append(out, p)
	}
	sortPowers(out)
	return Term{Coeff: coeff, Powers: out}
}

// Mul returns a*b, fully expanded into canonical form.
func Mul(a, b Expression) Expression {
	if a.nonTerm || b.nonTerm {
		return NonTerm()
	}
	out := Zero()
	for _, ta := range a.terms {
		for _, tb := range b.terms {
			out = out.addTerm(mulTerm(ta, tb))
		}
	}
	return out
}

// Pow returns a^n for n >= 0. Pow(a, 0) is the constant 1, even for a==0,
// matching the usual polynomial-ring convention.
func Pow(a Expression, n int64) Expression {
	if n < 0 {
		panic("expr: negative exponent")
	}
	if a.nonTerm {
		if n == 0 {
			return ConstInt(1)
		}
		return NonTerm()
	}
	result := ConstInt(1)
	for i := int64(0); i < n; i++ {
		result = Mul(result, a)
	}
	return result
}

// String renders e for diagnostics and proof sketches.
func (e Expression) String() string {
	if e.nonTerm {
		return "∞"
	}
	if len(e.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(e.terms))
	for i, t := range e.terms {
		parts[i] = termString(t)
	}
	return strings.Join(parts, " + ")
}

func termString(t Term) string {
	if len(t.Powers) == 0 {
		return t.Coeff.String()
	}
	var b strings.Builder
	if !t.Coeff.Equal(ratio.One()) {
		if t.Coeff.Equal(ratio.One().Neg()) {
			b.WriteString("-")
		} else {
			fmt.Fprintf(&b, "%s*", t.Coeff.String())
		}
	}
	for i, p := range t.Powers {
		if i > 0 {
			b.WriteString("*")
		}
		if p.Exp == 1 {
			b.WriteString(p.Var.String())
		} else {
			fmt.Fprintf(&b, "%s^%d", p.Var.String(), p.Exp)
		}
	}
	return b.String()
}
