package expr

import (
	"github.com/mitchellh/hashstructure"
)

// Equal reports structural equality: same sentinel-ness and identical
// canonical term lists (same monomials, same coefficients, same order).
// Two structurally-equal expressions always have the same Hash.
func (e Expression) Equal(other Expression) bool {
	if e.nonTerm != other.nonTerm {
		return false
	}
	if e.nonTerm {
		return true
	}
	if len(e.terms) != len(other.terms) {
		return false
	}
	for i := range e.terms {
		a, b := e.terms[i], other.terms[i]
		if a.key() != b.key() || !a.Coeff.Equal(b.Coeff) {
			return false
		}
	}
	return true
}

// hashable is a plain-old-data mirror of Expression used to feed
// hashstructure, which cannot reflect into math/big's unexported fields
// directly; coefficients and exponents are flattened to strings/ints first.
type hashableTerm struct {
	Coeff string
	Pairs []hashablePower
}

type hashablePower struct {
	VarID int64
	Exp   int64
}

type hashableExpr struct {
	NonTerm bool
	Terms   []hashableTerm
}

// Hash returns a structural hash of e, grounded on
// github.com/mitchellh/hashstructure (the pack's dolthub-go-mysql-server
// dependency) and used by pkg/simplify to compare guard atoms
// order-independently during duplicate-rule detection.
func (e Expression) Hash() uint64 {
	he := hashableExpr{NonTerm: e.nonTerm}
	for _, t := range e.terms {
		ht := hashableTerm{Coeff: t.Coeff.String()}
		for _, p := range t.Powers {
			ht.Pairs = append(ht.Pairs, hashablePower{VarID: p.Var.ID(), Exp: p.Exp})
		}
		he.Terms = append(he.Terms, ht)
	}
	h, err := hashstructure.Hash(he, nil)
	if err != nil {
		// hashstructure only fails on unsupported types; hashableExpr is
		// plain data, so this is unreachable in practice.
		panic(err)
	}
	return h
}
