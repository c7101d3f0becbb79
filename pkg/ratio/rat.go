// Package ratio provides exact rational arithmetic over unbounded integers.
// Every coefficient, cost, and model value flowing through the acceleration
// engine is a Rat so that the soundness of a derived bound never depends on
// floating-point rounding.
package ratio

import (
	"fmt"
	"math/big"
)

// Rat is a normalized rational number: Den is always positive and
// gcd(|Num|, Den) == 1. The zero value is not a valid Rat; use Zero() or
// New.
type Rat struct {
	Num *big.Int
	Den *big.Int
}

// Zero returns the rational 0/1.
func Zero() Rat { return New(0, 1) }

// One returns the rational 1/1.
func One() Rat { return New(1, 1) }

// FromInt returns the rational n/1.
func FromInt(n int64) Rat { return New(n, 1) }

// FromBigInt returns the rational n/1.
func FromBigInt(n *big.Int) Rat { return normalize(new(big.Int).Set(n), big.NewInt(1)) }

// New returns the rational num/den in normalized form. Panics if den is zero,
// matching the teacher's Rational.NewRational panic-on-zero-denominator
// contract.
func New(num, den int64) Rat {
	return normalize(big.NewInt(num), big.NewInt(den))
}

func normalize(num, den *big.Int) Rat {
	if den.Sign() == 0 {
		panic("ratio: division by zero")
	}
	if den.Sign() < 0 {
		num = new(big.Int).Neg(num)
		den = new(big.Int).Neg(den)
	}
	if num.Sign() == 0 {
		return Rat{Num: big.NewInt(0), Den: big.NewInt(1)}
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), den)
	if g.Sign() != 0 && g.Cmp(big.NewInt(1)) != 0 {
		num = new(big.Int).Quo(num, g)
		den = new(big.Int).Quo(den, g)
	}
	return Rat{Num: num, Den: den}
}

// Add returns r+other.
func (r Rat) Add(other Rat) Rat {
	num := new(big.Int).Add(new(big.Int).Mul(r.Num, other.Den), new(big.Int).Mul(other.Num, r.Den))
	den := new(big.Int).Mul(r.Den, other.Den)
	return normalize(num, den)
}

// Sub returns r-other.
func (r Rat) Sub(other Rat) Rat { return r.Add(other.Neg()) }

// Neg returns -r.
func (r Rat) Neg() Rat { return Rat{Num: new(big.Int).Neg(r.Num), Den: r.Den} }

// Mul returns r*other.
func (r Rat) Mul(other Rat) Rat {
	return normalize(new(big.Int).Mul(r.Num, other.Num), new(big.Int).Mul(r.Den, other.Den))
}

// Quo returns r/other. Panics if other is zero.
func (r Rat) Quo(other Rat) Rat {
	if other.Num.Sign() == 0 {
		panic("ratio: division by zero")
	}
	return normalize(new(big.Int).Mul(r.Num, other.Den), new(big.Int).Mul(r.Den, other.Num))
}

// Cmp returns -1, 0, or +1 as r is less than, equal to, or greater than other.
func (r Rat) Cmp(other Rat) int {
	lhs := new(big.Int).Mul(r.Num, other.Den)
	rhs := new(big.Int).Mul(other.Num, r.Den)
	return lhs.Cmp(rhs)
}

// Sign returns -1, 0, or +1 for r's sign.
func (r Rat) Sign() int { return r.Num.Sign() }

// IsZero reports whether r == 0.
func (r Rat) IsZero() bool { return r.Num.Sign() == 0 }

// IsInt reports whether r has an integer value (denominator 1).
func (r Rat) IsInt() bool { return r.Den.Cmp(big.NewInt(1)) == 0 }

// Equal reports structural (post-normalization) equality.
func (r Rat) Equal(other Rat) bool {
	return r.Num.Cmp(other.Num) == 0 && r.Den.Cmp(other.Den) == 0
}

// Floor returns the greatest integer <= r, as a Rat with Den==1.
func (r Rat) Floor() Rat {
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(r.Num, r.Den, m) // Euclidean division, m >= 0
	return FromBigInt(q)
}

// Ceil returns the least integer >= r.
func (r Rat) Ceil() Rat {
	f := r.Floor()
	if f.Equal(r) {
		return f
	}
	return f.Add(One())
}

// Abs returns the absolute value of r.
func (r Rat) Abs() Rat {
	if r.Sign() < 0 {
		return r.Neg()
	}
	return r
}

// String renders r as "n" when integral, else "n/d".
func (r Rat) String() string {
	if r.IsInt() {
		return r.Num.String()
	}
	return fmt.Sprintf("%s/%s", r.Num.String(), r.Den.String())
}

// Lcm returns the least common multiple of two positive denominators,
// used to clear fractional coefficients (e.g. after Farkas model extraction)
// into an integer-valued program variable, per spec.md 4.4.
func Lcm(a, b *big.Int) *big.Int {
	if a.Sign() == 0 || b.Sign() == 0 {
		return big.NewInt(0)
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(a), new(big.Int).Abs(b))
	return new(big.Int).Abs(new(big.Int).Mul(new(big.Int).Quo(a, g), b))
}
