// Package asymptotic implements the runtime-complexity verdict lattice
// consumed by pkg/simplify's parallel-rule pruning and emitted as the
// engine's final output (spec.md 6).
//
// Grounded on original_source/src/expr/complexity.cpp's Complexity value:
// a totally ordered Const < Poly(d) < Exp < NestedExp < Unbounded lattice
// with a join (the original's operator+, used when combining the
// complexity of several candidate paths into one verdict) and a product
// (the original's operator*, used when nesting accelerated loops, where
// polynomial degrees add). Nonterm and Unknown sit outside the numeric
// order: Nonterm is a standalone witness-backed verdict (nontermination
// trumps any finite bound), Unknown is the absence of information and
// poisons any join or product it takes part in, exactly as the original's
// CpxUnknown does.
package asymptotic

import "github.com/aprove-developers/loat-accel/pkg/ratio"

// Kind classifies a Complexity value.
type Kind int

const (
	KindUnknown Kind = iota
	KindPoly
	KindExp
	KindNestedExp
	KindUnbounded
	KindNonterm
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindPoly:
		return "Poly"
	case KindExp:
		return "Exp"
	case KindNestedExp:
		return "NestedExp"
	case KindUnbounded:
		return "Unbounded"
	case KindNonterm:
		return "Nonterm"
	default:
		return "Unknown"
	}
}

// Complexity is a runtime-complexity class. Degree is only meaningful when
// Kind is KindPoly; Const is represented as Poly(0).
type Complexity struct {
	Kind   Kind
	Degree ratio.Rat
}

func Unknown() Complexity   { return Complexity{Kind: KindUnknown} }
func Const() Complexity     { return Poly(ratio.Zero()) }
func Poly(d ratio.Rat) Complexity {
	return Complexity{Kind: KindPoly, Degree: d}
}
func Exp() Complexity       { return Complexity{Kind: KindExp} }
func NestedExp() Complexity { return Complexity{Kind: KindNestedExp} }
func Unbounded() Complexity { return Complexity{Kind: KindUnbounded} }
func Nonterm() Complexity   { return Complexity{Kind: KindNonterm} }

// IsConst reports whether c is the constant (degree-0 polynomial) class.
func (c Complexity) IsConst() bool {
	return c.Kind == KindPoly && c.Degree.IsZero()
}

// rank gives the numeric lattice position used by Less/Cmp, keeping
// Unknown and Nonterm outside the ordinary Const<Poly<Exp<NestedExp<Unbounded
// chain: Unknown sorts below everything (it carries no information),
// Nonterm sorts above everything (a nontermination witness dominates any
// finite bound).
func (c Complexity) rank() int {
	switch c.Kind {
	case KindUnknown:
		return -1
	case KindNonterm:
		return 100
	default:
		return int(c.Kind)
	}
}

// Cmp returns -1, 0, or 1 as c is less than, equal to, or greater than
// other. Two KindPoly values compare by Degree; every other pair of equal
// Kind is equal.
func (c Complexity) Cmp(other Complexity) int {
	if c.Kind == KindPoly && other.Kind == KindPoly {
		return c.Degree.Cmp(other.Degree)
	}
	cr, or := c.rank(), other.rank()
	switch {
	case cr < or:
		return -1
	case cr > or:
		return 1
	default:
		return 0
	}
}

// Less reports whether c is strictly weaker than other.
func (c Complexity) Less(other Complexity) bool { return c.Cmp(other) < 0 }

// Equal reports whether c and other are the same complexity class.
func (c Complexity) Equal(other Complexity) bool { return c.Cmp(other) == 0 }

// Join returns the larger-dominates combination of c and other — the
// complexity of "whichever of these two paths is worse." Mirrors the
// original's operator+, used when several candidate rules into the same
// location are combined into a single verdict: Unknown poisons the
// result, otherwise the larger of the two wins.
func Join(c, other Complexity) Complexity {
	if c.Kind == KindUnknown || other.Kind == KindUnknown {
		return Unknown()
	}
	if c.Cmp(other) >= 0 {
		return c
	}
	return other
}

// Product returns the complexity of running c, other times in sequence —
// two polynomials multiply by adding degrees (mirrors the original's
// operator*, used when nesting an accelerated self-loop inside another:
// a linear loop body executed polynomially-many times multiplies
// degrees). Anything involving a non-polynomial class collapses to the
// larger of the two, same as Join; Unknown still poisons the result.
func Product(c, other Complexity) Complexity {
	if c.Kind == KindUnknown || other.Kind == KindUnknown {
		return Unknown()
	}
	if c.Kind == KindPoly && other.Kind == KindPoly {
		return Poly(c.Degree.Add(other.Degree))
	}
	if c.Cmp(other) >= 0 {
		return c
	}
	return other
}

// Pow scales a polynomial degree by exponent (used when an accelerated
// rule's cost is itself raised by a nested iteration count); every other
// class is unaffected, mirroring the original's operator^.
func (c Complexity) Pow(exponent ratio.Rat) Complexity {
	if c.Kind != KindPoly {
		return c
	}
	return Poly(c.Degree.Mul(exponent))
}

// Rank collapses c to a single int64, ordered consistently with Cmp, for
// callers (pkg/simplify's PruneParallel via an Estimator closure) that need
// a total order but can't hold a Complexity directly without introducing a
// dependency on this package. Polynomial degree is scaled by 100 and
// floored, which is coarser than Cmp's exact rational comparison but never
// reorders two different Kinds, only (rarely) ties two polynomials whose
// degrees differ by less than 1/100.
func (c Complexity) Rank() int64 {
	const polyBase = int64(1) << 20
	switch c.Kind {
	case KindUnknown:
		return -1
	case KindPoly:
		scaled := c.Degree.Mul(ratio.FromInt(100)).Floor()
		return polyBase + scaled.Num.Int64()/scaled.Den.Int64()
	case KindExp:
		return polyBase * 2
	case KindNestedExp:
		return polyBase * 3
	case KindUnbounded:
		return polyBase * 4
	case KindNonterm:
		return polyBase * 5
	default:
		return -1
	}
}

// String renders c using spec.md 6's verdict vocabulary.
func (c Complexity) String() string {
	switch c.Kind {
	case KindUnknown:
		return "Unknown"
	case KindPoly:
		if c.Degree.IsZero() {
			return "Constant"
		}
		return "Poly(" + c.Degree.String() + ")"
	case KindExp:
		return "Exp"
	case KindNestedExp:
		return "NestedExp"
	case KindUnbounded:
		return "Unbounded"
	case KindNonterm:
		return "Nonterm"
	default:
		return "Unknown"
	}
}
