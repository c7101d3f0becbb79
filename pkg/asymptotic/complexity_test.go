package asymptotic

import (
	"testing"

	"github.com/aprove-developers/loat-accel/pkg/ratio"
)

func TestOrderingMatchesSpecLattice(t *testing.T) {
	chain := []Complexity{Const(), Poly(ratio.FromInt(1)), Poly(ratio.FromInt(2)), Exp(), NestedExp(), Unbounded()}
	for i := 0; i < len(chain)-1; i++ {
		if !chain[i].Less(chain[i+1]) {
			t.Errorf("expected %s < %s", chain[i], chain[i+1])
		}
	}
}

func TestNontermDominatesEverything(t *testing.T) {
	for _, c := range []Complexity{Const(), Poly(ratio.FromInt(5)), Exp(), NestedExp(), Unbounded()} {
		if !c.Less(Nonterm()) {
			t.Errorf("expected %s < Nonterm", c)
		}
	}
}

func TestUnknownIsWeakestAndPoisonsJoinAndProduct(t *testing.T) {
	if !Unknown().Less(Const()) {
		t.Error("expected Unknown < Constant")
	}
	if !Join(Unknown(), Exp()).Equal(Unknown()) {
		t.Error("expected Join with Unknown to stay Unknown")
	}
	if !Product(Unknown(), NestedExp()).Equal(Unknown()) {
		t.Error("expected Product with Unknown to stay Unknown")
	}
}

func TestJoinPicksTheLarger(t *testing.T) {
	got := Join(Poly(ratio.FromInt(2)), Exp())
	if !got.Equal(Exp()) {
		t.Errorf("expected Join(Poly(2), Exp) == Exp, got %s", got)
	}
}

func TestProductAddsPolynomialDegrees(t *testing.T) {
	got := Product(Poly(ratio.FromInt(2)), Poly(ratio.FromInt(3)))
	want := Poly(ratio.FromInt(5))
	if !got.Equal(want) {
		t.Errorf("expected Poly(2)*Poly(3) == Poly(5), got %s", got)
	}
}

func TestProductOfPolyAndExpTakesTheLarger(t *testing.T) {
	got := Product(Poly(ratio.FromInt(10)), Exp())
	if !got.Equal(Exp()) {
		t.Errorf("expected Product(Poly(10), Exp) == Exp, got %s", got)
	}
}

func TestPowScalesPolynomialDegreeOnly(t *testing.T) {
	got := Poly(ratio.FromInt(2)).Pow(ratio.FromInt(3))
	want := Poly(ratio.FromInt(6))
	if !got.Equal(want) {
		t.Errorf("expected Poly(2)^3 == Poly(6), got %s", got)
	}
	if !Exp().Pow(ratio.FromInt(3)).Equal(Exp()) {
		t.Error("expected Pow to leave non-polynomial classes unchanged")
	}
}

func TestIsConst(t *testing.T) {
	if !Const().IsConst() {
		t.Error("expected Const() to report IsConst")
	}
	if Poly(ratio.FromInt(1)).IsConst() {
		t.Error("expected Poly(1) not to report IsConst")
	}
}

func TestRankPreservesOrdering(t *testing.T) {
	chain := []Complexity{Unknown(), Const(), Poly(ratio.FromInt(1)), Poly(ratio.FromInt(2)), Exp(), NestedExp(), Unbounded(), Nonterm()}
	for i := 0; i < len(chain)-1; i++ {
		if chain[i].Rank() >= chain[i+1].Rank() {
			t.Errorf("expected Rank(%s) < Rank(%s), got %d >= %d", chain[i], chain[i+1], chain[i].Rank(), chain[i+1].Rank())
		}
	}
}

func TestStringMatchesVerdictVocabulary(t *testing.T) {
	cases := map[Complexity]string{
		Const():               "Constant",
		Poly(ratio.FromInt(2)): "Poly(2)",
		Exp():                 "Exp",
		NestedExp():           "NestedExp",
		Unbounded():           "Unbounded",
		Nonterm():             "Nonterm",
		Unknown():             "Unknown",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
