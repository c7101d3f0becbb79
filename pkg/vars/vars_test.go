package vars

import "testing"

func TestFreshIDsAreMonotonicAndUnique(t *testing.T) {
	a := FreshProgram("x")
	b := FreshProgram("y")
	if a.ID() >= b.ID() {
		t.Fatalf("expected monotonic ids, got %d then %d", a.ID(), b.ID())
	}
	if a.Equal(b) {
		t.Fatal("distinct Fresh calls must not be equal")
	}
}

func TestKinds(t *testing.T) {
	p := FreshProgram("x")
	tv := FreshTemp("k")
	if !p.IsProgram() || p.IsTemp() {
		t.Error("expected program variable")
	}
	if !tv.IsTemp() || tv.IsProgram() {
		t.Error("expected temp variable")
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	x := FreshProgram("x")
	y := FreshProgram("y")
	if !s.Add(x) {
		t.Error("expected first add to succeed")
	}
	if s.Add(x) {
		t.Error("expected duplicate add to fail")
	}
	s.Add(y)
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
	if !s.Contains(x) || !s.Contains(y) {
		t.Error("expected set to contain both variables")
	}
	slice := s.Slice()
	if len(slice) != 2 || slice[0].ID() != x.ID() || slice[1].ID() != y.ID() {
		t.Errorf("expected insertion order [x,y], got %v", slice)
	}
}
