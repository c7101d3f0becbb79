package proof

import "testing"

func TestAddReturnsDistinctIDsInOrder(t *testing.T) {
	s := New()
	id1 := s.Add("simplify", "removed 2 unreachable locations")
	id2 := s.Addf("accelerate", "self-loop at %s accelerated via metering function", "l3")

	if id1 == id2 {
		t.Fatal("expected distinct step IDs")
	}
	steps := s.Steps()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].ID != id1 || steps[1].ID != id2 {
		t.Error("expected steps in insertion order with matching IDs")
	}
	if steps[1].Text != "self-loop at l3 accelerated via metering function" {
		t.Errorf("unexpected formatted text: %q", steps[1].Text)
	}
}

func TestStringRendersOneLinePerStep(t *testing.T) {
	s := New()
	s.Add("prune", "dropped 2 of 5 parallel rules between l0 and l1")
	s.Add("chain", "composed r1 with r2")

	got := s.String()
	want := "[prune] dropped 2 of 5 parallel rules between l0 and l1\n[chain] composed r1 with r2\n"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestStepsReturnsACopyNotTheInternalSlice(t *testing.T) {
	s := New()
	s.Add("simplify", "first")

	steps := s.Steps()
	steps[0].Text = "mutated"

	if s.Steps()[0].Text != "first" {
		t.Error("expected Steps() to return a defensive copy")
	}
}
