package ratio

import "testing"

func TestNormalization(t *testing.T) {
	cases := []struct {
		num, den  int64
		wantNum   int64
		wantDen   int64
	}{
		{6, 8, 3, 4},
		{-6, 8, -3, 4},
		{6, -8, -3, 4},
		{0, 5, 0, 1},
	}
	for _, c := range cases {
		r := New(c.num, c.den)
		if r.Num.Int64() != c.wantNum || r.Den.Int64() != c.wantDen {
			t.Errorf("New(%d,%d) = %s, want %d/%d", c.num, c.den, r, c.wantNum, c.wantDen)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := New(1, 2)
	b := New(1, 3)
	if got := a.Add(b); !got.Equal(New(5, 6)) {
		t.Errorf("Add = %s, want 5/6", got)
	}
	if got := a.Mul(b); !got.Equal(New(1, 6)) {
		t.Errorf("Mul = %s, want 1/6", got)
	}
	if got := a.Sub(b); !got.Equal(New(1, 6)) {
		t.Errorf("Sub = %s, want 1/6", got)
	}
	if got := a.Quo(b); !got.Equal(New(3, 2)) {
		t.Errorf("Quo = %s, want 3/2", got)
	}
}

func TestFloorCeil(t *testing.T) {
	if got := New(7, 2).Floor(); !got.Equal(FromInt(3)) {
		t.Errorf("Floor(7/2) = %s, want 3", got)
	}
	if got := New(-7, 2).Floor(); !got.Equal(FromInt(-4)) {
		t.Errorf("Floor(-7/2) = %s, want -4", got)
	}
	if got := New(7, 2).Ceil(); !got.Equal(FromInt(4)) {
		t.Errorf("Ceil(7/2) = %s, want 4", got)
	}
	if got := FromInt(3).Ceil(); !got.Equal(FromInt(3)) {
		t.Errorf("Ceil(3) = %s, want 3", got)
	}
}

func TestDivisionByZeroPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on division by zero")
		}
	}()
	New(1, 0)
}

func TestCmp(t *testing.T) {
	if New(1, 2).Cmp(New(2, 3)) >= 0 {
		t.Error("expected 1/2 < 2/3")
	}
	if New(2, 3).Cmp(New(1, 2)) <= 0 {
		t.Error("expected 2/3 > 1/2")
	}
	if New(1, 2).Cmp(New(2, 4)) != 0 {
		t.Error("expected 1/2 == 2/4")
	}
}
