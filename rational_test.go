//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "testing"

func TestRationalReduce(t *testing.T) {
	cases := []struct {
		num, den     int64
		wantN, wantD int64
	}{
		{4, 8, 1, 2},
		{-4, 8, -1, 2},
		{4, -8, -1, 2},
		{0, 5, 0, 1},
		{7, 1, 7, 1},
	}
	for _, c := range cases {
		got := Rational{Num: c.num, Den: c.den}.Reduce()
		if got.Num != c.wantN || got.Den != c.wantD {
			t.Errorf("Reduce(%d/%d) = %d/%d, want %d/%d", c.num, c.den, got.Num, got.Den, c.wantN, c.wantD)
		}
	}
}

func TestNewRationalPanicsOnZeroDenominator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected NewRational(1, 0) to panic")
		}
	}()
	NewRational(1, 0)
}

func TestTryRationalRejectsZeroDenominator(t *testing.T) {
	if _, err := TryRational(1, 0); err == nil {
		t.Fatalf("expected error for zero denominator")
	}
}

func TestRationalArithmetic(t *testing.T) {
	a := NewRational(1, 3)
	b := NewRational(1, 6)

	if got := a.Add(b); !got.Equal(NewRational(1, 2)) {
		t.Errorf("Add: got %v want 1/2", got)
	}
	if got := a.Sub(b); !got.Equal(NewRational(1, 6)) {
		t.Errorf("Sub: got %v want 1/6", got)
	}
	if got := a.Mul(b); !got.Equal(NewRational(1, 18)) {
		t.Errorf("Mul: got %v want 1/18", got)
	}
	if got := a.Div(b); !got.Equal(NewRational(2, 1)) {
		t.Errorf("Div: got %v want 2/1", got)
	}
	if got := a.Invert(); !got.Equal(NewRational(3, 1)) {
		t.Errorf("Invert: got %v want 3/1", got)
	}
	if got := a.MulInt64(3); !got.Equal(NewRational(1, 1)) {
		t.Errorf("MulInt64: got %v want 1/1", got)
	}
	if got := a.DivInt64(2); !got.Equal(NewRational(1, 6)) {
		t.Errorf("DivInt64: got %v want 1/6", got)
	}
}

func TestRationalCmpAndEqual(t *testing.T) {
	a := NewRational(1, 3)
	b := Rational{Num: 2, Den: 6} // unreduced, same value as a

	if !a.Equal(b) {
		t.Fatalf("expected %v to equal unreduced %v", a, b)
	}
	if a.Cmp(b) != 0 {
		t.Fatalf("expected Cmp(%v, %v) == 0", a, b)
	}
	if NewRational(1, 2).Cmp(NewRational(1, 3)) <= 0 {
		t.Fatalf("expected 1/2 > 1/3")
	}
	if NewRational(1, 3).Cmp(NewRational(1, 2)) >= 0 {
		t.Fatalf("expected 1/3 < 1/2")
	}
}

func TestRationalFloat64AndIsZero(t *testing.T) {
	if got := NewRational(1, 4).Float64(); got != 0.25 {
		t.Fatalf("Float64: got %v want 0.25", got)
	}
	if !(Rational{Num: 0, Den: 1}).IsZero() {
		t.Fatalf("expected zero rational to report IsZero")
	}
	if NewRational(1, 4).IsZero() {
		t.Fatalf("did not expect 1/4 to report IsZero")
	}
}

func TestIsNTSCRate(t *testing.T) {
	if !isNTSCRate(FrameRateNTSC30) {
		t.Errorf("expected 30000/1001 to be an NTSC rate")
	}
	if !isNTSCRate(FrameRateNTSC60) {
		t.Errorf("expected 60000/1001 to be an NTSC rate")
	}
	if isNTSCRate(FrameRate30) {
		t.Errorf("did not expect plain 30/1 to be an NTSC rate")
	}
}

func TestRationalString(t *testing.T) {
	if got := NewRational(30000, 1001).String(); got != "30000/1001" {
		t.Errorf("String: got %q", got)
	}
}
