//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "fmt"

// Rational is an exact ratio of two 64-bit signed integers. It is always
// kept in reduced form (smallest magnitude numerator/denominator sharing
// no common factor, denominator positive) after construction and after
// every arithmetic operation.
//
// This widens the donor binding's AVRational-shaped Rational (32-bit
// fields, chosen there to match FFmpeg's ABI) to 64 bits, since every
// value this library stores in a PropertyBag (durations, bitrates,
// timestamps converted through a time-scale) can exceed 32 bits.
// Conversion to/from the donor's avutil.Rational happens only at the
// ffmpegbackend boundary.
type Rational struct {
	Num int64
	Den int64
}

// NewRational constructs a reduced Rational. It panics if den is zero,
// matching the donor's treatment of AVRational construction as a
// programmer error rather than a recoverable one — callers that need a
// fallible constructor should use TryRational.
func NewRational(num, den int64) Rational {
	r, err := TryRational(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// TryRational constructs a reduced Rational, failing if den is zero.
func TryRational(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, fmt.Errorf("mediahandling: rational with zero denominator")
	}
	return Rational{Num: num, Den: den}.Reduce(), nil
}

// Float64 converts the Rational to a floating-point approximation.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether the Rational's value is zero.
func (r Rational) IsZero() bool {
	return r.Num == 0
}

// Invert returns 1/r.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}.Reduce()
}

// Add returns r+o, computed as (r.Num*o.Den + o.Num*r.Den) / (r.Den*o.Den).
func (r Rational) Add(o Rational) Rational {
	return Rational{
		Num: r.Num*o.Den + o.Num*r.Den,
		Den: r.Den * o.Den,
	}.Reduce()
}

// Sub returns r-o.
func (r Rational) Sub(o Rational) Rational {
	return Rational{
		Num: r.Num*o.Den - o.Num*r.Den,
		Den: r.Den * o.Den,
	}.Reduce()
}

// Mul returns r*o.
func (r Rational) Mul(o Rational) Rational {
	return Rational{Num: r.Num * o.Num, Den: r.Den * o.Den}.Reduce()
}

// Div returns r/o. It panics if o is zero.
func (r Rational) Div(o Rational) Rational {
	if o.Num == 0 {
		panic("mediahandling: rational division by zero")
	}
	return Rational{Num: r.Num * o.Den, Den: r.Den * o.Num}.Reduce()
}

// MulInt64 returns r*k for an integer scalar k.
func (r Rational) MulInt64(k int64) Rational {
	return Rational{Num: r.Num * k, Den: r.Den}.Reduce()
}

// DivInt64 returns r/k for an integer scalar k.
func (r Rational) DivInt64(k int64) Rational {
	return Rational{Num: r.Num, Den: r.Den * k}.Reduce()
}

// Cmp compares r and o, returning -1, 0, or 1. Cross-multiplication is
// used rather than floating-point comparison to avoid precision loss,
// following the donor's avutil.Rational.Cmp idiom.
func (r Rational) Cmp(o Rational) int {
	lhs := r.Num * o.Den
	rhs := o.Num * r.Den
	sign := int64(1)
	if (r.Den < 0) != (o.Den < 0) {
		sign = -1
	}
	switch {
	case lhs*sign < rhs*sign:
		return -1
	case lhs*sign > rhs*sign:
		return 1
	default:
		return 0
	}
}

// Equal reports whether r and o represent the same value, regardless of
// whether either is in reduced form — i.e. Rational(k*num, k*den) ==
// Rational(num, den) for any non-zero k.
func (r Rational) Equal(o Rational) bool {
	return r.Cmp(o) == 0
}

// Reduce returns r divided through by gcd(|Num|, |Den|), with the sign
// normalised onto the numerator (denominator always positive).
func (r Rational) Reduce() Rational {
	if r.Num == 0 {
		return Rational{Num: 0, Den: 1}
	}
	n, d := r.Num, r.Den
	if d < 0 {
		n, d = -n, -d
	}
	g := gcd64(abs64(n), d)
	if g == 0 {
		g = 1
	}
	return Rational{Num: n / g, Den: d / g}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Common frame rates, mirroring the donor's avutil package-level vars.
var (
	FrameRate24   = Rational{Num: 24, Den: 1}
	FrameRate25   = Rational{Num: 25, Den: 1}
	FrameRate30   = Rational{Num: 30, Den: 1}
	FrameRate50   = Rational{Num: 50, Den: 1}
	FrameRate60   = Rational{Num: 60, Den: 1}
	FrameRateNTSC30 = Rational{Num: 30000, Den: 1001}
	FrameRateNTSC60 = Rational{Num: 60000, Den: 1001}

	TimeBaseMicro  = Rational{Num: 1, Den: 1000000}
	TimeBaseMilli  = Rational{Num: 1, Den: 1000}
	TimeBaseSecond = Rational{Num: 1, Den: 1}
)

// isNTSCRate reports whether r is one of the two drop-frame-eligible
// NTSC rates (30000/1001 or 60000/1001), per spec.md §3/§4.A.
func isNTSCRate(r Rational) bool {
	return r.Equal(FrameRateNTSC30) || r.Equal(FrameRateNTSC60)
}
