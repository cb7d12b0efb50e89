//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"math"
)

// TimeCode is the tuple (time_scale, frame_rate, timestamp) described in
// spec.md §3/§4.A: timestamp is carried in units of time_scale (e.g.
// 1/1000 for milliseconds), and frames/millis are derived from it on
// demand. Drop-frame SMPTE display is available whenever frame_rate is
// one of the two NTSC rates (30000/1001, 60000/1001).
//
// The arithmetic (drop_count/drop_minute/drop_ten_minute derivation,
// the frames<->string conversion) is grounded on
// original_source/Src/timecode.cpp, since the donor binding (ffgo)
// carries no SMPTE timecode support at all.
type TimeCode struct {
	timeScale Rational
	frameRate Rational
	timestamp int64

	dropCapable bool

	rate          int64 // nominal (rounded) frame rate
	second        int64
	minute        int64
	tenMinute     int64
	hour          int64
	dropCount     int64
	dropMinute    int64
	dropTenMinute int64
}

// ErrMalformedTimeCode is returned by TimeCode.SetTimeCode when the input
// string fails validation. Per spec.md §7, state is left unchanged.
type ErrMalformedTimeCode struct {
	Input  string
	Reason string
}

func (e ErrMalformedTimeCode) Error() string {
	return fmt.Sprintf("mediahandling: malformed timecode %q: %s", e.Input, e.Reason)
}

// NewTimeCode builds a TimeCode for the given time-scale and frame-rate
// at the given raw timestamp (in time_scale units).
func NewTimeCode(timeScale, frameRate Rational, timestamp int64) TimeCode {
	tc := TimeCode{
		timeScale: timeScale,
		frameRate: frameRate,
		timestamp: timestamp,
	}
	tc.deriveConstants()
	return tc
}

func (tc *TimeCode) deriveConstants() {
	rate := int64(math.Round(tc.frameRate.Float64()))
	tc.rate = rate
	tc.dropCapable = isNTSCRate(tc.frameRate)
	tc.second = rate
	tc.minute = rate * 60
	tc.tenMinute = tc.minute * 10
	tc.hour = rate * 3600
	if tc.dropCapable {
		tc.dropCount = int64(math.Round(tc.frameRate.Float64() * 0.06))
		tc.dropMinute = int64(math.Floor(tc.frameRate.Mul(Rational{Num: 60, Den: 1}).Float64()))
		tc.dropTenMinute = int64(math.Round(tc.frameRate.Mul(Rational{Num: 60, Den: 1}).Float64() * 10))
	}
}

// TimeScale returns the TimeCode's time-scale.
func (tc TimeCode) TimeScale() Rational { return tc.timeScale }

// FrameRate returns the TimeCode's frame-rate.
func (tc TimeCode) FrameRate() Rational { return tc.frameRate }

// Timestamp returns the raw timestamp, in time_scale units.
func (tc TimeCode) Timestamp() int64 { return tc.timestamp }

// IsDropFrame reports whether this TimeCode's frame-rate supports
// drop-frame display (NTSC 30000/1001 or 60000/1001 only).
func (tc TimeCode) IsDropFrame() bool { return tc.dropCapable }

// ToMillis returns ⌊timestamp·time_scale·1000⌋, per spec.md §3.
func (tc TimeCode) ToMillis() int64 {
	if tc.timeScale.Den == 0 {
		return 0
	}
	n := tc.timestamp * tc.timeScale.Num * 1000
	q := n / tc.timeScale.Den
	if n%tc.timeScale.Den != 0 && (n < 0) != (tc.timeScale.Den < 0) {
		q--
	}
	return q
}

// ToFrames returns ⌊timestamp·time_scale·frame_rate⌋, per spec.md §3.
func (tc TimeCode) ToFrames() int64 {
	v := float64(tc.timestamp) * tc.timeScale.Float64() * tc.frameRate.Float64()
	return int64(math.Floor(v))
}

// SetFrames sets the TimeCode's timestamp from an absolute frame count,
// the inverse of ToFrames. Negative counts are rejected.
func (tc *TimeCode) SetFrames(count int64) error {
	if count < 0 {
		return fmt.Errorf("mediahandling: negative frame count %d", count)
	}
	seconds := float64(count) / tc.frameRate.Float64()
	scaled := seconds / tc.timeScale.Float64()
	tc.timestamp = int64(math.Ceil(scaled))
	return nil
}

// ToString renders the TimeCode as "hh:mm:ss:ff" (drop=false) or, when
// the frame-rate supports it, "hh:mm:ss;ff" (drop=true), per spec.md
// §4.A. Requesting drop-frame display on a non-drop-capable rate falls
// back to non-drop form; spec.md §8 requires this identity
// ("∀ TimeCode tc on non-NTSC rate: to_string(drop=true) ==
// to_string(drop=false)").
func (tc TimeCode) ToString(drop bool) string {
	return tc.framesToSMPTE(tc.ToFrames(), drop)
}

func (tc TimeCode) framesToSMPTE(frames int64, drop bool) string {
	token := ":"
	if drop && tc.dropCapable {
		d := frames / tc.dropTenMinute
		m := frames % tc.dropTenMinute
		if m > tc.dropCount {
			frames += tc.dropCount*9*d + tc.dropCount*((m-tc.dropCount)/tc.dropMinute)
		} else {
			frames += tc.dropCount * 9 * d
		}
		token = ";"
	}

	f := frames % tc.second
	s := (frames / tc.second) % 60
	m := (frames / tc.minute) % 60
	// The hour component is left unbounded rather than wrapped modulo 60
	// (as original_source/Src/timecode.cpp does) or modulo 24: spec.md's
	// non-drop formula only specifies `ss = ... mod 60`, and an unbounded
	// hour field is the only reading consistent with round-tripping
	// ToFrames/ToString over durations longer than 24h (SetTimeCode
	// itself accepts only hours 00-23).
	h := frames / tc.hour

	return fmt.Sprintf("%02d:%02d:%02d%s%02d", h, m, s, token, f)
}

// SetTimeCode parses "hh:mm:ss:ff" or "hh:mm:ss;ff" and sets the
// TimeCode's timestamp accordingly. On any validation failure it returns
// an ErrMalformedTimeCode and leaves the TimeCode unchanged, per
// spec.md §4.A/§7.
func (tc *TimeCode) SetTimeCode(s string) error {
	if len(s) != 11 {
		return ErrMalformedTimeCode{Input: s, Reason: "expected length 11 (hh:mm:ss:ff)"}
	}
	hh, ok := parseDigits(s[0:2])
	if !ok || hh >= 24 {
		return ErrMalformedTimeCode{Input: s, Reason: "hour field invalid"}
	}
	if s[2] != ':' {
		return ErrMalformedTimeCode{Input: s, Reason: "expected ':' between hour and minute"}
	}
	mm, ok := parseDigits(s[3:5])
	if !ok || mm >= 60 {
		return ErrMalformedTimeCode{Input: s, Reason: "minute field invalid"}
	}
	if s[5] != ':' {
		return ErrMalformedTimeCode{Input: s, Reason: "expected ':' between minute and second"}
	}
	ss, ok := parseDigits(s[6:8])
	if !ok || ss >= 60 {
		return ErrMalformedTimeCode{Input: s, Reason: "second field invalid"}
	}
	sep := s[8]
	if sep != ':' && sep != ';' {
		return ErrMalformedTimeCode{Input: s, Reason: "expected ':' or ';' before frame field"}
	}
	if sep == ';' && !tc.dropCapable {
		return ErrMalformedTimeCode{Input: s, Reason: "';' separator only valid for NTSC drop-frame rates"}
	}
	ff, ok := parseDigits(s[9:11])
	if !ok {
		return ErrMalformedTimeCode{Input: s, Reason: "frame field invalid"}
	}
	maxFrame := int64(math.Ceil(tc.frameRate.Float64()))
	if ff >= maxFrame {
		return ErrMalformedTimeCode{Input: s, Reason: "frame field exceeds frame rate"}
	}

	seconds := ss + hh*3600 + mm*60
	var newTimestamp int64
	if tc.dropCapable && sep == ':' {
		fullRate := int64(math.Ceil(tc.frameRate.Float64()))
		allFrames := fullRate*seconds + ff
		scaled := float64(allFrames) / tc.frameRate.Float64() / tc.timeScale.Float64()
		newTimestamp = int64(math.Round(scaled))
	} else {
		scaled := float64(seconds)/tc.timeScale.Float64() + (float64(ff)/tc.frameRate.Float64())/tc.timeScale.Float64()
		newTimestamp = int64(math.Ceil(scaled))
	}
	tc.timestamp = newTimestamp
	return nil
}

func parseDigits(s string) (int64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	var v int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}
