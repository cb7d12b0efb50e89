//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "testing"

func TestTimeCodeToFramesAndToMillis(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 40)
	if got := tc.ToMillis(); got != 40 {
		t.Errorf("ToMillis: got %d want 40", got)
	}
	if got := tc.ToFrames(); got != 1 {
		t.Errorf("ToFrames: got %d want 1", got)
	}
}

func TestTimeCodeSetFramesRoundTrip(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetFrames(125); err != nil {
		t.Fatalf("SetFrames failed: %v", err)
	}
	if got := tc.ToFrames(); got != 125 {
		t.Errorf("ToFrames after SetFrames(125): got %d", got)
	}
}

func TestTimeCodeSetFramesRejectsNegative(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetFrames(-1); err == nil {
		t.Fatalf("expected error for negative frame count")
	}
}

func TestTimeCodeToStringNonDrop(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetFrames(25*3661 + 13); err != nil { // 1h01m01s + 13 frames
		t.Fatalf("SetFrames failed: %v", err)
	}
	if got := tc.ToString(false); got != "01:01:01:13" {
		t.Errorf("ToString(false): got %q want 01:01:01:13", got)
	}
}

func TestTimeCodeNonNTSCDropFallsBackToNonDrop(t *testing.T) {
	// spec.md §8: on a non-NTSC rate, to_string(drop=true) == to_string(drop=false).
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetFrames(500); err != nil {
		t.Fatalf("SetFrames failed: %v", err)
	}
	if got, want := tc.ToString(true), tc.ToString(false); got != want {
		t.Errorf("expected drop and non-drop strings to match on non-NTSC rate: %q != %q", got, want)
	}
	if tc.IsDropFrame() {
		t.Errorf("did not expect 25fps to be drop-frame capable")
	}
}

func TestTimeCodeNTSCIsDropCapable(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRateNTSC30, 0)
	if !tc.IsDropFrame() {
		t.Errorf("expected 30000/1001 to be drop-frame capable")
	}
	s := tc.ToString(true)
	if len(s) != 11 || s[8] != ';' {
		t.Errorf("expected drop-frame display to use ';' separator, got %q", s)
	}
}

func TestTimeCodeSetTimeCodeRoundTrip(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetTimeCode("01:02:03:04"); err != nil {
		t.Fatalf("SetTimeCode failed: %v", err)
	}
	if got := tc.ToString(false); got != "01:02:03:04" {
		t.Errorf("round-trip: got %q want 01:02:03:04", got)
	}
}

func TestTimeCodeSetTimeCodeMalformedLeavesStateUnchanged(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetTimeCode("01:02:03:04"); err != nil {
		t.Fatalf("SetTimeCode failed: %v", err)
	}
	before := tc.Timestamp()

	err := tc.SetTimeCode("not-a-timecode")
	if err == nil {
		t.Fatalf("expected malformed input to be rejected")
	}
	if _, ok := err.(ErrMalformedTimeCode); !ok {
		t.Fatalf("expected ErrMalformedTimeCode, got %T", err)
	}
	if tc.Timestamp() != before {
		t.Fatalf("expected timestamp to be unchanged after a malformed SetTimeCode, got %d want %d", tc.Timestamp(), before)
	}
}

func TestTimeCodeSetTimeCodeRejectsDropSeparatorOnNonNTSCRate(t *testing.T) {
	tc := NewTimeCode(TimeBaseMilli, FrameRate25, 0)
	if err := tc.SetTimeCode("01:02:03;04"); err == nil {
		t.Fatalf("expected ';' separator to be rejected on a non-NTSC rate")
	}
}
