//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "testing"

func TestPropertyBagSetAndGet(t *testing.T) {
	b := NewPropertyBag()
	b.Set(PropertyFilename, "clip.mov")

	got, ok := GetProp[string](b, PropertyFilename)
	if !ok || got != "clip.mov" {
		t.Fatalf("GetProp[string]: got (%q, %v)", got, ok)
	}
}

func TestPropertyBagGetPropWrongTypeIsNotOk(t *testing.T) {
	b := NewPropertyBag()
	b.Set(PropertyBitrate, int64(12345))

	if _, ok := GetProp[string](b, PropertyBitrate); ok {
		t.Fatalf("expected type-mismatched GetProp to report not-ok")
	}
}

func TestPropertyBagGetPropMissingKeyIsNotOk(t *testing.T) {
	b := NewPropertyBag()
	if v, ok := GetProp[int64](b, PropertyBitrate); ok || v != 0 {
		t.Fatalf("expected missing key to return zero value, false; got (%d, %v)", v, ok)
	}
}

func TestPropertyBagLockDropsWrites(t *testing.T) {
	b := NewPropertyBag()
	b.Set(PropertyFilename, "before-lock.mov")
	b.Lock()

	if !b.IsLocked() {
		t.Fatalf("expected bag to report locked")
	}
	b.Set(PropertyFilename, "after-lock.mov")

	got, _ := GetProp[string](b, PropertyFilename)
	if got != "before-lock.mov" {
		t.Fatalf("expected locked Set to be a no-op, got %q", got)
	}
}

func TestPropertyBagUnlockReopensForWrites(t *testing.T) {
	b := NewPropertyBag()
	b.Lock()
	b.Unlock()

	if b.IsLocked() {
		t.Fatalf("expected bag to report unlocked after Unlock")
	}
	b.Set(PropertyFilename, "clip.mov")
	if got, ok := GetProp[string](b, PropertyFilename); !ok || got != "clip.mov" {
		t.Fatalf("expected Set to succeed after Unlock, got (%q, %v)", got, ok)
	}
}

func TestPropertyBagSetAllReplacesContents(t *testing.T) {
	b := NewPropertyBag()
	b.Set(PropertyFilename, "old.mov")
	b.SetAll(map[MediaProperty]any{PropertyBitrate: int64(500)})

	if b.Has(PropertyFilename) {
		t.Fatalf("expected SetAll to replace the bag's entire contents")
	}
	if got, ok := GetProp[int64](b, PropertyBitrate); !ok || got != 500 {
		t.Fatalf("expected SetAll's value to be present, got (%d, %v)", got, ok)
	}
}

func TestPropertyBagAllReturnsACopy(t *testing.T) {
	b := NewPropertyBag()
	b.Set(PropertyFilename, "clip.mov")

	snapshot := b.All()
	snapshot[PropertyFilename] = "mutated.mov"

	got, _ := GetProp[string](b, PropertyFilename)
	if got != "clip.mov" {
		t.Fatalf("expected All() to return a copy, mutation leaked into the bag: %q", got)
	}
}
