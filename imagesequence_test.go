//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSequenceFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", n, err)
		}
	}
}

func TestPathIsInSequenceDetectsMultipleMembers(t *testing.T) {
	dir := t.TempDir()
	writeSequenceFiles(t, dir, "frame0001.png", "frame0002.png", "frame0003.png")

	if !pathIsInSequence(filepath.Join(dir, "frame0002.png")) {
		t.Fatalf("expected frame0002.png to be detected as part of a sequence")
	}
}

func TestPathIsInSequenceRejectsSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeSequenceFiles(t, dir, "frame0001.png")

	if pathIsInSequence(filepath.Join(dir, "frame0001.png")) {
		t.Fatalf("did not expect a lone numbered file to be detected as a sequence")
	}
}

func TestPathIsInSequenceRejectsNonMatchingName(t *testing.T) {
	dir := t.TempDir()
	writeSequenceFiles(t, dir, "clip.mov")

	if pathIsInSequence(filepath.Join(dir, "clip.mov")) {
		t.Fatalf("did not expect a non-numbered filename to be detected as a sequence")
	}
}

func TestGenerateSequencePattern(t *testing.T) {
	dir := t.TempDir()
	pattern, ok := generateSequencePattern(filepath.Join(dir, "frame0007.png"))
	if !ok {
		t.Fatalf("expected frame0007.png to match the sequence pattern")
	}
	want := filepath.Join(dir, "frame%04d.png")
	if pattern != want {
		t.Fatalf("generateSequencePattern: got %q want %q", pattern, want)
	}
}

func TestGenerateSequencePatternRejectsNonMatchingName(t *testing.T) {
	if _, ok := generateSequencePattern("clip.mov"); ok {
		t.Fatalf("did not expect clip.mov to match the sequence pattern")
	}
}

func TestGetSequenceStartNumber(t *testing.T) {
	if got := getSequenceStartNumber("frame0042.png"); got != 42 {
		t.Fatalf("getSequenceStartNumber: got %d want 42", got)
	}
	if got := getSequenceStartNumber("clip.mov"); got != -1 {
		t.Fatalf("getSequenceStartNumber on non-matching name: got %d want -1", got)
	}
}

func TestAutoDetectImageSequencesToggle(t *testing.T) {
	original := AutoDetectImageSequences()
	defer SetAutoDetectImageSequences(original)

	SetAutoDetectImageSequences(false)
	if AutoDetectImageSequences() {
		t.Fatalf("expected AutoDetectImageSequences to report false after disabling")
	}
	SetAutoDetectImageSequences(true)
	if !AutoDetectImageSequences() {
		t.Fatalf("expected AutoDetectImageSequences to report true after enabling")
	}
}
