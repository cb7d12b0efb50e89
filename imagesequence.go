//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// sequenceDetectPattern recognises a path of the form
// "<prefix><digits>.<ext>", per spec.md §6's image-sequence regexes.
// The first capture group is the prefix, the second the numeric tail,
// the third the extension.
var sequenceDetectPattern = regexp.MustCompile(`(?i)^(.+?)([0-9]+)\.(bmp|dpx|exr|jpeg|jpg|png|tiff|jp2|tga)$`)

// autoDetectImageSequences is the process-wide toggle from spec.md §6
// (auto_detect_image_sequences). Defaults to true, matching
// original_source/Src/mediahandling.cpp's `global::auto_detect_img_sequence`.
var autoDetectImageSequences int32 = 1

// AutoDetectImageSequences reports the current state of the process-wide
// image-sequence auto-detection flag.
func AutoDetectImageSequences() bool {
	return loadFlag(&autoDetectImageSequences)
}

// SetAutoDetectImageSequences toggles process-wide image-sequence
// auto-detection, per spec.md §6's auto_detect_image_sequences(bool).
func SetAutoDetectImageSequences(enabled bool) {
	storeFlag(&autoDetectImageSequences, enabled)
}

// pathIsInSequence reports whether path is one of at least two files in
// its containing directory matching the same "<prefix><digits>.<ext>"
// shape, per spec.md §4.E.1. Grounded on
// original_source/Src/mediahandling.cpp's utils::pathIsInSequence,
// supplementing the donor binding (ffgo's imageseq.go never implements
// this directory scan — it assumes the caller already knows the
// pattern and configures FFmpeg's own image2 demuxer directly).
func pathIsInSequence(path string) bool {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	m := sequenceDetectPattern.FindStringSubmatch(base)
	if m == nil {
		return false
	}
	prefix, ext := m[1], m[3]

	inDirPattern, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(prefix) + `[0-9]+\.` + regexp.QuoteMeta(ext) + `$`)
	if err != nil {
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	matchCount := 0
	for _, e := range entries {
		if inDirPattern.MatchString(e.Name()) {
			matchCount++
			if matchCount > 1 {
				break
			}
		}
	}
	return matchCount > 1
}

// generateSequencePattern derives the printf-style pattern FFmpeg's
// image2 demuxer expects (e.g. "frame%04d.png") from one file in the
// sequence, per spec.md §4.E.1. Returns ("", false) if path doesn't
// match the detection regex at all.
func generateSequencePattern(path string) (string, bool) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	m := sequenceDetectPattern.FindStringSubmatch(base)
	if m == nil {
		return "", false
	}
	prefix, digits, ext := m[1], m[2], m[3]
	pattern := fmt.Sprintf("%s%%0%dd.%s", prefix, len(digits), ext)
	return filepath.Join(dir, pattern), true
}

// getSequenceStartNumber returns the numeric tail of path's filename, or
// -1 if path doesn't match the detection regex, per spec.md §4.E.1.
func getSequenceStartNumber(path string) int {
	base := filepath.Base(path)
	m := sequenceDetectPattern.FindStringSubmatch(base)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return -1
	}
	return n
}
