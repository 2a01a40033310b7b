package session

import (
	"regexp"
	"testing"
)

func TestScanPatternRightmostWins(t *testing.T) {
	re := regexp.MustCompile(`(?i)hello world`)
	match, ok := scanPattern("I said hello world twice: hello world", re)
	if !ok {
		t.Fatal("expected a match")
	}
	if match != "hello world" {
		t.Fatalf("expected rightmost lowered match, got %q", match)
	}
}

func TestScanPatternNoMatch(t *testing.T) {
	re := regexp.MustCompile(`(?i)hello world`)
	if _, ok := scanPattern("goodbye", re); ok {
		t.Fatal("expected no match")
	}
}

func TestScanPatternEmptyText(t *testing.T) {
	re := regexp.MustCompile(`listen`)
	if _, ok := scanPattern("", re); ok {
		t.Fatal("expected no match on empty text")
	}
}

func TestScanPatternIdempotent(t *testing.T) {
	re := regexp.MustCompile(`(?i)\bhey hark\b`)
	text := "well Hey Hark play something"
	first, ok1 := scanPattern(text, re)
	second, ok2 := scanPattern(text, re)
	if ok1 != ok2 || first != second {
		t.Fatalf("expected identical results, got (%q,%v) and (%q,%v)", first, ok1, second, ok2)
	}
}

// A case-sensitive pattern can accept a mixed-case substring and then
// reject it after lower-casing. The two-phase check keeps that behavior.
func TestScanPatternCaseSensitiveRetest(t *testing.T) {
	re := regexp.MustCompile(`Hark`)
	if match, ok := scanPattern("calling Hark now", re); ok {
		t.Fatalf("expected lowered match to fail the re-test, got %q", match)
	}
}
