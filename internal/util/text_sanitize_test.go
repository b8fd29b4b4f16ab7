package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := SanitizeText(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestSanitizeTextWhitespaceOnly(t *testing.T) {
	if out := SanitizeText(" \n\t \x00 "); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestSingleLine(t *testing.T) {
	got := SingleLine("  Quelle est la peine\r\n\r\npour un vol ?\n")
	if got != "Quelle est la peine pour un vol ?" {
		t.Fatalf("unexpected single line: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("compétences", 4); got != "comp" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("zero limit must not truncate: %q", got)
	}
}
