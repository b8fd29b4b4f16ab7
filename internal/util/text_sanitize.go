package util

import (
	"regexp"
	"strings"
)

// SanitizeText removes NUL bytes and control characters some PDF extractors
// leave in their output.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// SingleLine collapses every run of line breaks into one space and trims.
func SingleLine(s string) string {
	return strings.TrimSpace(lineBreaks.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most maxRunes runes.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
