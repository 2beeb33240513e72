// Package transcript normalizes recognized text before it reaches observers.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace   bool
	CapitalizeFirst bool
}

// Assemble joins recognized segments, collapses whitespace, and applies opts.
// Whitespace-only input yields "".
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	normalized := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeFirst {
		r, size := utf8.DecodeRuneInString(normalized)
		if unicode.IsLower(r) {
			normalized = string(unicode.ToUpper(r)) + normalized[size:]
		}
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}
