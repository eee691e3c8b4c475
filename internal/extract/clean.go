package extract

import "strings"

// TruncationMarker is appended when extracted text exceeds the length bound.
const TruncationMarker = "... [truncated]"

// CleanText strips NUL and control characters (keeping newlines and tabs),
// trims each line, and drops blank lines.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// drop control characters, including NUL from padded DB blobs
		default:
			b.WriteRune(r)
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate applies a hard cutoff at max characters (runes are not split) and
// appends the truncation marker. No word-boundary awareness is attempted.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker
}

func isRuneStart(b byte) bool {
	return b&0xc0 != 0x80
}
