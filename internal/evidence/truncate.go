package evidence

import "unicode/utf8"

// TruncationMarker is inserted between the preserved head and tail of an
// oversized file.
const TruncationMarker = "\n/* …TRUNCATED… */\n"

// minTailChars is the smallest tail worth preserving; below it the text
// is hard-truncated from the head instead.
const minTailChars = 200

// TruncateWithTail bounds text to at most maxChars characters. The marker
// and a 75%/25% head/tail split share the budget; when the tail share
// would fall under 200 characters the text is cut from the head only.
// A non-positive budget disables truncation.
func TruncateWithTail(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	budget := maxChars - len(TruncationMarker)
	head := budget * 3 / 4
	tail := budget - head
	if budget <= 0 || tail < minTailChars {
		return text[:CutAtRune(text, maxChars)]
	}
	return text[:CutAtRune(text, head)] + TruncationMarker + text[runeStartFrom(text, len(text)-tail):]
}

// CutAtRune returns the largest index <= n at which text can be cut
// without splitting a multi-byte rune.
func CutAtRune(text string, n int) int {
	if n >= len(text) {
		return len(text)
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return n
}

// runeStartFrom returns the smallest index >= n that begins a rune.
func runeStartFrom(text string, n int) int {
	for n < len(text) && !utf8.RuneStart(text[n]) {
		n++
	}
	return n
}
