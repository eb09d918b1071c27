// Package strutil provides string helpers shared by the ai packages.
package strutil

// Truncate shortens a string to at most maxLen runes, appending an
// ellipsis when it cuts. Counting runes keeps multi-byte characters
// intact. A non-positive maxLen returns the empty string.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
