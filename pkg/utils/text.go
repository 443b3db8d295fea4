// Package utils provides shared helpers for text handling and logging.
package utils

// Truncate returns s cut to maxLen characters, with "..." appended if it was cut.
// Lengths are counted in runes. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// Prefix returns the first n characters of s, without an ellipsis.
func Prefix(s string, n int) string {
	r := []rune(s)
	if n < 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Suffix returns the last n characters of s. n <= 0 yields "".
func Suffix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
