package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted file text before chunking: line endings become "\n",
// control characters other than newline and tab are dropped, trailing spaces are
// trimmed from each line, and the result is trimmed. Blank lines are kept so
// paragraph boundaries survive.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' || !unicode.IsControl(r) {
				return r
			}
			return -1
		}, line)
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
