// Package tokenize normalizes raw text into lowercase word tokens.
package tokenize

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lower-cases text and returns its maximal runs of letters, digits and
// underscores, in order of appearance. Punctuation and whitespace are dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return wordRe.FindAllString(strings.ToLower(text), -1)
}
