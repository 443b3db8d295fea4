package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("héllo wörld", 7); got != "héllo w..." {
		t.Errorf("multibyte: got %q", got)
	}
}

func TestPrefixSuffix(t *testing.T) {
	tests := []struct {
		name       string
		s          string
		n          int
		wantPrefix string
		wantSuffix string
	}{
		{"shorter than n", "abc", 5, "abc", "abc"},
		{"exact", "abc", 3, "abc", "abc"},
		{"cut", "abcdef", 2, "ab", "ef"},
		{"zero", "abc", 0, "", ""},
		{"runes", "αβγδ", 2, "αβ", "γδ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prefix(tt.s, tt.n); got != tt.wantPrefix {
				t.Errorf("Prefix(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.wantPrefix)
			}
			if got := Suffix(tt.s, tt.n); got != tt.wantSuffix {
				t.Errorf("Suffix(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.wantSuffix)
			}
		})
	}
}
