package util

import (
	"strings"
	"unicode/utf8"
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitTags splits a comma separated list, dropping blanks and duplicates.
func SplitTags(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// RuneLen counts characters rather than bytes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
