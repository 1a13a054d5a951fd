package util

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFileNameBytes = 200

// SanitizeFileName removes path separators and control characters and
// rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, s)
	for len(s) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}
