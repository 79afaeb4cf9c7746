package util

import (
	"strings"
	"unicode"
)

// StringTakeUntil returns the string up to and excluding char as well as the remainder excluding char
//
// if char was not found, then tail returns the empty string
func StringTakeUntil(s string, char rune) (head string, tail string) {
	for i, r := range s {
		if r == char && len(s[i:]) != 0 {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// SplitTopLevel splits s on sep, ignoring occurrences of sep nested inside
// (), [] or <> pairs. Parts are trimmed of surrounding whitespace.
func SplitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch {
		case r == '(' || r == '[' || r == '<':
			depth++
		case r == ')' || r == ']' || (r == '>' && !(i > 0 && s[i-1] == '-')):
			depth--
		case r == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + len(string(r))
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// IdentSafe replaces every rune that cannot appear in a Go identifier with '_'
func IdentSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}
