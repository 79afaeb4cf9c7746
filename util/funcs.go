package util

import (
	"iter"
	"strings"
)

func Reverse[A any](slice []A) iter.Seq[A] {
	return func(yield func(A) bool) {
		for i := len(slice) - 1; i >= 0; i-- {
			if !yield(slice[i]) {
				return
			}
		}
	}
}

// JoinErrorsWith renders errs one after the other, each preceded by prefix and separated by sep
func JoinErrorsWith(prefix string, errs []error, sep string) string {
	sb := strings.Builder{}
	for i, err := range errs {
		if i != 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(prefix)
		sb.WriteString(err.Error())
	}
	return sb.String()
}
