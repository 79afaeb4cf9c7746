package util

import (
	"github.com/benbjohnson/immutable"
	"iter"
)

// MSet is a shallow wrapper around a map
type MSet[A comparable] struct {
	underlying map[A]struct{}
}

func NewEmptySet[A comparable]() MSet[A] {
	return MSet[A]{
		underlying: make(map[A]struct{}),
	}
}

func (s MSet[A]) Add(elems ...A) {
	for _, elem := range elems {
		s.underlying[elem] = struct{}{}
	}
}

func (s MSet[A]) Contains(elem A) bool {
	_, ok := s.underlying[elem]
	return ok
}

// SortedKeys iterates the keys of an immutable.SortedMap in order
func SortedKeys[K, V any](m *immutable.SortedMap[K, V]) iter.Seq[K] {
	return func(yield func(K) bool) {
		itr := m.Iterator()
		for !itr.Done() {
			k, _, ok := itr.Next()
			if !ok || !yield(k) {
				return
			}
		}
	}
}
