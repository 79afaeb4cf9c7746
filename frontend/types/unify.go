package types

import (
	"fmt"

	"github.com/rill-lang/rill/frontend/ilerr"
)

// Unify makes a and b equal by extending s, or explains why they cannot be.
//
// Regions are not unified here: two references with different regions unify
// as long as their mutability and referents do. Region relations are the
// business of the region solver.
func Unify(s *Substitution, a, b Type) error {
	return unify(s, a, b, a, b)
}

func unify(s *Substitution, a, b Type, topA, topB Type) error {
	a, b = s.Apply(a), s.Apply(b)
	if va, ok := a.(Variable); ok {
		return s.Bind(va.ID, b)
	}
	if vb, ok := b.(Variable); ok {
		return s.Bind(vb.ID, a)
	}
	mismatch := func(reason string) error {
		return ilerr.New(ilerr.NewTypeMismatch{
			Expected: s.Apply(topA).String(),
			Found:    s.Apply(topB).String(),
			Context:  reason,
		})
	}
	switch a := a.(type) {
	case Primitive:
		if p, ok := b.(Primitive); ok && p == a {
			return nil
		}
		if _, ok := b.(Primitive); ok {
			return mismatch(fmt.Sprintf("'%s' is not '%s'", a, b))
		}
	case Named:
		if b, ok := b.(Named); ok {
			if a.Name != b.Name || len(a.Args) != len(b.Args) {
				return mismatch(fmt.Sprintf("'%s' is not '%s'", a, b))
			}
			for i := range a.Args {
				if err := unify(s, a.Args[i], b.Args[i], topA, topB); err != nil {
					return err
				}
			}
			return nil
		}
	case Tuple:
		if b, ok := b.(Tuple); ok {
			if len(a.Elems) != len(b.Elems) {
				return mismatch(fmt.Sprintf("tuples of %d and %d elements", len(a.Elems), len(b.Elems)))
			}
			for i := range a.Elems {
				if err := unify(s, a.Elems[i], b.Elems[i], topA, topB); err != nil {
					return err
				}
			}
			return nil
		}
	case Array:
		if b, ok := b.(Array); ok {
			if a.Size != b.Size {
				return mismatch(fmt.Sprintf("arrays of size %d and %d", a.Size, b.Size))
			}
			return unify(s, a.Elem, b.Elem, topA, topB)
		}
	case Reference:
		if b, ok := b.(Reference); ok {
			if a.Mutable != b.Mutable {
				return mismatch("mutable and shared references")
			}
			return unify(s, a.Inner, b.Inner, topA, topB)
		}
	case RawPointer:
		if b, ok := b.(RawPointer); ok {
			if a.Mutable != b.Mutable {
				return mismatch("*mut and *const pointers")
			}
			return unify(s, a.Inner, b.Inner, topA, topB)
		}
	case Function:
		if b, ok := b.(Function); ok {
			if len(a.Params) != len(b.Params) {
				return mismatch(fmt.Sprintf("functions of %d and %d parameters", len(a.Params), len(b.Params)))
			}
			for i := range a.Params {
				if err := unify(s, a.Params[i], b.Params[i], topA, topB); err != nil {
					return err
				}
			}
			return unify(s, retOf(a), retOf(b), topA, topB)
		}
	}
	return mismatch("")
}

// Match extends s so that pattern becomes identical to target, binding only
// variables that appear in pattern. Variables of target are treated as rigid:
// they only match an unbound pattern variable.
//
// It reports false without explaining why; s may hold partial bindings after a failed match.
func Match(s *Substitution, pattern, target Type) bool {
	m := matcher{s: s, patternVars: make(map[VarID]bool)}
	for _, id := range FreeVars(pattern) {
		m.patternVars[id] = true
	}
	return m.match(pattern, target)
}

type matcher struct {
	s           *Substitution
	patternVars map[VarID]bool
}

func (m matcher) match(pattern, target Type) bool {
	pattern = m.s.Apply(pattern)
	if v, ok := pattern.(Variable); ok {
		if v == target {
			return true
		}
		if !m.patternVars[v.ID] || Occurs(v.ID, target) {
			return false
		}
		m.s.bindings[v.ID] = target
		return true
	}
	switch p := pattern.(type) {
	case Primitive:
		return p == target
	case Named:
		t, ok := target.(Named)
		return ok && p.Name == t.Name && m.matchAll(p.Args, t.Args)
	case Tuple:
		t, ok := target.(Tuple)
		return ok && m.matchAll(p.Elems, t.Elems)
	case Array:
		t, ok := target.(Array)
		return ok && p.Size == t.Size && m.match(p.Elem, t.Elem)
	case Reference:
		t, ok := target.(Reference)
		return ok && p.Mutable == t.Mutable && m.match(p.Inner, t.Inner)
	case RawPointer:
		t, ok := target.(RawPointer)
		return ok && p.Mutable == t.Mutable && m.match(p.Inner, t.Inner)
	case Function:
		t, ok := target.(Function)
		return ok && m.matchAll(p.Params, t.Params) && m.match(retOf(p), retOf(t))
	}
	return false
}

func (m matcher) matchAll(patterns, targets []Type) bool {
	if len(patterns) != len(targets) {
		return false
	}
	for i := range patterns {
		if !m.match(patterns[i], targets[i]) {
			return false
		}
	}
	return true
}
