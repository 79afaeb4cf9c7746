package types

import (
	"maps"
	"slices"

	"github.com/rill-lang/rill/frontend/ilerr"
)

// Substitution maps inference variables to the types they were bound to.
//
// A Substitution is owned by a single type-checking unit and is not safe for
// concurrent use. Every binding passes the occurs-check, so Apply always terminates.
type Substitution struct {
	bindings map[VarID]Type
}

func NewSubstitution() *Substitution {
	return &Substitution{bindings: make(map[VarID]Type)}
}

// SubstitutionOf builds a Substitution from bindings without checking them.
// It is meant for tests and for substitutions built from fresh variables.
func SubstitutionOf(bindings map[VarID]Type) *Substitution {
	return &Substitution{bindings: maps.Clone(bindings)}
}

func (s *Substitution) Lookup(id VarID) (Type, bool) {
	t, ok := s.bindings[id]
	return t, ok
}

func (s *Substitution) Len() int { return len(s.bindings) }

// Vars returns the bound variables in ascending order
func (s *Substitution) Vars() []VarID {
	return slices.Sorted(maps.Keys(s.bindings))
}

func (s *Substitution) Clone() *Substitution {
	return &Substitution{bindings: maps.Clone(s.bindings)}
}

// Apply rewrites every bound variable in t, following chains of variables
// until reaching an unbound variable or a non-variable type.
func (s *Substitution) Apply(t Type) Type {
	if len(s.bindings) == 0 {
		return t
	}
	return Rewrite(t, func(t Type) (Type, bool) {
		v, ok := t.(Variable)
		if !ok {
			return nil, false
		}
		bound, ok := s.bindings[v.ID]
		if !ok {
			return v, true
		}
		return s.Apply(bound), true
	})
}

// Bind records that id stands for t.
//
// t is resolved against the existing bindings first; if the result mentions
// id the binding would describe an infinite type, and NewInfiniteType is returned.
// Binding a variable to itself does nothing. A variable that is already
// bound is never rebound: its binding is unified with t instead.
func (s *Substitution) Bind(id VarID, t Type) error {
	if existing, ok := s.bindings[id]; ok {
		return Unify(s, existing, t)
	}
	applied := s.Apply(t)
	if v, ok := applied.(Variable); ok && v.ID == id {
		return nil
	}
	if Occurs(id, applied) {
		return ilerr.New(ilerr.NewInfiniteType{
			Var:  Variable{ID: id}.String(),
			Type: applied.String(),
		})
	}
	s.bindings[id] = applied
	logger.Debug("bound variable", "var", Variable{ID: id}, "type", applied)
	return nil
}

// Compose merges other into s.
//
// other is first applied to every type already bound in s, then the bindings
// of other that s lacks are added. The order matters: later substitutions
// must resolve the variables that earlier ones introduced.
func (s *Substitution) Compose(other *Substitution) {
	for id, t := range s.bindings {
		s.bindings[id] = other.Apply(t)
	}
	for id, t := range other.bindings {
		if _, ok := s.bindings[id]; !ok {
			s.bindings[id] = t
		}
	}
}
