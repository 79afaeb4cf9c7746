package types

import (
	"testing"

	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(id VarID) Variable { return Variable{ID: id} }

func TestBindThenApplyResolves(t *testing.T) {
	testCases := []struct {
		name string
		typ  Type
	}{
		{"primitive", I32},
		{"tuple", Tuple{Elems: []Type{Bool, U8}}},
		{"array", Array{Elem: F64, Size: 3}},
		{"reference", Reference{Region: "'a", Mutable: true, Inner: Str}},
		{"pointer", RawPointer{Inner: Named{Name: "Node"}}},
		{"function", Function{Params: []Type{I32, v(7)}, Ret: Bool}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSubstitution()
			require.NoError(t, s.Bind(0, tc.typ))
			assert.Equal(t, tc.typ.String(), s.Apply(v(0)).String())
		})
	}
}

func TestApplyFollowsChains(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(0, v(1)))
	require.NoError(t, s.Bind(1, v(2)))
	require.NoError(t, s.Bind(2, Tuple{Elems: []Type{I64, v(3)}}))

	assert.Equal(t, "(i64, ?3)", s.Apply(v(0)).String())
	// unbound variables are returned unchanged
	assert.Equal(t, v(3), s.Apply(v(3)))
}

func TestApplyIdentityOnGroundTypes(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(0, I32))
	for _, typ := range []Type{Bool, Named{Name: "Vec", Args: []Type{U8}}, Unit} {
		assert.Equal(t, typ, s.Apply(typ))
	}
}

func TestApplyRecursesIntoComposites(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(0, Char))
	nested := MustParseType("fn(&'a mut [(?0, *const ?0); 2]) -> ?0")
	assert.Equal(t, "fn(&'a mut [(char, *const char); 2]) -> char", s.Apply(nested).String())
}

func TestBindKeepsExistingBinding(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(0, MustParseType("Vec<?1>")))
	require.NoError(t, s.Bind(0, MustParseType("Vec<u8>")))
	assert.Equal(t, "Vec<u8>", s.Apply(v(0)).String())
	assert.Equal(t, "u8", s.Apply(v(1)).String())

	err := s.Bind(0, MustParseType("Vec<bool>"))
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
	assert.Equal(t, "Vec<u8>", s.Apply(v(0)).String())
}

func TestOccursCheck(t *testing.T) {
	testCases := []string{
		"?0",
		"(i32, ?0)",
		"[?0; 4]",
		"&'a ?0",
		"*mut ?0",
		"fn(?0) -> bool",
		"fn(i32) -> (bool, [&?0; 1])",
		"Vec<Option<?0>>",
	}
	for _, text := range testCases {
		t.Run(text, func(t *testing.T) {
			typ := MustParseType(text)
			if _, isVar := typ.(Variable); isVar {
				// binding a variable to itself is a no-op, not an infinite type
				assert.NoError(t, NewSubstitution().Bind(0, typ))
				return
			}
			err := NewSubstitution().Bind(0, typ)
			require.Error(t, err)
			assert.Equal(t, ilerr.InfiniteType, ilerr.CodeOf(err))
		})
	}
}

func TestOccursCheckSeesThroughBindings(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(1, Tuple{Elems: []Type{v(0), Bool}}))
	err := s.Bind(0, v(1))
	assert.Equal(t, ilerr.InfiniteType, ilerr.CodeOf(err))
	_, bound := s.Lookup(0)
	assert.False(t, bound, "a rejected binding must not be recorded")
}

func TestComposeOrder(t *testing.T) {
	s := SubstitutionOf(map[VarID]Type{0: I32})
	other := SubstitutionOf(map[VarID]Type{1: v(0)})

	s.Compose(other)

	assert.Equal(t, I32, s.Apply(v(0)))
	assert.Equal(t, I32, s.Apply(v(1)))
	assert.Equal(t, []VarID{0, 1}, s.Vars())
}

func TestComposeAppliesOtherToExistingBindings(t *testing.T) {
	s := SubstitutionOf(map[VarID]Type{0: Tuple{Elems: []Type{v(1), v(1)}}})
	other := SubstitutionOf(map[VarID]Type{1: Str, 0: Bool})

	s.Compose(other)

	bound, _ := s.Lookup(0)
	// existing bindings win over other's, but see other's bindings
	assert.Equal(t, "(str, str)", bound.String())
	assert.Equal(t, 2, s.Len())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSubstitution()
	require.NoError(t, s.Bind(0, I8))
	c := s.Clone()
	require.NoError(t, c.Bind(1, I16))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}
