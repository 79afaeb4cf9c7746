package region

import (
	"testing"

	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ty = types.MustParseType

func tys(texts ...string) []types.Type {
	ts := make([]types.Type, len(texts))
	for i, text := range texts {
		ts[i] = ty(text)
	}
	return ts
}

func TestElideSingleInput(t *testing.T) {
	s := NewSolver()
	elision, err := s.Elide(Signature{Name: "first", Params: tys("&str"), Ret: ty("&str")})
	require.NoError(t, err)
	assert.Equal(t, []Region{"'_0"}, elision.Inputs)
	assert.Equal(t, Region("'_0"), elision.Output)
	assert.Equal(t, "fn(&'_0 str) -> &'_0 str", elision.Signature.Function().String())
}

func TestElideAnonymousRegion(t *testing.T) {
	s := NewSolver()
	elision, err := s.Elide(Signature{Name: "first", Params: tys("&'_ str"), Ret: ty("&'_ str")})
	require.NoError(t, err)
	assert.Equal(t, "fn(&'_0 str) -> &'_0 str", elision.Signature.Function().String())

	s.Add(Outlives{Longer: elision.Output, Shorter: types.Static})
	_, err = s.Solve()
	assert.NoError(t, err)
}

func TestElideNamedSingleInput(t *testing.T) {
	elision, err := NewSolver().Elide(Signature{Name: "trim", Params: tys("&'a str"), Ret: ty("(&str, bool)")})
	require.NoError(t, err)
	assert.Equal(t, Region("'a"), elision.Output)
	assert.Equal(t, "(&'a str, bool)", elision.Signature.Ret.String())
}

func TestElideReceiverTakesPriority(t *testing.T) {
	s := NewSolver()
	elision, err := s.Elide(Signature{
		Name:     "get",
		Receiver: ty("&Map"),
		Params:   tys("&'k str", "&u8"),
		Ret:      ty("&mut Entry"),
	})
	require.NoError(t, err)
	assert.Equal(t, []Region{"'_0", "'k", "'_1"}, elision.Inputs)
	assert.Equal(t, Region("'_0"), elision.Output)
	assert.Equal(t, "fn(&'_0 Map, &'k str, &'_1 u8) -> &'_0 mut Entry", elision.Signature.Function().String())
}

func TestElideMissingRegion(t *testing.T) {
	testCases := []struct {
		name   string
		sig    Signature
		inputs string
	}{
		{"no inputs", Signature{Name: "make", Ret: ty("&str")}, "no input regions"},
		{"only owned inputs", Signature{Name: "make", Params: tys("u8", "String"), Ret: ty("&str")}, "no input regions"},
		{"ambiguous", Signature{Name: "pick", Params: tys("&u8", "&u8"), Ret: ty("&u8")}, "2 input regions"},
		{"receiver without region", Signature{Name: "pick", Receiver: ty("Self"), Params: tys("&u8", "&'a u8"), Ret: ty("&u8")}, "2 input regions"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSolver().Elide(tc.sig)
			require.Error(t, err)
			assert.Equal(t, ilerr.MissingRegion, ilerr.CodeOf(err))
			assert.Contains(t, err.Error(), tc.inputs)
		})
	}
}

func TestElideWithoutElidedOutputs(t *testing.T) {
	elision, err := NewSolver().Elide(Signature{Name: "f", Params: tys("&u8", "&u8"), Ret: ty("&'static u8")})
	require.NoError(t, err)
	assert.True(t, elision.Output.IsElided())
	assert.Len(t, elision.Inputs, 2)
}

func declared(t *testing.T, params ...Parameter) *Solver {
	s := NewSolver()
	require.NoError(t, s.Declare(params...))
	return s
}

func TestSolveKnownRegions(t *testing.T) {
	params := []Parameter{
		{Name: "'a"},
		{Name: "'b", Bounds: []Region{"'a"}},
		{Name: "'c", Bounds: []Region{"'b"}},
	}
	testCases := []struct {
		name       string
		constraint Constraint
		code       ilerr.ErrCode
	}{
		{"declared", Outlives{"'b", "'a"}, ilerr.None},
		{"transitive", Outlives{"'c", "'a"}, ilerr.None},
		{"reflexive", Outlives{"'a", "'a"}, ilerr.None},
		{"static outlives all", Outlives{types.Static, "'c"}, ilerr.None},
		{"reversed", Outlives{"'a", "'b"}, ilerr.RegionConstraintViolated},
		{"static is outlived by nothing", Outlives{"'c", types.Static}, ilerr.RegionConstraintViolated},
		{"equal to itself", Equal{"'b", "'b"}, ilerr.None},
		{"equal to a longer region", Equal{"'b", "'c"}, ilerr.RegionConstraintViolated},
		{"undeclared", Outlives{"'x", "'a"}, ilerr.UnknownLifetimeBound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := declared(t, params...)
			s.Add(tc.constraint)
			_, err := s.Solve()
			if tc.code == ilerr.None {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tc.code, ilerr.CodeOf(err))
			}
		})
	}
}

func TestSolveBindsVariables(t *testing.T) {
	s := declared(t, Parameter{Name: "'a"}, Parameter{Name: "'b", Bounds: []Region{"'a"}})
	v0, v1, v2 := s.Fresh(), s.Fresh(), s.Fresh()
	unconstrained := s.Fresh()
	s.Add(
		Outlives{Longer: v2, Shorter: v1},
		Outlives{Longer: v1, Shorter: v0},
		Equal{A: v0, B: "'a"},
	)
	solution, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 3, solution.Iterations)
	assert.Equal(t, map[Region]Region{v0: "'a", v1: "'a", v2: "'a"}, solution.Resolved)
	assert.Equal(t, []Region{unconstrained}, solution.Unresolved)
	assert.Empty(t, solution.Pending)
	assert.Equal(t, "&'a u8", solution.Apply(types.Reference{Region: v1, Inner: types.U8}).String())
	assert.Equal(t, unconstrained, solution.Resolve(unconstrained))
}

func TestSolveIterationLimit(t *testing.T) {
	s := NewSolver(WithIterationLimit(2))
	require.NoError(t, s.Declare(Parameter{Name: "'a"}))
	v0, v1, v2 := s.Fresh(), s.Fresh(), s.Fresh()
	s.Add(
		Outlives{Longer: v2, Shorter: v1},
		Outlives{Longer: v1, Shorter: v0},
		Equal{A: v0, B: "'a"},
	)
	_, err := s.Solve()
	require.Error(t, err)
	assert.Equal(t, ilerr.SolverIterationLimit, ilerr.CodeOf(err))
}

func TestSolveLeavesVariableOnlyConstraintsPending(t *testing.T) {
	s := NewSolver()
	v0, v1 := s.Fresh(), s.Fresh()
	s.Add(Outlives{Longer: v0, Shorter: v1})
	solution, err := s.Solve()
	require.NoError(t, err)
	assert.Len(t, solution.Pending, 1)
	assert.Equal(t, []Region{v0, v1}, solution.Unresolved)
}

func TestOutlivesTypeWaitsForInference(t *testing.T) {
	subst := types.NewSubstitution()
	s := NewSolver(WithSubstitution(subst))
	require.NoError(t, s.Declare(
		Parameter{Name: "'a"},
		Parameter{Name: "'b", Bounds: []Region{"'a"}},
		Parameter{Name: "'c"},
	))
	s.Add(OutlivesType{Region: "'a", Type: ty("(&'b u8, ?0)")})

	solution, err := s.Solve()
	require.NoError(t, err)
	assert.Len(t, solution.Pending, 1)

	require.NoError(t, subst.Bind(0, ty("&'b str")))
	solution, err = s.Solve()
	require.NoError(t, err)
	assert.Empty(t, solution.Pending)

	// 'c is not known to outlive 'a
	s.Add(OutlivesType{Region: "'a", Type: ty("Ref<'c, u8>")})
	_, err = s.Solve()
	assert.Equal(t, ilerr.RegionConstraintViolated, ilerr.CodeOf(err))
}

func TestHigherRankedPlaceholders(t *testing.T) {
	s := declared(t, Parameter{Name: "'a"})
	entered, placeholders := s.EnterHigherRanked(ty("fn(&'x u8, &'a u8) -> &'x u8"), "'x")
	require.Len(t, placeholders, 1)
	p := placeholders[0]
	assert.Equal(t, "fn(&"+string(p)+" u8, &'a u8) -> &"+string(p)+" u8", entered.String())

	s.Add(Outlives{Longer: types.Static, Shorter: p}, Outlives{Longer: p, Shorter: p})
	_, err := s.Solve()
	require.NoError(t, err)

	s.Add(Outlives{Longer: p, Shorter: "'a"})
	_, err = s.Solve()
	assert.Equal(t, ilerr.RegionConstraintViolated, ilerr.CodeOf(err))

	_, again := s.EnterHigherRanked(ty("&'x u8"), "'x")
	assert.NotEqual(t, p, again[0])
}

func TestCheckBounds(t *testing.T) {
	s := declared(t, Parameter{Name: "'a"}, Parameter{Name: "'b"})

	assert.NoError(t, s.CheckBounds(types.Static, []Region{types.Static}))
	assert.NoError(t, s.CheckBounds("'a", []Region{"'b"}))

	err := s.CheckBounds("'a", []Region{"'b", types.Static})
	assert.Equal(t, ilerr.RegionBoundNotSatisfied, ilerr.CodeOf(err))

	err = s.CheckBounds("'a", []Region{"'z"})
	assert.Equal(t, ilerr.UnknownLifetimeBound, ilerr.CodeOf(err))
}

func TestUndeclaredRegionError(t *testing.T) {
	s := declared(t, Parameter{Name: "'a"})
	s.Add(Outlives{Longer: "'x", Shorter: "'a"})
	_, err := s.Solve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region bound ''x: 'a' refers to an undeclared region")
}

func TestDeclareUnknownBound(t *testing.T) {
	err := NewSolver().Declare(Parameter{Name: "'a", Bounds: []Region{"'q"}})
	assert.Equal(t, ilerr.UnknownLifetimeBound, ilerr.CodeOf(err))

	// bounds may refer to parameters declared alongside
	assert.NoError(t, NewSolver().Declare(
		Parameter{Name: "'a", Bounds: []Region{"'b"}},
		Parameter{Name: "'b", Bounds: []Region{types.Static}},
	))
}

func TestResolveVariance(t *testing.T) {
	s := declared(t,
		Parameter{Name: "'a"},
		Parameter{Name: "'b", Bounds: []Region{"'a"}},
		Parameter{Name: "'c"},
		Parameter{Name: "'d"},
	)
	s.Add(Outlives{Longer: "'d", Shorter: "'b"})

	assert.Equal(t, types.Contravariant, s.ResolveVariance("'a"))
	assert.Equal(t, types.Invariant, s.ResolveVariance("'b"))
	assert.Equal(t, types.Invariant, s.ResolveVariance("'c"))
	assert.Equal(t, types.Covariant, s.ResolveVariance("'d"))

	// memoized results are dropped when constraints change
	s.Add(Equal{A: "'d", B: "'c"})
	assert.Equal(t, types.Invariant, s.ResolveVariance("'d"))
}

func TestIsVariable(t *testing.T) {
	assert.True(t, IsVariable("'_0"))
	assert.True(t, IsVariable("'_12"))
	assert.False(t, IsVariable("'_"))
	assert.False(t, IsVariable("'_x"))
	assert.False(t, IsVariable("'a"))
	assert.False(t, IsVariable(types.Static))
}
