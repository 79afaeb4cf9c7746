package check

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/rill-lang/rill/frontend/alias"
	"github.com/rill-lang/rill/frontend/capability"
	"github.com/rill-lang/rill/frontend/constgen"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/ir"
	"github.com/rill-lang/rill/frontend/region"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ty = types.MustParseType

func at(construct string) ir.Origin { return ir.Origin{Construct: construct} }

func declarations(t *testing.T) (*capability.Registry, *alias.Normalizer) {
	registry := capability.NewRegistry()
	require.NoError(t, registry.RegisterCapability(&capability.Capability{Name: "Display"}))
	require.NoError(t, registry.RegisterCapability(&capability.Capability{Name: "Iterator", AssociatedTypes: []string{"Item"}}))
	require.NoError(t, registry.RegisterImplementation(&capability.Implementation{Capability: "Display", Type: ty("i32")}))
	require.NoError(t, registry.RegisterImplementation(&capability.Implementation{
		Capability: "Display",
		Type:       ty("Vec<?0>"),
		Where:      []capability.WhereClause{{Type: ty("?0"), Bounds: []capability.Bound{capability.SimpleBound("Display")}}},
	}))
	require.NoError(t, registry.RegisterImplementation(&capability.Implementation{
		Capability:      "Iterator",
		Type:            ty("Range<?0>"),
		AssociatedTypes: map[string]types.Type{"Item": ty("?0")},
	}))

	aliases := alias.NewNormalizer()
	require.NoError(t, aliases.Register(alias.TypeAlias{Name: "Id", Target: "i32"}))
	require.NoError(t, aliases.Register(alias.TypeAlias{Name: "Pair", Params: []string{"T"}, Target: "(T, T)"}))
	return registry, aliases
}

func TestSessionEndToEnd(t *testing.T) {
	s := NewSession(declarations(t))
	display := capability.SimpleBound("Display")

	x, err := s.Annotate(at("let x"), "Vec<_>")
	require.NoError(t, err)
	s.Record(at("let x"), "x", x)
	// not inferred yet, so checked at the end
	require.NoError(t, s.RequireBounds(at("print(x)"), x, display))

	elem, err := s.Annotate(at("literal"), "Id")
	require.NoError(t, err)
	require.NoError(t, s.Unify(at("x.push(1)"), x, types.Named{Name: "Vec", Args: []types.Type{elem}}))

	p, err := s.Annotate(at("let p"), "Pair<_>")
	require.NoError(t, err)
	err = s.Unify(at("p = (1, true)"), p, ty("(i32, bool)"))
	require.Error(t, err)
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))

	item, err := s.Project(at("range.next()"), "Iterator", ty("Range<u8>"), "Item")
	require.NoError(t, err)
	assert.Equal(t, types.U8, item)

	sig, err := s.CheckSignature(at("fn get"),
		region.Signature{Name: "get", Receiver: ty("&Self"), Params: []types.Type{ty("&'a str")}, Ret: ty("&str")},
		[]region.Parameter{{Name: "'a"}},
		region.Outlives{Longer: "'_0", Shorter: "'a"},
	)
	require.NoError(t, err)
	assert.Equal(t, "fn(&'a Self, &'a str) -> &'a str", sig.Function().String())

	matrix := constgen.NewContext("Matrix",
		constgen.Param{Name: "R", Type: types.Usize},
		constgen.Param{Name: "C", Type: types.Usize, Default: constgen.Integer(4)},
	)
	id, err := s.Instantiate(at("Matrix<{2 * 3}>"), matrix, ConstArg{Name: "R", Expr: "2 * 3"})
	require.NoError(t, err)
	assert.Equal(t, "Matrix__R_6__C_4", id)

	res := s.Finish()
	require.Len(t, res.Bindings, 1, spew.Sdump(res.Bindings))
	assert.Equal(t, "x", res.Bindings[0].Name)
	assert.Equal(t, "Vec<i32>", res.Bindings[0].Type.String())

	require.Len(t, res.Verdicts, 1)
	assert.True(t, res.Verdicts[0].Passed())
	assert.Equal(t, "print(x)", res.Verdicts[0].Origin.Construct)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "p = (1, true)")
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Signatures, 1)
	assert.Equal(t, []Instance{{Origin: at("Matrix<{2 * 3}>"), Owner: "Matrix", ID: "Matrix__R_6__C_4"}}, res.Instances)
	assert.True(t, res.HasErrors())
	assert.Equal(t, s.ID, res.Session)
}

func TestSessionBoundFailsImmediatelyWhenInferred(t *testing.T) {
	s := NewSession(declarations(t))
	err := s.RequireBounds(at("print(b)"), ty("bool"), capability.SimpleBound("Display"))
	require.Error(t, err)
	assert.Equal(t, ilerr.BoundNotSatisfied, ilerr.CodeOf(err))

	res := s.Finish()
	require.Len(t, res.Verdicts, 1)
	assert.False(t, res.Verdicts[0].Passed())
	assert.Len(t, res.Errors, 1)
}

func TestSessionUninferredBound(t *testing.T) {
	s := NewSession(declarations(t))
	v, err := s.Annotate(at("let v"), "_")
	require.NoError(t, err)
	require.NoError(t, s.RequireBounds(at("print(v)"), v, capability.SimpleBound("Display")))

	res := s.Finish()
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ilerr.BoundNotSatisfied, ilerr.CodeOf(res.Errors[0]))
	assert.Contains(t, res.Errors[0].Error(), "could not be inferred")
}

func TestSessionRecordsRegionAndConstErrors(t *testing.T) {
	s := NewSession(declarations(t))
	_, err := s.CheckSignature(at("fn pick"),
		region.Signature{Name: "pick", Params: []types.Type{ty("&u8"), ty("&u8")}, Ret: ty("&u8")},
		nil,
	)
	assert.Equal(t, ilerr.MissingRegion, ilerr.CodeOf(err))

	_, err = s.CheckSignature(at("fn leak"),
		region.Signature{Name: "leak", Params: []types.Type{ty("&'a u8")}, Ret: ty("&'a u8")},
		[]region.Parameter{{Name: "'a", Bounds: []types.Region{types.Static}}},
	)
	assert.Equal(t, ilerr.RegionBoundNotSatisfied, ilerr.CodeOf(err))

	_, err = s.Instantiate(at("Buf<{true}>"), constgen.NewContext("Buf", constgen.Param{Name: "N", Type: types.Usize}),
		ConstArg{Name: "N", Expr: "true"})
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))

	_, err = s.Annotate(at("let q"), "Pair<u8, u8>")
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))

	res := s.Finish()
	assert.Len(t, res.Errors, 4)
	assert.Empty(t, res.Signatures)
	assert.Empty(t, res.Instances)
}

func TestAnnotateRenamesVariablesApart(t *testing.T) {
	s := NewSession(declarations(t))
	a, err := s.Annotate(at("a"), "(?0, _)")
	require.NoError(t, err)
	b, err := s.Annotate(at("b"), "(?0, ?0)")
	require.NoError(t, err)
	assert.Equal(t, "(?0, ?1)", a.String())
	assert.Equal(t, "(?2, ?2)", b.String())
}
