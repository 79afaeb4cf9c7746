package constgen

import (
	"testing"

	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		expr     string
		expected ConstValue
	}{
		{"10 + 20", Integer(30)},
		{"2 + 3 * 4", Integer(14)},
		{"(2 + 3) * 4", Integer(20)},
		{"2 * 3 * 4 + 1", Integer(25)},
		{"-5 + 1_000", Integer(995)},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{`"ab" + "c"`, String("abc")},
		{`"say \"hi\""`, String(`say "hi"`)},
		{"  7  ", Integer(7)},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := NewEvaluator().Evaluate(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestEvaluateMemoizes(t *testing.T) {
	e := NewEvaluator()
	v, err := e.Evaluate("10 + 20")
	require.NoError(t, err)
	assert.Equal(t, Integer(30), v)
	assert.Equal(t, 1, e.CacheLen())

	v, err = e.Evaluate("10 + 20")
	require.NoError(t, err)
	assert.Equal(t, Integer(30), v)
	assert.Equal(t, 1, e.CacheLen())

	_, err = e.Evaluate("10 +")
	require.Error(t, err)
	assert.Equal(t, 1, e.CacheLen())
}

func TestEvaluateErrors(t *testing.T) {
	testCases := []struct {
		expr string
		code ilerr.ErrCode
	}{
		{"", ilerr.ConstEval},
		{"1 +", ilerr.ConstEval},
		{"(1 + 2", ilerr.ConstEval},
		{"1 2", ilerr.ConstEval},
		{"N + 1", ilerr.ConstEval},
		{`"open`, ilerr.ConstEval},
		{"1 / 2", ilerr.ConstEval},
		{"9223372036854775807 + 1", ilerr.ConstEval},
		{"99999999999999999999", ilerr.ConstEval},
		{"true + 1", ilerr.TypeMismatch},
		{`"a" * 2`, ilerr.TypeMismatch},
		{`"a" + 2`, ilerr.TypeMismatch},
		{"-false", ilerr.TypeMismatch},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := NewEvaluator().Evaluate(tc.expr)
			require.Error(t, err)
			assert.Equal(t, tc.code, ilerr.CodeOf(err))
		})
	}
}

func matrix() *Context {
	return NewContext("Matrix",
		Param{Name: "R", Type: types.Usize},
		Param{Name: "C", Type: types.Usize, Default: Integer(4)},
		Param{Name: "Label", Type: types.Reference{Region: types.Static, Inner: types.Str}, Default: String("m")},
	)
}

func TestBindValue(t *testing.T) {
	ctx := matrix()
	require.NoError(t, BindValue(ctx, "R", Integer(3)))
	assert.Equal(t, Integer(3), ctx.Values["R"])

	testCases := []struct {
		name  string
		param string
		value ConstValue
	}{
		{"unknown parameter", "Z", Integer(1)},
		{"bool for usize", "C", Bool(true)},
		{"negative usize", "C", Integer(-1)},
		{"integer for str", "Label", Integer(1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := BindValue(ctx, tc.param, tc.value)
			require.Error(t, err)
			assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
			assert.NotContains(t, ctx.Values, "Z")
			assert.NotContains(t, ctx.Values, "C")
			assert.NotContains(t, ctx.Values, "Label")
		})
	}
}

func TestIntegerRanges(t *testing.T) {
	ctx := NewContext("Bits", Param{Name: "B", Type: types.U8}, Param{Name: "S", Type: types.I8})
	assert.NoError(t, BindValue(ctx, "B", Integer(255)))
	assert.Error(t, BindValue(ctx, "B", Integer(256)))
	assert.NoError(t, BindValue(ctx, "S", Integer(-128)))
	assert.Error(t, BindValue(ctx, "S", Integer(128)))
}

func TestBindExpr(t *testing.T) {
	e := NewEvaluator()
	ctx := matrix()
	require.NoError(t, BindExpr(e, ctx, "R", "2 * 8"))
	assert.Equal(t, Integer(16), ctx.Values["R"])
	assert.Error(t, BindExpr(e, ctx, "R", `"x"`))
}

func TestValidateParameters(t *testing.T) {
	ctx := matrix()
	err := ValidateParameters(ctx)
	require.Error(t, err)
	assert.Equal(t, ilerr.MissingConstParameter, ilerr.CodeOf(err))
	assert.Contains(t, err.Error(), "R")
	assert.False(t, ctx.Complete())

	require.NoError(t, BindValue(ctx, "R", Integer(2)))
	assert.NoError(t, ValidateParameters(ctx))
	assert.True(t, ctx.Complete())
}

func TestMonomorphize(t *testing.T) {
	ctx := matrix()

	id, err := Monomorphize(ctx, []Binding{{"R", Integer(3)}})
	require.NoError(t, err)
	assert.Equal(t, "Matrix__R_3__C_4__Label_s6d", id)

	// caller order does not matter
	a, err := Monomorphize(ctx, []Binding{{"C", Integer(2)}, {"R", Integer(1)}})
	require.NoError(t, err)
	b, err := Monomorphize(ctx, []Binding{{"R", Integer(1)}, {"C", Integer(2)}})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Monomorphize(ctx, nil)
	assert.Equal(t, ilerr.MissingConstParameter, ilerr.CodeOf(err))

	_, err = Monomorphize(ctx, []Binding{{"R", Integer(1)}, {"Depth", Integer(1)}})
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))

	_, err = Monomorphize(ctx, []Binding{{"R", Integer(1)}, {"R", Integer(2)}})
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
}

func TestMonomorphizeUsesBoundValues(t *testing.T) {
	ctx := NewContext("Offset", Param{Name: "N", Type: types.I32})
	require.NoError(t, BindValue(ctx, "N", Integer(-7)))
	id, err := Monomorphize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Offset__N_m7", id)

	id, err = Monomorphize(ctx, []Binding{{"N", Integer(9)}})
	require.NoError(t, err)
	assert.Equal(t, "Offset__N_9", id)
}

func TestSpecialize(t *testing.T) {
	ctx := matrix()
	id, err := Specialize(ctx, []Binding{{"C", Integer(8)}})
	require.NoError(t, err)
	assert.Equal(t, "Matrix__spec__C_8", id)

	id, err = Specialize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Matrix__spec", id)

	_, err = Specialize(ctx, []Binding{{"C", Bool(false)}})
	assert.Equal(t, ilerr.TypeMismatch, ilerr.CodeOf(err))
}
