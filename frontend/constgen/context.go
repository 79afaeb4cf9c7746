package constgen

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/rill-lang/rill/frontend/ilerr"
	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/util"
)

// Param is a const-generic parameter like `const N: usize = 4`.
// Default is nil when the parameter has none.
type Param struct {
	Name    string
	Type    types.Type
	Default ConstValue
}

// Context is the set of const parameters of one generic item (Owner) and
// the values bound to them so far.
type Context struct {
	Owner  string
	Params []Param
	Values map[string]ConstValue
}

type Binding struct {
	Name  string
	Value ConstValue
}

func NewContext(owner string, params ...Param) *Context {
	return &Context{Owner: owner, Params: params, Values: make(map[string]ConstValue)}
}

func (c *Context) Param(name string) (Param, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Complete reports whether every parameter without a default has a value
func (c *Context) Complete() bool {
	return ValidateParameters(c) == nil
}

// check makes sure name is a parameter of c and that value fits its type
func (c *Context) check(name string, value ConstValue) error {
	param, ok := c.Param(name)
	if !ok {
		return ilerr.New(ilerr.NewTypeMismatch{
			Expected: "a const parameter of " + c.Owner,
			Found:    name,
			Context:  "const argument " + name + " = " + value.String(),
		})
	}
	if err := accepts(param.Type, value); err != nil {
		return ilerr.New(ilerr.NewTypeMismatch{
			Expected: param.Type.String(),
			Found:    err.Error(),
			Context:  "const parameter " + name + " of " + c.Owner,
		})
	}
	return nil
}

// BindValue sets the value of the const parameter name. Nothing is
// changed if the parameter is unknown or the value does not fit its type.
func BindValue(ctx *Context, name string, value ConstValue) error {
	if err := ctx.check(name, value); err != nil {
		return err
	}
	ctx.Values[name] = value
	logger.Debug("bound const parameter", "owner", ctx.Owner, "param", name, "value", value.String())
	return nil
}

// BindExpr evaluates expr and binds the result to name
func BindExpr(e *Evaluator, ctx *Context, name, expr string) error {
	v, err := e.Evaluate(expr)
	if err != nil {
		return err
	}
	return BindValue(ctx, name, v)
}

// ValidateParameters fails for the first parameter, in declaration order,
// that has neither a bound value nor a default.
func ValidateParameters(ctx *Context) error {
	for _, p := range ctx.Params {
		if _, bound := ctx.Values[p.Name]; !bound && p.Default == nil {
			return ilerr.New(ilerr.NewMissingConstParameter{Owner: ctx.Owner, Param: p.Name})
		}
	}
	return nil
}

// Monomorphize returns the identifier of the instantiation of ctx.Owner
// where values override the values already bound in ctx and defaults fill
// the rest. Every parameter must end up with a value.
func Monomorphize(ctx *Context, values []Binding) (string, error) {
	given, err := ctx.collect(values)
	if err != nil {
		return "", err
	}
	sb := strings.Builder{}
	sb.WriteString(util.IdentSafe(ctx.Owner))
	for _, p := range ctx.Params {
		v, ok := given[p.Name]
		if !ok {
			v, ok = ctx.Values[p.Name]
		}
		if !ok {
			v = p.Default
		}
		if v == nil {
			return "", ilerr.New(ilerr.NewMissingConstParameter{Owner: ctx.Owner, Param: p.Name})
		}
		writeMangled(&sb, p.Name, v)
	}
	id := sb.String()
	logger.Debug("monomorphized", "owner", ctx.Owner, "id", id)
	return id, nil
}

// Specialize returns the identifier of ctx.Owner partially applied to values.
// Parameters not in values are left generic and do not appear in the name.
func Specialize(ctx *Context, values []Binding) (string, error) {
	given, err := ctx.collect(values)
	if err != nil {
		return "", err
	}
	sb := strings.Builder{}
	sb.WriteString(util.IdentSafe(ctx.Owner))
	sb.WriteString("__spec")
	for _, p := range ctx.Params {
		if v, ok := given[p.Name]; ok {
			writeMangled(&sb, p.Name, v)
		}
	}
	return sb.String(), nil
}

func (c *Context) collect(values []Binding) (map[string]ConstValue, error) {
	seen := set.New[string](len(values))
	given := make(map[string]ConstValue, len(values))
	for _, b := range values {
		if b.Value == nil {
			return nil, ilerr.New(ilerr.NewConstEval{Expr: b.Name, Reason: "no value given"})
		}
		if !seen.Insert(b.Name) {
			return nil, ilerr.New(ilerr.NewTypeMismatch{
				Expected: "one value per const parameter",
				Found:    fmt.Sprintf("%s given twice", b.Name),
				Context:  "instantiation of " + c.Owner,
			})
		}
		if err := c.check(b.Name, b.Value); err != nil {
			return nil, err
		}
		given[b.Name] = b.Value
	}
	return given, nil
}

func writeMangled(sb *strings.Builder, name string, v ConstValue) {
	sb.WriteString("__")
	sb.WriteString(util.IdentSafe(name))
	sb.WriteString("_")
	sb.WriteString(v.mangle())
}
