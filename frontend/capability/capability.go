// Package capability holds the declared capabilities (traits) of a program
// and their implementations, and decides whether a type satisfies a bound.
package capability

import (
	"log/slog"
	"strings"

	"github.com/rill-lang/rill/frontend/types"
	"github.com/rill-lang/rill/internal/log"
)

var logger = slog.New(types.SlogHandler(log.DefaultLogger.Handler())).With("section", "capability")

type BoundKind uint8

const (
	// Simple is a plain `T: Display`
	Simple BoundKind = iota
	// Parameterized bounds pass arguments to the capability, like `T: Into<i32>`
	Parameterized
	// HigherRanked bounds quantify over regions, like `F: for<'a> Fn<&'a u8>`
	HigherRanked
	// RegionBound is an outlives requirement, like `T: 'a`
	RegionBound
)

func (k BoundKind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Parameterized:
		return "parameterized"
	case HigherRanked:
		return "higher-ranked"
	case RegionBound:
		return "region"
	default:
		return "unknown"
	}
}

// Bound is a requirement placed on a type
type Bound struct {
	Kind       BoundKind
	Capability string
	Args       []types.Type
	Region     types.Region
	Quantified []types.Region
}

func (b Bound) String() string {
	if b.Kind == RegionBound {
		return string(b.Region)
	}
	sb := strings.Builder{}
	if len(b.Quantified) > 0 {
		sb.WriteString("for<")
		for i, r := range b.Quantified {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(string(r))
		}
		sb.WriteString("> ")
	}
	sb.WriteString(b.Capability)
	if len(b.Args) > 0 {
		sb.WriteString("<")
		for i, arg := range b.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(arg.String())
		}
		sb.WriteString(">")
	}
	return sb.String()
}

func SimpleBound(capability string) Bound {
	return Bound{Kind: Simple, Capability: capability}
}

func ParameterizedBound(capability string, args ...types.Type) Bound {
	return Bound{Kind: Parameterized, Capability: capability, Args: args}
}

// Param is a generic parameter of a capability
type Param struct {
	Name     string
	Variance types.Variance
	Bounds   []Bound
	// Default is used when a bound or implementation leaves the parameter out; it may be nil
	Default types.Type
}

// Capability is a declared trait. It is immutable once registered.
type Capability struct {
	Name            string
	Params          []Param
	AssociatedTypes []string
	Methods         map[string]types.Function
	Supertraits     []string
}

func (c *Capability) hasAssociatedType(name string) bool {
	for _, a := range c.AssociatedTypes {
		if a == name {
			return true
		}
	}
	return false
}

// WhereClause requires Type to satisfy every bound in Bounds.
// Type usually mentions the generics of the enclosing implementation.
type WhereClause struct {
	Type   types.Type
	Bounds []Bound
}

// Implementation provides Capability for Type.
//
// The variables in Type and Args are the generics of the implementation,
// so `impl<T: Display> Display for Vec<T>` is written with Type `Vec<?0>` and
// a WhereClause on `?0`.
type Implementation struct {
	Capability      string
	Type            types.Type
	Args            []types.Type
	Where           []WhereClause
	AssociatedTypes map[string]types.Type
}

func (i *Implementation) String() string {
	b := Bound{Kind: Parameterized, Capability: i.Capability, Args: i.Args}
	return "impl " + b.String() + " for " + i.Type.String()
}

// header is the tuple of the implementing type and the capability arguments,
// which is what coherence and impl selection compare
func header(t types.Type, args []types.Type) types.Type {
	elems := make([]types.Type, 0, len(args)+1)
	elems = append(elems, t)
	elems = append(elems, args...)
	return types.Tuple{Elems: elems}
}

// ResolveVariance is the variance a bound imposes on the type it constrains
func ResolveVariance(b Bound) types.Variance {
	switch b.Kind {
	case Simple, RegionBound:
		return types.Covariant
	case HigherRanked:
		return types.Contravariant
	default:
		return types.Invariant
	}
}
