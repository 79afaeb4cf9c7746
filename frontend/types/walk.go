package types

import (
	"cmp"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-set/v3"
)

// Children returns the immediate component types of t, in source order
func Children(t Type) []Type {
	switch t := t.(type) {
	case Tuple:
		return t.Elems
	case Array:
		return []Type{t.Elem}
	case Reference:
		return []Type{t.Inner}
	case RawPointer:
		return []Type{t.Inner}
	case Function:
		children := make([]Type, 0, len(t.Params)+1)
		children = append(children, t.Params...)
		if t.Ret != nil {
			children = append(children, t.Ret)
		}
		return children
	case Named:
		return t.Args
	case Primitive, Variable:
		return nil
	default:
		panic("unhandled type for Children: " + reflect.TypeOf(t).String())
	}
}

// Walk calls visit on t and then on its components, depth first, for as long as visit returns true
func Walk(t Type, visit func(Type) bool) bool {
	if !visit(t) {
		return false
	}
	for _, child := range Children(t) {
		if !Walk(child, visit) {
			return false
		}
	}
	return true
}

// Rewrite rebuilds t bottom-up after giving f the chance to replace each node.
// When f returns false the node is kept and its components are rewritten instead.
func Rewrite(t Type, f func(Type) (Type, bool)) Type {
	if replaced, ok := f(t); ok {
		return replaced
	}
	switch t := t.(type) {
	case Primitive, Variable:
		return t
	case Named:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = Rewrite(arg, f)
		}
		return Named{Name: t.Name, Regions: t.Regions, Args: args}
	case Tuple:
		if len(t.Elems) == 0 {
			return t
		}
		elems := make([]Type, len(t.Elems))
		for i, elem := range t.Elems {
			elems[i] = Rewrite(elem, f)
		}
		return Tuple{Elems: elems}
	case Array:
		return Array{Elem: Rewrite(t.Elem, f), Size: t.Size}
	case Reference:
		return Reference{Region: t.Region, Mutable: t.Mutable, Inner: Rewrite(t.Inner, f)}
	case RawPointer:
		return RawPointer{Mutable: t.Mutable, Inner: Rewrite(t.Inner, f)}
	case Function:
		params := make([]Type, len(t.Params))
		for i, param := range t.Params {
			params[i] = Rewrite(param, f)
		}
		var ret Type = Unit
		if t.Ret != nil {
			ret = Rewrite(t.Ret, f)
		}
		return Function{Params: params, Ret: ret}
	default:
		panic(fmt.Sprintf("unhandled type for Rewrite: %T", t))
	}
}

// Occurs reports whether the variable id appears anywhere inside t
func Occurs(id VarID, t Type) bool {
	found := false
	Walk(t, func(t Type) bool {
		if v, ok := t.(Variable); ok && v.ID == id {
			found = true
		}
		return !found
	})
	return found
}

// FreeVars returns the variables in t, sorted by ID
func FreeVars(t Type) []VarID {
	vars := set.NewTreeSet[VarID](cmp.Compare[VarID])
	Walk(t, func(t Type) bool {
		if v, ok := t.(Variable); ok {
			vars.Insert(v.ID)
		}
		return true
	})
	return vars.Slice()
}

// IsGround reports whether t contains no inference variables
func IsGround(t Type) bool {
	return len(FreeVars(t)) == 0
}

// Regions returns the distinct non-elided regions in t, in order of first appearance
func Regions(t Type) []Region {
	seen := set.New[Region](0)
	var regions []Region
	Walk(t, func(t Type) bool {
		switch t := t.(type) {
		case Reference:
			if !t.Region.IsElided() && seen.Insert(t.Region) {
				regions = append(regions, t.Region)
			}
		case Named:
			for _, r := range t.Regions {
				if seen.Insert(r) {
					regions = append(regions, r)
				}
			}
		}
		return true
	})
	return regions
}

func retOf(f Function) Type {
	if f.Ret == nil {
		return Unit
	}
	return f.Ret
}

// MapRegions rebuilds t with every region position, elided ones included,
// replaced by f. Regions are visited in source order.
func MapRegions(t Type, f func(Region) Region) Type {
	return Rewrite(t, func(t Type) (Type, bool) {
		switch t := t.(type) {
		case Reference:
			region := f(t.Region)
			return Reference{Region: region, Mutable: t.Mutable, Inner: MapRegions(t.Inner, f)}, true
		case Named:
			if !t.IsApplied() {
				return t, true
			}
			regions := make([]Region, len(t.Regions))
			for i, r := range t.Regions {
				regions[i] = f(r)
			}
			args := make([]Type, len(t.Args))
			for i, arg := range t.Args {
				args[i] = MapRegions(arg, f)
			}
			return Named{Name: t.Name, Regions: regions, Args: args}, true
		}
		return nil, false
	})
}
