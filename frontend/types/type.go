package types

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Type is the structural form of a type as seen by unification.
//
// The set of implementations is closed: Primitive, Variable, Tuple, Array,
// Reference, RawPointer, Function and Named.
type Type interface {
	// String renders the type in surface syntax. Two types with the same
	// String are the same type.
	String() string
	// Hash is a hash of String, suitable for hash sets and cache keys
	Hash() uint64
	isType()
}

// VarID identifies an inference variable within one Substitution
type VarID uint64

// Region names a reference-validity scope, like 'a or 'static.
// The zero value means the region was elided in the source.
type Region string

const (
	Static Region = "'static"
	Elided Region = ""
)

func (r Region) IsElided() bool { return r == Elided }

type Primitive string

const (
	Bool  Primitive = "bool"
	Char  Primitive = "char"
	Str   Primitive = "str"
	I8    Primitive = "i8"
	I16   Primitive = "i16"
	I32   Primitive = "i32"
	I64   Primitive = "i64"
	I128  Primitive = "i128"
	Isize Primitive = "isize"
	U8    Primitive = "u8"
	U16   Primitive = "u16"
	U32   Primitive = "u32"
	U64   Primitive = "u64"
	U128  Primitive = "u128"
	Usize Primitive = "usize"
	F32   Primitive = "f32"
	F64   Primitive = "f64"
	Never Primitive = "!"
)

var primitives = map[string]Primitive{}

func init() {
	for _, p := range []Primitive{Bool, Char, Str, I8, I16, I32, I64, I128, Isize, U8, U16, U32, U64, U128, Usize, F32, F64, Never} {
		primitives[string(p)] = p
	}
}

// PrimitiveNamed returns the primitive called name, if there is one
func PrimitiveNamed(name string) (Primitive, bool) {
	p, ok := primitives[name]
	return p, ok
}

// Variable is an inference variable, bound (or not) in a Substitution
type Variable struct {
	ID VarID
}

type Tuple struct {
	Elems []Type
}

// Unit is the empty tuple
var Unit = Tuple{}

type Array struct {
	Elem Type
	Size uint64
}

type Reference struct {
	Region  Region
	Mutable bool
	Inner   Type
}

type RawPointer struct {
	Mutable bool
	Inner   Type
}

type Function struct {
	Params []Type
	Ret    Type
}

// Named is a nominal type that has not been resolved through aliasing,
// possibly applied to region and type arguments, like Ref<'a, Vec<i32>>.
// Region arguments always print before type arguments.
type Named struct {
	Name    string
	Regions []Region
	Args    []Type
}

// IsApplied reports whether n carries generic arguments
func (n Named) IsApplied() bool { return len(n.Regions)+len(n.Args) > 0 }

func (Primitive) isType()  {}
func (Variable) isType()   {}
func (Tuple) isType()      {}
func (Array) isType()      {}
func (Reference) isType()  {}
func (RawPointer) isType() {}
func (Function) isType()   {}
func (Named) isType()      {}

func (p Primitive) String() string { return string(p) }
func (v Variable) String() string  { return fmt.Sprintf("?%d", v.ID) }

func (n Named) String() string {
	if !n.IsApplied() {
		return n.Name
	}
	parts := make([]string, 0, len(n.Regions)+len(n.Args))
	for _, r := range n.Regions {
		if r.IsElided() {
			r = "'_"
		}
		parts = append(parts, string(r))
	}
	for _, arg := range n.Args {
		parts = append(parts, arg.String())
	}
	return n.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (t Tuple) String() string {
	if len(t.Elems) == 1 {
		return "(" + t.Elems[0].String() + ",)"
	}
	return "(" + joinTypes(t.Elems) + ")"
}

func (a Array) String() string {
	return fmt.Sprintf("[%s; %d]", a.Elem, a.Size)
}

func (r Reference) String() string {
	sb := strings.Builder{}
	sb.WriteString("&")
	if !r.Region.IsElided() {
		sb.WriteString(string(r.Region))
		sb.WriteString(" ")
	}
	if r.Mutable {
		sb.WriteString("mut ")
	}
	sb.WriteString(r.Inner.String())
	return sb.String()
}

func (p RawPointer) String() string {
	if p.Mutable {
		return "*mut " + p.Inner.String()
	}
	return "*const " + p.Inner.String()
}

func (f Function) String() string {
	ret := f.Ret
	if ret == nil {
		ret = Unit
	}
	if IsUnit(ret) {
		return "fn(" + joinTypes(f.Params) + ")"
	}
	return "fn(" + joinTypes(f.Params) + ") -> " + ret.String()
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (p Primitive) Hash() uint64  { return hashString(p.String()) }
func (v Variable) Hash() uint64   { return hashString(v.String()) }
func (t Tuple) Hash() uint64      { return hashString(t.String()) }
func (a Array) Hash() uint64      { return hashString(a.String()) }
func (r Reference) Hash() uint64  { return hashString(r.String()) }
func (p RawPointer) Hash() uint64 { return hashString(p.String()) }
func (f Function) Hash() uint64   { return hashString(f.String()) }
func (n Named) Hash() uint64      { return hashString(n.String()) }

func IsUnit(t Type) bool {
	tup, ok := t.(Tuple)
	return ok && len(tup.Elems) == 0
}

// IsIntegral reports whether p is one of the signed or unsigned integer primitives
func (p Primitive) IsIntegral() bool {
	switch p {
	case I8, I16, I32, I64, I128, Isize, U8, U16, U32, U64, U128, Usize:
		return true
	}
	return false
}

func (p Primitive) IsSigned() bool {
	switch p {
	case I8, I16, I32, I64, I128, Isize:
		return true
	}
	return false
}

// BitSize is the width of an integral primitive, with isize and usize taken as 64 bits
func (p Primitive) BitSize() int {
	switch p {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32:
		return 32
	case I64, U64, Isize, Usize:
		return 64
	case I128, U128:
		return 128
	}
	return 0
}
