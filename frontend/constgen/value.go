package constgen

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/rill-lang/rill/frontend/types"
)

type Kind uint8

const (
	_ Kind = iota
	KindInteger
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// ConstValue is the value of a const-generic argument: an Integer, a Bool or a String
type ConstValue interface {
	Kind() Kind
	String() string
	// mangle renders the value as a fragment of a Go-safe identifier
	mangle() string
}

type Integer int64
type Bool bool
type String string

func (Integer) Kind() Kind { return KindInteger }
func (Bool) Kind() Kind    { return KindBool }
func (String) Kind() Kind  { return KindString }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (b Bool) String() string    { return strconv.FormatBool(bool(b)) }
func (s String) String() string  { return strconv.Quote(string(s)) }

func (i Integer) mangle() string {
	if i < 0 {
		return "m" + strconv.FormatUint(uint64(-i), 10)
	}
	return strconv.FormatInt(int64(i), 10)
}
func (b Bool) mangle() string   { return b.String() }
func (s String) mangle() string { return "s" + hex.EncodeToString([]byte(s)) }

// accepts checks that v can inhabit the declared scalar type t
func accepts(t types.Type, v ConstValue) error {
	switch t := t.(type) {
	case types.Primitive:
		switch {
		case t == types.Bool:
			if v.Kind() == KindBool {
				return nil
			}
		case t == types.Str:
			if v.Kind() == KindString {
				return nil
			}
		case t.IsIntegral():
			if i, ok := v.(Integer); ok {
				return inRange(t, i)
			}
		default:
			return fmt.Errorf("'%s' cannot be the type of a const parameter", t)
		}
	case types.Reference:
		if t.Inner == types.Str && !t.Mutable && v.Kind() == KindString {
			return nil
		}
	default:
		return fmt.Errorf("'%s' cannot be the type of a const parameter", t)
	}
	return fmt.Errorf("%s value %s", v.Kind(), v)
}

func inRange(p types.Primitive, i Integer) error {
	bits := p.BitSize()
	if p.IsSigned() {
		if bits >= 64 {
			return nil
		}
		limit := int64(1) << (bits - 1)
		if int64(i) < -limit || int64(i) >= limit {
			return fmt.Errorf("%d overflows %s", i, p)
		}
		return nil
	}
	if i < 0 {
		return fmt.Errorf("negative value %d for unsigned %s", i, p)
	}
	if bits < 64 && uint64(i) >= uint64(1)<<bits {
		return fmt.Errorf("%d overflows %s", i, p)
	}
	return nil
}
