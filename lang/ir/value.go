package ir

import (
	"strconv"

	"github.com/blik-lang/blik/lang/types"
)

// Value is the VM's runtime representation of a scalar. The reference
// implementation this was distilled from stores Value as an untagged
// 64-bit union and relies on the surrounding opcode to know which field is
// live; Go has no safe untagged union, so Value carries an explicit Kind
// tag instead — the idiomatic-Go rendition of the same "one machine word"
// idea (see DESIGN.md).
type Value struct {
	Kind types.Primitive
	B    bool
	I    int64
	D    float64
	Str  *string     // interned; pointer-stable per spec.md §3 invariant (iii)
	Type *types.Info
	Func *FunctionInfo
}

// Null is the zero Value.
var Null = Value{Kind: types.Null}

func Bool(b bool) Value          { return Value{Kind: types.Bool, B: b} }
func Int(i int64) Value          { return Value{Kind: types.Int, I: i} }
func Float(d float64) Value      { return Value{Kind: types.Float, D: d} }
func String(s *string) Value     { return Value{Kind: types.String, Str: s} }
func TypeValue(t *types.Info) Value { return Value{Kind: types.TypeKind, Type: t} }

// IsNull reports whether v holds the Null value.
func (v Value) IsNull() bool { return v.Kind == types.Null }

// TypeOf returns the registered Info describing v's runtime type.
func (v Value) TypeOf(reg *types.Registry) *types.Info {
	if v.Kind == types.TypeKind {
		return reg.Type
	}
	return reg.ByPrimitive(v.Kind)
}

func (v Value) String() string {
	switch v.Kind {
	case types.Null:
		return "null"
	case types.Bool:
		if v.B {
			return "true"
		}
		return "false"
	case types.Int:
		return strconv.FormatInt(v.I, 10)
	case types.Float:
		return strconv.FormatFloat(v.D, 'g', -1, 64)
	case types.String:
		if v.Str == nil {
			return ""
		}
		return *v.Str
	case types.TypeKind:
		if v.Type == nil {
			return "<type>"
		}
		return v.Type.Signature
	default:
		return "<invalid value>"
	}
}
