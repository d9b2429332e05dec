// Package types implements the language's type registry: a singleton
// TypeInfo per primitive, interned by signature string. Identity is by
// pointer, so the first-class Type value returned by typeOf(x) compares
// equal only to the exact same primitive.
package types

// Primitive identifies which of the fixed set of primitive kinds a
// TypeInfo describes. User-defined aggregate types are out of scope
// (spec.md §1 non-goals); the set below is closed.
type Primitive uint8

const (
	Null Primitive = iota
	Bool
	Int
	Float
	String
	TypeKind // the type of a first-class Type value itself
)

func (p Primitive) String() string {
	switch p {
	case Null:
		return "Null"
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case TypeKind:
		return "Type"
	default:
		return "<invalid primitive>"
	}
}

// Info is the runtime descriptor for a type. Only primitives exist today;
// Signature is the name under which it is registered and looked up.
type Info struct {
	Signature string
	Primitive Primitive
}

func (t *Info) String() string { return t.Signature }

// Registry holds the singleton Info per primitive, interned by signature.
// A Program embeds one Registry; it is created once per Program and never
// mutated after the six primitives are inserted (structurally open to
// future user-defined types, per spec.md §4.2, but nothing in this
// specification registers any).
type Registry struct {
	byName map[string]*Info
	all    []*Info

	Null   *Info
	Bool   *Info
	Int    *Info
	Float  *Info
	String *Info
	Type   *Info
}

// NewRegistry creates a Registry with the six built-in primitives already
// interned.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Info, 6)}
	r.Null = r.intern("Null", Null)
	r.Bool = r.intern("Bool", Bool)
	r.Int = r.intern("Int", Int)
	r.Float = r.intern("Float", Float)
	r.String = r.intern("String", String)
	r.Type = r.intern("Type", TypeKind)
	return r
}

func (r *Registry) intern(signature string, prim Primitive) *Info {
	info := &Info{Signature: signature, Primitive: prim}
	r.byName[signature] = info
	r.all = append(r.all, info)
	return info
}

// Lookup returns the Info registered under signature, if any.
func (r *Registry) Lookup(signature string) (*Info, bool) {
	info, ok := r.byName[signature]
	return info, ok
}

// All returns every registered Info in insertion order.
func (r *Registry) All() []*Info { return r.all }

// ByPrimitive returns the singleton Info for a primitive kind.
func (r *Registry) ByPrimitive(p Primitive) *Info {
	switch p {
	case Null:
		return r.Null
	case Bool:
		return r.Bool
	case Int:
		return r.Int
	case Float:
		return r.Float
	case String:
		return r.String
	case TypeKind:
		return r.Type
	default:
		return nil
	}
}
