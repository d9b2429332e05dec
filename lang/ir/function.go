package ir

import (
	"math"

	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/token"
	"github.com/blik-lang/blik/lang/types"
)

// Mode identifies how a function's body is provided.
type Mode uint8

const (
	Blik Mode = iota // user-defined, compiled to IR
	Native              // host callback
	Intrinsic           // handled directly by the compiler (Float, Int, typeOf, assert)
)

func (m Mode) String() string {
	switch m {
	case Blik:
		return "blik"
	case Native:
		return "native"
	case Intrinsic:
		return "intrinsic"
	default:
		return "invalid"
	}
}

// Param is one formal parameter of a function prototype.
type Param struct {
	Name string
	Type *types.Info
}

// NoAddr marks a FunctionInfo whose body has not been emitted yet.
const NoAddr = -1

// NativeHandle is the capability surface a native callback receives: it
// may request orderly termination of the run and query/emit diagnostics,
// but nothing else (spec.md §5 "the handle exposes set_interrupt() and
// frame-decode helpers only").
type NativeHandle interface {
	SetInterrupt()
	Interrupted() bool
	Log(level diag.Level, context, message string)
	Frames() []diag.FrameInfo
}

// NativeFunc is the native function ABI: fn(handle, args) -> (value, error).
type NativeFunc func(h NativeHandle, args []Value) (Value, error)

// FunctionInfo describes one function prototype and (for Blik-mode
// functions) its compiled body. Functions sharing a name form a circular
// doubly-linked overload ring; the first definition points to itself.
type FunctionInfo struct {
	Name      string
	Signature string
	Params    []Param
	RetType   *types.Info
	Mode      Mode
	Addr      int // IR address of the body, or NoAddr until emitted
	Variadic  bool

	OverloadPrev, OverloadNext *FunctionInfo

	// EarliestCallAddr/Pos track the earliest point in the IR (by address)
	// from which this function is known to be reachable, propagated
	// transitively from caller to callee so that a global read inside a
	// function body can be checked against every possible call site
	// (spec.md §4.3.3 "Global-before-use across functions").
	EarliestCallAddr int
	EarliestCallPos  token.Position

	TailRecursive bool // at least one call was rewritten to a loop-back jump

	NativeFn NativeFunc
}

// NewFunctionInfo creates a prototype with an unresolved body address and
// an EarliestCallAddr of +infinity (spec.md §4.3.1).
func NewFunctionInfo(name, signature string, params []Param, ret *types.Info) *FunctionInfo {
	fn := &FunctionInfo{
		Name:             name,
		Signature:        signature,
		Params:           params,
		RetType:          ret,
		Addr:             NoAddr,
		EarliestCallAddr: math.MaxInt64,
	}
	fn.OverloadPrev, fn.OverloadNext = fn, fn
	return fn
}

// Overlaps reports whether f and other would be ambiguous overloads: a
// variadic prototype overlaps every other prototype of its name; otherwise
// they overlap on the same arity and pairwise-equal parameter types.
func (f *FunctionInfo) Overlaps(other *FunctionInfo) bool {
	if f.Variadic || other.Variadic {
		return true
	}
	if len(f.Params) != len(other.Params) {
		return false
	}
	for i, p := range f.Params {
		if p.Type != other.Params[i].Type {
			return false
		}
	}
	return true
}

// RingInsert inserts f into the overload ring headed by head (head may be
// nil, meaning no function of this name exists yet) and returns the
// (possibly new) head. f must not already be linked into a ring other than
// itself.
func RingInsert(head, f *FunctionInfo) *FunctionInfo {
	if head == nil {
		f.OverloadPrev, f.OverloadNext = f, f
		return f
	}
	tail := head.OverloadPrev
	tail.OverloadNext = f
	f.OverloadPrev = tail
	f.OverloadNext = head
	head.OverloadPrev = f
	return head
}

// RingMembers returns every function sharing f's overload ring, starting
// at f and following Next.
func RingMembers(f *FunctionInfo) []*FunctionInfo {
	if f == nil {
		return nil
	}
	members := []*FunctionInfo{f}
	for cur := f.OverloadNext; cur != f; cur = cur.OverloadNext {
		members = append(members, cur)
	}
	return members
}
