package compiler

import (
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/types"
)

// registerIntrinsics installs the prototypes for the compiler intrinsics
// (Float, Int, typeOf, assert, print, printLn) into prog's overload rings
// as Mode=Intrinsic entries, so that user code attempting to redefine one
// of these names collides with a real FunctionInfo instead of silently
// shadowing compiler-special-cased behavior. Idempotent: a Program already
// carrying these prototypes (e.g. a REPL session reusing the same Program
// across inputs) is left untouched.
func registerIntrinsics(prog *ir.Program) {
	if _, ok := prog.FunctionHead("Float"); ok {
		return
	}
	t := prog.Types

	reg := func(name, sig string, params []ir.Param, ret *types.Info) {
		fn := ir.NewFunctionInfo(name, sig, params, ret)
		fn.Mode = ir.Intrinsic
		prog.RegisterFunction(fn)
	}

	reg("Float", "Float(Int): Float", []ir.Param{{Name: "x", Type: t.Int}}, t.Float)
	reg("Float", "Float(Float): Float", []ir.Param{{Name: "x", Type: t.Float}}, t.Float)
	reg("Int", "Int(Float): Int", []ir.Param{{Name: "x", Type: t.Float}}, t.Int)
	reg("Int", "Int(Int): Int", []ir.Param{{Name: "x", Type: t.Int}}, t.Int)

	// typeOf, assert, print, and printLn accept arguments of any type or
	// arity; their true prototypes aren't expressible in the fixed-arity
	// Param model, so they're registered variadic-of-Null purely as name
	// reservations (never matched by resolveOverload, since calls to them
	// never reach callUser).
	regVariadic := func(name string) {
		fn := ir.NewFunctionInfo(name, name+"(...)", nil, t.Null)
		fn.Mode = ir.Intrinsic
		fn.Variadic = true
		prog.RegisterFunction(fn)
	}
	regVariadic("typeOf")
	regVariadic("assert")
	regVariadic("print")
	regVariadic("printLn")
}
