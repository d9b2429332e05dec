package compiler

import (
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
)

// callConvert implements Float(x)/Int(x): identity-elided when the
// argument is already the target type, else a single IntToFloat/
// FloatToInt instruction (spec.md §9 "conversion intrinsics").
func (c *Compiler) callConvert(nameTok lexer.Token, toFloat bool) stackSlot {
	c.expect(token.LPAREN)
	c.skipEOLs()
	arg := c.expression()
	c.skipEOLs()
	c.expect(token.RPAREN)

	if arg.Type == nil {
		return stackSlot{Type: nil}
	}

	target := c.prog.Types.Int
	if toFloat {
		target = c.prog.Types.Float
	}
	if arg.Type == target {
		return stackSlot{Type: target}
	}
	if toFloat && arg.Type == c.prog.Types.Int {
		c.emit(ir.Instruction{Op: ir.IntToFloat})
		return stackSlot{Type: c.prog.Types.Float}
	}
	if !toFloat && arg.Type == c.prog.Types.Float {
		c.emit(ir.Instruction{Op: ir.FloatToInt})
		return stackSlot{Type: c.prog.Types.Int}
	}
	name := "Int"
	if toFloat {
		name = "Float"
	}
	c.errorfAt(c.posOf(nameTok), "%s() expects an Int or Float argument, found %s", name, arg.Type)
	return stackSlot{Type: target}
}

// callTypeOf implements typeOf(x): x is never evaluated at runtime, only
// its compile-time type is needed, so its instructions are parsed then
// discarded and a single PushType of the argument's static type is
// emitted instead (spec.md §9 "typeOf does not evaluate its argument").
func (c *Compiler) callTypeOf(_ lexer.Token) stackSlot {
	c.expect(token.LPAREN)
	c.skipEOLs()
	markBefore := c.here()
	arg := c.expression()
	c.skipEOLs()
	c.expect(token.RPAREN)

	c.prog.IR = c.prog.IR[:markBefore]

	argType := arg.Type
	if argType == nil {
		argType = c.prog.Types.Null
	}
	c.emit(ir.Instruction{Op: ir.PushType, T: argType})
	return stackSlot{Type: c.prog.Types.Type}
}

// assertNativeName is the hidden native function registered lazily the
// first time assert() is used in a Program, so it shares the same
// Call/CallNative machinery as any other function.
const assertNativeName = "__assert_fail"

// callAssert implements assert(cond) / assert(cond, msg): cond is always
// evaluated; msg, if present, is only evaluated and reported when cond is
// false, so it is lowered to a forward branch around a CallNative to a
// hidden assertion-failure native (added beyond spec.md, grounded on the
// original's ParseExpression intrinsic dispatch for short-circuit-style
// lazy argument evaluation).
func (c *Compiler) callAssert(nameTok lexer.Token) stackSlot {
	c.expect(token.LPAREN)
	c.skipEOLs()
	cond := c.expression()
	if cond.Type != nil && cond.Type != c.prog.Types.Bool {
		c.errorfAt(c.posOf(nameTok), "assert() expects a Bool condition, found %s", cond.Type)
	}

	hasMsg := false
	c.skipEOLs()
	if c.cur().Kind == token.COMMA {
		c.advanceTok()
		c.skipEOLs()
		hasMsg = true
	}

	skip := c.emit(ir.Instruction{Op: ir.BranchIfTrue})

	if hasMsg {
		msg := c.expression()
		if msg.Type != nil && msg.Type != c.prog.Types.String {
			c.errorfAt(c.posOf(nameTok), "assert() message must be a String, found %s", msg.Type)
		}
	} else {
		c.emit(ir.Instruction{Op: ir.PushString, S: c.prog.Intern("assertion failed")})
	}
	c.skipEOLs()
	c.expect(token.RPAREN)

	fn := c.ensureAssertNative()
	c.emit(ir.Instruction{Op: ir.CallNative, Fn: fn})
	c.patchJump(skip, c.here())

	c.emit(ir.Instruction{Op: ir.PushNull})
	return stackSlot{Type: c.prog.Types.Null}
}

// ensureAssertNative registers the hidden assert-failure native function
// the first time it's needed for this Program (idempotent across REPL
// compile calls).
func (c *Compiler) ensureAssertNative() *ir.FunctionInfo {
	if head, ok := c.prog.FunctionHead(assertNativeName); ok {
		return head
	}
	fn := ir.NewFunctionInfo(assertNativeName, assertNativeName+"(String)",
		[]ir.Param{{Name: "message", Type: c.prog.Types.String}}, c.prog.Types.Null)
	fn.Mode = ir.Native
	fn.NativeFn = func(h ir.NativeHandle, args []ir.Value) (ir.Value, error) {
		msg := ""
		if args[0].Str != nil {
			msg = *args[0].Str
		}
		return ir.Value{}, &ir.AssertionError{Message: msg}
	}
	c.prog.RegisterFunction(fn)
	return fn
}

// callPrint implements print(...)/printLn(...): one Print instruction per
// argument (spec.md §9's resolved Open Question), with printLn appending a
// trailing "\n" literal argument. Print consumes each argument, so a Null
// is pushed as the call's one result value.
func (c *Compiler) callPrint(_ lexer.Token, newline bool) stackSlot {
	c.expect(token.LPAREN)
	c.skipEOLs()
	if c.cur().Kind != token.RPAREN {
		for {
			c.expression()
			c.emit(ir.Instruction{Op: ir.Print})
			c.skipEOLs()
			if c.cur().Kind != token.COMMA {
				break
			}
			c.advanceTok()
			c.skipEOLs()
		}
	}
	c.expect(token.RPAREN)

	if newline {
		c.emit(ir.Instruction{Op: ir.PushString, S: c.prog.Intern("\n")})
		c.emit(ir.Instruction{Op: ir.Print})
	}
	c.emit(ir.Instruction{Op: ir.PushNull})
	return stackSlot{Type: c.prog.Types.Null}
}
