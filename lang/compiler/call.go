package compiler

import (
	"strings"

	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
)

// parseCall dispatches a `name(...)` call expression. The four compiler
// intrinsics (Float, Int, typeOf, assert) and the print family get
// dedicated codegen (spec.md §4.3.3, §9); everything else resolves
// through the ordinary overload ring.
func (c *Compiler) parseCall(name string, nameTok lexer.Token) stackSlot {
	switch name {
	case "Float":
		return c.callConvert(nameTok, true)
	case "Int":
		return c.callConvert(nameTok, false)
	case "typeOf":
		return c.callTypeOf(nameTok)
	case "assert":
		return c.callAssert(nameTok)
	case "print":
		return c.callPrint(nameTok, false)
	case "printLn":
		return c.callPrint(nameTok, true)
	}
	return c.callUser(name, nameTok)
}

// parseArgList consumes `(` arg, arg, ... `)`, returning each argument's
// stackSlot. Used by every call form that does not need bespoke argument
// handling.
func (c *Compiler) parseArgList() []stackSlot {
	c.expect(token.LPAREN)
	c.skipEOLs()
	var args []stackSlot
	if c.cur().Kind != token.RPAREN {
		for {
			args = append(args, c.expression())
			c.skipEOLs()
			if c.cur().Kind != token.COMMA {
				break
			}
			c.advanceTok()
			c.skipEOLs()
		}
	}
	c.expect(token.RPAREN)
	return args
}

// callUser resolves name(args) against the overload ring and emits a
// Call or CallNative instruction (spec.md §4.3.3, §4.3.4).
func (c *Compiler) callUser(name string, nameTok lexer.Token) stackSlot {
	args := c.parseArgList()

	head, ok := c.prog.FunctionHead(name)
	if !ok {
		c.errorfAt(c.posOf(nameTok), "call to undeclared function '%s'", name)
		return stackSlot{Type: nil}
	}

	fn, matchErr := resolveOverload(head, args)
	if fn == nil {
		c.errorfAt(c.posOf(nameTok), "%s", matchErr)
		return stackSlot{Type: nil}
	}

	c.propagateEarliestCall(fn, nameTok)

	if fn.Mode == ir.Native {
		c.emit(ir.Instruction{Op: ir.CallNative, Fn: fn})
		if fn.RetType == c.prog.Types.Null {
			// CallNative pushes nothing for a Null-returning native (spec.md
			// §4.4); push one explicitly so every call expression leaves
			// exactly one value on the stack, matching a Blik-mode
			// function's ReturnNull.
			c.emit(ir.Instruction{Op: ir.PushNull})
		}
	} else {
		c.emit(ir.Instruction{Op: ir.Call, Fn: fn})
	}
	return stackSlot{Type: fn.RetType}
}

// resolveOverload picks the first ring member whose parameter signature
// matches args, honoring a variadic prototype matching a fixed prefix
// plus any remaining arguments (spec.md §4.3.3). On failure it returns a
// formatted list of every candidate's signature.
func resolveOverload(head *ir.FunctionInfo, args []stackSlot) (*ir.FunctionInfo, string) {
	members := ir.RingMembers(head)
	for _, fn := range members {
		if overloadMatches(fn, args) {
			return fn, ""
		}
	}
	var sb strings.Builder
	sb.WriteString("no overload of '")
	sb.WriteString(head.Name)
	sb.WriteString("' matches the given arguments; candidates:")
	for _, fn := range members {
		sb.WriteString("\n  ")
		sb.WriteString(fn.Signature)
	}
	return nil, sb.String()
}

func overloadMatches(fn *ir.FunctionInfo, args []stackSlot) bool {
	if fn.Variadic {
		if len(args) < len(fn.Params) {
			return false
		}
	} else if len(args) != len(fn.Params) {
		return false
	}
	for i, p := range fn.Params {
		if args[i].Type != p.Type {
			return false
		}
	}
	return true
}

// propagateEarliestCall records the earliest point from which fn is known
// reachable, propagated transitively through the caller (spec.md §4.3.3
// "Global-before-use across functions", §9).
func (c *Compiler) propagateEarliestCall(fn *ir.FunctionInfo, at lexer.Token) {
	effectiveAddr := c.here()
	effectivePos := c.posOf(at)
	if c.curFunc != nil {
		effectiveAddr = c.curFunc.EarliestCallAddr
		effectivePos = c.curFunc.EarliestCallPos
	}
	if effectiveAddr < fn.EarliestCallAddr {
		fn.EarliestCallAddr = effectiveAddr
		fn.EarliestCallPos = effectivePos
	}
}
