package compiler

import (
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
)

// parsePrimary parses a literal, parenthesized expression, variable
// reference, or call.
func (c *Compiler) parsePrimary() stackSlot {
	t := c.cur()
	switch t.Kind {
	case token.INT:
		c.advanceTok()
		c.emit(ir.Instruction{Op: ir.PushInt, N: t.Int})
		return stackSlot{Type: c.prog.Types.Int}
	case token.FLOAT:
		c.advanceTok()
		c.emit(ir.Instruction{Op: ir.PushFloat, F: t.Float})
		return stackSlot{Type: c.prog.Types.Float}
	case token.STRING:
		c.advanceTok()
		c.emit(ir.Instruction{Op: ir.PushString, S: c.prog.Intern(t.Str)})
		return stackSlot{Type: c.prog.Types.String}
	case token.BOOL:
		c.advanceTok()
		c.emit(ir.Instruction{Op: ir.PushBool, N: boolToInt(t.Bool)})
		return stackSlot{Type: c.prog.Types.Bool}
	case token.NULLLIT:
		c.advanceTok()
		c.emit(ir.Instruction{Op: ir.PushNull})
		return stackSlot{Type: c.prog.Types.Null}
	case token.LPAREN:
		c.advanceTok()
		c.skipEOLs()
		inner := c.expression()
		c.skipEOLs()
		c.expect(token.RPAREN)
		inner.Var = nil // a parenthesized lvalue is not itself assignable context
		return inner
	case token.IDENT:
		return c.parseIdentifier()
	}
	c.errorf("expected a value, found %s", c.describe(t))
	c.advanceTok()
	return stackSlot{Type: nil}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// parseIdentifier resolves ident as either a call (if followed by '(') or
// a variable reference.
func (c *Compiler) parseIdentifier() stackSlot {
	nameTok := c.advanceTok()
	name := nameTok.Str

	if c.cur().Kind == token.LPAREN {
		return c.parseCall(name, nameTok)
	}

	v, ok := c.lookupVariable(name)
	if !ok {
		c.errorfAt(c.posOf(nameTok), "undeclared identifier '%s'", name)
		return stackSlot{Type: nil}
	}
	if v.Poisoned {
		return stackSlot{Type: nil}
	}
	c.checkGlobalReady(v, nameTok)
	c.emitLoad(v)
	return stackSlot{Type: v.Type, Var: v}
}

// checkGlobalReady implements the global-before-use-across-functions check
// (spec.md §4.3.3, §9): reading a global from within a function whose
// earliest possible call site precedes the global's ready address is an
// error, propagated transitively via EarliestCallAddr.
func (c *Compiler) checkGlobalReady(v *ir.VariableInfo, at lexer.Token) {
	if !v.IsGlobal || c.curFunc == nil {
		return
	}
	if c.curFunc.EarliestCallAddr < v.ReadyAddr {
		d := c.errorfAt(c.posOf(at), "function '%s' may be called before variable '%s' exists", c.curFunc.Name, v.Name)
		d.AddHint(c.curFunc.EarliestCallPos, "function call happens here (possibly indirectly)")
	}
}
