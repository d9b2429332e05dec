package compiler

import (
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
	"github.com/blik-lang/blik/lang/types"
)

// precedence returns the binary precedence of k (spec.md §4.3.3), or -1 if
// k cannot continue a binary expression. isAssign distinguishes the
// right-associative assignment family, which share precedence 0.
func precedence(k token.Kind) (prec int, isAssign bool, ok bool) {
	switch k {
	case token.COLONEQ, token.PLUSEQ, token.MINUSEQ, token.STAREQ, token.SLASHEQ,
		token.PCTEQ, token.SHLEQ, token.SHREQ, token.ROLEQ, token.ROREQ,
		token.ANDEQ, token.OREQ, token.XOREQ:
		return 0, true, true
	case token.OROR:
		return 2, false, true
	case token.ANDAND:
		return 3, false, true
	case token.EQEQ, token.NEQ, token.EQ:
		return 4, false, true
	case token.LT, token.LE, token.GT, token.GE:
		return 5, false, true
	case token.PIPE:
		return 6, false, true
	case token.XOR:
		return 7, false, true
	case token.AMP:
		return 8, false, true
	case token.SHL, token.SHR, token.ROL, token.ROR:
		return 9, false, true
	case token.PLUS, token.MINUS:
		return 10, false, true
	case token.STAR, token.SLASH, token.PCT:
		return 11, false, true
	}
	return -1, false, false
}

// expression parses a full expression at the lowest precedence.
func (c *Compiler) expression() stackSlot {
	return c.parseBinary(0)
}

func (c *Compiler) parseBinary(minPrec int) stackSlot {
	left := c.parseUnary()
	for {
		opTok := c.cur()
		prec, isAssign, ok := precedence(opTok.Kind)
		if !ok || prec < minPrec {
			return left
		}
		c.advanceTok()

		switch {
		case isAssign:
			left = c.parseAssignment(left, opTok)
		case opTok.Kind == token.ANDAND:
			left = c.parseShortCircuit(left, true, prec)
		case opTok.Kind == token.OROR:
			left = c.parseShortCircuit(left, false, prec)
		case opTok.Kind == token.EQ:
			c.errorfAt(c.posOf(opTok), "unexpected token '=', did you mean ':=' or '=='?")
			right := c.parseBinary(prec + 1)
			left = c.emitComparison(opTok, left, right)
		default:
			right := c.parseBinary(prec + 1)
			left = c.emitBinary(opTok, left, right)
		}
	}
}

// parseAssignment handles `:=` and the compound-assignment family. left
// must already carry a live Var back-pointer for the target to be a legal
// lvalue (spec.md §4.3.3).
func (c *Compiler) parseAssignment(left stackSlot, opTok lexer.Token) stackSlot {
	v := left.Var
	if v == nil {
		c.errorfAt(c.posOf(opTok), "cannot assign to a temporary value; left operand must be a variable")
		right := c.parseBinary(0)
		return stackSlot{Type: right.Type}
	}
	if !v.IsMutable {
		d := c.errorfAt(c.posOf(opTok), "cannot assign to non-mutable variable '%s'", v.Name)
		d.AddHint(c.posOf(opTok), "variable '%s' is defined without 'mut'", v.Name)
	}

	if opTok.Kind == token.COLONEQ {
		c.removeLastLoad()
		right := c.parseBinary(0)
		if right.Type != v.Type && v.Type != nil && right.Type != nil {
			d := c.errorfAt(c.posOf(opTok), "cannot assign %s value to variable '%s' (defined as %s)", right.Type, v.Name, v.Type)
			d.AddHint(c.posOf(opTok), "variable '%s' is defined here as %s", v.Name, v.Type)
		}
		c.emitCopy(v)
		return stackSlot{Type: v.Type}
	}

	baseOp, _ := token.IsCompoundAssign(opTok.Kind)
	right := c.parseBinary(0)
	c.emitCompoundOp(opTok, baseOp, v, right)
	c.emitCopy(v)
	return stackSlot{Type: v.Type}
}

// removeLastLoad deletes the most recently emitted instruction if it is a
// bare variable Load, implementing the "remove useless load" rewrite for
// plain `:=` (the old value is never read).
func (c *Compiler) removeLastLoad() {
	if n := len(c.prog.IR); n > 0 && isLoadOpcode(c.prog.IR[n-1].Op) {
		c.prog.IR = c.prog.IR[:n-1]
	}
}

func (c *Compiler) emitCopy(v *ir.VariableInfo) {
	if v.Type == nil {
		return
	}
	var op ir.Opcode
	if v.IsGlobal {
		switch v.Type.Primitive {
		case types.Bool:
			op = ir.CopyBool
		case types.Int:
			op = ir.CopyInt
		case types.Float:
			op = ir.CopyFloat
		case types.String:
			op = ir.CopyString
		case types.TypeKind:
			op = ir.CopyType
		default:
			return
		}
	} else {
		switch v.Type.Primitive {
		case types.Bool:
			op = ir.CopyLocalBool
		case types.Int:
			op = ir.CopyLocalInt
		case types.Float:
			op = ir.CopyLocalFloat
		case types.String:
			op = ir.CopyLocalString
		case types.TypeKind:
			op = ir.CopyLocalType
		default:
			return
		}
	}
	c.emit(ir.Instruction{Op: op, N: int64(v.Offset)})
}

func (c *Compiler) emitLoad(v *ir.VariableInfo) {
	if v.Type == nil {
		c.emit(ir.Instruction{Op: ir.PushNull})
		return
	}
	var op ir.Opcode
	if v.IsGlobal {
		switch v.Type.Primitive {
		case types.Bool:
			op = ir.LoadGlobalBool
		case types.Int:
			op = ir.LoadGlobalInt
		case types.Float:
			op = ir.LoadGlobalFloat
		case types.String:
			op = ir.LoadGlobalString
		case types.TypeKind:
			op = ir.LoadGlobalType
		default:
			c.emit(ir.Instruction{Op: ir.PushNull})
			return
		}
	} else {
		switch v.Type.Primitive {
		case types.Bool:
			op = ir.LoadLocalBool
		case types.Int:
			op = ir.LoadLocalInt
		case types.Float:
			op = ir.LoadLocalFloat
		case types.String:
			op = ir.LoadLocalString
		case types.TypeKind:
			op = ir.LoadLocalType
		default:
			c.emit(ir.Instruction{Op: ir.PushNull})
			return
		}
	}
	c.emit(ir.Instruction{Op: op, N: int64(v.Offset)})
}

// emitCompoundOp emits the arithmetic/bitwise op that a compound
// assignment combines with storage, selected by the target's declared
// type (spec.md §4.3.3 "the emitter writes the combined arithmetic").
func (c *Compiler) emitCompoundOp(opTok lexer.Token, baseOp token.Kind, v *ir.VariableInfo, right stackSlot) {
	if v.Type == nil || right.Type == nil {
		return
	}
	if right.Type != v.Type {
		c.errorfAt(c.posOf(opTok), "cannot use %s value with '%s' on variable '%s' (defined as %s)",
			right.Type, opTok.Kind, v.Name, v.Type)
		return
	}
	isInt := v.Type.Primitive == types.Int
	isFloat := v.Type.Primitive == types.Float
	var op ir.Opcode
	switch baseOp {
	case token.PLUS:
		if isInt {
			op = ir.AddInt
		} else if isFloat {
			op = ir.AddFloat
		}
	case token.MINUS:
		if isInt {
			op = ir.SubstractInt
		} else if isFloat {
			op = ir.SubstractFloat
		}
	case token.STAR:
		if isInt {
			op = ir.MultiplyInt
		} else if isFloat {
			op = ir.MultiplyFloat
		}
	case token.SLASH:
		if isInt {
			op = ir.DivideInt
		} else if isFloat {
			op = ir.DivideFloat
		}
	case token.PCT:
		if isInt {
			op = ir.ModuloInt
		}
	case token.AMP:
		if isInt {
			op = ir.AndInt
		}
	case token.PIPE:
		if isInt {
			op = ir.OrInt
		}
	case token.XOR:
		if isInt {
			op = ir.XorInt
		}
	case token.SHL:
		if isInt {
			op = ir.LeftShiftInt
		}
	case token.SHR:
		if isInt {
			op = ir.RightShiftInt
		}
	case token.ROL:
		if isInt {
			op = ir.LeftRotateInt
		}
	case token.ROR:
		if isInt {
			op = ir.RightRotateInt
		}
	}
	if op == 0 {
		c.errorfAt(c.posOf(opTok), "cannot use '%s' on a %s value", opTok.Kind, v.Type)
		return
	}
	c.emit(ir.Instruction{Op: op})
}

// parseShortCircuit implements `&&`/`||` (spec.md §4.3.3, §9): SkipIfFalse
// / SkipIfTrue peek the left operand without popping it; if it determines
// the whole expression's value they leave it as the sole result, otherwise
// execution falls through to evaluate the right operand and merge with
// AndBool/OrBool.
func (c *Compiler) parseShortCircuit(left stackSlot, isAnd bool, prec int) stackSlot {
	if left.Type != c.prog.Types.Bool {
		c.errorf("operand of '%s' must be Bool", condName(isAnd))
	}
	var branchAddr int
	if isAnd {
		branchAddr = c.emit(ir.Instruction{Op: ir.SkipIfFalse})
	} else {
		branchAddr = c.emit(ir.Instruction{Op: ir.SkipIfTrue})
	}

	right := c.parseBinary(prec + 1)
	if right.Type != c.prog.Types.Bool {
		c.errorf("operand of '%s' must be Bool", condName(isAnd))
	}

	if isAnd {
		c.emit(ir.Instruction{Op: ir.AndBool})
	} else {
		c.emit(ir.Instruction{Op: ir.OrBool})
	}
	c.patchJump(branchAddr, c.here())
	return stackSlot{Type: c.prog.Types.Bool}
}

func condName(isAnd bool) string {
	if isAnd {
		return "&&"
	}
	return "||"
}

// emitBinary handles every non-assignment, non-short-circuit binary
// operator: arithmetic, bitwise, and comparisons.
func (c *Compiler) emitBinary(opTok lexer.Token, left, right stackSlot) stackSlot {
	if left.Type == nil || right.Type == nil {
		return stackSlot{Type: nil}
	}
	if token.IsComparison(opTok.Kind) {
		return c.emitComparison(opTok, left, right)
	}

	if left.Type != right.Type {
		c.errorfAt(c.posOf(opTok), "cannot use '%s' operator on %s and %s values", opTok.Kind, left.Type, right.Type)
		return stackSlot{Type: left.Type}
	}

	isInt := left.Type.Primitive == types.Int
	isFloat := left.Type.Primitive == types.Float
	isBool := left.Type.Primitive == types.Bool

	var op ir.Opcode
	resultType := left.Type
	switch opTok.Kind {
	case token.PLUS:
		if isInt {
			op = ir.AddInt
		} else if isFloat {
			op = ir.AddFloat
		}
	case token.MINUS:
		if isInt {
			op = ir.SubstractInt
		} else if isFloat {
			op = ir.SubstractFloat
		}
	case token.STAR:
		if isInt {
			op = ir.MultiplyInt
		} else if isFloat {
			op = ir.MultiplyFloat
		}
	case token.SLASH:
		if isInt {
			op = ir.DivideInt
		} else if isFloat {
			op = ir.DivideFloat
		}
	case token.PCT:
		if isInt {
			op = ir.ModuloInt
		}
	case token.AMP:
		if isInt {
			op = ir.AndInt
		} else if isBool {
			op = ir.AndBool
		}
	case token.PIPE:
		if isInt {
			op = ir.OrInt
		} else if isBool {
			op = ir.OrBool
		}
	case token.XOR:
		if isInt {
			op = ir.XorInt
		} else if isBool {
			op = ir.NotEqualBool
		}
	case token.SHL:
		if isInt {
			op = ir.LeftShiftInt
		}
	case token.SHR:
		if isInt {
			op = ir.RightShiftInt
		}
	case token.ROL:
		if isInt {
			op = ir.LeftRotateInt
		}
	case token.ROR:
		if isInt {
			op = ir.RightRotateInt
		}
	}
	if op == 0 {
		c.errorfAt(c.posOf(opTok), "cannot use '%s' operator on %s values", opTok.Kind, left.Type)
		return stackSlot{Type: left.Type}
	}
	c.emit(ir.Instruction{Op: op})
	return stackSlot{Type: resultType}
}

func (c *Compiler) emitComparison(opTok lexer.Token, left, right stackSlot) stackSlot {
	if left.Type == nil || right.Type == nil {
		return stackSlot{Type: c.prog.Types.Bool}
	}
	if left.Type != right.Type {
		c.errorfAt(c.posOf(opTok), "cannot compare %s and %s values", left.Type, right.Type)
		return stackSlot{Type: c.prog.Types.Bool}
	}
	eq := opTok.Kind == token.EQEQ || opTok.Kind == token.EQ
	var op ir.Opcode
	switch left.Type.Primitive {
	case types.Int:
		switch opTok.Kind {
		case token.EQEQ, token.EQ:
			op = ir.EqualInt
		case token.NEQ:
			op = ir.NotEqualInt
		case token.LT:
			op = ir.LessThanInt
		case token.LE:
			op = ir.LessOrEqualInt
		case token.GT:
			op = ir.GreaterThanInt
		case token.GE:
			op = ir.GreaterOrEqualInt
		}
	case types.Float:
		switch opTok.Kind {
		case token.EQEQ, token.EQ:
			op = ir.EqualFloat
		case token.NEQ:
			op = ir.NotEqualFloat
		case token.LT:
			op = ir.LessThanFloat
		case token.LE:
			op = ir.LessOrEqualFloat
		case token.GT:
			op = ir.GreaterThanFloat
		case token.GE:
			op = ir.GreaterOrEqualFloat
		}
	case types.Bool:
		if eq {
			op = ir.EqualBool
		} else if opTok.Kind == token.NEQ {
			op = ir.NotEqualBool
		}
	case types.TypeKind:
		if eq {
			op = ir.EqualType
		} else if opTok.Kind == token.NEQ {
			op = ir.NotEqualType
		}
	}
	if op == 0 {
		c.errorfAt(c.posOf(opTok), "cannot compare %s values with '%s'", left.Type, opTok.Kind)
		return stackSlot{Type: c.prog.Types.Bool}
	}
	c.emit(ir.Instruction{Op: op})
	return stackSlot{Type: c.prog.Types.Bool}
}

// parseUnary handles prefix `+ - ! ~` (precedence 12) and defers to
// parsePrimary otherwise.
func (c *Compiler) parseUnary() stackSlot {
	switch c.cur().Kind {
	case token.MINUS:
		c.advanceTok()
		operand := c.parseUnary()
		return c.foldNegate(operand)
	case token.PLUS:
		c.advanceTok()
		operand := c.parseUnary()
		if operand.Type != nil && operand.Type.Primitive != types.Int && operand.Type.Primitive != types.Float {
			c.errorf("unary '+' requires an Int or Float operand")
		}
		return stackSlot{Type: operand.Type}
	case token.BANG:
		c.advanceTok()
		operand := c.parseUnary()
		if operand.Type != nil && operand.Type != c.prog.Types.Bool {
			c.errorf("unary '!' requires a Bool operand")
		} else {
			c.emit(ir.Instruction{Op: ir.NotBool})
		}
		return stackSlot{Type: c.prog.Types.Bool}
	case token.TILDE:
		c.advanceTok()
		operand := c.parseUnary()
		if operand.Type != nil && operand.Type != c.prog.Types.Int {
			c.errorf("unary '~' requires an Int operand")
		} else {
			c.emit(ir.Instruction{Op: ir.ComplementInt})
		}
		return stackSlot{Type: c.prog.Types.Int}
	}
	return c.parsePrimary()
}

// foldNegate implements the spec's unary-minus peephole: negating a just
// emitted literal flips it in place; negating a Negate instruction deletes
// it (involution); otherwise a real Negate opcode is emitted.
func (c *Compiler) foldNegate(operand stackSlot) stackSlot {
	if n := len(c.prog.IR); n > 0 {
		last := &c.prog.IR[n-1]
		switch last.Op {
		case ir.PushInt:
			last.N = -last.N
			return operand
		case ir.PushFloat:
			last.F = -last.F
			return operand
		case ir.NegateInt, ir.NegateFloat:
			c.prog.IR = c.prog.IR[:n-1]
			return operand
		}
	}
	if operand.Type == nil {
		return operand
	}
	switch operand.Type.Primitive {
	case types.Int:
		c.emit(ir.Instruction{Op: ir.NegateInt})
	case types.Float:
		c.emit(ir.Instruction{Op: ir.NegateFloat})
	default:
		c.errorf("unary '-' requires an Int or Float operand")
	}
	return operand
}
