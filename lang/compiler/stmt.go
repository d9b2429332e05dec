package compiler

import (
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
	"github.com/blik-lang/blik/lang/types"
)

// statement parses and emits exactly one statement, then requires the
// EOL/SEMI/EOF boundary the grammar expects after every statement,
// resyncing to the next boundary on error so one bad statement cannot
// cascade into its neighbors (spec.md §4.3.2). It reports whether the
// statement is guaranteed to return from the enclosing function on every
// path through it.
func (c *Compiler) statement() bool {
	c.markLine(c.cur().Line)
	hasReturn := false
	switch c.cur().Kind {
	case token.BEGIN:
		c.advanceTok()
		c.depth++
		c.pushScope()
		hasReturn = c.statementsUntil(token.END)
		c.popScope()
		c.expect(token.END)
		c.depth--
	case token.FUNC:
		c.funcStatement()
		c.endStatement()
		return false
	case token.RETURN:
		c.returnStatement()
		hasReturn = true
	case token.LET:
		c.letStatement()
	case token.IF:
		hasReturn = c.ifStatement()
	case token.WHILE:
		c.whileStatement()
	case token.FOR:
		c.forStatement()
	case token.BREAK:
		c.advanceTok()
		c.emitBreakOrContinue(true)
	case token.CONTINUE:
		c.advanceTok()
		c.emitBreakOrContinue(false)
	default:
		c.expression()
		c.discardResult()
	}
	c.endStatement()
	return hasReturn
}

// endStatement requires the statement boundary (EOL/SEMI/EOF, or an `end`
// closing the enclosing block on the same line, left for that block's own
// parser to consume) that every statement form must be followed by,
// resyncing on mismatch.
func (c *Compiler) endStatement() {
	switch c.cur().Kind {
	case token.EOL, token.SEMI, token.EOF:
		c.skipEOLs()
		return
	case token.END:
		return
	}
	c.errorf("expected end of statement, found %s", c.describe(c.cur()))
	c.syncToStatementBoundary()
	c.skipEOLs()
}

// statementsUntil parses statements until the current token is stop, ELSE,
// or EOF, returning whether any one of them is guaranteed to return (a
// deliberate over-approximation shared with the original implementation:
// code can follow a guaranteed return without being rejected).
func (c *Compiler) statementsUntil(stop token.Kind) bool {
	hasReturn := false
	for {
		c.skipEOLs()
		if c.atEOF() || c.cur().Kind == stop || c.cur().Kind == token.ELSE {
			return hasReturn
		}
		c.primaryErrorOpen = false
		if c.statement() {
			hasReturn = true
		}
	}
}

// ---- func ---------------------------------------------------------------

// funcStatement parses `func name(params): RetType <body> end`, body being
// either a single `do statement` or a statement block terminated by `end`
// (the `do` form is a generalization beyond the reference grammar, applied
// consistently to if/while/for too — see DESIGN.md).
func (c *Compiler) funcStatement() {
	funcTok := c.advanceTok()
	nameTok, _ := c.expect(token.IDENT)
	name := nameTok.Str

	if c.depth != 0 || c.curFunc != nil {
		c.errorfAt(c.posOf(funcTok), "functions must be defined in top-level scope")
		c.skipPrototypeTokens()
		c.skipFuncBody()
		return
	}

	fn := c.matchPrototype(name)
	c.skipPrototypeTokens()

	if fn == nil {
		c.skipFuncBody()
		return
	}

	jumpOver := c.emit(ir.Instruction{Op: ir.Jump})
	fn.Addr = c.here()

	c.curFunc = fn
	c.varOffset = 0
	c.pushScope()
	savedLocals := c.locals
	c.locals = make(map[string]*ir.VariableInfo, len(fn.Params))
	for _, p := range fn.Params {
		v := &ir.VariableInfo{
			Name: p.Name, Type: p.Type, Offset: c.varOffset,
			IsGlobal: false, IsMutable: false, ReadyAddr: 0, IsParam: true,
		}
		c.varOffset++
		c.locals[p.Name] = v
	}

	hasReturn := c.funcBody()

	if !hasReturn {
		if fn.RetType == c.prog.Types.Null {
			c.emit(ir.Instruction{Op: ir.ReturnNull})
		} else {
			c.errorfAt(c.posOf(nameTok), "function '%s' does not return a value on every path", name)
			c.emit(ir.Instruction{Op: ir.PushNull})
			c.emit(ir.Instruction{Op: ir.Return})
		}
	}

	c.popScopeNoPop()
	c.locals = savedLocals
	c.curFunc = nil
	c.patchJump(jumpOver, c.here())
}

// matchPrototype returns the not-yet-compiled FunctionInfo registered by
// prototypePrePass for name. Overload disambiguation already happened in
// the pre-pass (each textual definition maps to exactly one prototype in
// source order), so the first Blik-mode member still awaiting a body is
// always the right one.
func (c *Compiler) matchPrototype(name string) *ir.FunctionInfo {
	head, ok := c.prog.FunctionHead(name)
	if !ok {
		return nil
	}
	for _, fn := range ir.RingMembers(head) {
		if fn.Mode == ir.Blik && fn.Addr == ir.NoAddr {
			return fn
		}
	}
	return nil
}

// skipPrototypeTokens advances the cursor past `(params): RetType`,
// already registered by the pre-pass; the main walk does not re-validate
// it, only skips it positionally.
func (c *Compiler) skipPrototypeTokens() {
	depth := 0
	for {
		switch c.cur().Kind {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				c.advanceTok()
				if c.cur().Kind == token.COLON {
					c.advanceTok()
					c.advanceTok() // the return type identifier
				}
				return
			}
		case token.EOF:
			return
		}
		c.advanceTok()
	}
}

// funcBody parses a function's body, either `do statement` or a
// `end`-terminated block, returning whether every path returns.
func (c *Compiler) funcBody() bool {
	c.depth++
	defer func() { c.depth-- }()
	if c.cur().Kind == token.DO {
		c.advanceTok()
		return c.doSingleStatement()
	}
	hasReturn := c.statementsUntil(token.END)
	c.expect(token.END)
	return hasReturn
}

// doSingleStatement parses the single statement following `do`, sharing
// the same dispatch as statement() but without the caller needing a
// separate boundary consumption pass (its own endStatement happens via
// the normal statement() path one level up).
func (c *Compiler) doSingleStatement() bool {
	c.primaryErrorOpen = false
	switch c.cur().Kind {
	case token.RETURN:
		c.returnStatement()
		return true
	case token.LET:
		c.letStatement()
	case token.IF:
		return c.ifStatement()
	case token.WHILE:
		c.whileStatement()
	case token.FOR:
		c.forStatement()
	case token.BREAK:
		c.advanceTok()
		c.emitBreakOrContinue(true)
	case token.CONTINUE:
		c.advanceTok()
		c.emitBreakOrContinue(false)
	default:
		c.expression()
		c.discardResult()
	}
	return false
}

// skipFuncBody advances past a function body whose prototype already
// failed validation, so parsing can resynchronize without emitting IR for
// it.
func (c *Compiler) skipFuncBody() {
	if c.cur().Kind == token.DO {
		c.advanceTok()
		c.syncToStatementBoundary()
		return
	}
	depth := 1
	for depth > 0 && !c.atEOF() {
		switch c.cur().Kind {
		case token.IF, token.WHILE, token.FOR, token.BEGIN, token.FUNC:
			depth++
		case token.END:
			depth--
		}
		c.advanceTok()
	}
}

// ---- return ---------------------------------------------------------------

// returnStatement parses `return [expr]`, type-checks the result against
// the enclosing function's declared return type, and applies tail-call
// elimination when the returned expression is a direct self-call (spec.md
// §4.4): the trailing Call to curFunc is rewritten into argument restores
// plus a loop-back Jump to the function's own entry, so a tail-recursive
// function runs in constant stack space.
func (c *Compiler) returnStatement() {
	retTok := c.advanceTok()
	if c.curFunc == nil {
		c.errorfAt(c.posOf(retTok), "return outside a function")
	}

	atExprEnd := c.cur().Kind == token.EOL || c.cur().Kind == token.SEMI || c.cur().Kind == token.EOF
	if atExprEnd {
		if c.curFunc != nil && c.curFunc.RetType != c.prog.Types.Null {
			c.errorfAt(c.posOf(retTok), "function '%s' must return a %s value", c.curFunc.Name, c.curFunc.RetType)
		}
		c.emit(ir.Instruction{Op: ir.ReturnNull})
		return
	}

	val := c.expression()

	if c.curFunc != nil && val.Type != nil && val.Type != c.curFunc.RetType {
		c.errorfAt(c.posOf(retTok), "function '%s' returns %s, found %s", c.curFunc.Name, c.curFunc.RetType, val.Type)
	}

	if c.curFunc != nil && c.tryTailCall() {
		return
	}

	if val.Type == c.prog.Types.Null {
		c.emit(ir.Instruction{Op: ir.Pop, N: 1})
		c.emit(ir.Instruction{Op: ir.ReturnNull})
		return
	}
	c.emit(ir.Instruction{Op: ir.Return})
}

// tryTailCall detects that the last instruction emitted is a Call to the
// currently-open function and, if so, rewrites it in place: the
// already-pushed arguments are stored back into the current frame's
// parameter slots (in reverse push order, since they come off the stack
// LIFO) and control jumps to the function's entry instead of allocating a
// new frame (spec.md §4.4).
func (c *Compiler) tryTailCall() bool {
	if len(c.prog.IR) == 0 {
		return false
	}
	last := len(c.prog.IR) - 1
	if c.prog.IR[last].Op != ir.Call || c.prog.IR[last].Fn != c.curFunc {
		return false
	}

	c.prog.IR = c.prog.IR[:last]
	n := len(c.curFunc.Params)
	for i := n - 1; i >= 0; i-- {
		c.emit(storeLocalFor(c.curFunc.Params[i].Type, int64(i)))
	}
	addr := c.emit(ir.Instruction{Op: ir.Jump})
	c.patchJump(addr, c.curFunc.Addr)
	c.curFunc.TailRecursive = true
	return true
}

func storeLocalFor(t *types.Info, offset int64) ir.Instruction {
	op := ir.StoreLocalInt
	switch t.Primitive {
	case types.Bool:
		op = ir.StoreLocalBool
	case types.Int:
		op = ir.StoreLocalInt
	case types.Float:
		op = ir.StoreLocalFloat
	case types.String:
		op = ir.StoreLocalString
	case types.TypeKind:
		op = ir.StoreLocalType
	}
	return ir.Instruction{Op: op, N: offset}
}

// ---- let ------------------------------------------------------------------

// letStatement parses `let [mut] name [: Type] [:= expr]` (spec.md §4.3.2).
// An un-mutable let whose initializer is a bare reference to another
// un-mutable binding is an alias: no store is emitted, the new name simply
// binds to the same slot. Otherwise, when there is an initializer, no
// explicit store is needed either — the initializer's value is already
// sitting in the slot the new binding claims, since locals/globals are
// just consecutive stack positions growing upward; an uninitialized typed
// declaration pushes an explicit zero value instead.
func (c *Compiler) letStatement() {
	c.advanceTok() // `let`
	mutable := false
	if c.cur().Kind == token.MUT {
		c.advanceTok()
		mutable = true
	}
	nameTok, ok := c.expect(token.IDENT)
	if !ok {
		return
	}
	name := nameTok.Str

	var declaredType *types.Info
	if c.cur().Kind == token.COLON {
		c.advanceTok()
		declaredType = c.parseTypeName()
	}

	hasInit := false
	if c.cur().Kind == token.COLONEQ {
		c.advanceTok()
		hasInit = true
	}

	if hasInit && !mutable && c.tryAlias(name, nameTok, declaredType) {
		return
	}

	var valType *types.Info
	if hasInit {
		val := c.expression()
		valType = val.Type
		if declaredType != nil && valType != nil && valType != declaredType {
			c.errorfAt(c.posOf(nameTok), "'%s' declared as %s, found initializer of type %s", name, declaredType, valType)
		}
	} else {
		if declaredType == nil {
			c.errorfAt(c.posOf(nameTok), "'%s' needs either a type or an initializer", name)
			declaredType = c.prog.Types.Null
		}
		valType = declaredType
		c.emitZeroValue(valType)
	}

	finalType := declaredType
	if finalType == nil {
		finalType = valType
	}

	c.declareBinding(name, mutable, finalType, nameTok)
}

// tryAlias implements the alias-on-immutable-let peephole: `let newname :=
// oldname` where oldname is itself an un-mutable binding of a compatible
// declared type binds newname directly to oldname's VariableInfo (same
// Offset/IsGlobal) and emits no instructions at all.
func (c *Compiler) tryAlias(name string, nameTok lexer.Token, declaredType *types.Info) bool {
	if c.cur().Kind != token.IDENT || c.peekAt(1).Kind == token.LPAREN {
		return false
	}
	src := c.cur()
	v, ok := c.lookupVariable(src.Str)
	if !ok || v.IsMutable || v.Poisoned {
		return false
	}
	if declaredType != nil && declaredType != v.Type {
		return false
	}
	c.advanceTok()
	c.checkGlobalReady(v, src)

	alias := &ir.VariableInfo{
		Name: name, Type: v.Type, Offset: v.Offset, IsGlobal: v.IsGlobal,
		IsMutable: false, ReadyAddr: v.ReadyAddr,
	}
	c.bindLocalOrGlobalAlias(name, alias, nameTok)
	return true
}

// bindLocalOrGlobalAlias installs alias into the same namespace its source
// lives in (global Program table if depth==0 and no enclosing function,
// else the local scope map).
func (c *Compiler) bindLocalOrGlobalAlias(name string, alias *ir.VariableInfo, nameTok lexer.Token) {
	if c.curFunc == nil && c.depth == 0 {
		if existing, ok := c.prog.Global(name); ok {
			alias.Shadow = existing
		}
		c.prog.SetGlobalBinding(name, alias)
		return
	}
	c.bindLocal(name, alias, nameTok)
}

func (c *Compiler) bindLocal(name string, v *ir.VariableInfo, nameTok lexer.Token) {
	existing := c.locals[name]
	if existing != nil && existing.IsParam {
		c.errorfAt(c.posOf(nameTok), "cannot shadow parameter '%s' with a let", name)
	} else if existing == nil {
		if _, ok := c.prog.Global(name); ok {
			c.errorfAt(c.posOf(nameTok), "cannot shadow global '%s' with a let", name)
		}
	}
	v.Shadow = existing
	c.locals[name] = v
	if len(c.scopes) > 0 {
		top := &c.scopes[len(c.scopes)-1]
		top.names = append(top.names, name)
	}
}

// emitZeroValue pushes the zero value for an uninitialized declared type.
func (c *Compiler) emitZeroValue(t *types.Info) {
	switch t.Primitive {
	case types.Bool:
		c.emit(ir.Instruction{Op: ir.PushBool, N: 0})
	case types.Int:
		c.emit(ir.Instruction{Op: ir.PushInt, N: 0})
	case types.Float:
		c.emit(ir.Instruction{Op: ir.PushFloat, F: 0})
	case types.String:
		c.emit(ir.Instruction{Op: ir.PushString, S: c.prog.Intern("")})
	case types.TypeKind:
		c.emit(ir.Instruction{Op: ir.PushType, T: c.prog.Types.Null})
	default:
		c.emit(ir.Instruction{Op: ir.PushNull})
	}
}

// declareBinding binds name to a fresh VariableInfo at global scope (depth
// 0, outside any function) or local scope (inside a function or any
// nested block), claiming the slot the initializer/zero-value just left
// on the stack.
func (c *Compiler) declareBinding(name string, mutable bool, t *types.Info, nameTok lexer.Token) {
	if c.curFunc == nil && c.depth == 0 {
		v := &ir.VariableInfo{Name: name, Type: t, IsMutable: mutable, ReadyAddr: ir.NotReady}
		if existing, ok := c.prog.Global(name); ok {
			c.errorfAt(c.posOf(nameTok), "'%s' is already declared", existing.Name)
		}
		c.prog.DeclareGlobal(v)
		v.ReadyAddr = c.here()
		return
	}
	v := c.declareLocal(name, mutable, false)
	v.Type = t
	v.ReadyAddr = c.here()
}

// ---- if/elseif/else --------------------------------------------------------

// ifStatement parses `if cond <body> [else if cond <body>]* [else <body>] end`
// (spec.md §4.3.2), chaining each branch's exit Jump to the end of the
// whole construct via patchChain, and reports whether every branch
// (including a mandatory else) is guaranteed to return.
func (c *Compiler) ifStatement() bool {
	c.depth++
	defer func() { c.depth-- }()
	c.advanceTok() // `if`
	exitHead := noPrevInChain
	allReturn := true
	haveElse := false
	chained := false // true once a second branch (else/else-if) appears
	firstWasDo := false

	for {
		cond := c.expression()
		if cond.Type != nil && cond.Type != c.prog.Types.Bool {
			c.errorf("if condition must be Bool, found %s", cond.Type)
		}
		branchOver := c.emit(ir.Instruction{Op: ir.BranchIfFalse})

		c.pushScope()
		var bodyReturn bool
		if c.cur().Kind == token.DO && c.peekAt(1).Kind != token.EOL {
			c.advanceTok()
			bodyReturn = c.doSingleStatement()
			if !chained {
				firstWasDo = true
			}
		} else {
			if c.cur().Kind == token.DO {
				c.advanceTok() // `do` ending its line opens an ordinary block
			}
			bodyReturn = c.statementsUntil(token.END)
			if !chained {
				firstWasDo = false
			}
		}
		c.popScope()
		if !bodyReturn {
			allReturn = false
		}

		exitJump := c.emit(ir.Instruction{Op: ir.Jump, N: int64(exitHead)})
		exitHead = exitJump
		c.patchJump(branchOver, c.here())

		if c.cur().Kind == token.ELSE {
			chained = true
			c.advanceTok()
			if c.cur().Kind == token.IF {
				c.advanceTok()
				continue
			}
			haveElse = true
			c.pushScope()
			var elseReturn bool
			if c.cur().Kind == token.DO {
				c.advanceTok()
				elseReturn = c.doSingleStatement()
			} else {
				elseReturn = c.statementsUntil(token.END)
			}
			c.popScope()
			if !elseReturn {
				allReturn = false
			}
		}
		break
	}

	if !haveElse {
		allReturn = false
	}
	// A bare `if cond do stmt` with no else/else-if chain is a one-liner:
	// it has no `end` of its own, matching the original's ParseIf (the
	// `do` branch there never calls ConsumeToken(End)). Any chained form,
	// or a block-bodied if (including one whose `do` ends its line), still
	// closes with `end`.
	if chained || !firstWasDo {
		c.expect(token.END)
	}
	c.patchChain(exitHead, c.here())
	return allReturn
}

// ---- while ------------------------------------------------------------------

// whileStatement parses `while cond <body> end`: the condition is emitted
// once up front behind a forward BranchIfFalse, re-emitted verbatim at the
// loop's tail behind a backward BranchIfTrue (spec.md §4.3.2), by simply
// rewinding the token cursor back to the condition's start and parsing it
// again rather than caching its instructions.
func (c *Compiler) whileStatement() {
	c.depth++
	defer func() { c.depth-- }()
	c.advanceTok() // `while`
	condStart := c.pos

	cond := c.expression()
	if cond.Type != nil && cond.Type != c.prog.Types.Bool {
		c.errorf("while condition must be Bool, found %s", cond.Type)
	}
	exit := c.emit(ir.Instruction{Op: ir.BranchIfFalse})

	c.pushLoop()
	c.pushScope()
	if c.cur().Kind == token.DO {
		c.advanceTok()
		c.doSingleStatement()
	} else {
		c.statementsUntil(token.END)
		c.expect(token.END)
	}
	c.popScope()
	l := c.popLoop()

	c.patchChain(l.continueHead, c.here())

	// Re-parse the condition verbatim to re-emit its instructions at the
	// loop tail; diagnostics were already reported on the first pass, so
	// route this second pass to a scratch list instead of duplicating them.
	savedPos, savedErrs, savedPrimary := c.pos, c.errs, c.primaryErrorOpen
	c.pos = condStart
	c.errs = &diag.List{}
	c.expression()
	c.pos, c.errs, c.primaryErrorOpen = savedPos, savedErrs, savedPrimary

	backAddr := c.emit(ir.Instruction{Op: ir.BranchIfTrue})
	c.patchJump(backAddr, exit+1) // back to the body's first instruction

	c.patchJump(exit, c.here())
	c.patchChain(l.breakHead, c.here())
}

// ---- for --------------------------------------------------------------------

// forStatement parses `for [mut] it in start:end <body> end`: three
// consecutive local slots hold the range start, the exclusive end bound,
// and the loop variable; no step slot is needed since the step is always 1
// (spec.md §4.3.2, and
// DESIGN.md for the chosen 3-slot layout carried from the original's
// `it->offset = var_offset + 2` convention).
func (c *Compiler) forStatement() {
	c.depth++
	defer func() { c.depth-- }()
	c.advanceTok() // `for`
	mutable := false
	if c.cur().Kind == token.MUT {
		c.advanceTok()
		mutable = true
	}
	nameTok, _ := c.expect(token.IDENT)
	c.expect(token.IN)

	c.pushScope()
	startOffset := c.varOffset
	startVal := c.expression() // claims slot startOffset
	if startVal.Type != nil && startVal.Type != c.prog.Types.Int {
		c.errorf("for range start must be Int, found %s", startVal.Type)
	}
	c.expect(token.COLON)
	endVal := c.expression() // claims slot startOffset+1
	if endVal.Type != nil && endVal.Type != c.prog.Types.Int {
		c.errorf("for range end must be Int, found %s", endVal.Type)
	}
	c.varOffset += 2 // the start/end bounds are anonymous but still live slots

	itVar := c.declareLocal(nameTok.Str, mutable, false) // claims slot startOffset+2
	itVar.Type = c.prog.Types.Int
	c.emit(ir.Instruction{Op: ir.LoadLocalInt, N: int64(startOffset)}) // it's initial value = start

	loopStart := c.here()
	c.emit(ir.Instruction{Op: ir.LoadLocalInt, N: int64(itVar.Offset)})
	c.emit(ir.Instruction{Op: ir.LoadLocalInt, N: int64(itVar.Offset - 1)})
	c.emit(ir.Instruction{Op: ir.LessThanInt})
	exit := c.emit(ir.Instruction{Op: ir.BranchIfFalse})

	c.pushLoop()
	c.pushScope()
	if c.cur().Kind == token.DO {
		c.advanceTok()
		c.doSingleStatement()
	} else {
		c.statementsUntil(token.END)
		c.expect(token.END)
	}
	c.popScope()
	l := c.popLoop()

	c.patchChain(l.continueHead, c.here())

	c.emit(ir.Instruction{Op: ir.LoadLocalInt, N: int64(itVar.Offset)})
	c.emit(ir.Instruction{Op: ir.PushInt, N: 1})
	c.emit(ir.Instruction{Op: ir.AddInt})
	c.emit(ir.Instruction{Op: ir.StoreLocalInt, N: int64(itVar.Offset)})

	back := c.emit(ir.Instruction{Op: ir.Jump})
	c.patchJump(back, loopStart)

	c.patchJump(exit, c.here())
	c.patchChain(l.breakHead, c.here())

	c.popScope()
}
