package compiler

import "github.com/blik-lang/blik/lang/ir"

// declareLocal introduces a new local of the given name/type at the
// current var_offset, pushing any existing binding onto its Shadow chain.
// Shadowing a function parameter or an un-shadowed global is rejected
// (spec.md §7 "shadowing a parameter or global with a let"); shadowing an
// ordinary enclosing local is allowed.
func (c *Compiler) declareLocal(name string, mutable bool, isParam bool) *ir.VariableInfo {
	existing := c.locals[name]
	if existing != nil && existing.IsParam {
		c.errorf("cannot shadow parameter '%s' with a let", name)
	} else if existing == nil {
		if _, ok := c.prog.Global(name); ok {
			c.errorf("cannot shadow global '%s' with a let", name)
		}
	}

	v := &ir.VariableInfo{
		Name:      name,
		Offset:    c.varOffset,
		IsGlobal:  false,
		IsMutable: mutable,
		ReadyAddr: ir.NotReady,
		Shadow:    existing,
		IsParam:   isParam,
	}
	c.varOffset++
	c.locals[name] = v
	if len(c.scopes) > 0 {
		top := &c.scopes[len(c.scopes)-1]
		top.names = append(top.names, name)
	}
	return v
}

// lookupVariable resolves name to a local (innermost first), then a
// global, returning nil if neither exists.
func (c *Compiler) lookupVariable(name string) (*ir.VariableInfo, bool) {
	if v, ok := c.locals[name]; ok {
		return v, true
	}
	if v, ok := c.prog.Global(name); ok {
		return v, true
	}
	return nil, false
}

// pushScope opens a new lexical scope (begin/end, if/while/for/func body).
func (c *Compiler) pushScope() {
	c.scopes = append(c.scopes, scopeMark{varOffsetAtEntry: c.varOffset})
}

// popScope closes the innermost lexical scope: it emits a single Pop for
// every slot the scope claimed (spec.md §4.3.2, grounded on the original's
// `EmitPop(var_offset - prev_offset)` block-exit sequence), restores every
// name the scope shadowed, and rewinds var_offset.
func (c *Compiler) popScope() {
	n := len(c.scopes) - 1
	mark := c.scopes[n]
	c.scopes = c.scopes[:n]

	if extra := c.varOffset - mark.varOffsetAtEntry; extra > 0 {
		c.emit(ir.Instruction{Op: ir.Pop, N: int64(extra)})
	}

	for i := len(mark.names) - 1; i >= 0; i-- {
		name := mark.names[i]
		v := c.locals[name]
		if v == nil {
			continue
		}
		if v.Shadow != nil {
			c.locals[name] = v.Shadow
		} else {
			delete(c.locals, name)
		}
	}
	c.varOffset = mark.varOffsetAtEntry
}

// popScopeNoPop closes the innermost lexical scope exactly like popScope
// but without emitting a runtime Pop: used only for a function's top-level
// body scope, whose locals (including its parameters) are already
// discarded wholesale by Return/ReturnNull's frame teardown, so an
// explicit Pop here would be unreachable code (grounded on the original's
// ParseFunction, which — unlike ParseBlock — never calls EmitPop).
func (c *Compiler) popScopeNoPop() {
	n := len(c.scopes) - 1
	mark := c.scopes[n]
	c.scopes = c.scopes[:n]
	for i := len(mark.names) - 1; i >= 0; i-- {
		name := mark.names[i]
		v := c.locals[name]
		if v == nil {
			continue
		}
		if v.Shadow != nil {
			c.locals[name] = v.Shadow
		} else {
			delete(c.locals, name)
		}
	}
	c.varOffset = mark.varOffsetAtEntry
}

// pushLoop opens a new loop context for break/continue patching.
func (c *Compiler) pushLoop() *loopCtx {
	c.loops = append(c.loops, loopCtx{
		varOffsetAtEntry: c.varOffset,
		breakHead:        noPrevInChain,
		continueHead:     noPrevInChain,
	})
	return &c.loops[len(c.loops)-1]
}

func (c *Compiler) popLoop() loopCtx {
	n := len(c.loops) - 1
	l := c.loops[n]
	c.loops = c.loops[:n]
	return l
}

func (c *Compiler) currentLoop() *loopCtx {
	if len(c.loops) == 0 {
		return nil
	}
	return &c.loops[len(c.loops)-1]
}

// emitBreakOrContinue pops temporaries down to the loop's entry depth and
// chains a Jump onto the appropriate break/continue list (spec.md §4.3.2).
func (c *Compiler) emitBreakOrContinue(isBreak bool) {
	loop := c.currentLoop()
	if loop == nil {
		c.errorf("break/continue outside a loop")
		return
	}
	if extra := c.varOffset - loop.varOffsetAtEntry; extra > 0 {
		c.emit(ir.Instruction{Op: ir.Pop, N: int64(extra)})
	}
	var head *int
	if isBreak {
		head = &loop.breakHead
	} else {
		head = &loop.continueHead
	}
	addr := c.emit(ir.Instruction{Op: ir.Jump, N: int64(*head)})
	*head = addr
}
