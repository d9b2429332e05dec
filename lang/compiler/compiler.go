// Package compiler is blik's single-pass recursive-descent parser, type
// checker, and emitter fused into one walk: there is no separate AST
// (spec.md §4.3, §9 "No separate AST"). It consumes a lexer.TokenizedFile
// against a shared, possibly already-populated ir.Program and either
// extends it in place or, on any error, restores it byte-for-byte
// (spec.md §4.3.5).
package compiler

import (
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
	"github.com/blik-lang/blik/lang/types"
)

// stackSlot models one value on the compiler's synthetic operand-type
// stack. Var is non-nil only when the value currently on the runtime
// stack is exactly the live value of that variable (a bare Load), which
// is what lets assignment and discard peepholes identify their target.
type stackSlot struct {
	Type *types.Info
	Var  *ir.VariableInfo
}

// loopCtx tracks the state needed to patch break/continue jump chains and
// to pop temporaries back to the loop's entry depth.
type loopCtx struct {
	varOffsetAtEntry int
	breakHead        int // IR address of the most recent break Jump in the chain, or -1
	continueHead     int // same, for continue
}

// scopeMark records what to restore when a lexical scope (begin/end, an
// if/while/for body, or a function body) closes: the var_offset to roll
// back to and the local names declared within, so they can be popped off
// the shadow chain.
type scopeMark struct {
	varOffsetAtEntry int
	names            []string
}

// Compiler holds all single-pass compilation state for one Compile call.
type Compiler struct {
	prog *ir.Program
	tf   *lexer.TokenizedFile
	pos  int

	filename string
	source   *ir.Source

	errs *diag.List

	curFunc   *ir.FunctionInfo
	depth     int
	varOffset int
	loops     []loopCtx
	scopes    []scopeMark
	typeStack []stackSlot

	locals map[string]*ir.VariableInfo

	// primaryErrorOpen is true while the current statement has already
	// recorded its one primary error (spec.md §4.5: "at most one primary
	// error per statement before switching to hint mode").
	primaryErrorOpen bool

	unexpectedEOF bool
	// eofDepth snapshots c.depth at the moment unexpectedEOF is set: by the
	// time the top-level statement loop in Compile returns, every nesting
	// construct's depth bracket has already unwound c.depth back to 0,
	// so the report's Depth (how many blocks a REPL should indent for) has
	// to be captured here, not read after the fact.
	eofDepth int
}

// Compile parses, checks, and emits tf against prog. On success prog is
// extended in place and the returned report has no diagnostics. On
// failure prog is restored to its pre-call state and the report's
// Diagnostics describe every error found; UnexpectedEOF and Depth help a
// REPL decide whether to prompt for more input.
func Compile(prog *ir.Program, tf *lexer.TokenizedFile) *diag.CompileReport {
	snap := prog.Snapshot()
	c := &Compiler{
		prog:     prog,
		tf:       tf,
		filename: tf.Filename,
		source:   prog.SourceFor(tf.Filename, tf.Source),
		errs:     &diag.List{},
		locals:   make(map[string]*ir.VariableInfo),
	}

	registerIntrinsics(prog)
	c.prototypePrePass()
	c.pos = 0
	for !c.atEOF() {
		c.skipEOLs()
		if c.atEOF() {
			break
		}
		c.primaryErrorOpen = false
		c.statement()
	}
	c.source.Finalize()

	depth := c.depth
	if c.unexpectedEOF {
		depth = c.eofDepth
	}
	report := &diag.CompileReport{Diagnostics: c.errs, Depth: depth, UnexpectedEOF: c.unexpectedEOF}
	if c.errs.Len() > 0 {
		prog.Restore(snap)
		return report
	}
	return report
}

// --- token cursor -----------------------------------------------------

func (c *Compiler) cur() lexer.Token {
	if c.pos < len(c.tf.Tokens) {
		return c.tf.Tokens[c.pos]
	}
	return lexer.Token{Kind: token.EOF}
}

func (c *Compiler) peekAt(n int) lexer.Token {
	i := c.pos + n
	if i < len(c.tf.Tokens) {
		return c.tf.Tokens[i]
	}
	return lexer.Token{Kind: token.EOF}
}

func (c *Compiler) advanceTok() lexer.Token {
	t := c.cur()
	if t.Kind != token.EOF {
		c.pos++
	}
	return t
}

func (c *Compiler) atEOF() bool { return c.cur().Kind == token.EOF }

func (c *Compiler) pos_() token.Position {
	t := c.cur()
	return token.Position{Filename: c.filename, Line: t.Line, Offset: t.Offset}
}

func (c *Compiler) posOf(t lexer.Token) token.Position {
	return token.Position{Filename: c.filename, Line: t.Line, Offset: t.Offset}
}

// skipEOLs consumes any run of EOL/SEMI layout tokens.
func (c *Compiler) skipEOLs() {
	for c.cur().Kind == token.EOL || c.cur().Kind == token.SEMI {
		c.pos++
	}
}

// expect consumes the current token if it matches kind, else records a
// "missing token" error and does not advance.
func (c *Compiler) expect(kind token.Kind) (lexer.Token, bool) {
	t := c.cur()
	if t.Kind == kind {
		c.pos++
		return t, true
	}
	c.errorf("expected %s, found %s", kind, c.describe(t))
	return t, false
}

func (c *Compiler) describe(t lexer.Token) string {
	if t.Kind == token.EOF {
		return "end of file"
	}
	return t.Kind.String()
}

// errorf records a primary diagnostic at the current token's position. If
// a primary error has already been recorded for the current statement,
// subsequent calls attach as hints instead of new primary diagnostics
// (spec.md §4.5).
func (c *Compiler) errorf(format string, args ...interface{}) *diag.Diagnostic {
	pos := c.pos_()
	if c.cur().Kind == token.EOF {
		c.unexpectedEOF = true
		c.eofDepth = c.depth
	}
	if c.primaryErrorOpen && c.errs.Len() > 0 {
		last := c.errs.Items()[c.errs.Len()-1]
		last.AddHint(pos, format, args...)
		return last
	}
	c.primaryErrorOpen = true
	return c.errs.Add(pos, format, args...)
}

func (c *Compiler) errorfAt(pos token.Position, format string, args ...interface{}) *diag.Diagnostic {
	if c.primaryErrorOpen && c.errs.Len() > 0 {
		last := c.errs.Items()[c.errs.Len()-1]
		last.AddHint(pos, format, args...)
		return last
	}
	c.primaryErrorOpen = true
	return c.errs.Add(pos, format, args...)
}

// syncToStatementBoundary consumes tokens until the next EOL/SEMI/EOF so
// that one malformed statement doesn't cascade into its neighbors
// (spec.md §4.3.2 "consumes tokens until the next boundary").
func (c *Compiler) syncToStatementBoundary() {
	for {
		switch c.cur().Kind {
		case token.EOL, token.SEMI, token.EOF:
			return
		default:
			c.pos++
		}
	}
}

// --- emission helpers ---------------------------------------------------

func (c *Compiler) emit(insn ir.Instruction) int {
	insn.Line = c.cur().Line
	return c.prog.Emit(insn)
}

func (c *Compiler) here() int { return len(c.prog.IR) }

func (c *Compiler) markLine(line int) {
	c.source.Mark(c.here(), line)
}

// patchJump rewrites the relative-offset operand of the jump at addr so it
// targets target.
func (c *Compiler) patchJump(addr, target int) {
	c.prog.IR[addr].N = int64(target - addr)
}

// patchChain walks a linked chain of jump instructions (each node's
// operand temporarily holding the address of the previous node in the
// chain, -1 sentinel) and repoints every one of them at target.
func (c *Compiler) patchChain(head, target int) {
	for head != -1 {
		next := int(c.prog.IR[head].N)
		c.patchJump(head, target)
		head = next
	}
}

const noPrevInChain = -1

func isLoadOpcode(op ir.Opcode) bool {
	switch op {
	case ir.LoadGlobalBool, ir.LoadGlobalInt, ir.LoadGlobalFloat, ir.LoadGlobalString, ir.LoadGlobalType,
		ir.LoadLocalBool, ir.LoadLocalInt, ir.LoadLocalFloat, ir.LoadLocalString, ir.LoadLocalType:
		return true
	}
	return false
}

var copyToStore = map[ir.Opcode]ir.Opcode{
	ir.CopyBool:   ir.StoreGlobalBool,
	ir.CopyInt:    ir.StoreGlobalInt,
	ir.CopyFloat:  ir.StoreGlobalFloat,
	ir.CopyString: ir.StoreGlobalString,
	ir.CopyType:   ir.StoreGlobalType,
	ir.CopyLocalBool:   ir.StoreLocalBool,
	ir.CopyLocalInt:    ir.StoreLocalInt,
	ir.CopyLocalFloat:  ir.StoreLocalFloat,
	ir.CopyLocalString: ir.StoreLocalString,
	ir.CopyLocalType:   ir.StoreLocalType,
}

// discardResult applies the expression-statement peephole (spec.md
// §4.3.2): delete a trailing bare Load, rewrite a trailing Copy* into the
// corresponding Store* (which does not leave a value on the stack), or
// else emit an explicit Pop(1).
func (c *Compiler) discardResult() {
	if len(c.prog.IR) == 0 {
		return
	}
	last := &c.prog.IR[len(c.prog.IR)-1]
	if isLoadOpcode(last.Op) {
		c.prog.IR = c.prog.IR[:len(c.prog.IR)-1]
		return
	}
	if store, ok := copyToStore[last.Op]; ok {
		last.Op = store
		return
	}
	c.emit(ir.Instruction{Op: ir.Pop, N: 1})
}

