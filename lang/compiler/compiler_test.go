package compiler_test

import (
	"testing"

	"github.com/blik-lang/blik/lang/compiler"
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compile compiles src against a fresh Program and returns both, along
// with the report so callers can inspect Diagnostics/Depth/UnexpectedEOF.
func compile(t *testing.T, src string) (*ir.Program, *diag.CompileReport) {
	t.Helper()
	prog := ir.NewProgram()
	errs := &diag.List{}
	tf := lexer.Tokenize("t.blik", src, errs)
	require.True(t, tf.Valid, "lex errors: %v", errs)
	report := compiler.Compile(prog, tf)
	return prog, report
}

func requireOK(t *testing.T, report *diag.CompileReport) {
	t.Helper()
	if !report.OK() {
		var msgs []string
		for _, d := range report.Diagnostics.Items() {
			msgs = append(msgs, d.Error())
		}
		t.Fatalf("expected no compile errors, got: %v", msgs)
	}
}

func lastOp(prog *ir.Program) ir.Opcode {
	return prog.IR[len(prog.IR)-1].Op
}

func TestArithmeticPrecedenceEmitsMultiplyBeforeAdd(t *testing.T) {
	prog, report := compile(t, "printLn(1 + 2 * 3)\n")
	requireOK(t, report)

	var ops []ir.Opcode
	for _, insn := range prog.IR {
		ops = append(ops, insn.Op)
	}
	assert.Contains(t, ops, ir.MultiplyInt)
	assert.Contains(t, ops, ir.AddInt)

	var mulIdx, addIdx int
	for i, op := range ops {
		if op == ir.MultiplyInt {
			mulIdx = i
		}
		if op == ir.AddInt {
			addIdx = i
		}
	}
	assert.Less(t, mulIdx, addIdx, "2 * 3 must be evaluated before the outer +")
}

func TestLetAliasEmitsNoInstructions(t *testing.T) {
	prog, report := compile(t, "let x := 1\nlet y := x\nprintLn(y)\n")
	requireOK(t, report)

	// y aliases x's slot directly (spec.md §9 alias-on-let peephole): there
	// should be exactly one PushInt (x's initializer) and no Load/Store for
	// y's own "initializer".
	count := 0
	for _, insn := range prog.IR {
		if insn.Op == ir.PushInt {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCompoundAssignment(t *testing.T) {
	_, report := compile(t, "let mut x := 1\nx += 41\nprintLn(x)\n")
	requireOK(t, report)
}

func TestShortCircuitAndEmitsSkipIfFalse(t *testing.T) {
	prog, report := compile(t, "printLn(1 < 2 && 2 < 3)\n")
	requireOK(t, report)

	found := false
	for _, insn := range prog.IR {
		if insn.Op == ir.SkipIfFalse {
			found = true
		}
	}
	assert.True(t, found)
}

func TestShortCircuitOrEmitsSkipIfTrue(t *testing.T) {
	prog, report := compile(t, "printLn(1 < 2 || 2 < 1)\n")
	requireOK(t, report)

	found := false
	for _, insn := range prog.IR {
		if insn.Op == ir.SkipIfTrue {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGlobalUsedBeforeDeclarationIsAnError(t *testing.T) {
	_, report := compile(t, "printLn(x)\nlet x := 1\n")
	assert.False(t, report.OK())
}

func TestCallToUndeclaredFunctionIsAnError(t *testing.T) {
	_, report := compile(t, "printLn(doesNotExist())\n")
	assert.False(t, report.OK())
	require.Equal(t, 1, report.Diagnostics.Len())
	assert.Contains(t, report.Diagnostics.Items()[0].Error(), "undeclared function")
}

func TestAmbiguousOverloadIsAnError(t *testing.T) {
	src := `
func f(n: Int): Int
	return n
end
func f(n: Int): Int
	return n * 2
end
`
	_, report := compile(t, src)
	assert.False(t, report.OK())
}

func TestOverloadResolutionPicksMatchingArity(t *testing.T) {
	src := `
func f(n: Int): Int
	return n
end
func f(n: Int, m: Int): Int
	return n + m
end
printLn(f(1, 2))
`
	_, report := compile(t, src)
	requireOK(t, report)
}

func TestFunctionMustDeclareTopLevel(t *testing.T) {
	src := `
if true do
	func nested(): Int
		return 1
	end
end
`
	_, report := compile(t, src)
	assert.False(t, report.OK())
}

func TestFunctionMustReturnOnEveryPath(t *testing.T) {
	src := `
func f(n: Int): Int
	if n > 0 do
		return n
	end
end
`
	_, report := compile(t, src)
	assert.False(t, report.OK())
}

func TestSecondTopLevelFuncAfterDoFormBodyIsRegistered(t *testing.T) {
	src := "func inc(x: Int): Int do return x + 1\nfunc double(x: Int): Int do return x * 2\nprintLn(double(21))\n"
	prog, report := compile(t, src)
	requireOK(t, report)

	_, ok := prog.FunctionHead("double")
	require.True(t, ok, "double must be registered as a top-level function")
}

func TestBareDoIfNeedsNoEnd(t *testing.T) {
	_, report := compile(t, "let mut x := 0\nif true do x := 1\nprintLn(x)\n")
	requireOK(t, report)
}

func TestChainedDoIfStillNeedsEnd(t *testing.T) {
	// A do-form branch followed by else/else-if is no longer the bare
	// one-liner shape, so it must close with `end` even though its first
	// branch uses `do`.
	_, report := compile(t, "let mut x := 0\nif true do x := 1 else x := 2 end\nprintLn(x)\n")
	requireOK(t, report)
}

func TestChainedDoIfMissingEndIsAnError(t *testing.T) {
	_, report := compile(t, "let mut x := 0\nif true do x := 1 else x := 2\nprintLn(x)\n")
	assert.False(t, report.OK())
}

func TestTailCallMarksFunctionTailRecursive(t *testing.T) {
	src := `
func loop(n: Int): Int
	if n == 0 do return 0 else return loop(n - 1) end
end
printLn(loop(5))
`
	prog, report := compile(t, src)
	requireOK(t, report)

	fn, ok := prog.FunctionHead("loop")
	require.True(t, ok)
	assert.True(t, fn.TailRecursive)

	// A tail call compiles to a backward Jump, not a Call, at its call site
	// (the body spans from Addr to the end of the Jump over it; the
	// top-level printLn(loop(5)) is an ordinary Call).
	bodyEnd := fn.Addr - 1 + int(prog.IR[fn.Addr-1].N)
	for _, insn := range prog.IR[fn.Addr:bodyEnd] {
		assert.NotEqual(t, ir.Call, insn.Op, "tail call must not emit ir.Call")
	}
}

func TestWhileLoop(t *testing.T) {
	src := "let mut i := 0\nwhile i < 3\n\ti += 1\nend\nprintLn(i)\n"
	prog, report := compile(t, src)
	requireOK(t, report)
	assert.Equal(t, ir.Pop, lastOp(prog)) // printLn's discarded result
}

func TestForLoopOverRange(t *testing.T) {
	src := "let mut sum := 0\nfor i in 0 : 10\n\tsum += i\nend\nprintLn(sum)\n"
	_, report := compile(t, src)
	requireOK(t, report)
}

func TestGeneralizedDoOnWhile(t *testing.T) {
	_, report := compile(t, "let mut i := 0\nwhile i < 1 do i += 1\nprintLn(i)\n")
	requireOK(t, report)
}

func TestAssertLowersToCallNative(t *testing.T) {
	prog, report := compile(t, `assert(1 == 1, "unreachable")`+"\n")
	requireOK(t, report)

	found := false
	for _, insn := range prog.IR {
		if insn.Op == ir.CallNative && insn.Fn != nil && insn.Fn.Name == "__assert_fail" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIfConditionMustBeBool(t *testing.T) {
	_, report := compile(t, "if 1 do printLn(1)\n")
	assert.False(t, report.OK())
}

func TestRestoresProgramOnFailure(t *testing.T) {
	prog := ir.NewProgram()
	errs := &diag.List{}
	tf := lexer.Tokenize("t.blik", "let x := 1\nprintLn(x)\n", errs)
	require.True(t, tf.Valid)
	report := compiler.Compile(prog, tf)
	requireOK(t, report)
	irLenBefore := len(prog.IR)

	badTf := lexer.Tokenize("t.blik", "printLn(undeclaredThing)\n", errs)
	require.True(t, badTf.Valid)
	badReport := compiler.Compile(prog, badTf)
	assert.False(t, badReport.OK())
	assert.Equal(t, irLenBefore, len(prog.IR), "a failed compile must restore the program")
}

func TestUnexpectedEOFReportedForReplPrompting(t *testing.T) {
	_, report := compile(t, "if true do\n\tprintLn(1)\n")
	assert.False(t, report.OK())
	assert.True(t, report.UnexpectedEOF)
}
