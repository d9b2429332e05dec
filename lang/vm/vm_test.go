package vm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/blik-lang/blik/lang/compiler"
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/vm"
	"github.com/stretchr/testify/require"
)

// runSource compiles and runs src against a fresh Program, returning
// everything Print wrote and any error Run produced.
func runSource(t *testing.T, src string) (string, error) {
	t.Helper()
	prog := ir.NewProgram()
	errs := &diag.List{}
	tf := lexer.Tokenize("test.blik", src, errs)
	require.True(t, tf.Valid, "lex errors: %v", errs)

	report := compiler.Compile(prog, tf)
	require.True(t, report.OK(), "compile errors: %v", report.Diagnostics)

	var out bytes.Buffer
	m := vm.New(prog)
	m.Stdout = &out
	_, err := m.Run(context.Background())
	return out.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := runSource(t, "printLn(1 + 2 * 3)\n")
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestLetAndAssignment(t *testing.T) {
	out, err := runSource(t, "let x := 2\nlet mut y := 3\ny := y * x\nprintLn(y)\n")
	require.NoError(t, err)
	require.Equal(t, "6\n", out)
}

func TestFactorial(t *testing.T) {
	src := `
func fact(n: Int): Int
	if n <= 1 do return 1 else return n * fact(n - 1) end
end
printLn(fact(10))
`
	out, err := runSource(t, src)
	require.NoError(t, err)
	require.Equal(t, "3628800\n", out)
}

func TestTailCallStaysBounded(t *testing.T) {
	src := `
func loop(n: Int): Int
	if n == 0 do return 0 else return loop(n - 1) end
end
printLn(loop(1000000))
`
	out, err := runSource(t, src)
	require.NoError(t, err)
	require.Equal(t, "0\n", out)
}

func TestAssertFailureIsRuntimeError(t *testing.T) {
	_, err := runSource(t, `assert(1 == 2, "nope")`+"\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}

func TestShortCircuitAnd(t *testing.T) {
	out, err := runSource(t, "printLn(1 < 2 && 2 < 3)\n")
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}
