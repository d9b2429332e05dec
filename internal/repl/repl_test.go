package repl_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/blik-lang/blik/internal/repl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBareExpressionAutoPrints(t *testing.T) {
	var out, errOut bytes.Buffer
	r := repl.New(&out, &errOut)

	result := r.EvalFragment(context.Background(), "1 + 2 * 3")
	require.Nil(t, result.Diagnostics)
	require.Nil(t, result.RunError)
	assert.Equal(t, "7\n", out.String())
}

func TestStatementFragmentFallsBackToUnwrapped(t *testing.T) {
	var out, errOut bytes.Buffer
	r := repl.New(&out, &errOut)

	result := r.EvalFragment(context.Background(), "let x := 5")
	require.Nil(t, result.Diagnostics)
	require.Nil(t, result.RunError)
	assert.Empty(t, out.String(), "a let declaration has no auto-printed value")

	result = r.EvalFragment(context.Background(), "x * 2")
	require.Nil(t, result.Diagnostics)
	assert.Equal(t, "10\n", out.String())
}

func TestIncompleteBlockNeedsMore(t *testing.T) {
	var out, errOut bytes.Buffer
	r := repl.New(&out, &errOut)

	result := r.EvalFragment(context.Background(), "if 1 == 1 do")
	assert.True(t, result.NeedsMore)

	result = r.EvalFragment(context.Background(), "if 1 == 1 do\nprintLn(\"ok\")\nend")
	require.Nil(t, result.Diagnostics)
	assert.False(t, result.NeedsMore)
	assert.Equal(t, "ok\n", out.String())
}

func TestRuntimeFailureRollsBackProgram(t *testing.T) {
	var out, errOut bytes.Buffer
	r := repl.New(&out, &errOut)

	irLenBefore := len(r.Prog.IR)
	result := r.EvalFragment(context.Background(), "1 / 0")
	require.NotNil(t, result.RunError)
	assert.Equal(t, irLenBefore, len(r.Prog.IR))
}
