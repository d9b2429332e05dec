package lexer_test

import (
	"testing"

	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tf *lexer.TokenizedFile) []token.Kind {
	ks := make([]token.Kind, len(tf.Tokens))
	for i, t := range tf.Tokens {
		ks[i] = t.Kind
	}
	return ks
}

func TestTokenizeBasic(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "let x := 1 + 2\n", &errs)
	require.NoError(t, errs.Err())
	assert.True(t, tf.Valid)
	assert.Equal(t, []token.Kind{
		token.LET, token.IDENT, token.COLONEQ, token.INT, token.PLUS, token.INT, token.EOF,
	}, kinds(tf))
}

func TestTokenizeCollapsesBlankLines(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "let x := 1\n\n\nlet y := 2\n", &errs)
	require.NoError(t, errs.Err())
	assert.Equal(t, []token.Kind{
		token.LET, token.IDENT, token.COLONEQ, token.INT,
		token.EOL,
		token.LET, token.IDENT, token.COLONEQ, token.INT,
		token.EOF,
	}, kinds(tf))
}

func TestTokenizeStringEscapes(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", `"a\nb\u{1F600}"`, &errs)
	require.NoError(t, errs.Err())
	require.Len(t, tf.Tokens, 2)
	assert.Equal(t, "a\nb\U0001F600", tf.Tokens[0].Str)
}

func TestTokenizeUnterminatedStringIsRecoverable(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "\"unterminated\nlet x := 1\n", &errs)
	assert.False(t, tf.Valid)
	assert.Equal(t, 1, errs.Len())
	// Lexing continued past the bad token.
	assert.Contains(t, kinds(tf), token.LET)
}

func TestTokenizeIntegerOverflow(t *testing.T) {
	var errs diag.List
	lexer.Tokenize("t.blik", "99999999999999999999", &errs)
	require.Equal(t, 1, errs.Len())
	assert.Contains(t, errs.Items()[0].Message, "out of range")
}

func TestTopLevelFuncIndex(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "func f(): Int do return 1 end\nfunc g(): Int do return 2 end\n", &errs)
	require.NoError(t, errs.Err())
	require.Len(t, tf.Funcs, 2)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[0]].Kind)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[1]].Kind)
}

func TestTopLevelFuncIndexSurvivesDoFormBody(t *testing.T) {
	var errs diag.List
	// Neither function closes its do-form body with `end`: a naive depth
	// counter that increments on `func` but only decrements on a literal
	// `end` would permanently treat everything after the first one as
	// nested, dropping `double` from Funcs.
	tf := lexer.Tokenize("t.blik", "func inc(x: Int): Int do return x + 1\nfunc double(x: Int): Int do return x * 2\n", &errs)
	require.NoError(t, errs.Err())
	require.Len(t, tf.Funcs, 2)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[0]].Kind)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[1]].Kind)
}

func TestTopLevelFuncIndexSurvivesDoFormIfAndWhile(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "func f(): Int\n\tlet mut x := 0\n\tif true do x := 1\n\twhile x < 2 do x += 1\n\treturn x\nend\nfunc g(): Int do return 2\n", &errs)
	require.NoError(t, errs.Err())
	require.Len(t, tf.Funcs, 2)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[0]].Kind)
	assert.Equal(t, token.FUNC, tf.Tokens[tf.Funcs[1]].Kind)
}

func TestCompoundAssignmentOperators(t *testing.T) {
	var errs diag.List
	tf := lexer.Tokenize("t.blik", "x += 1; x <<<= 2; x >>>= 3", &errs)
	require.NoError(t, errs.Err())
	assert.Equal(t, []token.Kind{
		token.IDENT, token.PLUSEQ, token.INT, token.SEMI,
		token.IDENT, token.ROLEQ, token.INT, token.SEMI,
		token.IDENT, token.ROREQ, token.INT, token.EOF,
	}, kinds(tf))
}
