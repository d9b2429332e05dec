// Package lexer turns a byte source into a TokenizedFile: a flat token
// vector plus the positions of every top-level function declaration, the
// prototype pre-pass's entry point (spec.md §4.1, §4.3.1).
package lexer

import "github.com/blik-lang/blik/lang/token"

// Token is one lexical token: a kind tag, its source position, and
// whichever payload field its kind uses.
type Token struct {
	Kind   token.Kind
	Line   int
	Offset int

	Bool  bool
	Int   int64
	Float float64
	Str   string // decoded string literal content, or the raw identifier spelling
}

// TokenizedFile is the lexer's output for one source file.
type TokenizedFile struct {
	Filename string
	Source   string
	Tokens   []Token

	// Funcs holds the token index of every top-level `func` keyword,
	// populated by block-depth bookkeeping kept alongside tokenizing rather
	// than a true parse, per spec.md §4.1: begin/if/while/for/func open a
	// frame and end closes one, while a `do` one-liner body (and the else or
	// line break that follows a do-form if) adjusts the depth so that
	// `end`-less bodies do not leave it raised.
	Funcs []int

	Valid bool // false if any lexical error was raised
}
