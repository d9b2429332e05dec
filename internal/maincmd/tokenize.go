package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/lexer"
)

// Tokenize runs the lexer phase alone and prints every token, one per line.
func (c *Cmd) Tokenize(_ context.Context, stdio mainer.Stdio, files []string) error {
	var failed bool
	for _, file := range files {
		if err := tokenizeFile(stdio, file); err != nil {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("tokenize failed")
	}
	return nil
}

func tokenizeFile(stdio mainer.Stdio, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
		return err
	}

	errs := &diag.List{}
	tf := lexer.Tokenize(file, string(src), errs)
	for _, tok := range tf.Tokens {
		fmt.Fprintf(stdio.Stdout, "%s:%d:%d: %s", file, tok.Line, tok.Offset, tok.Kind)
		switch {
		case tok.Str != "":
			fmt.Fprintf(stdio.Stdout, " %q", tok.Str)
		}
		fmt.Fprintln(stdio.Stdout)
	}
	if !tf.Valid {
		for _, d := range errs.Items() {
			fmt.Fprint(stdio.Stderr, diag.Render(d, tf.Source))
		}
		return errs.Err()
	}
	return nil
}
