package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/blik-lang/blik/internal/builtins"
	"github.com/blik-lang/blik/internal/config"
	"github.com/blik-lang/blik/lang/compiler"
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/vm"
)

// Run compiles and executes each file in turn, each against its own fresh
// Program (blik has no multi-file linking model, spec.md §6).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, files []string) error {
	rt, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return err
	}

	for _, file := range files {
		if err := runFile(ctx, stdio, rt, file); err != nil {
			return err
		}
	}
	return nil
}

func renderAll(stdio mainer.Stdio, errs *diag.List, source string) {
	for _, d := range errs.Items() {
		fmt.Fprint(stdio.Stderr, diag.Render(d, source))
	}
}

func runFile(ctx context.Context, stdio mainer.Stdio, rt config.Runtime, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
		return err
	}

	prog := ir.NewProgram()
	builtins.Register(prog)

	errs := &diag.List{}
	tf := lexer.Tokenize(file, string(src), errs)
	if !tf.Valid {
		renderAll(stdio, errs, tf.Source)
		return errs.Err()
	}

	report := compiler.Compile(prog, tf)
	if !report.OK() {
		renderAll(stdio, report.Diagnostics, tf.Source)
		return report.Diagnostics.Err()
	}

	m := vm.New(prog)
	m.Stdout = stdio.Stdout
	m.Stderr = stdio.Stderr
	m.MaxSteps = rt.MaxSteps
	m.MaxStack = rt.MaxStack

	code, runErr := m.Run(ctx)
	if runErr != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, runErr)
		return runErr
	}
	if code != 0 {
		return fmt.Errorf("%s: exited with code %d", file, code)
	}
	return nil
}
