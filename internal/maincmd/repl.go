package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/mna/mainer"

	"github.com/blik-lang/blik/internal/config"
	"github.com/blik-lang/blik/internal/repl"
)

// Repl starts an interactive session implementing spec.md §6's protocol:
// each logical fragment is wrapped, compiled, and run against one
// persistent Program/Machine pair; an unexpected end of input prompts for
// a continuation line indented by the number of still-open blocks.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, _ []string) error {
	rt, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return err
	}

	r := repl.New(stdio.Stdout, stdio.Stderr)
	r.VM.MaxSteps = rt.MaxSteps
	r.VM.MaxStack = rt.MaxStack

	scanner := bufio.NewScanner(stdio.Stdin)
	var pending strings.Builder

	fmt.Fprint(stdio.Stdout, "> ")
	for scanner.Scan() {
		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(scanner.Text())

		result := r.EvalFragment(ctx, pending.String())
		switch {
		case result.NeedsMore:
			fmt.Fprint(stdio.Stdout, strings.Repeat("\t", result.Depth))
			continue
		case result.Diagnostics != nil:
			for _, d := range result.Diagnostics.Items() {
				fmt.Fprintln(stdio.Stderr, d.Error())
			}
		case result.RunError != nil:
			fmt.Fprintln(stdio.Stderr, result.RunError)
		}

		pending.Reset()
		fmt.Fprint(stdio.Stdout, "> ")
	}
	fmt.Fprintln(stdio.Stdout)
	return scanner.Err()
}
