// Package repl implements the interactive read-eval-print loop protocol
// spec.md §6 describes: fragment wrapping so a bare expression prints its
// own value, unexpected-EOF-driven continuation prompting, and
// compensating rollback of both the Program and the VM on a runtime
// failure.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/blik-lang/blik/internal/builtins"
	"github.com/blik-lang/blik/lang/compiler"
	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/lexer"
	"github.com/blik-lang/blik/lang/vm"
)

// REPL holds one interactive session's Program and Machine, both of which
// persist across EvalFragment calls (spec.md §6 "run is re-entrant in the
// REPL sense").
type REPL struct {
	Prog *ir.Program
	VM   *vm.Machine

	filename string
	fragment int
}

// New creates a REPL with a fresh Program and Machine, pre-registered
// with the host-level native functions (currently just exit()).
func New(stdout, stderr io.Writer) *REPL {
	prog := ir.NewProgram()
	builtins.Register(prog)
	m := vm.New(prog)
	m.Stdout = stdout
	m.Stderr = stderr
	return &REPL{Prog: prog, VM: m, filename: "<repl>"}
}

// Result reports the outcome of one EvalFragment call.
type Result struct {
	// NeedsMore is true when the fragment ended mid-construct (unexpected
	// EOF) and the host should append a newline, indent by Depth, read
	// another line, and retry with the concatenated fragment.
	NeedsMore bool
	Depth     int

	// Diagnostics is non-nil when the fragment failed to compile (and
	// does not merely need more input).
	Diagnostics *diag.List

	// RunError is non-nil when the fragment compiled but the run failed;
	// both the Program and the Machine have already been rolled back to
	// their pre-fragment state.
	RunError error

	// ExitCode is the run's exit code on a successful run.
	ExitCode int
	Ran      bool
}

// wrapFragment produces the synthetic form spec.md §6 describes:
// `begin; let __r := ⟨fragment⟩; if typeOf(__r) != typeOf(null) do printLn(__r); end`
// (the Null type is spelled typeOf(null), since a type name is not an
// expression) so a bare expression auto-prints its value, while a statement (which
// cannot appear in the let initializer position) simply fails to compile
// and falls back to the unwrapped attempt.
func wrapFragment(fragment string) string {
	var sb strings.Builder
	sb.WriteString("begin\n\tlet __r := ")
	sb.WriteString(fragment)
	sb.WriteString("\n\tif typeOf(__r) != typeOf(null) do printLn(__r)\nend\n")
	return sb.String()
}

// EvalFragment compiles and runs one logical input, applying the wrap/
// retry/rollback protocol of spec.md §6. The Program/Machine snapshot is
// taken before either compile attempt, since committed state becomes the
// new baseline only once both compilation and the run succeed (spec.md
// §6: a runtime failure restores "globals, frames, and IR length" —
// everything the fragment did, including its own successful compile).
func (r *REPL) EvalFragment(ctx context.Context, fragment string) Result {
	r.fragment++
	name := fmt.Sprintf("%s#%d", r.filename, r.fragment)

	progSnap := r.Prog.Snapshot()
	vmSnap := r.VM.Mark()

	if _, ok := r.tryCompile(name, wrapFragment(fragment)); ok {
		return r.runAfterCompile(ctx, progSnap, vmSnap)
	}

	// compiler.Compile already restored the Program on the wrapped
	// attempt's failure, so the unwrapped retry starts clean.
	report, ok := r.tryCompile(name, fragment)
	if !ok {
		return Result{NeedsMore: report.UnexpectedEOF, Depth: report.Depth, Diagnostics: report.Diagnostics}
	}
	return r.runAfterCompile(ctx, progSnap, vmSnap)
}

// tryCompile lexes and compiles src against r.Prog, returning the report
// and whether compilation succeeded (ok is false both for a real error and
// for an unexpected-EOF that needs more input; the caller distinguishes
// via report.UnexpectedEOF).
func (r *REPL) tryCompile(name, src string) (*diag.CompileReport, bool) {
	errs := &diag.List{}
	tf := lexer.Tokenize(name, src, errs)
	if !tf.Valid {
		return &diag.CompileReport{Diagnostics: errs}, false
	}
	report := compiler.Compile(r.Prog, tf)
	return report, report.OK()
}

// runAfterCompile runs the Machine from its current pc, rolling back both
// the Program and the Machine to the given pre-fragment snapshots on a
// runtime failure (spec.md §6 "on runtime failure, the core restores the
// pre-fragment snapshot of globals, frames, and IR length").
func (r *REPL) runAfterCompile(ctx context.Context, progSnap *ir.Snapshot, vmSnap vm.Snapshot) Result {
	code, err := r.VM.Run(ctx)
	if err != nil {
		r.Prog.Restore(progSnap)
		r.VM.Rollback(vmSnap)
		return Result{RunError: err}
	}
	return Result{Ran: true, ExitCode: code}
}
