// Package builtins registers the host-provided native functions a running
// blik program can call, as distinct from the compiler intrinsics
// (print/printLn/typeOf/assert/Float/Int) lang/compiler wires directly.
// spec.md §5 names exactly one: a REPL/CLI-level exit() that asks the VM
// to stop cleanly via its interrupt flag, the example the core's own
// cancellation model is built around ("e.g., the REPL's exit() function
// does this").
package builtins

import (
	"github.com/blik-lang/blik/lang/ir"
)

// Register installs every host-level native function into prog, if not
// already present (idempotent across repeated REPL compile calls against
// the same Program, mirroring registerIntrinsics' own guard).
func Register(prog *ir.Program) {
	if _, ok := prog.FunctionHead("exit"); ok {
		return
	}

	fn := ir.NewFunctionInfo("exit", "exit(): Null", nil, prog.Types.Null)
	fn.Mode = ir.Native
	fn.NativeFn = func(h ir.NativeHandle, _ []ir.Value) (ir.Value, error) {
		h.SetInterrupt()
		return ir.Null, nil
	}
	prog.RegisterFunction(fn)
}
