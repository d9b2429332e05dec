package ir

import "github.com/blik-lang/blik/lang/types"

// NotReady marks a global VariableInfo whose initializer has not finished
// emitting yet.
const NotReady = -1

// VariableInfo describes one declared variable, global or local. Locals
// are transient compiler state (never stored on Program); globals are the
// only VariableInfo values that outlive a single compile call.
type VariableInfo struct {
	Name      string
	Type      *types.Info
	Offset    int // index into the global slot table, or the current frame
	IsGlobal  bool
	IsMutable bool

	// ReadyAddr is the IR address right after this variable's initializer
	// finishes. Reading a global from within a function whose earliest
	// possible call site precedes ReadyAddr is a compile error (spec.md §3,
	// §4.3.3, §9 "Global-before-use across functions").
	ReadyAddr int

	// Shadow is the VariableInfo this one shadows in an enclosing scope,
	// restored into the name table when the current scope ends (spec.md §9
	// "Variable shadowing via shadow").
	Shadow *VariableInfo

	// Poisoned marks a variable whose declaration produced a compile error;
	// subsequent references are silently typed as Null to avoid cascading
	// diagnostics (GLOSSARY "Poisoned variable").
	Poisoned bool

	// IsParam marks a local as a function parameter; parameters (like
	// globals) may not be shadowed by a nested `let` of the same name.
	IsParam bool
}
