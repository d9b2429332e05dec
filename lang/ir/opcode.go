package ir

import (
	"fmt"

	"github.com/blik-lang/blik/lang/types"
)

// Opcode identifies one stack-machine instruction. Naming follows the
// richer of the two near-duplicate compilers found in the original
// implementation (spec.md §9 open question): global accessors are named
// Load/StoreGlobal<Type>, locals Load/StoreLocal<Type>, and the
// store-and-leave-on-stack form is Copy<Type>/CopyLocal<Type> (no "Global"
// infix, since it never collided with the simpler compiler's opcodes).
type Opcode uint8

//nolint:revive
const (
	PushNull Opcode = iota
	PushBool
	PushInt
	PushFloat
	PushString
	PushType

	Pop

	LoadGlobalBool
	LoadGlobalInt
	LoadGlobalFloat
	LoadGlobalString
	LoadGlobalType

	LoadLocalBool
	LoadLocalInt
	LoadLocalFloat
	LoadLocalString
	LoadLocalType

	StoreGlobalBool
	StoreGlobalInt
	StoreGlobalFloat
	StoreGlobalString
	StoreGlobalType

	StoreLocalBool
	StoreLocalInt
	StoreLocalFloat
	StoreLocalString
	StoreLocalType

	CopyBool
	CopyInt
	CopyFloat
	CopyString
	CopyType

	CopyLocalBool
	CopyLocalInt
	CopyLocalFloat
	CopyLocalString
	CopyLocalType

	AddInt
	AddFloat
	SubstractInt
	SubstractFloat
	MultiplyInt
	MultiplyFloat
	DivideInt
	DivideFloat
	ModuloInt
	NegateInt
	NegateFloat

	EqualInt
	EqualFloat
	EqualBool
	EqualType
	NotEqualInt
	NotEqualFloat
	NotEqualBool
	NotEqualType
	LessThanInt
	LessThanFloat
	LessOrEqualInt
	LessOrEqualFloat
	GreaterThanInt
	GreaterThanFloat
	GreaterOrEqualInt
	GreaterOrEqualFloat

	AndInt
	OrInt
	XorInt
	ComplementInt
	LeftShiftInt
	RightShiftInt
	LeftRotateInt
	RightRotateInt

	AndBool
	OrBool
	NotBool

	SkipIfFalse
	SkipIfTrue

	Jump
	BranchIfFalse
	BranchIfTrue

	Call
	CallNative
	Return
	ReturnNull // peephole: PushNull immediately followed by Return
	End

	IntToFloat
	FloatToInt

	Print

	maxOpcode
)

var opcodeNames = [...]string{
	PushNull: "PushNull", PushBool: "PushBool", PushInt: "PushInt",
	PushFloat: "PushFloat", PushString: "PushString", PushType: "PushType",
	Pop: "Pop",
	LoadGlobalBool:   "LoadGlobalBool",
	LoadGlobalInt:    "LoadGlobalInt",
	LoadGlobalFloat:  "LoadGlobalFloat",
	LoadGlobalString: "LoadGlobalString",
	LoadGlobalType:   "LoadGlobalType",
	LoadLocalBool:    "LoadLocalBool",
	LoadLocalInt:     "LoadLocalInt",
	LoadLocalFloat:   "LoadLocalFloat",
	LoadLocalString:  "LoadLocalString",
	LoadLocalType:    "LoadLocalType",
	StoreGlobalBool:  "StoreGlobalBool",
	StoreGlobalInt:   "StoreGlobalInt",
	StoreGlobalFloat: "StoreGlobalFloat",
	StoreGlobalString: "StoreGlobalString",
	StoreGlobalType:  "StoreGlobalType",
	StoreLocalBool:   "StoreLocalBool",
	StoreLocalInt:    "StoreLocalInt",
	StoreLocalFloat:  "StoreLocalFloat",
	StoreLocalString: "StoreLocalString",
	StoreLocalType:   "StoreLocalType",
	CopyBool: "CopyBool", CopyInt: "CopyInt", CopyFloat: "CopyFloat",
	CopyString: "CopyString", CopyType: "CopyType",
	CopyLocalBool: "CopyLocalBool", CopyLocalInt: "CopyLocalInt",
	CopyLocalFloat: "CopyLocalFloat", CopyLocalString: "CopyLocalString",
	CopyLocalType: "CopyLocalType",
	AddInt: "AddInt", AddFloat: "AddFloat",
	SubstractInt: "SubstractInt", SubstractFloat: "SubstractFloat",
	MultiplyInt: "MultiplyInt", MultiplyFloat: "MultiplyFloat",
	DivideInt: "DivideInt", DivideFloat: "DivideFloat",
	ModuloInt: "ModuloInt", NegateInt: "NegateInt", NegateFloat: "NegateFloat",
	EqualInt: "EqualInt", EqualFloat: "EqualFloat", EqualBool: "EqualBool", EqualType: "EqualType",
	NotEqualInt: "NotEqualInt", NotEqualFloat: "NotEqualFloat", NotEqualBool: "NotEqualBool", NotEqualType: "NotEqualType",
	LessThanInt: "LessThanInt", LessThanFloat: "LessThanFloat",
	LessOrEqualInt: "LessOrEqualInt", LessOrEqualFloat: "LessOrEqualFloat",
	GreaterThanInt: "GreaterThanInt", GreaterThanFloat: "GreaterThanFloat",
	GreaterOrEqualInt: "GreaterOrEqualInt", GreaterOrEqualFloat: "GreaterOrEqualFloat",
	AndInt: "AndInt", OrInt: "OrInt", XorInt: "XorInt", ComplementInt: "ComplementInt",
	LeftShiftInt: "LeftShiftInt", RightShiftInt: "RightShiftInt",
	LeftRotateInt: "LeftRotateInt", RightRotateInt: "RightRotateInt",
	AndBool: "AndBool", OrBool: "OrBool", NotBool: "NotBool",
	SkipIfFalse: "SkipIfFalse", SkipIfTrue: "SkipIfTrue",
	Jump: "Jump", BranchIfFalse: "BranchIfFalse", BranchIfTrue: "BranchIfTrue",
	Call: "Call", CallNative: "CallNative", Return: "Return", ReturnNull: "ReturnNull", End: "End",
	IntToFloat: "IntToFloat", FloatToInt: "FloatToInt",
	Print: "Print",
}

func (op Opcode) String() string {
	if op < maxOpcode {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

// IsJump reports whether op carries a relative IR address operand (Jump,
// BranchIfFalse, BranchIfTrue, SkipIfFalse, SkipIfTrue).
func (op Opcode) IsJump() bool {
	switch op {
	case Jump, BranchIfFalse, BranchIfTrue, SkipIfFalse, SkipIfTrue:
		return true
	}
	return false
}

// Instruction is one IR opcode plus its operand. The reference union
// operand becomes a small set of typed fields here (Go rendition of a
// tagged variant); only the field matching Op is meaningful for a given
// instruction — see DESIGN.md.
type Instruction struct {
	Op    Opcode
	N     int64       // integer literal / relative jump offset / pop count / slot index / arg count
	F     float64     // PushFloat literal
	S     *string     // PushString literal (interned)
	T     *types.Info // PushType literal
	Fn    *FunctionInfo // Call / CallNative target (possibly still unresolved: Fn.Addr == -1)
	Line  int         // source line this instruction was emitted for, for fast in-compiler lookups
}
