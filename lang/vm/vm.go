// Package vm implements blik's stack machine: the Run loop that executes
// the linear IR a lang/compiler.Compile call produces, against the three
// state vectors spec.md §4.4 names (operand stack, pc, bp).
package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
)

// Machine executes one Program's IR. Unlike a typical interpreter loop that
// starts fresh per call, a Machine's stack/pc/bp persist across repeated
// Run calls so a REPL session can compile more code and resume execution
// right where the previous run left off (spec.md §6 "run is re-entrant in
// the REPL sense").
type Machine struct {
	// Stdout, Stderr are the destinations for the Print instruction and any
	// native diagnostics. If nil, os.Stdout/os.Stderr are used.
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives (level, context, message) triples emitted by native
	// functions via their NativeHandle (spec.md §6 "Core -> Host").
	Logger diag.Logger

	// MaxSteps bounds the number of executed instructions before the run is
	// cancelled as a runaway program. A value <= 0 means no limit.
	MaxSteps int64

	// MaxStack bounds the operand stack's depth. A value <= 0 means no limit.
	MaxStack int

	prog *ir.Program

	stack []ir.Value
	pc    int
	bp    int

	steps     int64
	interrupt atomic.Bool

	stdout io.Writer
	stderr io.Writer
}

// New creates a Machine bound to prog. Its stack starts empty, with capacity
// for prog's already-declared globals: each global's slot (one per global,
// in declaration order, per spec.md §4.4) is the value its initializer
// pushes when the program runs.
func New(prog *ir.Program) *Machine {
	m := &Machine{prog: prog}
	m.stack = make([]ir.Value, 0, len(prog.Variables))
	return m
}

func (m *Machine) init() {
	if m.Stdout != nil {
		m.stdout = m.Stdout
	} else {
		m.stdout = os.Stdout
	}
	if m.Stderr != nil {
		m.stderr = m.Stderr
	} else {
		m.stderr = os.Stderr
	}
}

// SetInterrupt requests that Run stop cleanly at its next safe point
// (spec.md §5 "interrupt flag"). Safe to call from a native callback.
func (m *Machine) SetInterrupt() { m.interrupt.Store(true) }

// Interrupted reports whether SetInterrupt has been called.
func (m *Machine) Interrupted() bool { return m.interrupt.Load() }

// Log forwards to the Machine's Logger, if one is set.
func (m *Machine) Log(level diag.Level, context, message string) {
	if m.Logger != nil {
		m.Logger(level, context, message)
	}
}

// Frames decodes the current call stack (spec.md §4.5 decode_frames).
func (m *Machine) Frames() []diag.FrameInfo {
	return decodeFrames(m.prog, m.pc, m.bp, m.stack)
}

// RuntimeError is returned by Run when execution fails for a reason other
// than an interrupt: division/modulo by zero, an unresolved function
// address, or a native callback's own error (spec.md §7 "Runtime").
type RuntimeError struct {
	Message string
	Frames  []diag.FrameInfo
}

func (e *RuntimeError) Error() string { return e.Message }

// Run executes prog's IR starting from the Machine's current pc (0 on a
// freshly-constructed Machine) until it falls off the end of the IR, hits
// an End instruction, is interrupted, or fails with a RuntimeError. It
// returns the exit code spec.md §6 describes: 0 on a clean stop, 1 on a
// runtime error or interrupt.
func (m *Machine) Run(ctx context.Context) (int, error) {
	m.init()
	code := m.prog.IR

	for m.pc < len(code) {
		if m.MaxSteps > 0 && m.steps >= m.MaxSteps {
			return 1, &RuntimeError{Message: "execution exceeded the configured step limit", Frames: m.Frames()}
		}
		if m.interrupt.Load() {
			return 1, nil
		}
		select {
		case <-ctx.Done():
			return 1, &RuntimeError{Message: ctx.Err().Error(), Frames: m.Frames()}
		default:
		}
		m.steps++

		insn := code[m.pc]
		halt, exitCode, err := m.step(insn)
		if err != nil {
			return 1, err
		}
		if halt {
			return exitCode, nil
		}
	}
	return 0, nil
}

// Snapshot captures enough of a Machine's execution state to undo one
// failed Run call: the REPL's compensating rollback (spec.md §6 "on
// runtime failure, the core restores the pre-fragment snapshot of
// globals, frames, and IR length") needs this alongside
// ir.Program.Snapshot/Restore, since the VM's own stack/pc/bp are not
// part of the Program.
type Snapshot struct {
	pc, bp, stackLen int
	steps            int64
}

// Mark returns a Snapshot of the Machine's current state.
func (m *Machine) Mark() Snapshot {
	return Snapshot{pc: m.pc, bp: m.bp, stackLen: len(m.stack), steps: m.steps}
}

// Rollback restores the Machine to a previously captured Snapshot,
// discarding any stack growth since then.
func (m *Machine) Rollback(s Snapshot) {
	m.pc, m.bp, m.steps = s.pc, s.bp, s.steps
	m.stack = m.stack[:s.stackLen]
}

func (m *Machine) push(v ir.Value) {
	m.stack = append(m.stack, v)
	if m.MaxStack > 0 && len(m.stack) > m.MaxStack {
		panic(&RuntimeError{Message: "operand stack overflow", Frames: m.Frames()})
	}
}

func (m *Machine) pop() ir.Value {
	n := len(m.stack) - 1
	v := m.stack[n]
	m.stack = m.stack[:n]
	return v
}

func (m *Machine) truncate(n int) {
	m.stack = m.stack[:len(m.stack)-n]
}

func (m *Machine) top() ir.Value { return m.stack[len(m.stack)-1] }

// step executes one instruction, returning (halt, exitCode, err). halt is
// true only for a well-formed program stop (End); a RuntimeError always
// comes back as err.
func (m *Machine) step(insn ir.Instruction) (halt bool, exitCode int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()

	switch insn.Op {
	case ir.PushNull:
		m.push(ir.Null)
		m.pc++
	case ir.PushBool:
		m.push(ir.Bool(insn.N != 0))
		m.pc++
	case ir.PushInt:
		m.push(ir.Int(insn.N))
		m.pc++
	case ir.PushFloat:
		m.push(ir.Float(insn.F))
		m.pc++
	case ir.PushString:
		m.push(ir.String(insn.S))
		m.pc++
	case ir.PushType:
		m.push(ir.TypeValue(insn.T))
		m.pc++

	case ir.Pop:
		m.truncate(int(insn.N))
		m.pc++

	case ir.LoadGlobalBool, ir.LoadGlobalInt, ir.LoadGlobalFloat, ir.LoadGlobalString, ir.LoadGlobalType:
		m.push(m.stack[insn.N])
		m.pc++
	case ir.LoadLocalBool, ir.LoadLocalInt, ir.LoadLocalFloat, ir.LoadLocalString, ir.LoadLocalType:
		m.push(m.stack[m.bp+int(insn.N)])
		m.pc++

	case ir.StoreGlobalBool, ir.StoreGlobalInt, ir.StoreGlobalFloat, ir.StoreGlobalString, ir.StoreGlobalType:
		v := m.pop()
		m.stack[insn.N] = v
		m.pc++
	case ir.StoreLocalBool, ir.StoreLocalInt, ir.StoreLocalFloat, ir.StoreLocalString, ir.StoreLocalType:
		v := m.pop()
		m.stack[m.bp+int(insn.N)] = v
		m.pc++

	case ir.CopyBool, ir.CopyInt, ir.CopyFloat, ir.CopyString, ir.CopyType:
		m.stack[insn.N] = m.top()
		m.pc++
	case ir.CopyLocalBool, ir.CopyLocalInt, ir.CopyLocalFloat, ir.CopyLocalString, ir.CopyLocalType:
		m.stack[m.bp+int(insn.N)] = m.top()
		m.pc++

	case ir.AddInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I + b.I))
		m.pc++
	case ir.AddFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Float(a.D + b.D))
		m.pc++
	case ir.SubstractInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I - b.I))
		m.pc++
	case ir.SubstractFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Float(a.D - b.D))
		m.pc++
	case ir.MultiplyInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I * b.I))
		m.pc++
	case ir.MultiplyFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Float(a.D * b.D))
		m.pc++
	case ir.DivideInt:
		b, a := m.pop(), m.pop()
		if b.I == 0 {
			panic(&RuntimeError{Message: "division by zero", Frames: m.Frames()})
		}
		m.push(ir.Int(a.I / b.I))
		m.pc++
	case ir.DivideFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Float(a.D / b.D))
		m.pc++
	case ir.ModuloInt:
		b, a := m.pop(), m.pop()
		if b.I == 0 {
			panic(&RuntimeError{Message: "modulo by zero", Frames: m.Frames()})
		}
		m.push(ir.Int(a.I % b.I))
		m.pc++
	case ir.NegateInt:
		a := m.pop()
		m.push(ir.Int(-a.I))
		m.pc++
	case ir.NegateFloat:
		a := m.pop()
		m.push(ir.Float(-a.D))
		m.pc++

	case ir.EqualInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I == b.I))
		m.pc++
	case ir.EqualFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D == b.D))
		m.pc++
	case ir.EqualBool:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.B == b.B))
		m.pc++
	case ir.EqualType:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.Type == b.Type))
		m.pc++
	case ir.NotEqualInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I != b.I))
		m.pc++
	case ir.NotEqualFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D != b.D))
		m.pc++
	case ir.NotEqualBool:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.B != b.B))
		m.pc++
	case ir.NotEqualType:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.Type != b.Type))
		m.pc++
	case ir.LessThanInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I < b.I))
		m.pc++
	case ir.LessThanFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D < b.D))
		m.pc++
	case ir.LessOrEqualInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I <= b.I))
		m.pc++
	case ir.LessOrEqualFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D <= b.D))
		m.pc++
	case ir.GreaterThanInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I > b.I))
		m.pc++
	case ir.GreaterThanFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D > b.D))
		m.pc++
	case ir.GreaterOrEqualInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.I >= b.I))
		m.pc++
	case ir.GreaterOrEqualFloat:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.D >= b.D))
		m.pc++

	case ir.AndInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I & b.I))
		m.pc++
	case ir.OrInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I | b.I))
		m.pc++
	case ir.XorInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I ^ b.I))
		m.pc++
	case ir.ComplementInt:
		a := m.pop()
		m.push(ir.Int(^a.I))
		m.pc++
	case ir.LeftShiftInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I << uint64(b.I)))
		m.pc++
	case ir.RightShiftInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(a.I >> uint64(b.I)))
		m.pc++
	case ir.LeftRotateInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(rotateLeft64(a.I, b.I)))
		m.pc++
	case ir.RightRotateInt:
		b, a := m.pop(), m.pop()
		m.push(ir.Int(rotateLeft64(a.I, -b.I)))
		m.pc++

	case ir.AndBool:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.B && b.B))
		m.pc++
	case ir.OrBool:
		b, a := m.pop(), m.pop()
		m.push(ir.Bool(a.B || b.B))
		m.pc++
	case ir.NotBool:
		a := m.pop()
		m.push(ir.Bool(!a.B))
		m.pc++

	case ir.SkipIfFalse:
		// Short-circuit &&: the condition stays on the stack either way. When
		// the branch is taken it is the expression's result; when falling
		// through, the AndBool/OrBool after the right operand consumes it.
		if !m.top().B {
			m.pc += int(insn.N)
		} else {
			m.pc++
		}
	case ir.SkipIfTrue:
		if m.top().B {
			m.pc += int(insn.N)
		} else {
			m.pc++
		}

	case ir.Jump:
		m.pc += int(insn.N)
	case ir.BranchIfFalse:
		cond := m.pop()
		if !cond.B {
			m.pc += int(insn.N)
		} else {
			m.pc++
		}
	case ir.BranchIfTrue:
		cond := m.pop()
		if cond.B {
			m.pc += int(insn.N)
		} else {
			m.pc++
		}

	case ir.Call:
		m.doCall(insn.Fn)
	case ir.CallNative:
		if err := m.doCallNative(insn.Fn); err != nil {
			return false, 1, err
		}
		m.pc++
	case ir.Return:
		m.doReturn()
	case ir.ReturnNull:
		m.push(ir.Null)
		m.doReturn()

	case ir.End:
		m.truncate(int(insn.N))
		return true, 0, nil

	case ir.IntToFloat:
		a := m.pop()
		m.push(ir.Float(float64(a.I)))
		m.pc++
	case ir.FloatToInt:
		a := m.pop()
		m.push(ir.Int(int64(a.D)))
		m.pc++

	case ir.Print:
		v := m.pop()
		fmt.Fprint(m.stdout, v.String())
		m.pc++

	default:
		panic(&RuntimeError{Message: fmt.Sprintf("illegal opcode %s", insn.Op), Frames: m.Frames()})
	}
	return false, 0, nil
}

// doCall implements spec.md §4.4's Call instruction. A literal reading
// ("push pc+1 and bp, set bp = stack.len") would strand the already-pushed
// arguments below the new frame, unreachable by LoadLocal's positive
// offsets — but the compiler assigns parameters positive offsets 0..n-1
// from bp (confirmed against the original parser's own var_offset
// bookkeeping). The only self-consistent runtime behavior is for Call to
// physically rearrange the stack: lift the arguments above the saved
// return address and base pointer, so bp ends up pointing at the first
// argument, exactly where the callee's own LoadLocal 0 expects it — see
// DESIGN.md.
func (m *Machine) doCall(fn *ir.FunctionInfo) {
	if fn.Addr == ir.NoAddr {
		panic(&RuntimeError{Message: fmt.Sprintf("call to unresolved function '%s'", fn.Name), Frames: m.Frames()})
	}
	n := len(fn.Params)
	args := make([]ir.Value, n)
	copy(args, m.stack[len(m.stack)-n:])
	m.truncate(n)

	m.push(ir.Int(int64(m.pc + 1)))
	m.push(ir.Int(int64(m.bp)))
	newBp := len(m.stack)
	for _, a := range args {
		m.push(a)
	}

	m.bp = newBp
	m.pc = fn.Addr
}

// doReturn implements spec.md §4.4's Return instruction, mirroring doCall's
// stack layout: the two slots immediately below bp hold the return address
// and the caller's saved bp.
func (m *Machine) doReturn() {
	result := m.pop()
	m.stack = m.stack[:m.bp]
	retAddr := m.stack[m.bp-2].I
	savedBp := m.stack[m.bp-1].I
	m.stack = m.stack[:m.bp-2]
	m.push(result)
	m.pc = int(retAddr)
	m.bp = int(savedBp)
}

func (m *Machine) doCallNative(fn *ir.FunctionInfo) error {
	n := len(fn.Params)
	args := m.stack[len(m.stack)-n:]
	result, err := fn.NativeFn(m, args)
	m.truncate(n)
	if err != nil {
		return &RuntimeError{Message: err.Error(), Frames: m.Frames()}
	}
	if fn.RetType != m.prog.Types.Null {
		m.push(result)
	}
	return nil
}

func rotateLeft64(x, k int64) int64 {
	const n = 64
	s := uint(k) & (n - 1)
	return int64(uint64(x)<<s | uint64(x)>>(n-s))
}
