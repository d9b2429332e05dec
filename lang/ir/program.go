// Package ir defines the shared intermediate representation the compiler
// emits and the virtual machine executes: instructions, the evaluation
// value type, function/variable metadata, and the Program that owns all of
// it across (possibly many, in REPL use) compile calls.
package ir

import (
	"github.com/blik-lang/blik/lang/types"
	"github.com/dolthub/swiss"
)

// SourceEntry is one (IR address, line) pair in a source map.
type SourceEntry struct {
	IRAddr int
	Line   int
}

// Source is the per-file source map: a sorted list of (ir_addr, line)
// entries used to recover the file/line of any instruction (spec.md
// §4.3.6).
type Source struct {
	Filename string
	Text     string // original source, kept for caret rendering
	Entries  []SourceEntry
}

// Program owns everything a compile call can mutate: the linear IR, the
// type registry, every function prototype (chained into overload rings),
// every global variable, the per-file source maps, and the string
// interning arena. A Program may already contain IR and metadata from
// prior REPL inputs and pre-registered host functions/globals when a new
// compile call begins.
type Program struct {
	IR []Instruction

	Types *types.Registry

	Functions     []*FunctionInfo
	functionHeads *swiss.Map[string, *FunctionInfo]

	Variables     []*VariableInfo
	variablesByName *swiss.Map[string, *VariableInfo]

	Sources []*Source

	strings *swiss.Map[string, *string]
}

// NewProgram creates an empty Program with the primitive type registry
// already populated.
func NewProgram() *Program {
	return &Program{
		Types:           types.NewRegistry(),
		functionHeads:   swiss.NewMap[string, *FunctionInfo](8),
		variablesByName: swiss.NewMap[string, *VariableInfo](8),
		strings:         swiss.NewMap[string, *string](64),
	}
}

// Intern returns a pointer-stable *string for s: the same spelling always
// yields the same pointer (spec.md §3 invariant (iii)).
func (p *Program) Intern(s string) *string {
	if existing, ok := p.strings.Get(s); ok {
		return existing
	}
	interned := new(string)
	*interned = s
	p.strings.Put(s, interned)
	return interned
}

// FunctionHead returns the head of the overload ring for name, if any
// function with that name has been registered.
func (p *Program) FunctionHead(name string) (*FunctionInfo, bool) {
	return p.functionHeads.Get(name)
}

// RegisterFunction appends fn to Functions and links it into the overload
// ring for fn.Name, creating the ring if this is the first function with
// that name.
func (p *Program) RegisterFunction(fn *FunctionInfo) {
	head, _ := p.functionHeads.Get(fn.Name)
	newHead := RingInsert(head, fn)
	p.functionHeads.Put(fn.Name, newHead)
	p.Functions = append(p.Functions, fn)
}

// Global looks up a declared global variable by name.
func (p *Program) Global(name string) (*VariableInfo, bool) {
	return p.variablesByName.Get(name)
}

// DeclareGlobal registers v as a new global, assigning it the next free
// slot in declaration order, and returns that slot.
func (p *Program) DeclareGlobal(v *VariableInfo) int {
	v.IsGlobal = true
	v.Offset = len(p.Variables)
	p.Variables = append(p.Variables, v)
	p.variablesByName.Put(v.Name, v)
	return v.Offset
}

// SetGlobalBinding overwrites the name->VariableInfo binding without
// allocating a new slot (a nil v removes the name); the compiler uses it
// to bind a top-level alias `let` to the aliased global's VariableInfo.
func (p *Program) SetGlobalBinding(name string, v *VariableInfo) {
	if v == nil {
		p.variablesByName.Delete(name)
		return
	}
	p.variablesByName.Put(name, v)
}

// Emit appends an instruction to the IR and returns its address.
func (p *Program) Emit(insn Instruction) int {
	addr := len(p.IR)
	p.IR = append(p.IR, insn)
	return addr
}

// Snapshot captures everything needed to roll the Program back to its
// current state after a failed compile call (spec.md §4.3.5).
type Snapshot struct {
	irLen        int
	sourcesLen   int
	sourceEntryLens []int
	variablesLen int
	functionsLen int
	headsCopy    map[string]*FunctionInfo
}

// Snapshot captures the Program's current sizes and overload-ring head
// bindings.
func (p *Program) Snapshot() *Snapshot {
	s := &Snapshot{
		irLen:        len(p.IR),
		sourcesLen:   len(p.Sources),
		variablesLen: len(p.Variables),
		functionsLen: len(p.Functions),
		headsCopy:    make(map[string]*FunctionInfo, p.functionHeads.Count()),
	}
	p.functionHeads.Iter(func(name string, head *FunctionInfo) bool {
		s.headsCopy[name] = head
		return false
	})
	s.sourceEntryLens = make([]int, len(p.Sources))
	for i, src := range p.Sources {
		s.sourceEntryLens[i] = len(src.Entries)
	}
	return s
}

// Restore reverts the Program to exactly the state captured by s, undoing
// any IR, source map, variable, or function ring changes made since
// Snapshot was called. The byte-image of the Program is equal to what it
// was before the failed compile call (spec.md §4.3.5, §8 rollback
// property).
func (p *Program) Restore(s *Snapshot) {
	// Unlink newly-registered functions from their overload rings before
	// truncating Functions, so surviving ring members' prev/next pointers
	// never dangle.
	for _, fn := range p.Functions[s.functionsLen:] {
		fn.OverloadPrev.OverloadNext = fn.OverloadNext
		fn.OverloadNext.OverloadPrev = fn.OverloadPrev
	}
	p.Functions = p.Functions[:s.functionsLen]

	newHeads := swiss.NewMap[string, *FunctionInfo](uint32(len(s.headsCopy)) + 1)
	for name, head := range s.headsCopy {
		newHeads.Put(name, head)
	}
	p.functionHeads = newHeads

	for _, v := range p.Variables[s.variablesLen:] {
		p.variablesByName.Delete(v.Name)
		if v.Shadow != nil {
			p.variablesByName.Put(v.Name, v.Shadow)
		}
	}
	p.Variables = p.Variables[:s.variablesLen]

	p.IR = p.IR[:s.irLen]

	for i, src := range p.Sources {
		if i < len(s.sourceEntryLens) {
			src.Entries = src.Entries[:s.sourceEntryLens[i]]
		}
	}
	p.Sources = p.Sources[:s.sourcesLen]
}

// SourceFor returns the Source for filename, creating it if necessary.
func (p *Program) SourceFor(filename, text string) *Source {
	for _, src := range p.Sources {
		if src.Filename == filename {
			return src
		}
	}
	src := &Source{Filename: filename, Text: text}
	p.Sources = append(p.Sources, src)
	return src
}

// Mark appends a (ir_addr, line) entry to src, collapsing it with the
// previous entry if they share the same IR address (spec.md §4.3.6: "the
// last wins").
func (src *Source) Mark(addr, line int) {
	if n := len(src.Entries); n > 0 && src.Entries[n-1].IRAddr == addr {
		src.Entries[n-1].Line = line
		return
	}
	src.Entries = append(src.Entries, SourceEntry{IRAddr: addr, Line: line})
}

// Finalize sorts the source map ascending by IR address, as spec.md
// §4.3.6 requires after compilation completes.
func (src *Source) Finalize() {
	sortEntries(src.Entries)
}

// LineAt returns the line number associated with the greatest recorded IR
// address not exceeding addr, via binary search.
func (src *Source) LineAt(addr int) int {
	i := searchEntries(src.Entries, addr)
	if i < 0 {
		return 0
	}
	return src.Entries[i].Line
}
