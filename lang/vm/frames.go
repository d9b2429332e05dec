package vm

import (
	"sort"

	"github.com/blik-lang/blik/lang/diag"
	"github.com/blik-lang/blik/lang/ir"
)

// decodeFrames walks the call stack starting at (pc, bp), implementing
// spec.md §4.5's decode_frames: the current frame's function is the most
// recent FunctionInfo with Addr <= pc; successive frames are recovered by
// reading stack[bp-2] (return pc) and stack[bp-1] (saved bp) until bp == 0.
func decodeFrames(prog *ir.Program, pc, bp int, stack []ir.Value) []diag.FrameInfo {
	var frames []diag.FrameInfo
	for {
		fn := functionAt(prog, pc)
		name := ""
		if fn != nil {
			name = fn.Name
		}
		filename, line := "", 0
		if src := primarySource(prog); src != nil {
			filename = src.Filename
			line = src.LineAt(pc)
		}
		frames = append(frames, diag.FrameInfo{FuncName: name, Filename: filename, Line: line, PC: pc})

		if bp == 0 {
			break
		}
		pc = int(stack[bp-2].I)
		bp = int(stack[bp-1].I)
	}
	return frames
}

// functionAt returns the FunctionInfo with the greatest Addr not exceeding
// pc, via binary search over every compiled (Blik-mode) function.
func functionAt(prog *ir.Program, pc int) *ir.FunctionInfo {
	var candidates []*ir.FunctionInfo
	for _, fn := range prog.Functions {
		if fn.Mode == ir.Blik && fn.Addr != ir.NoAddr {
			candidates = append(candidates, fn)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Addr < candidates[j].Addr })

	i := sort.Search(len(candidates), func(i int) bool { return candidates[i].Addr > pc })
	if i == 0 {
		return nil
	}
	return candidates[i-1]
}

// primarySource returns the first registered Source, the common case of a
// single-file program or REPL session; a multi-file host would need to
// track which Source a given pc falls within, which blik does not support
// (spec.md §6 "no wire format or persisted state" implies one file per
// running Program in practice).
func primarySource(prog *ir.Program) *ir.Source {
	if len(prog.Sources) == 0 {
		return nil
	}
	return prog.Sources[0]
}
