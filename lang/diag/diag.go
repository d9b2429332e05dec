// Package diag implements compiler and runtime diagnostics: caret-anchored
// error reports with hint chaining, the REPL's CompileReport (open-block
// depth and unexpected-EOF detection), and the FrameInfo records that the
// VM's call-frame decoding fills in for runtime errors.
package diag

import (
	"fmt"
	"strings"

	"github.com/blik-lang/blik/lang/token"
	"golang.org/x/exp/slices"
)

// Level identifies the severity of a message sent to the host logging
// callback (spec "Core -> Host" logging callback).
type Level int

const (
	Debug Level = iota
	Info
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger receives (level, context, message) triples from the core. Context
// is typically a component name ("compiler", "vm", "repl").
type Logger func(level Level, context, message string)

// Hint is a secondary diagnostic attached to a prior position: the
// declaration site of a shadowed variable, the other candidate of an
// ambiguous overload, etc.
type Hint struct {
	Pos     token.Position
	Message string
}

// Diagnostic is a single compiler error: a primary position/message plus
// zero or more hints.
type Diagnostic struct {
	Pos     token.Position
	Message string
	Hints   []Hint
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.Pos, d.Message)
	for _, h := range d.Hints {
		fmt.Fprintf(&sb, "\n\thint: %s: %s", h.Pos, h.Message)
	}
	return sb.String()
}

// AddHint attaches a secondary diagnostic to d.
func (d *Diagnostic) AddHint(pos token.Position, format string, args ...interface{}) {
	d.Hints = append(d.Hints, Hint{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// List accumulates diagnostics in the order they were raised and can sort
// itself by source position, mirroring go/scanner.ErrorList's shape
// (the teacher's scanner package aliases that type directly; List is the
// equivalent extended with hint chaining spec.md §4.5 requires, since
// go/scanner.Error has no room for a hint chain).
type List struct {
	items []*Diagnostic
}

// Add appends a new diagnostic with no hints yet. Use the returned
// *Diagnostic to attach hints via AddHint.
func (l *List) Add(pos token.Position, format string, args ...interface{}) *Diagnostic {
	d := &Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...)}
	l.items = append(l.items, d)
	return d
}

// Len reports the number of diagnostics accumulated.
func (l *List) Len() int { return len(l.items) }

// Items returns the accumulated diagnostics in insertion order.
func (l *List) Items() []*Diagnostic { return l.items }

// Reset discards all accumulated diagnostics.
func (l *List) Reset() { l.items = l.items[:0] }

// Sort orders diagnostics by filename then line then offset.
func (l *List) Sort() {
	slices.SortFunc(l.items, func(a, b *Diagnostic) int {
		if a.Pos.Filename != b.Pos.Filename {
			if a.Pos.Filename < b.Pos.Filename {
				return -1
			}
			return 1
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line - b.Pos.Line
		}
		return a.Pos.Offset - b.Pos.Offset
	})
}

// Err returns nil if l is empty, else l itself as an error.
func (l *List) Err() error {
	if len(l.items) == 0 {
		return nil
	}
	return l
}

func (l *List) Error() string {
	switch len(l.items) {
	case 0:
		return "no errors"
	case 1:
		return l.items[0].Error()
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d errors:", len(l.items))
		for _, d := range l.items {
			sb.WriteByte('\n')
			sb.WriteString(d.Error())
		}
		return sb.String()
	}
}

// Render formats a diagnostic with a caret anchored under the offending
// byte offset within its source line, as spec.md §4.5 requires.
func Render(d *Diagnostic, source string) string {
	line := lineText(source, d.Pos)
	col := caretColumn(source, d.Pos)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: error: %s\n", d.Pos, d.Message)
	if line != "" {
		sb.WriteString("  " + line + "\n")
		sb.WriteString("  " + strings.Repeat(" ", col) + "^\n")
	}
	for _, h := range d.Hints {
		hline := lineText(source, h.Pos)
		hcol := caretColumn(source, h.Pos)
		fmt.Fprintf(&sb, "%s: hint: %s\n", h.Pos, h.Message)
		if hline != "" {
			sb.WriteString("  " + hline + "\n")
			sb.WriteString("  " + strings.Repeat(" ", hcol) + "^\n")
		}
	}
	return sb.String()
}

func lineStart(source string, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	i := strings.LastIndexByte(source[:offset], '\n')
	return i + 1
}

func lineText(source string, pos token.Position) string {
	if pos.Offset < 0 || pos.Offset > len(source) {
		return ""
	}
	start := lineStart(source, pos.Offset)
	end := strings.IndexByte(source[start:], '\n')
	if end < 0 {
		return source[start:]
	}
	return source[start : start+end]
}

func caretColumn(source string, pos token.Position) int {
	start := lineStart(source, pos.Offset)
	if pos.Offset < start {
		return 0
	}
	return pos.Offset - start
}

// CompileReport is returned by Compile. It reports whether the open block
// depth is nonzero (the source ended with unclosed begin/if/while/for/func
// blocks) and whether the failure was specifically an unexpected end of
// file, which the REPL uses to decide whether to prompt for more input
// instead of surfacing the error.
type CompileReport struct {
	Diagnostics   *List
	Depth         int
	UnexpectedEOF bool
}

// OK reports whether compilation produced no diagnostics.
func (r *CompileReport) OK() bool { return r == nil || r.Diagnostics == nil || r.Diagnostics.Len() == 0 }

// FrameInfo describes one decoded call frame for runtime error reports and
// interactive stack inspection (spec.md §4.5 decode_frames).
type FrameInfo struct {
	FuncName string
	Filename string
	Line     int
	PC       int
}

func (f FrameInfo) String() string {
	name := f.FuncName
	if name == "" {
		name = "<top-level>"
	}
	return fmt.Sprintf("%s (%s:%d)", name, f.Filename, f.Line)
}
