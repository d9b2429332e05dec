package compiler

import (
	"strings"

	"github.com/blik-lang/blik/lang/ir"
	"github.com/blik-lang/blik/lang/token"
	"github.com/blik-lang/blik/lang/types"
)

// prototypePrePass scans every top-level `func` ahead of the main parse and
// registers its name/parameter types/return type as a FunctionInfo, without
// touching c.pos's main cursor or emitting any IR (spec.md §4.3.1 "the
// parser needs every function's signature available before compiling the
// first call to it, including forward and mutually-recursive references").
// It is a lightweight re-entry of the same token cursor machinery the real
// parse uses, restored to c.pos afterward.
func (c *Compiler) prototypePrePass() {
	savedPos := c.pos
	defer func() { c.pos = savedPos }()

	for _, funcTokIdx := range c.tf.Funcs {
		c.pos = funcTokIdx + 1
		c.parsePrototype()
	}
}

// parsePrototype parses `name(p1: T1, p2: T2, ...): RetType` at c.pos
// (already past the `func` keyword) and registers the resulting
// FunctionInfo, checking for duplicate/ambiguous overloads against every
// function already sharing the name (spec.md §4.3.4).
func (c *Compiler) parsePrototype() {
	nameTok, ok := c.expect(token.IDENT)
	if !ok {
		return
	}
	name := nameTok.Str

	c.expect(token.LPAREN)
	c.skipEOLs()
	var params []ir.Param
	if c.cur().Kind != token.RPAREN {
		for {
			c.skipEOLs()
			if c.cur().Kind == token.MUT {
				c.advanceTok()
			}
			pnameTok, _ := c.expect(token.IDENT)
			c.expect(token.COLON)
			ptype := c.parseTypeName()
			params = append(params, ir.Param{Name: pnameTok.Str, Type: ptype})
			c.skipEOLs()
			if c.cur().Kind != token.COMMA {
				break
			}
			c.advanceTok()
		}
		c.skipEOLs()
	}
	c.expect(token.RPAREN)

	ret := c.prog.Types.Null
	if c.cur().Kind == token.COLON {
		c.advanceTok()
		ret = c.parseTypeName()
	}

	sig := buildSignature(name, params, ret, c.prog.Types.Null)
	fn := ir.NewFunctionInfo(name, sig, params, ret)
	fn.Mode = ir.Blik

	if head, exists := c.prog.FunctionHead(name); exists {
		for _, other := range ir.RingMembers(head) {
			if fn.Overlaps(other) {
				if other.RetType == fn.RetType {
					c.errorfAt(c.posOf(nameTok), "'%s' is already defined with this signature", sig)
				} else {
					c.errorfAt(c.posOf(nameTok), "'%s' differs from an existing overload only by return type", sig)
				}
				return
			}
		}
	}
	c.prog.RegisterFunction(fn)
}

// parseTypeName consumes a single type identifier and resolves it against
// the Program's type registry.
func (c *Compiler) parseTypeName() *types.Info {
	t, ok := c.expect(token.IDENT)
	if !ok {
		return c.prog.Types.Null
	}
	info, found := c.prog.Types.Lookup(t.Str)
	if !found {
		c.errorfAt(c.posOf(t), "unknown type '%s'", t.Str)
		return c.prog.Types.Null
	}
	return info
}

func buildSignature(name string, params []ir.Param, ret, nullType *types.Info) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.Signature)
	}
	sb.WriteByte(')')
	if ret != nullType {
		sb.WriteString(": ")
		sb.WriteString(ret.Signature)
	}
	return sb.String()
}
