// Package asm implements a human-readable textual dump of a statement
// sequence (Dasm, in this file) and a parser for the pass's textual input
// program format (Asm, in parse.go). The dump format is not the input
// format: Dasm output cannot be fed back to Asm. Both are used for
// golden-file tests and CLI inspection.
package asm

import (
	"bytes"
	"fmt"

	"github.com/mna/apstore/ir"
)

// Dasm writes statements to their textual dump form.
func Dasm(statements []ir.Statement) ([]byte, error) {
	d := &dasm{buf: new(bytes.Buffer)}
	d.write("code:\n")
	for i, stmt := range statements {
		d.statement(i, stmt)
	}
	return d.buf.Bytes(), d.err
}

type dasm struct {
	buf *bytes.Buffer
	err error
}

func (d *dasm) statement(i int, stmt ir.Statement) {
	switch s := stmt.(type) {
	case *ir.Label:
		d.writef("label:\t%d\t# %03d\n", s.ID, i)
	case *ir.Return:
		d.writef("return:\t%s\t# %03d\n", joinVars(s.Vars), i)
	case *ir.Invocation:
		d.invocation(i, s)
	case *ir.PushValues:
		d.pushValues(i, s)
	default:
		d.err = fmt.Errorf("asm: unknown statement type %T at index %d", stmt, i)
	}
}

func (d *dasm) invocation(i int, inv *ir.Invocation) {
	d.writef("\t%s(%s)", inv.Libfunc, joinVars(inv.Args))
	for _, br := range inv.Branches {
		if br.Target.Kind == ir.TargetFallthrough {
			d.write(" fallthrough")
		} else {
			d.writef(" label(%d)", br.Target.Label)
		}
		d.writef(" -> %s;", joinVars(br.Results))
	}
	d.writef("\t# %03d\n", i)
}

func (d *dasm) pushValues(i int, push *ir.PushValues) {
	d.write("\tpush:")
	for _, e := range push.Entries {
		op := "store"
		if e.Dup {
			op = "dup"
		}
		d.writef(" %s<%s>(%s)->%s", op, e.Ty, e.Var, e.VarOnStack)
	}
	d.writef("\t# %03d\n", i)
}

func joinVars(vars []ir.VarID) string {
	var buf bytes.Buffer
	for i, v := range vars {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(string(v))
	}
	return buf.String()
}

func (d *dasm) writef(format string, args ...any) {
	d.write(fmt.Sprintf(format, args...))
}

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
