package asm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/apstore/ir"
	"github.com/mna/apstore/sigdb"
	"github.com/mna/apstore/storevars"
)

// This file implements a human-writable textual form of a store_variables
// input program, mirroring the section-based, line-oriented grammar of the
// teacher's own compiler assembly format (see compiler.Asm/compiler.Dasm in
// the reference tree) adapted to this pass's data model. It purposefully
// covers only what a test fixture or CLI demo needs to drive the pass: a
// parameter list, a local-variable pre-decision table, a signature catalog,
// and the statement list itself.
//
// Format:
//
//	program:
//
//	params:
//		a
//		b
//
//	locals:
//		v v_slot
//
//	signatures:
//		sig make_temp 0 1 k1 1 tfelt
//		sig consume 1 d 1 k0 0
//
//	code:
//		invoke make_temp 0 1 fallthrough 1 x
//		label 3
//		push 1 x x2 felt 0
//		return 1 x2
//
// See Program for the parsed result.

// Program is the parsed result of Asm: everything needed to call
// storevars.AddStoreStatements, plus the signature catalog it was built
// against (so a CLI can re-use it, e.g. to dump the catalog).
type Program struct {
	Params     []ir.VarID
	Locals     storevars.LocalVariables
	DB         *sigdb.DB
	Statements []ir.Statement
}

var sections = map[string]bool{
	"program:":    true,
	"params:":     true,
	"locals:":     true,
	"signatures:": true,
	"code:":       true,
}

// Asm parses a program from its textual assembly format.
func Asm(b []byte) (*Program, error) {
	a := &asm{s: bufio.NewScanner(bytes.NewReader(b)), prog: &Program{
		Locals: storevars.LocalVariables{},
		DB:     sigdb.New(0),
	}}

	fields := a.next()
	if len(fields) == 0 || !strings.EqualFold(fields[0], "program:") {
		return nil, a.sectionErr("program:", fields)
	}

	fields = a.next()
	fields = a.params(fields)
	fields = a.locals(fields)
	fields = a.signatures(fields)
	fields = a.code(fields)

	if a.err == nil && len(fields) > 0 {
		a.err = fmt.Errorf("asm: unexpected section: %s", fields[0])
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.prog, nil
}

type asm struct {
	s    *bufio.Scanner
	err  error
	prog *Program
}

func (a *asm) sectionErr(want string, fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("asm: expected %s section, found end of input", want)
	}
	return fmt.Errorf("asm: expected %s section, found %s", want, fields[0])
}

func (a *asm) params(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "params:") {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[strings.ToLower(fields[0])]; fields = a.next() {
		if len(fields) != 1 {
			a.err = fmt.Errorf("asm: invalid params entry: %s", strings.Join(fields, " "))
			return fields
		}
		a.prog.Params = append(a.prog.Params, ir.VarID(fields[0]))
	}
	return fields
}

func (a *asm) locals(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "locals:") {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[strings.ToLower(fields[0])]; fields = a.next() {
		if len(fields) != 2 {
			a.err = fmt.Errorf("asm: invalid locals entry: %s", strings.Join(fields, " "))
			return fields
		}
		a.prog.Locals[ir.VarID(fields[0])] = ir.VarID(fields[1])
	}
	return fields
}

func (a *asm) signatures(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "signatures:") {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sections[strings.ToLower(fields[0])]; fields = a.next() {
		if a.err != nil {
			return fields
		}
		a.signature(fields)
	}
	return fields
}

// signature parses one line: sig <id> <paramCount> <paramFlags...> <branchCount> { <apspec> <outCount> <outs...> }...
func (a *asm) signature(fields []string) {
	if len(fields) < 2 || !strings.EqualFold(fields[0], "sig") {
		a.err = fmt.Errorf("asm: invalid signature line: %s", strings.Join(fields, " "))
		return
	}
	id := ir.LibfuncID(fields[1])
	rest := fields[2:]

	paramCount, rest, err := a.popInt(rest)
	if err != nil {
		a.err = err
		return
	}
	params := make([]ir.ParamSignature, paramCount)
	for i := 0; i < paramCount; i++ {
		if len(rest) == 0 {
			a.err = fmt.Errorf("asm: signature %s: missing param flags", id)
			return
		}
		params[i] = parseParamFlags(rest[0])
		rest = rest[1:]
	}

	branchCount, rest, err := a.popInt(rest)
	if err != nil {
		a.err = err
		return
	}
	branches := make([]ir.BranchSignature, branchCount)
	for i := 0; i < branchCount; i++ {
		if len(rest) == 0 {
			a.err = fmt.Errorf("asm: signature %s: missing branch ap-change", id)
			return
		}
		apChange, err := parseApChange(rest[0])
		if err != nil {
			a.err = fmt.Errorf("asm: signature %s: %w", id, err)
			return
		}
		rest = rest[1:]

		outCount, rem, err := a.popInt(rest)
		if err != nil {
			a.err = err
			return
		}
		rest = rem
		outs := make([]ir.OutputSpec, outCount)
		for j := 0; j < outCount; j++ {
			if len(rest) == 0 {
				a.err = fmt.Errorf("asm: signature %s: missing output spec", id)
				return
			}
			spec, err := parseOutputSpec(rest[0])
			if err != nil {
				a.err = fmt.Errorf("asm: signature %s: %w", id, err)
				return
			}
			outs[j] = spec
			rest = rest[1:]
		}
		branches[i] = ir.BranchSignature{ApChange: apChange, Outputs: outs}
	}

	if len(rest) != 0 {
		a.err = fmt.Errorf("asm: signature %s: trailing tokens: %s", id, strings.Join(rest, " "))
		return
	}
	a.prog.DB.Register(id, ir.Signature{Params: params, Branches: branches})
}

func (a *asm) popInt(fields []string) (int, []string, error) {
	if len(fields) == 0 {
		return 0, fields, errors.New("asm: expected an integer, found end of line")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fields, fmt.Errorf("asm: invalid integer %q: %w", fields[0], err)
	}
	return n, fields[1:], nil
}

func parseParamFlags(s string) ir.ParamSignature {
	if s == "-" {
		return ir.ParamSignature{}
	}
	var p ir.ParamSignature
	for _, c := range s {
		switch c {
		case 'd':
			p.AllowDeferred = true
		case 'a':
			p.AllowAddConst = true
		case 'c':
			p.AllowConst = true
		}
	}
	return p
}

func parseApChange(s string) (ir.ApChange, error) {
	if s == "u" {
		return ir.ApChange{Kind: ir.ApUnknown}, nil
	}
	if s == "b" {
		return ir.ApChange{Kind: ir.ApBranchAlign}, nil
	}
	if strings.HasPrefix(s, "k") {
		delta, err := strconv.Atoi(s[1:])
		if err != nil {
			return ir.ApChange{}, fmt.Errorf("invalid ap-change %q: %w", s, err)
		}
		return ir.ApChange{Kind: ir.ApKnown, Delta: delta}, nil
	}
	return ir.ApChange{}, fmt.Errorf("invalid ap-change %q", s)
}

func parseOutputSpec(s string) (ir.OutputSpec, error) {
	switch {
	case s == "l":
		return ir.OutputSpec{Kind: ir.OutputNewLocalVar}, nil
	case strings.HasPrefix(s, "t"):
		return ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: ir.TypeID(s[1:])}, nil
	case strings.HasPrefix(s, "dg"):
		return ir.OutputSpec{Kind: ir.OutputDeferred, DeferredKind: ir.DeferredGeneric, Ty: ir.TypeID(s[2:])}, nil
	case strings.HasPrefix(s, "da"):
		return ir.OutputSpec{Kind: ir.OutputDeferred, DeferredKind: ir.DeferredAddConst, Ty: ir.TypeID(s[2:])}, nil
	case strings.HasPrefix(s, "dc"):
		return ir.OutputSpec{Kind: ir.OutputDeferred, DeferredKind: ir.DeferredConst, Ty: ir.TypeID(s[2:])}, nil
	case strings.HasPrefix(s, "p"):
		idx, err := strconv.Atoi(s[1:])
		if err != nil {
			return ir.OutputSpec{}, fmt.Errorf("invalid output spec %q: %w", s, err)
		}
		return ir.OutputSpec{Kind: ir.OutputSameAsParam, ParamIndex: idx}, nil
	default:
		return ir.OutputSpec{}, fmt.Errorf("invalid output spec %q", s)
	}
}

func (a *asm) code(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "code:") {
		return fields
	}
	for fields = a.next(); len(fields) > 0; fields = a.next() {
		stmt, err := a.statement(fields)
		if err != nil {
			a.err = err
			return fields
		}
		a.prog.Statements = append(a.prog.Statements, stmt)
	}
	return fields
}

func (a *asm) statement(fields []string) (ir.Statement, error) {
	switch strings.ToLower(fields[0]) {
	case "label":
		if len(fields) != 2 {
			return nil, fmt.Errorf("asm: invalid label statement: %s", strings.Join(fields, " "))
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("asm: invalid label id %q: %w", fields[1], err)
		}
		return &ir.Label{ID: ir.LabelID(n)}, nil

	case "return":
		n, rest, err := a.popInt(fields[1:])
		if err != nil {
			return nil, err
		}
		if len(rest) != n {
			return nil, fmt.Errorf("asm: return: expected %d vars, got %d", n, len(rest))
		}
		vars := make([]ir.VarID, n)
		for i, f := range rest {
			vars[i] = ir.VarID(f)
		}
		return &ir.Return{Vars: vars}, nil

	case "push":
		return a.pushStatement(fields[1:])

	case "invoke":
		return a.invokeStatement(fields[1:])

	default:
		return nil, fmt.Errorf("asm: invalid statement: %s", strings.Join(fields, " "))
	}
}

func (a *asm) pushStatement(fields []string) (ir.Statement, error) {
	n, fields, err := a.popInt(fields)
	if err != nil {
		return nil, err
	}
	entries := make([]ir.PushValue, n)
	for i := 0; i < n; i++ {
		if len(fields) < 4 {
			return nil, fmt.Errorf("asm: push: expected var, varOnStack, type, dup-flag")
		}
		entries[i] = ir.PushValue{
			Var:        ir.VarID(fields[0]),
			VarOnStack: ir.VarID(fields[1]),
			Ty:         ir.TypeID(fields[2]),
			Dup:        fields[3] == "1",
		}
		fields = fields[4:]
	}
	if len(fields) != 0 {
		return nil, fmt.Errorf("asm: push: trailing tokens: %s", strings.Join(fields, " "))
	}
	return &ir.PushValues{Entries: entries}, nil
}

func (a *asm) invokeStatement(fields []string) (ir.Statement, error) {
	if len(fields) == 0 {
		return nil, errors.New("asm: invoke: missing libfunc id")
	}
	id := ir.LibfuncID(fields[0])
	rest := fields[1:]

	argc, rest, err := a.popInt(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) < argc {
		return nil, fmt.Errorf("asm: invoke %s: expected %d args", id, argc)
	}
	args := make([]ir.VarID, argc)
	for i := 0; i < argc; i++ {
		args[i] = ir.VarID(rest[i])
	}
	rest = rest[argc:]

	branchc, rest, err := a.popInt(rest)
	if err != nil {
		return nil, err
	}
	branches := make([]ir.InvocationBranch, branchc)
	for i := 0; i < branchc; i++ {
		if len(rest) == 0 {
			return nil, fmt.Errorf("asm: invoke %s: missing branch target", id)
		}
		target, err := parseBranchTarget(rest[0])
		if err != nil {
			return nil, fmt.Errorf("asm: invoke %s: %w", id, err)
		}
		rest = rest[1:]

		resc, rem, err := a.popInt(rest)
		if err != nil {
			return nil, err
		}
		rest = rem
		if len(rest) < resc {
			return nil, fmt.Errorf("asm: invoke %s: expected %d results", id, resc)
		}
		results := make([]ir.VarID, resc)
		for j := 0; j < resc; j++ {
			results[j] = ir.VarID(rest[j])
		}
		rest = rest[resc:]
		branches[i] = ir.InvocationBranch{Target: target, Results: results}
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("asm: invoke %s: trailing tokens: %s", id, strings.Join(rest, " "))
	}
	return &ir.Invocation{Libfunc: id, Args: args, Branches: branches}, nil
}

func parseBranchTarget(s string) (ir.BranchTarget, error) {
	if s == "fallthrough" {
		return ir.Fallthrough(), nil
	}
	if strings.HasPrefix(s, "label") {
		n, err := strconv.Atoi(s[len("label"):])
		if err != nil {
			return ir.BranchTarget{}, fmt.Errorf("invalid branch target %q: %w", s, err)
		}
		return ir.ToLabel(ir.LabelID(n)), nil
	}
	return ir.BranchTarget{}, fmt.Errorf("invalid branch target %q", s)
}

// next returns the fields of the next non-empty, non-comment line, or nil at
// end of input.
func (a *asm) next() []string {
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		line := a.s.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) != 0 {
			return fields
		}
	}
	a.err = a.s.Err()
	return nil
}
