package asm_test

import (
	"testing"

	"github.com/mna/apstore/asm"
	"github.com/mna/apstore/ir"
	"github.com/mna/apstore/storevars"
	"github.com/stretchr/testify/require"
)

const sampleProgram = `
program:

params:
	a

locals:
	v v_slot

signatures:
	sig make_temp 0 1 k1 1 tfelt
	sig consume 1 d 1 k0 0
	sig branchy 0 2 k1 1 tfelt k0 1 l

code:
	invoke make_temp 0 1 fallthrough 1 x
	invoke consume 1 x 1 fallthrough 0
	invoke branchy 0 2 fallthrough 1 y label3 1 y
	label 3
	return 1 a
`

func TestAsmParsesProgram(t *testing.T) {
	p, err := asm.Asm([]byte(sampleProgram))
	require.NoError(t, err)

	require.Equal(t, []ir.VarID{"a"}, p.Params)
	require.Equal(t, storevars.LocalVariables{"v": "v_slot"}, p.Locals)
	require.Len(t, p.Statements, 5)

	sig, ok := p.DB.Signature("make_temp")
	require.True(t, ok)
	require.Equal(t, ir.ApKnown, sig.Branches[0].ApChange.Kind)
	require.Equal(t, 1, sig.Branches[0].ApChange.Delta)
	require.Equal(t, ir.OutputNewTempVar, sig.Branches[0].Outputs[0].Kind)
	require.Equal(t, ir.TypeID("felt"), sig.Branches[0].Outputs[0].Ty)

	sig, ok = p.DB.Signature("consume")
	require.True(t, ok)
	require.True(t, sig.Params[0].AllowDeferred)
	require.False(t, sig.Params[0].AllowConst)
}

func TestAsmRunsThroughStorevars(t *testing.T) {
	p, err := asm.Asm([]byte(sampleProgram))
	require.NoError(t, err)

	out := storevars.AddStoreStatements(p.DB, p.Statements, p.Locals, p.Params)
	require.NotEmpty(t, out)

	dumped, err := asm.Dasm(out)
	require.NoError(t, err)
	require.Contains(t, string(dumped), "code:\n")
}

func TestAsmRejectsUnknownSection(t *testing.T) {
	_, err := asm.Asm([]byte("program:\nbogus:\n"))
	require.Error(t, err)
}

func TestAsmRejectsMalformedSignature(t *testing.T) {
	_, err := asm.Asm([]byte("program:\nsignatures:\n\tsig broken not-a-number\ncode:\n"))
	require.Error(t, err)
}
