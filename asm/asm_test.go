package asm_test

import (
	"testing"

	"github.com/mna/apstore/asm"
	"github.com/mna/apstore/ir"
	"github.com/stretchr/testify/require"
)

func TestDasm(t *testing.T) {
	stmts := []ir.Statement{
		&ir.Invocation{
			Libfunc: "store_temp<felt>",
			Args:    []ir.VarID{"x"},
			Branches: []ir.InvocationBranch{
				{Target: ir.Fallthrough(), Results: []ir.VarID{"x0"}},
			},
		},
		&ir.Label{ID: 3},
		&ir.PushValues{Entries: []ir.PushValue{
			{Var: "x0", VarOnStack: "x1", Ty: "felt"},
			{Var: "y", VarOnStack: "y1", Ty: "felt", Dup: true},
		}},
		&ir.Return{Vars: []ir.VarID{"x1", "y1"}},
	}

	out, err := asm.Dasm(stmts)
	require.NoError(t, err)
	require.Contains(t, string(out), "code:\n")
	require.Contains(t, string(out), "store_temp<felt>(x) fallthrough -> x0;")
	require.Contains(t, string(out), "label:\t3")
	require.Contains(t, string(out), "store<felt>(x0)->x1")
	require.Contains(t, string(out), "dup<felt>(y)->y1")
	require.Contains(t, string(out), "return:\tx1,y1")
}
