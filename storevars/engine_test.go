package storevars

import (
	"fmt"
	"testing"

	"github.com/mna/apstore/ir"
	"github.com/stretchr/testify/require"
)

const tyFelt ir.TypeID = "felt"

// fakeDB is a minimal in-memory LibfuncDB for unit tests: libfunc ids are
// registered by name, and the four primitives are named deterministically
// from their type so tests can assert on the emitted ids directly.
type fakeDB struct {
	sigs map[ir.LibfuncID]ir.Signature
}

func newFakeDB() *fakeDB { return &fakeDB{sigs: make(map[ir.LibfuncID]ir.Signature)} }

func (db *fakeDB) register(id ir.LibfuncID, sig ir.Signature) { db.sigs[id] = sig }

func (db *fakeDB) Signature(id ir.LibfuncID) (ir.Signature, bool) {
	sig, ok := db.sigs[id]
	return sig, ok
}

func (db *fakeDB) StoreTemp(ty ir.TypeID) ir.LibfuncID {
	return ir.LibfuncID(fmt.Sprintf("store_temp<%s>", ty))
}
func (db *fakeDB) StoreLocal(ty ir.TypeID) ir.LibfuncID {
	return ir.LibfuncID(fmt.Sprintf("store_local<%s>", ty))
}
func (db *fakeDB) Dup(ty ir.TypeID) ir.LibfuncID {
	return ir.LibfuncID(fmt.Sprintf("dup<%s>", ty))
}
func (db *fakeDB) Rename(ty ir.TypeID) ir.LibfuncID {
	return ir.LibfuncID(fmt.Sprintf("rename<%s>", ty))
}

func knownBranch(delta int, outputs ...ir.OutputSpec) ir.BranchSignature {
	return ir.BranchSignature{ApChange: ir.ApChange{Kind: ir.ApKnown, Delta: delta}, Outputs: outputs}
}

func unknownBranch(outputs ...ir.OutputSpec) ir.BranchSignature {
	return ir.BranchSignature{ApChange: ir.ApChange{Kind: ir.ApUnknown}, Outputs: outputs}
}

func fallthroughBranch(results ...ir.VarID) ir.InvocationBranch {
	return ir.InvocationBranch{Target: ir.Fallthrough(), Results: results}
}

func labelBranch(l ir.LabelID, results ...ir.VarID) ir.InvocationBranch {
	return ir.InvocationBranch{Target: ir.ToLabel(l), Results: results}
}

func countInvocations(stmts []ir.Statement, libfunc ir.LibfuncID) int {
	n := 0
	for _, s := range stmts {
		if inv, ok := s.(*ir.Invocation); ok && inv.Libfunc == libfunc {
			n++
		}
	}
	return n
}

func findInvocation(stmts []ir.Statement, libfunc ir.LibfuncID) *ir.Invocation {
	for _, s := range stmts {
		if inv, ok := s.(*ir.Invocation); ok && inv.Libfunc == libfunc {
			return inv
		}
	}
	return nil
}

// Scenario A: a value consumed by a libfunc that forbids deferred operands
// must be materialised with store_temp first.
func TestDeferredConsumeRequiresTemp(t *testing.T) {
	db := newFakeDB()
	db.register("add_deferred", ir.Signature{
		Params:   []ir.ParamSignature{{}, {}},
		Branches: []ir.BranchSignature{knownBranch(2, ir.OutputSpec{Kind: ir.OutputDeferred, Ty: tyFelt, DeferredKind: ir.DeferredGeneric})},
	})
	db.register("consume_strict", ir.Signature{
		Params:   []ir.ParamSignature{{AllowDeferred: false}},
		Branches: []ir.BranchSignature{knownBranch(0)},
	})

	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "add_deferred", Args: []ir.VarID{"a", "b"}, Branches: []ir.InvocationBranch{fallthroughBranch("x")}},
		&ir.Invocation{Libfunc: "consume_strict", Args: []ir.VarID{"x"}, Branches: []ir.InvocationBranch{fallthroughBranch()}},
		&ir.Return{Vars: nil},
	}

	out := AddStoreStatements(db, stmts, nil, []ir.VarID{"a", "b"})

	require.Equal(t, 1, countInvocations(out, "store_temp<felt>"))
	storeTemp := findInvocation(out, "store_temp<felt>")
	require.Equal(t, []ir.VarID{"x"}, storeTemp.Args)

	consume := findInvocation(out, "consume_strict")
	require.Equal(t, storeTemp.Branches[0].Results, consume.Args)
}

// Scenario B: a const deferred passed to a libfunc that allows consts is
// passed through untouched.
func TestConstPassedThrough(t *testing.T) {
	db := newFakeDB()
	db.register("const", ir.Signature{
		Params:   nil,
		Branches: []ir.BranchSignature{knownBranch(0, ir.OutputSpec{Kind: ir.OutputDeferred, Ty: tyFelt, DeferredKind: ir.DeferredConst})},
	})
	db.register("accept_const", ir.Signature{
		Params:   []ir.ParamSignature{{AllowConst: true}},
		Branches: []ir.BranchSignature{knownBranch(0)},
	})

	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "const", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch("k")}},
		&ir.Invocation{Libfunc: "accept_const", Args: []ir.VarID{"k"}, Branches: []ir.InvocationBranch{fallthroughBranch()}},
		&ir.Return{Vars: nil},
	}

	out := AddStoreStatements(db, stmts, nil, nil)

	require.Equal(t, 0, countInvocations(out, "store_temp<felt>"))
	accept := findInvocation(out, "accept_const")
	require.Equal(t, []ir.VarID{"k"}, accept.Args)
}

// Scenario C: a variable marked local is spilled with store_local before an
// invocation whose ap-change is unknown.
func TestLocalSpillBeforeUnknownAp(t *testing.T) {
	db := newFakeDB()
	db.register("make_temp", ir.Signature{
		Branches: []ir.BranchSignature{knownBranch(1, ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: tyFelt})},
	})
	db.register("unknown_ap_call", ir.Signature{
		Branches: []ir.BranchSignature{unknownBranch()},
	})

	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "make_temp", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch("v")}},
		&ir.Invocation{Libfunc: "unknown_ap_call", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch()}},
		&ir.Return{Vars: nil},
	}

	locals := LocalVariables{"v": "v_slot"}
	out := AddStoreStatements(db, stmts, locals, nil)

	storeLocal := findInvocation(out, "store_local<felt>")
	require.NotNil(t, storeLocal)
	require.Equal(t, []ir.VarID{"v_slot", "v"}, storeLocal.Args)

	// store_local must appear before unknown_ap_call.
	var idxLocal, idxCall int = -1, -1
	for i, s := range out {
		if inv, ok := s.(*ir.Invocation); ok {
			if inv.Libfunc == "store_local<felt>" {
				idxLocal = i
			}
			if inv.Libfunc == "unknown_ap_call" {
				idxCall = i
			}
		}
	}
	require.True(t, idxLocal >= 0 && idxCall >= 0 && idxLocal < idxCall)
}

// Scenario D: a PushValues prefix already on top of stack becomes a rename
// rather than a store_temp.
func TestPushValuesPrefixElision(t *testing.T) {
	db := newFakeDB()
	db.register("make_temp", ir.Signature{
		Branches: []ir.BranchSignature{knownBranch(1, ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: tyFelt})},
	})

	// "a" is produced as the sole temp on top of stack, so pushing it to a2
	// is already satisfied and becomes a rename rather than a store_temp.
	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "make_temp", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch("a")}},
		&ir.PushValues{Entries: []ir.PushValue{
			{Var: "a", VarOnStack: "a2", Ty: tyFelt},
		}},
		&ir.Return{Vars: nil},
	}

	out := AddStoreStatements(db, stmts, nil, nil)
	rename := findInvocation(out, "rename<felt>")
	require.NotNil(t, rename)
	require.Equal(t, []ir.VarID{"a"}, rename.Args)
	require.Equal(t, []ir.VarID{"a2"}, rename.Branches[0].Results)
	require.Equal(t, 0, countInvocations(out, "store_temp<felt>"))
}

// Scenario E: pushing a variable with dup=true duplicates it instead of
// consuming it.
func TestDupOnPush(t *testing.T) {
	db := newFakeDB()
	db.register("make_temp", ir.Signature{
		Branches: []ir.BranchSignature{knownBranch(1, ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: tyFelt})},
	})

	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "make_temp", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch("x")}},
		&ir.PushValues{Entries: []ir.PushValue{{Var: "x", VarOnStack: "x2", Ty: tyFelt, Dup: true}}},
		&ir.Return{Vars: nil},
	}

	out := AddStoreStatements(db, stmts, nil, nil)
	dup := findInvocation(out, "dup<felt>")
	require.NotNil(t, dup)
	require.Equal(t, []ir.VarID{"x"}, dup.Args)
	require.Equal(t, []ir.VarID{"x", "x2"}, dup.Branches[0].Results)
}

// Scenario F: a variable registered differently on the fallthrough vs a
// jump-target branch is dropped from the state at the join label.
func TestLabelJoinDropsMismatchedVar(t *testing.T) {
	db := newFakeDB()
	db.register("branchy", ir.Signature{
		Branches: []ir.BranchSignature{
			knownBranch(1, ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: tyFelt}),
			knownBranch(0, ir.OutputSpec{Kind: ir.OutputNewLocalVar}),
		},
	})

	const lbl ir.LabelID = 1
	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "branchy", Args: nil, Branches: []ir.InvocationBranch{
			fallthroughBranch("y"),
			labelBranch(lbl, "y"),
		}},
		&ir.Label{ID: lbl},
		&ir.Return{Vars: nil},
	}

	out := AddStoreStatements(db, stmts, nil, nil)
	require.NotNil(t, out)

	// y must not be live after the join: using it would be a fatal internal
	// error. We verify this by reaching into a second run that references y
	// after the label and confirming it panics.
	stmtsBad := []ir.Statement{
		&ir.Invocation{Libfunc: "branchy", Args: nil, Branches: []ir.InvocationBranch{
			fallthroughBranch("y"),
			labelBranch(lbl, "y"),
		}},
		&ir.Label{ID: lbl},
		&ir.Return{Vars: []ir.VarID{"y"}},
	}
	require.Panics(t, func() {
		AddStoreStatements(db, stmtsBad, nil, nil)
	})
}

func TestReturnMarksUnreachable(t *testing.T) {
	db := newFakeDB()
	stmts := []ir.Statement{
		&ir.Return{Vars: nil},
	}
	out := AddStoreStatements(db, stmts, nil, nil)
	require.Len(t, out, 1)
}

func TestFinalizePanicsOnDanglingLabel(t *testing.T) {
	db := newFakeDB()
	db.register("branchy", ir.Signature{
		Branches: []ir.BranchSignature{knownBranch(0)},
	})
	const lbl ir.LabelID = 42
	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "branchy", Args: nil, Branches: []ir.InvocationBranch{labelBranch(lbl)}},
	}
	require.PanicsWithValue(t, "storevars: internal error: unresolved forward label", func() {
		AddStoreStatements(db, stmts, nil, nil)
	})
}

func TestFinalizePanicsOnReachableTail(t *testing.T) {
	db := newFakeDB()
	db.register("noop", ir.Signature{Branches: []ir.BranchSignature{knownBranch(0)}})
	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "noop", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch()}},
	}
	require.Panics(t, func() {
		AddStoreStatements(db, stmts, nil, nil)
	})
}

// Idempotency: a program with nothing to materialise gets no inserted
// statements, so re-running the pass on its own output adds nothing further.
// (fakeDB registers no signatures for the four primitives, so this only
// covers outputs that contain none of them.)
func TestIdempotentOnTrivialProgram(t *testing.T) {
	db := newFakeDB()
	db.register("make_temp", ir.Signature{
		Branches: []ir.BranchSignature{knownBranch(1, ir.OutputSpec{Kind: ir.OutputNewTempVar, Ty: tyFelt})},
	})

	stmts := []ir.Statement{
		&ir.Invocation{Libfunc: "make_temp", Args: nil, Branches: []ir.InvocationBranch{fallthroughBranch("x")}},
		&ir.Return{Vars: nil},
	}

	out1 := AddStoreStatements(db, stmts, nil, nil)
	out2 := AddStoreStatements(db, out1, nil, nil)
	require.Equal(t, len(out1), len(out2))
}
