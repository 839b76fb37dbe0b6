package storevars

import "github.com/mna/apstore/ir"

// simpleInvocation builds the positional single-branch, fallthrough-only
// invocation statement used to represent the four primitive ops this pass
// emits (inputs then outputs, per SPEC_FULL.md §6).
func simpleInvocation(libfunc ir.LibfuncID, args, results []ir.VarID) *ir.Invocation {
	return &ir.Invocation{
		Libfunc: libfunc,
		Args:    args,
		Branches: []ir.InvocationBranch{
			{Target: ir.Fallthrough(), Results: results},
		},
	}
}

// storeTemp emits store_temp<ty>(var) -> varOnStack: materialises var to a
// fresh stack cell named varOnStack, pushes it onto the known stack, and
// records it as a TempVar.
func (e *Engine) storeTemp(varID, varOnStack ir.VarID, ty ir.TypeID) {
	e.emit(simpleInvocation(e.db.StoreTemp(ty), []ir.VarID{varID}, []ir.VarID{varOnStack}))
	e.state().Stack.Push(varOnStack)
	e.state().Variables.Insert(varOnStack, TempVar{Ty: ty})
}

// storeLocal emits store_local<ty>(slot, var) -> var: writes var into its
// pre-allocated frame slot and records it as a LocalVar.
func (e *Engine) storeLocal(varID, slot ir.VarID, ty ir.TypeID) {
	e.emit(simpleInvocation(e.db.StoreLocal(ty), []ir.VarID{slot, varID}, []ir.VarID{varID}))
	e.state().Variables.Insert(varID, LocalVar{})
}

// dup emits dup<ty>(var) -> (var, dupVar): duplicates var, keeping both
// live. The caller is responsible for updating Variables/Stack for whichever
// of the two resulting names it cares about; dup itself has no implicit
// state effect (per SPEC_FULL.md §4.2).
func (e *Engine) dup(varID, dupVar ir.VarID, ty ir.TypeID) {
	e.emit(simpleInvocation(e.db.Dup(ty), []ir.VarID{varID}, []ir.VarID{varID, dupVar}))
}

// renameVar emits rename<ty>(src) -> dst: a zero-cost alias, and updates
// both the known stack and the variables map to reflect the new name.
func (e *Engine) renameVar(src, dst ir.VarID, ty ir.TypeID) {
	e.emit(simpleInvocation(e.db.Rename(ty), []ir.VarID{src}, []ir.VarID{dst}))
	e.state().renameVar(src, dst)
}
