package storevars

import "github.com/mna/apstore/ir"

// storeTempAsLocal spills var, if it is both live as a TempVar and marked in
// e.locals, to its pre-allocated local slot. Reports whether it did.
func (e *Engine) storeTempAsLocal(varID ir.VarID) bool {
	slot, ok := e.locals[varID]
	if !ok {
		return false
	}
	st, ok := e.state().Variables.Get(varID)
	if !ok {
		return false
	}
	tv, ok := st.(TempVar)
	if !ok {
		return false
	}
	e.state().Variables.Remove(varID)
	e.storeLocal(varID, slot, tv.Ty)
	return true
}

// storeVariablesAsLocals spills every live variable that is both marked in
// e.locals and not already a LocalVar. Used ahead of an invocation whose
// ap-change is unknown, since such variables would otherwise be revoked.
//
// Candidates are collected first and mutated after, to avoid iterating
// Variables while removing from it.
func (e *Engine) storeVariablesAsLocals() {
	type pending struct {
		id   ir.VarID
		slot ir.VarID
		ty   ir.TypeID
	}
	var toStore []pending
	e.state().Variables.Each(func(id ir.VarID, st VarState) {
		slot, ok := e.locals[id]
		if !ok {
			return
		}
		switch v := st.(type) {
		case DeferredVar:
			toStore = append(toStore, pending{id: id, slot: slot, ty: v.Info.Ty})
		case TempVar:
			toStore = append(toStore, pending{id: id, slot: slot, ty: v.Ty})
		case LocalVar:
			// already local, nothing to do.
		}
	})

	for _, p := range toStore {
		if _, ok := e.state().Variables.Remove(p.id); !ok {
			panic("storevars: internal error: variable disappeared before spilling: " + string(p.id))
		}
		e.storeLocal(p.id, p.slot, p.ty)
	}
}

// storeAllPossiblyLostVariables spills or re-materialises every live
// variable whose stack position is not guaranteed to survive a multi-branch
// invocation: TempVars are spilled to a local if marked (otherwise simply
// lost, since nothing further references their known-stack position once it
// is cleared); non-const Deferreds are materialised via storeDeferred;
// consts are cheap to re-materialise later and are left alone; LocalVars are
// untouched.
func (e *Engine) storeAllPossiblyLostVariables() {
	for _, entry := range e.state().Variables.snapshot() {
		switch v := entry.state.(type) {
		case TempVar:
			e.storeTempAsLocal(entry.id)
		case DeferredVar:
			if v.Info.Kind != ir.DeferredConst {
				e.state().Variables.Remove(entry.id)
				e.storeDeferred(entry.id, v.Info.Ty)
			}
		case LocalVar:
			// untouched
		}
	}
}
