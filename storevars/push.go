package storevars

import "github.com/mna/apstore/ir"

// pushValues implements SPEC_FULL.md §4.1.4: materialise a sequence of
// variables at the top of stack, in order, eliding redundant stores when a
// prefix of the requested sequence is already resident there.
func (e *Engine) pushValues(push *ir.PushValues) {
	entries := push.Entries
	if len(entries) == 0 {
		e.emit(push)
		return
	}

	want := make([]ir.VarID, len(entries))
	for i, pv := range entries {
		want[i] = pv.Var
	}
	prefixSize := e.state().Stack.ComputeOnStackPrefixSize(want)

	for i, pv := range entries {
		st, ok := e.state().Variables.Remove(pv.Var)
		if !ok {
			panic("storevars: internal error: unknown state for variable " + string(pv.Var))
		}

		if dv, isDeferred := st.(DeferredVar); isDeferred {
			if dv.Info.Kind == ir.DeferredConst {
				// Consts are cheap to re-materialise; the dup=true case is an
				// intentional workaround preserved verbatim from the original
				// (see SPEC_FULL.md §9's open question): it emits both a dup
				// and a self-store_temp rather than a single store_temp twice.
				if pv.Dup {
					e.dup(pv.Var, pv.VarOnStack, pv.Ty)
					e.storeTemp(pv.VarOnStack, pv.VarOnStack, pv.Ty)
					e.state().Variables.Insert(pv.Var, dv)
				} else {
					e.storeTemp(pv.Var, pv.VarOnStack, pv.Ty)
				}
				continue
			}

			result := e.storeDeferredAs(pv.Var, pv.VarOnStack, dv.Info.Ty)
			if _, isTemp := result.(TempVar); isTemp {
				if pv.Dup {
					// var is still wanted as a live temp; dup the now-materialised
					// var_on_stack back into it.
					e.state().Variables.Insert(pv.Var, TempVar{Ty: pv.Ty})
					e.dup(pv.VarOnStack, pv.Var, pv.Ty)
				}
				continue
			}
			// Stored as a local instead: var is alive again (as LocalVar) but
			// still needs placing on top of stack for this push, handled below.
			e.storeFromCurrentPlacement(pv, pv.Dup)
			continue
		}

		// TempVar or LocalVar: still live, re-insert as-is.
		e.state().Variables.Insert(pv.Var, st)
		onStack := i < prefixSize
		if onStack {
			if pv.Dup {
				e.state().Variables.Insert(pv.VarOnStack, st)
				e.dup(pv.Var, pv.VarOnStack, pv.Ty)
			} else {
				e.renameVar(pv.Var, pv.VarOnStack, pv.Ty)
			}
		} else {
			e.storeFromCurrentPlacement(pv, pv.Dup)
		}
	}

	e.emit(push)
}

// storeFromCurrentPlacement emits the store_temp (optionally preceded by a
// dup) that places pv.Var's already-materialised value at pv.VarOnStack.
func (e *Engine) storeFromCurrentPlacement(pv ir.PushValue, dup bool) {
	src := pv.Var
	if dup {
		e.dup(pv.Var, pv.VarOnStack, pv.Ty)
		src = pv.VarOnStack
	}
	e.storeTemp(src, pv.VarOnStack, pv.Ty)
}
