package storevars

import "github.com/mna/apstore/ir"

// prepareLibfuncArguments consumes args (removing each from the live
// variables map) and returns the VarState each ends up in after any
// required materialisation, in argument order. The returned slice is kept
// around so that a later OutputSameAsParam can re-use the placement of the
// corresponding argument (see registerOutputs).
func (e *Engine) prepareLibfuncArguments(args []ir.VarID, params []ir.ParamSignature) []VarState {
	states := make([]VarState, len(args))
	for i, a := range args {
		states[i] = e.prepareLibfuncArgument(a, params[i])
		// The argument is linearly consumed. prepareLibfuncArgument and
		// storeDeferred may have re-inserted it (as a TempVar or LocalVar) for
		// their own bookkeeping; remove it again so that no argument stays
		// live under its own name. Its placement is carried by states[i].
		e.state().Variables.Remove(a)
	}
	return states
}

// prepareLibfuncArgument prepares a single argument for use, per
// SPEC_FULL.md §4.1.1 step A.
func (e *Engine) prepareLibfuncArgument(arg ir.VarID, param ir.ParamSignature) VarState {
	st, ok := e.state().Variables.Remove(arg)
	if !ok {
		panic("storevars: internal error: unknown state for variable " + string(arg))
	}

	switch v := st.(type) {
	case LocalVar:
		return v

	case TempVar:
		e.state().Variables.Insert(arg, v)
		if e.storeTempAsLocal(arg) {
			return LocalVar{}
		}
		return v

	case DeferredVar:
		if _, isLocal := e.locals[arg]; isLocal {
			// A deferred argument marked as local must be stored now (as a
			// local, not a temp) so that an aliased use via OutputSameAsParam
			// still observes a valid placement.
			return e.storeDeferred(arg, v.Info.Ty)
		}
		allowed := false
		switch v.Info.Kind {
		case ir.DeferredConst:
			allowed = param.AllowConst
		case ir.DeferredAddConst:
			allowed = param.AllowAddConst
		case ir.DeferredGeneric:
			allowed = param.AllowDeferred
		}
		if !allowed {
			return e.storeDeferred(arg, v.Info.Ty)
		}
		return v

	default:
		panic("storevars: internal error: unhandled VarState")
	}
}

// storeDeferred materialises var (currently removed from Variables) into a
// temp or a local, depending on whether it is marked in e.locals. Returns
// the resulting VarState.
func (e *Engine) storeDeferred(varID ir.VarID, ty ir.TypeID) VarState {
	return e.storeDeferredAs(varID, varID, ty)
}

// storeDeferredAs is storeDeferred, except the store_temp case (if taken)
// targets varOnStack instead of var itself.
func (e *Engine) storeDeferredAs(varID, varOnStack ir.VarID, ty ir.TypeID) VarState {
	if slot, ok := e.locals[varID]; ok {
		e.storeLocal(varID, slot, ty)
		return LocalVar{}
	}
	e.storeTemp(varID, varOnStack, ty)
	return TempVar{Ty: ty}
}
