package storevars

import "github.com/mna/apstore/ir"

// handleInvocation implements SPEC_FULL.md §4.1.1: look up the libfunc's
// signature, prepare its arguments, then register outputs either in place
// (the simple fallthrough-only case) or per branch, joining clones at the
// fallthrough accumulator and at each target label's pending future state.
func (e *Engine) handleInvocation(inv *ir.Invocation) {
	sig, ok := e.db.Signature(inv.Libfunc)
	if !ok {
		panic("storevars: internal error: unknown libfunc " + string(inv.Libfunc))
	}
	if len(inv.Args) != len(sig.Params) || len(inv.Branches) != len(sig.Branches) {
		panic("storevars: internal error: libfunc " + string(inv.Libfunc) + " invoked with mismatched arg/branch count")
	}

	argStates := e.prepareLibfuncArguments(inv.Args, sig.Params)

	if len(inv.Branches) == 1 && inv.Branches[0].Target.Kind == ir.TargetFallthrough {
		branch := inv.Branches[0]
		branchSig := sig.Branches[0]
		if branchSig.ApChange.Kind == ir.ApUnknown {
			e.storeVariablesAsLocals()
			e.state().Stack.Clear()
		}
		e.registerOutputs(branch.Results, branchSig, argStates)
	} else {
		if len(inv.Branches) > 1 {
			e.storeAllPossiblyLostVariables()
		}
		if e.clearsStack(inv.Branches, sig.Branches) {
			e.state().Stack.Clear()
		}

		var fallthrough_ *State
		for i, branch := range inv.Branches {
			clone := e.state().Clone()
			clone.registerOutputsInto(branch.Results, sig.Branches[i], argStates)
			e.addFutureState(branch.Target, clone, &fallthrough_)
		}
		e.cur = fallthrough_
	}

	e.emit(inv)
}

// clearsStack reports whether the known stack must be invalidated before
// branching: true when there is more than one branch, or the sole branch's
// ap-change is unknown (SPEC_FULL.md §3, §4).
func (e *Engine) clearsStack(branches []ir.InvocationBranch, sigs []ir.BranchSignature) bool {
	if len(branches) > 1 {
		return true
	}
	return len(sigs) == 1 && sigs[0].ApChange.Kind == ir.ApUnknown
}

// registerOutputs attaches a VarState to each result of branchSig within the
// current (reachable) state.
func (e *Engine) registerOutputs(results []ir.VarID, branchSig ir.BranchSignature, argStates []VarState) {
	e.state().registerOutputsInto(results, branchSig, argStates)
}

// registerOutputsInto is registerOutputs against an explicit state, used to
// register a branch's outputs into a just-cloned state.
func (s *State) registerOutputsInto(results []ir.VarID, branchSig ir.BranchSignature, argStates []VarState) {
	if len(results) != len(branchSig.Outputs) {
		panic("storevars: internal error: branch signature output count mismatch")
	}
	for i, out := range branchSig.Outputs {
		res := results[i]
		switch out.Kind {
		case ir.OutputNewTempVar:
			s.Variables.Insert(res, TempVar{Ty: out.Ty})
			s.Stack.Push(res)
		case ir.OutputNewLocalVar:
			s.Variables.Insert(res, LocalVar{})
		case ir.OutputDeferred:
			s.Variables.Insert(res, DeferredVar{Info: DeferredInfo{Kind: out.DeferredKind, Ty: out.Ty}})
		case ir.OutputSameAsParam:
			if out.ParamIndex < 0 || out.ParamIndex >= len(argStates) {
				panic("storevars: internal error: SameAsParam index out of range")
			}
			s.Variables.Insert(res, argStates[out.ParamIndex])
		default:
			panic("storevars: internal error: unknown output kind")
		}
	}
}
