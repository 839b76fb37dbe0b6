package storevars

import "github.com/mna/apstore/ir"

// VarState is the placement of a single live variable at some program
// point. The concrete types are DeferredVar, TempVar and LocalVar.
type VarState interface {
	varState()
}

// DeferredInfo describes an unmaterialised value: its kind (which
// determines which ParamSignature flags let it pass without storing) and
// its type.
type DeferredInfo struct {
	Kind ir.DeferredKind
	Ty   ir.TypeID
}

// DeferredVar is a variable that has not been written to any stack or frame
// cell yet.
type DeferredVar struct {
	Info DeferredInfo
}

// TempVar is a variable resident on the execution stack.
type TempVar struct {
	Ty ir.TypeID
}

// LocalVar is a variable resident in a pre-allocated frame cell. Locals are
// always available regardless of stack movement.
type LocalVar struct{}

func (DeferredVar) varState() {}
func (TempVar) varState()     {}
func (LocalVar) varState()    {}

// joinable reports whether two VarStates are joinable under the merge rules
// of §4.1.5: identical tag, and for TempVar/DeferredVar, identical type (and
// for DeferredVar, identical DeferredKind too).
func joinable(a, b VarState) bool {
	switch av := a.(type) {
	case LocalVar:
		_, ok := b.(LocalVar)
		return ok
	case TempVar:
		bv, ok := b.(TempVar)
		return ok && av.Ty == bv.Ty
	case DeferredVar:
		bv, ok := b.(DeferredVar)
		return ok && av.Info.Kind == bv.Info.Kind && av.Info.Ty == bv.Info.Ty
	default:
		return false
	}
}
