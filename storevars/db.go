package storevars

import "github.com/mna/apstore/ir"

// LibfuncDB is the opaque collaborator the driver consults: it resolves a
// libfunc id to its signature, and it resolves a type to the concrete
// libfunc id of each of the four primitives this pass emits. A single
// implementation must give the same answer for the same id every time, and
// must be safe to call concurrently from independently-running Engines (see
// SPEC_FULL.md §5).
type LibfuncDB interface {
	// Signature returns the signature of id, or false if id is unknown.
	Signature(id ir.LibfuncID) (ir.Signature, bool)
	// StoreTemp returns the libfunc id of store_temp<ty>.
	StoreTemp(ty ir.TypeID) ir.LibfuncID
	// StoreLocal returns the libfunc id of store_local<ty>.
	StoreLocal(ty ir.TypeID) ir.LibfuncID
	// Dup returns the libfunc id of dup<ty>.
	Dup(ty ir.TypeID) ir.LibfuncID
	// Rename returns the libfunc id of rename<ty>.
	Rename(ty ir.TypeID) ir.LibfuncID
}

// LocalVariables maps variables the producer has pre-decided to store
// locally to the pre-allocated frame slot ("uninitialized local var")
// reserved for each.
type LocalVariables map[ir.VarID]ir.VarID
