// Package sigdb provides a concurrency-safe, in-memory implementation of
// storevars.LibfuncDB backed by a swiss-table hash map.
package sigdb

import (
	"fmt"
	"sync"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/mna/apstore/ir"
)

// DB is a registry of libfunc signatures. The zero value is not usable; call
// New. A *DB may be shared across goroutines and across independently
// running storevars.Engine instances.
type DB struct {
	mu   sync.RWMutex
	sigs *swiss.Map[ir.LibfuncID, ir.Signature]
}

// New returns an empty DB with initial capacity for at least size entries.
func New(size int) *DB {
	if size < 0 {
		size = 0
	}
	return &DB{sigs: swiss.NewMap[ir.LibfuncID, ir.Signature](uint32(size))}
}

// Register records the signature of a libfunc id, overwriting any previous
// entry for the same id.
func (db *DB) Register(id ir.LibfuncID, sig ir.Signature) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sigs.Put(id, sig)
}

// Signature implements storevars.LibfuncDB.
func (db *DB) Signature(id ir.LibfuncID) (ir.Signature, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.sigs.Get(id)
}

// StoreTemp implements storevars.LibfuncDB with the naming convention
// store_temp<ty>, and lazily registers the primitive's signature the first
// time a given type is requested.
func (db *DB) StoreTemp(ty ir.TypeID) ir.LibfuncID {
	id := ir.LibfuncID(fmt.Sprintf("store_temp<%s>", ty))
	db.ensurePrimitive(id, ir.Signature{
		Params:   []ir.ParamSignature{{AllowDeferred: true, AllowAddConst: true, AllowConst: true}},
		Branches: []ir.BranchSignature{{ApChange: ir.ApChange{Kind: ir.ApKnown, Delta: 1}, Outputs: []ir.OutputSpec{{Kind: ir.OutputNewTempVar, Ty: ty}}}},
	})
	return id
}

// StoreLocal implements storevars.LibfuncDB with the naming convention
// store_local<ty>.
func (db *DB) StoreLocal(ty ir.TypeID) ir.LibfuncID {
	id := ir.LibfuncID(fmt.Sprintf("store_local<%s>", ty))
	db.ensurePrimitive(id, ir.Signature{
		Params:   []ir.ParamSignature{{}, {AllowDeferred: true, AllowAddConst: true, AllowConst: true}},
		Branches: []ir.BranchSignature{{ApChange: ir.ApChange{Kind: ir.ApKnown, Delta: 0}, Outputs: []ir.OutputSpec{{Kind: ir.OutputNewLocalVar}}}},
	})
	return id
}

// Dup implements storevars.LibfuncDB with the naming convention dup<ty>.
func (db *DB) Dup(ty ir.TypeID) ir.LibfuncID {
	id := ir.LibfuncID(fmt.Sprintf("dup<%s>", ty))
	db.ensurePrimitive(id, ir.Signature{
		Params: []ir.ParamSignature{{}},
		Branches: []ir.BranchSignature{{ApChange: ir.ApChange{Kind: ir.ApKnown, Delta: 0}, Outputs: []ir.OutputSpec{
			{Kind: ir.OutputSameAsParam, ParamIndex: 0},
			{Kind: ir.OutputNewTempVar, Ty: ty},
		}}},
	})
	return id
}

// Rename implements storevars.LibfuncDB with the naming convention
// rename<ty>.
func (db *DB) Rename(ty ir.TypeID) ir.LibfuncID {
	id := ir.LibfuncID(fmt.Sprintf("rename<%s>", ty))
	db.ensurePrimitive(id, ir.Signature{
		Params:   []ir.ParamSignature{{}},
		Branches: []ir.BranchSignature{{ApChange: ir.ApChange{Kind: ir.ApKnown, Delta: 0}, Outputs: []ir.OutputSpec{{Kind: ir.OutputSameAsParam, ParamIndex: 0}}}},
	})
	return id
}

// ensurePrimitive registers sig for id only if no entry exists yet, so that
// repeated calls for the same type do not pay the write-lock cost.
func (db *DB) ensurePrimitive(id ir.LibfuncID, sig ir.Signature) {
	db.mu.RLock()
	_, ok := db.sigs.Get(id)
	db.mu.RUnlock()
	if ok {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sigs.Get(id); !ok {
		db.sigs.Put(id, sig)
	}
}

// Libfuncs returns every registered libfunc id, sorted for deterministic
// iteration.
func (db *DB) Libfuncs() []ir.LibfuncID {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ids := make([]ir.LibfuncID, 0, db.sigs.Count())
	db.sigs.Iter(func(id ir.LibfuncID, _ ir.Signature) bool {
		ids = append(ids, id)
		return false
	})
	slices.Sort(ids)
	return ids
}

// SortLabels sorts a slice of label ids in place, in ascending numeric order.
// LabelID is a totally-ordered scalar type, so this is a thin wrapper that
// keeps callers from reaching for sort.Slice with a hand-written less func.
func SortLabels(labels []ir.LabelID) {
	slices.Sort(labels)
}
