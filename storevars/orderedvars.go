package storevars

import "github.com/mna/apstore/ir"

// orderedVars is an insertion-ordered map from ir.VarID to VarState. Removal
// shifts later entries back so their relative order is preserved, and
// re-inserting a variable places it at the current end — this is the
// semantics State.Variables relies on for deterministic output (see
// SPEC_FULL.md §3).
type orderedVars struct {
	entries []varEntry
	index   map[ir.VarID]int
}

type varEntry struct {
	id    ir.VarID
	state VarState
}

func newOrderedVars() *orderedVars {
	return &orderedVars{index: make(map[ir.VarID]int)}
}

// Get returns the state of id, if live.
func (m *orderedVars) Get(id ir.VarID) (VarState, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.entries[i].state, true
}

// Insert adds id with the given state at the current end of the order. If
// id is already present, its state is replaced and its position is kept.
func (m *orderedVars) Insert(id ir.VarID, st VarState) {
	if i, ok := m.index[id]; ok {
		m.entries[i].state = st
		return
	}
	m.index[id] = len(m.entries)
	m.entries = append(m.entries, varEntry{id: id, state: st})
}

// Remove deletes id, if present, shifting later entries back to close the
// gap and preserve their relative order.
func (m *orderedVars) Remove(id ir.VarID) (VarState, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	st := m.entries[i].state
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].id] = j
	}
	return st, true
}

// Rename changes the key of an existing entry from oldID to newID in place,
// preserving its position in the insertion order (unlike Remove+Insert,
// which would move it to the end).
func (m *orderedVars) Rename(oldID, newID ir.VarID) {
	i, ok := m.index[oldID]
	if !ok {
		panic("storevars: internal error: rename of unknown variable " + string(oldID))
	}
	m.entries[i].id = newID
	delete(m.index, oldID)
	m.index[newID] = i
}

// Len returns the number of live variables.
func (m *orderedVars) Len() int { return len(m.entries) }

// Clear removes all entries.
func (m *orderedVars) Clear() {
	m.entries = nil
	m.index = make(map[ir.VarID]int)
}

// Clone returns a deep copy (the VarState values themselves are immutable
// and shared).
func (m *orderedVars) Clone() *orderedVars {
	c := &orderedVars{
		entries: append([]varEntry(nil), m.entries...),
		index:   make(map[ir.VarID]int, len(m.index)),
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	return c
}

// Each calls f for every live variable in insertion order. f must not
// mutate m.
func (m *orderedVars) Each(f func(id ir.VarID, st VarState)) {
	for _, e := range m.entries {
		f(e.id, e.state)
	}
}

// snapshot returns a copy of the current entries, safe to iterate while
// mutating m (used by the spill policies in §4.3, which collect first and
// mutate after to avoid iterator-invalidation hazards).
func (m *orderedVars) snapshot() []varEntry {
	return append([]varEntry(nil), m.entries...)
}
