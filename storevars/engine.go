// Package storevars implements the compiler pass that inserts store_temp,
// store_local, dup and rename statements into a linear IR so that every
// deferred value is materialised before an operation that cannot consume it
// in place, and every value that must survive a branch or an unknown
// ap-change is spilled to a local ahead of time.
//
// The entry point is AddStoreStatements. See SPEC_FULL.md for the full
// design.
package storevars

import "github.com/mna/apstore/ir"

// Engine holds the mutable state of one run of the pass over one function
// body. It is not safe for concurrent use; run one Engine per function body
// (independent Engines may run concurrently, sharing only a LibfuncDB).
type Engine struct {
	db     LibfuncDB
	locals LocalVariables

	out []ir.Statement

	// cur is the state reachable from the previous statement, or nil if the
	// current program point is unreachable (after a Return, or a Label whose
	// merge produced no state).
	cur *State

	// future maps a not-yet-reached label to the join of all branches seen
	// so far that target it.
	future map[ir.LabelID]*State
}

// AddStoreStatements rewrites statements, inserting store_temp, store_local,
// dup and rename invocations as required. params lists the function's
// parameters in declaration order; they start out as LocalVar (matching the
// calling convention's frame-resident argument placement). locals names the
// variables the producer has already decided to spill to a frame slot, and
// the slot reserved for each.
//
// AddStoreStatements panics if statements is not well-formed (references an
// unknown variable, dereferences an unreachable program point, or leaves a
// dangling forward label) — see SPEC_FULL.md §7.
func AddStoreStatements(db LibfuncDB, statements []ir.Statement, locals LocalVariables, params []ir.VarID) []ir.Statement {
	e := &Engine{
		db:     db,
		locals: locals,
		cur:    newState(),
		future: make(map[ir.LabelID]*State),
	}
	for _, p := range params {
		e.cur.Variables.Insert(p, LocalVar{})
	}

	for _, stmt := range statements {
		e.handleStatement(stmt)
	}
	return e.finalize()
}

func (e *Engine) emit(stmt ir.Statement) {
	e.out = append(e.out, stmt)
}

// state returns the current reachable state, panicking if the current
// program point is unreachable.
func (e *Engine) state() *State {
	if e.cur == nil {
		panic("storevars: internal error: statement is unreachable")
	}
	return e.cur
}

func (e *Engine) handleStatement(stmt ir.Statement) {
	switch s := stmt.(type) {
	case *ir.Invocation:
		e.handleInvocation(s)
	case *ir.Return:
		e.handleReturn(s)
	case *ir.Label:
		e.handleLabel(s)
	case *ir.PushValues:
		e.pushValues(s)
	default:
		panic("storevars: internal error: unknown statement type")
	}
}

func (e *Engine) handleReturn(ret *ir.Return) {
	for _, v := range ret.Vars {
		if _, ok := e.state().Variables.Get(v); !ok {
			panic("storevars: internal error: return of unknown or already-consumed variable " + string(v))
		}
	}
	e.emit(ret)
	e.state().Variables.Clear()
	e.cur = nil
}

func (e *Engine) handleLabel(lbl *ir.Label) {
	future := e.future[lbl.ID]
	delete(e.future, lbl.ID)
	e.cur = mergeStates(e.cur, future)
	e.emit(lbl)
}

// finalize asserts the two global well-formedness invariants and returns the
// rewritten statement sequence.
func (e *Engine) finalize() []ir.Statement {
	if e.cur != nil {
		panic("storevars: internal error: reachable statement at end of input")
	}
	if len(e.future) != 0 {
		panic("storevars: internal error: unresolved forward label")
	}
	return e.out
}

// addFutureState merges state into the join recorded for target: either the
// fallthrough accumulator (mutated in place through fallthrough) or the
// pending state for a label.
func (e *Engine) addFutureState(target ir.BranchTarget, state *State, fallthrough_ **State) {
	if target.Kind == ir.TargetFallthrough {
		*fallthrough_ = mergeStates(*fallthrough_, state)
		return
	}
	e.future[target.Label] = mergeStates(e.future[target.Label], state)
}
