package storevars

import "github.com/mna/apstore/ir"

// State is the abstract state of the pass at one program point: the
// placement of every live variable, plus the KnownStack model of what is
// currently resident at the top of the execution stack. A nil *State
// (tracked by Engine as cur == nil) means the program point is unreachable.
type State struct {
	Variables *orderedVars
	Stack     *KnownStack
}

func newState() *State {
	return &State{Variables: newOrderedVars(), Stack: newKnownStack()}
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	return &State{Variables: s.Variables.Clone(), Stack: s.Stack.Clone()}
}

// renameVar updates both the variables map and the known stack to reflect
// that src is now called dst, preserving src's position in insertion order.
func (s *State) renameVar(src, dst ir.VarID) {
	s.Variables.Rename(src, dst)
	s.Stack.Rename(src, dst)
}

// mergeStates joins a and b per §4.1.5. Either side being nil (unreachable)
// means the other wins outright.
func mergeStates(a, b *State) *State {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}

	merged := newState()
	a.Variables.Each(func(id ir.VarID, av VarState) {
		bv, ok := b.Variables.Get(id)
		if !ok || !joinable(av, bv) {
			return
		}
		merged.Variables.Insert(id, av)
	})
	merged.Stack = mergeKnownStacks(a.Stack, b.Stack)
	return merged
}
