package hsm

// The declarative builder. In and DefineHierarchyOn return small builder
// values carrying the current state/transition cursor; each step either
// mutates the graph or advances the cursor. Configuration errors are
// recorded on the machine when they happen and fail the next lifecycle
// operation.

// StateBuilder configures one state.
type StateBuilder struct {
	m     *Machine
	state *State
}

// In returns the builder for the given state, creating the state on first
// use.
func (m *Machine) In(id StateID) *StateBuilder {
	return &StateBuilder{m: m, state: m.states.obtain(id)}
}

// ExecuteOnEntry appends entry actions to the state.
func (b *StateBuilder) ExecuteOnEntry(actions ...Action) *StateBuilder {
	b.state.entryActions = append(b.state.entryActions, actions...)
	return b
}

// ExecuteOnExit appends exit actions to the state.
func (b *StateBuilder) ExecuteOnExit(actions ...Action) *StateBuilder {
	b.state.exitActions = append(b.state.exitActions, actions...)
	return b
}

// On declares a transition for the given event. Follow with If, Goto and
// Execute; a transition without Goto is internal. Guarded transitions must
// be declared before the guard-less one: declaration order is evaluation
// order and a guard-less transition has to stay last.
func (b *StateBuilder) On(event EventID) *TransitionBuilder {
	tr := newTransition()
	if err := b.m.states.addTransition(b.state, event, tr); err != nil {
		b.m.recordConfigErr(err)
	}
	return &TransitionBuilder{m: b.m, state: b.state, tr: tr}
}

// TransitionBuilder configures one transition.
type TransitionBuilder struct {
	m     *Machine
	state *State
	tr    *Transition
}

// If guards the transition. Call it before declaring the next transition
// for the same event.
func (tb *TransitionBuilder) If(g Guard) *TransitionBuilder {
	tb.tr.guard = g
	return tb
}

// Goto sets the transition's target state, creating it on first use.
func (tb *TransitionBuilder) Goto(target StateID) *TransitionBuilder {
	tb.m.states.obtain(target)
	tb.tr.target = target
	return tb
}

// Execute appends actions to the transition.
func (tb *TransitionBuilder) Execute(actions ...Action) *TransitionBuilder {
	tb.tr.actions = append(tb.tr.actions, actions...)
	return tb
}

// On declares another transition on the same state.
func (tb *TransitionBuilder) On(event EventID) *TransitionBuilder {
	return (&StateBuilder{m: tb.m, state: tb.state}).On(event)
}

// HierarchyBuilder wires sub-states under one superstate.
type HierarchyBuilder struct {
	m     *Machine
	super *State
}

// DefineHierarchyOn returns the hierarchy builder for the given superstate,
// creating the state on first use.
func (m *Machine) DefineHierarchyOn(id StateID) *HierarchyBuilder {
	return &HierarchyBuilder{m: m, super: m.states.obtain(id)}
}

// WithHistoryType sets the superstate's history mode.
func (hb *HierarchyBuilder) WithHistoryType(h HistoryType) *HierarchyBuilder {
	hb.super.history = h
	return hb
}

// WithInitialSubState adds a sub-state and marks it as the superstate's
// initial sub-state.
func (hb *HierarchyBuilder) WithInitialSubState(id StateID) *HierarchyBuilder {
	child := hb.m.states.obtain(id)
	if err := hb.m.states.setParent(child, hb.super); err != nil {
		hb.m.recordConfigErr(err)
		return hb
	}
	if err := hb.m.states.setInitialChild(hb.super, child); err != nil {
		hb.m.recordConfigErr(err)
	}
	return hb
}

// WithSubState adds a sub-state.
func (hb *HierarchyBuilder) WithSubState(id StateID) *HierarchyBuilder {
	child := hb.m.states.obtain(id)
	if err := hb.m.states.setParent(child, hb.super); err != nil {
		hb.m.recordConfigErr(err)
	}
	return hb
}
