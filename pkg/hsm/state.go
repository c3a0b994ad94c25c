package hsm

// State is a node of the state graph. States are created on demand by the
// builder and owned by the machine's state table; parent, children, initial
// sub-state and the last-active-child memo are kept as ids and resolved
// through the table.
type State struct {
	id StateID

	entryActions []Action
	exitActions  []Action

	// transitions keyed by event, in declaration order; eventOrder remembers
	// the order events were first declared in for deterministic reporting.
	transitions map[EventID][]*Transition
	eventOrder  []EventID

	parent   StateID
	children []StateID
	initial  StateID
	history  HistoryType

	// lastActive names the direct child that is or most recently was
	// active. It is maintained on every child entry and exit and seeded by
	// WithInitialSubState.
	lastActive StateID

	// depth is 1 for root states and parent.depth+1 otherwise.
	depth int
}

func newState(id StateID) *State {
	return &State{
		id:          id,
		transitions: make(map[EventID][]*Transition),
		depth:       1,
	}
}

// ID returns the state's identifier.
func (s *State) ID() StateID { return s.id }

// ParentID returns the id of the state's superstate, if any.
func (s *State) ParentID() (StateID, bool) { return s.parent, s.parent != "" }

// ChildIDs returns the ids of the direct sub-states in declaration order.
func (s *State) ChildIDs() []StateID {
	out := make([]StateID, len(s.children))
	copy(out, s.children)
	return out
}

// InitialChildID returns the id of the initial sub-state, if any.
func (s *State) InitialChildID() (StateID, bool) { return s.initial, s.initial != "" }

// HistoryType returns the state's history mode.
func (s *State) HistoryType() HistoryType { return s.history }

// LastActiveChildID returns the last-active-child memo, if set.
func (s *State) LastActiveChildID() (StateID, bool) { return s.lastActive, s.lastActive != "" }

// Depth returns the state's hierarchy depth; root states have depth 1.
func (s *State) Depth() int { return s.depth }

// EntryActions returns the entry action list in execution order.
func (s *State) EntryActions() []Action {
	out := make([]Action, len(s.entryActions))
	copy(out, s.entryActions)
	return out
}

// ExitActions returns the exit action list in execution order.
func (s *State) ExitActions() []Action {
	out := make([]Action, len(s.exitActions))
	copy(out, s.exitActions)
	return out
}

// Transitions returns all transitions of this state grouped by event in
// declaration order.
func (s *State) Transitions() []*Transition {
	var out []*Transition
	for _, event := range s.eventOrder {
		out = append(out, s.transitions[event]...)
	}
	return out
}

// stateTable is the arena owning all states of one machine.
type stateTable struct {
	states map[StateID]*State
	order  []StateID
}

func newStateTable() *stateTable {
	return &stateTable{states: make(map[StateID]*State)}
}

// lookup returns the state with the given id, or nil.
func (t *stateTable) lookup(id StateID) *State {
	return t.states[id]
}

// obtain returns the state with the given id, creating it on first use.
func (t *stateTable) obtain(id StateID) *State {
	if s, ok := t.states[id]; ok {
		return s
	}
	s := newState(id)
	t.states[id] = s
	t.order = append(t.order, id)
	return s
}

// all returns every state in declaration order.
func (t *stateTable) all() []*State {
	out := make([]*State, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.states[id])
	}
	return out
}

// parentOf resolves a state's superstate, or nil for roots.
func (t *stateTable) parentOf(s *State) *State {
	if s.parent == "" {
		return nil
	}
	return t.states[s.parent]
}

// setParent wires child under parent and recomputes the depths of the
// child's subtree.
func (t *stateTable) setParent(child, parent *State) error {
	if child == parent {
		return newConfigError(ErrorCodeSelfParent, child.id, "state %s cannot be its own parent", child.id)
	}
	if child.parent != "" {
		return newConfigError(ErrorCodeAlreadyParented, child.id, "state %s already has parent %s", child.id, child.parent)
	}
	child.parent = parent.id
	parent.children = append(parent.children, child.id)
	t.recomputeDepth(child, parent.depth+1)
	return nil
}

func (t *stateTable) recomputeDepth(s *State, depth int) {
	s.depth = depth
	for _, id := range s.children {
		t.recomputeDepth(t.states[id], depth+1)
	}
}

// setInitialChild marks child as the initial sub-state of super. The memo
// for history descent is seeded at the same time so that deep history
// behaves predictably on first entry.
func (t *stateTable) setInitialChild(super, child *State) error {
	if child.parent != super.id {
		return newConfigError(ErrorCodeInitialNotChild, super.id, "state %s is not a direct sub-state of %s", child.id, super.id)
	}
	if super.initial != "" && super.initial != child.id {
		return newConfigError(ErrorCodeInitialNotChild, super.id, "state %s already has initial sub-state %s", super.id, super.initial)
	}
	super.initial = child.id
	super.lastActive = child.id
	return nil
}

// addTransition binds tr to state for event. A transition belongs to exactly
// one state; within one (state, event) slot a guard-less transition must be
// unique and last.
func (t *stateTable) addTransition(state *State, event EventID, tr *Transition) error {
	if tr.source != "" {
		return newConfigError(ErrorCodeTransitionAlreadyAdded, state.id, "transition already belongs to state %s", tr.source)
	}
	existing := state.transitions[event]
	if len(existing) > 0 {
		last := existing[len(existing)-1]
		if last.guard == nil {
			return newConfigError(ErrorCodeGuardlessNotLast, state.id,
				"state %s already declares a guard-less transition for event %s; it must stay last", state.id, event)
		}
	}
	tr.source = state.id
	tr.event = event
	if len(existing) == 0 {
		state.eventOrder = append(state.eventOrder, event)
	}
	state.transitions[event] = append(existing, tr)
	return nil
}
