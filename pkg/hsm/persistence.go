package hsm

// Saver receives a machine's runtime state: the current leaf (absent while
// the machine has not entered its initial state) and the last-active-child
// memo of every superstate that has one.
type Saver interface {
	SaveCurrentState(id StateID, ok bool) error
	SaveHistoryStates(history map[StateID]StateID) error
}

// Loader supplies a previously saved machine state.
type Loader interface {
	LoadCurrentState() (StateID, bool, error)
	LoadHistoryStates() (map[StateID]StateID, error)
}

// Save writes the current state and history memos to the given saver. A
// machine that is initialized but has not entered its initial state saves an
// absent current state.
func (m *Machine) Save(s Saver) error {
	if err := s.SaveCurrentState(m.current, m.entered); err != nil {
		return err
	}
	history := make(map[StateID]StateID)
	for _, st := range m.states.all() {
		if st.lastActive != "" {
			history[st.id] = st.lastActive
		}
	}
	return s.SaveHistoryStates(history)
}

// Load restores a machine from the given loader. It must run before
// Initialize; when the snapshot carries a current state the machine resumes
// there, already initialized and entered. Every history entry must name a
// known superstate and a direct child of it.
func (m *Machine) Load(l Loader) error {
	if m.initialized {
		return newLifecycleError(ErrorCodeLoadAfterInitialize, "state machine %s is already initialized", m.name)
	}
	current, ok, err := l.LoadCurrentState()
	if err != nil {
		return err
	}
	if ok && m.states.lookup(current) == nil {
		return newConfigError(ErrorCodeUnknownState, current, "loaded current state %s is unknown", current)
	}
	history, err := l.LoadHistoryStates()
	if err != nil {
		return err
	}
	for super, child := range history {
		superState := m.states.lookup(super)
		if superState == nil {
			return newConfigError(ErrorCodeUnknownState, super, "loaded history names unknown state %s", super)
		}
		childState := m.states.lookup(child)
		if childState == nil || childState.parent != super {
			return newConfigError(ErrorCodeHistoryNotChild, super, "state %s is not a direct sub-state of %s", child, super)
		}
	}
	for super, child := range history {
		m.states.lookup(super).lastActive = child
	}
	if ok {
		m.current = current
		m.initial = current
		m.initialized = true
		m.entered = true
	}
	return nil
}

// MemorySnapshot keeps a saved machine state in memory. It implements both
// Saver and Loader and is handy for tests and for copying state between
// machines built from the same graph.
type MemorySnapshot struct {
	Current    StateID
	CurrentSet bool
	History    map[StateID]StateID
}

// NewMemorySnapshot creates an empty snapshot.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{History: make(map[StateID]StateID)}
}

// SaveCurrentState implements Saver.
func (s *MemorySnapshot) SaveCurrentState(id StateID, ok bool) error {
	s.Current = id
	s.CurrentSet = ok
	return nil
}

// SaveHistoryStates implements Saver.
func (s *MemorySnapshot) SaveHistoryStates(history map[StateID]StateID) error {
	s.History = make(map[StateID]StateID, len(history))
	for k, v := range history {
		s.History[k] = v
	}
	return nil
}

// LoadCurrentState implements Loader.
func (s *MemorySnapshot) LoadCurrentState() (StateID, bool, error) {
	return s.Current, s.CurrentSet, nil
}

// LoadHistoryStates implements Loader.
func (s *MemorySnapshot) LoadHistoryStates() (map[StateID]StateID, error) {
	out := make(map[StateID]StateID, len(s.History))
	for k, v := range s.History {
		out[k] = v
	}
	return out, nil
}
