package hsm

// Transition is one edge of the state graph: a source state (bound when the
// transition is added to the source's table), an optional target, an
// optional guard and an ordered action list. A transition without a target
// is internal: its actions run without exiting or entering any state.
type Transition struct {
	source  StateID
	event   EventID
	target  StateID
	guard   Guard
	actions []Action
}

func newTransition() *Transition {
	return &Transition{}
}

// SourceID returns the id of the state the transition belongs to.
func (t *Transition) SourceID() StateID { return t.source }

// EventID returns the event that triggers the transition.
func (t *Transition) EventID() EventID { return t.event }

// TargetID returns the target state id; ok is false for internal
// transitions.
func (t *Transition) TargetID() (StateID, bool) { return t.target, t.target != "" }

// IsInternal reports whether the transition has no target.
func (t *Transition) IsInternal() bool { return t.target == "" }

// GuardDescription returns the guard's description, if the transition is
// guarded.
func (t *Transition) GuardDescription() (string, bool) {
	if t.guard == nil {
		return "", false
	}
	return t.guard.Describe(), true
}

// ActionDescriptions returns the descriptions of the transition's actions in
// execution order.
func (t *Transition) ActionDescriptions() []string {
	out := make([]string, len(t.actions))
	for i, a := range t.actions {
		out[i] = a.Describe()
	}
	return out
}

// RecordKind tags a trace record as a state entry or exit.
type RecordKind int

const (
	// RecordEnter marks a state entry.
	RecordEnter RecordKind = iota
	// RecordExit marks a state exit.
	RecordExit
)

// String returns "enter" or "exit".
func (k RecordKind) String() string {
	if k == RecordEnter {
		return "enter"
	}
	return "exit"
}

// TraceRecord is one entry of the per-event enter/exit trace kept for
// diagnostics.
type TraceRecord struct {
	Kind  RecordKind
	State StateID
}

// TransitionContext is the per-event scratch created for each dispatch. It
// carries the originating state, the event and its argument, and records the
// enter/exit trace. The initial-entry context has no event.
type TransitionContext struct {
	source   StateID
	event    EventID
	hasEvent bool
	argument any

	records []TraceRecord

	notifier  *notifier
	unhandled []error
}

func newTransitionContext(source StateID, event EventID, hasEvent bool, arg any, n *notifier) *TransitionContext {
	return &TransitionContext{
		source:   source,
		event:    event,
		hasEvent: hasEvent,
		argument: arg,
		notifier: n,
	}
}

// SourceID returns the state the dispatch originated from; ok is false for
// the initial-entry context.
func (c *TransitionContext) SourceID() (StateID, bool) { return c.source, c.source != "" }

// EventID returns the dispatched event; ok is false for the initial-entry
// context.
func (c *TransitionContext) EventID() (EventID, bool) { return c.event, c.hasEvent }

// Argument returns the event argument.
func (c *TransitionContext) Argument() any { return c.argument }

// Records returns the enter/exit trace accumulated so far.
func (c *TransitionContext) Records() []TraceRecord {
	out := make([]TraceRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *TransitionContext) addRecord(kind RecordKind, state StateID) {
	c.records = append(c.records, TraceRecord{Kind: kind, State: state})
}
