package hsm

// MachineInfo is the read-only handle extensions receive with every
// callback.
type MachineInfo interface {
	// Name returns the machine's configured name.
	Name() string
	// ID returns the machine's unique instance id.
	ID() string
	// CurrentStateID returns the current leaf state; ok is false before the
	// initial state has been entered.
	CurrentStateID() (StateID, bool)
}

// Extension observes machine lifecycle and transition execution. Extensions
// are invoked in registration order; the pointer parameters of the
// Initializing/Firing/Handling hooks may be rewritten, and the engine sees
// the last extension's value. Embed ExtensionBase to implement only the
// callbacks of interest.
type Extension interface {
	// EventQueued is called when an event is appended to a driver queue.
	EventQueued(machine MachineInfo, event EventID, arg any)
	// EventQueuedWithPriority is called when an event is inserted at the
	// head of a driver queue.
	EventQueuedWithPriority(machine MachineInfo, event EventID, arg any)

	// StartedStateMachine and StoppedStateMachine bracket driver lifetime.
	StartedStateMachine(machine MachineInfo)
	StoppedStateMachine(machine MachineInfo)

	// InitializingStateMachine may rewrite the initial state id.
	InitializingStateMachine(machine MachineInfo, initial *StateID)
	InitializedStateMachine(machine MachineInfo, initial StateID)
	EnteringInitialState(machine MachineInfo, initial StateID)
	EnteredInitialState(machine MachineInfo, initial StateID, ctx *TransitionContext)

	// FiringEvent may rewrite the event id and argument.
	FiringEvent(machine MachineInfo, event *EventID, arg *any)
	FiredEvent(machine MachineInfo, ctx *TransitionContext)

	SwitchedState(machine MachineInfo, from, to StateID)

	// SkippedTransition reports a transition whose guard returned false.
	SkippedTransition(machine MachineInfo, transition *Transition, ctx *TransitionContext)
	ExecutingTransition(machine MachineInfo, transition *Transition, ctx *TransitionContext)
	ExecutedTransition(machine MachineInfo, transition *Transition, ctx *TransitionContext)

	// Handling/Handled pairs bracket user-code failures. The Handling hook
	// may replace the error before it is delivered to the exception channel.
	HandlingGuardException(machine MachineInfo, transition *Transition, ctx *TransitionContext, err *error)
	HandledGuardException(machine MachineInfo, transition *Transition, ctx *TransitionContext, err error)
	HandlingTransitionException(machine MachineInfo, transition *Transition, ctx *TransitionContext, err *error)
	HandledTransitionException(machine MachineInfo, transition *Transition, ctx *TransitionContext, err error)
	HandlingEntryActionException(machine MachineInfo, state StateID, ctx *TransitionContext, err *error)
	HandledEntryActionException(machine MachineInfo, state StateID, ctx *TransitionContext, err error)
	HandlingExitActionException(machine MachineInfo, state StateID, ctx *TransitionContext, err *error)
	HandledExitActionException(machine MachineInfo, state StateID, ctx *TransitionContext, err error)
}

// ExtensionBase is a no-op Extension intended for embedding.
type ExtensionBase struct{}

func (ExtensionBase) EventQueued(MachineInfo, EventID, any)             {}
func (ExtensionBase) EventQueuedWithPriority(MachineInfo, EventID, any) {}
func (ExtensionBase) StartedStateMachine(MachineInfo)                   {}
func (ExtensionBase) StoppedStateMachine(MachineInfo)                   {}
func (ExtensionBase) InitializingStateMachine(MachineInfo, *StateID)    {}
func (ExtensionBase) InitializedStateMachine(MachineInfo, StateID)      {}
func (ExtensionBase) EnteringInitialState(MachineInfo, StateID)         {}
func (ExtensionBase) EnteredInitialState(MachineInfo, StateID, *TransitionContext) {
}
func (ExtensionBase) FiringEvent(MachineInfo, *EventID, *any)     {}
func (ExtensionBase) FiredEvent(MachineInfo, *TransitionContext)  {}
func (ExtensionBase) SwitchedState(MachineInfo, StateID, StateID) {}
func (ExtensionBase) SkippedTransition(MachineInfo, *Transition, *TransitionContext) {
}
func (ExtensionBase) ExecutingTransition(MachineInfo, *Transition, *TransitionContext) {
}
func (ExtensionBase) ExecutedTransition(MachineInfo, *Transition, *TransitionContext) {
}
func (ExtensionBase) HandlingGuardException(MachineInfo, *Transition, *TransitionContext, *error) {
}
func (ExtensionBase) HandledGuardException(MachineInfo, *Transition, *TransitionContext, error) {
}
func (ExtensionBase) HandlingTransitionException(MachineInfo, *Transition, *TransitionContext, *error) {
}
func (ExtensionBase) HandledTransitionException(MachineInfo, *Transition, *TransitionContext, error) {
}
func (ExtensionBase) HandlingEntryActionException(MachineInfo, StateID, *TransitionContext, *error) {
}
func (ExtensionBase) HandledEntryActionException(MachineInfo, StateID, *TransitionContext, error) {
}
func (ExtensionBase) HandlingExitActionException(MachineInfo, StateID, *TransitionContext, *error) {
}
func (ExtensionBase) HandledExitActionException(MachineInfo, StateID, *TransitionContext, error) {
}
