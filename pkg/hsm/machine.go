package hsm

import (
	"errors"
	"fmt"

	"github.com/fluxorio/hsm/pkg/core"
	"github.com/google/uuid"
)

// Machine is the state machine façade: it owns the state graph, the current
// state, the extension list and the one-shot initial-state handle. Machine
// itself performs no queueing and is not safe for concurrent use; wrap it in
// a PassiveMachine or ActiveMachine to feed it events.
type Machine struct {
	name string
	id   string

	states   *stateTable
	notifier *notifier
	logger   core.Logger

	initial     StateID
	initialized bool
	entered     bool
	current     StateID

	// defErr holds the first configuration error recorded by the builder;
	// lifecycle operations refuse to run while it is set.
	defErr error
}

// Option configures a machine.
type Option func(*Machine)

// WithLogger sets a custom logger.
func WithLogger(logger core.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
		m.notifier.logger = logger
	}
}

// WithID sets a custom machine instance id.
func WithID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// NewMachine creates a bare machine façade.
func NewMachine(name string, opts ...Option) *Machine {
	m := &Machine{
		name:   name,
		id:     uuid.New().String(),
		states: newStateTable(),
		logger: core.NewDefaultLogger(),
	}
	m.notifier = newNotifier(m, m.logger)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the machine's name.
func (m *Machine) Name() string { return m.name }

// ID returns the machine's instance id.
func (m *Machine) ID() string { return m.id }

// CurrentStateID returns the current leaf state; ok is false until the
// initial state has been entered.
func (m *Machine) CurrentStateID() (StateID, bool) {
	return m.current, m.entered
}

// IsIn reports whether the machine currently is in the given state, directly
// or in one of its sub-states.
func (m *Machine) IsIn(id StateID) bool {
	if !m.entered {
		return false
	}
	for s := m.states.lookup(m.current); s != nil; s = m.states.parentOf(s) {
		if s.id == id {
			return true
		}
	}
	return false
}

// Err returns the first configuration error recorded by the builder, if any.
func (m *Machine) Err() error { return m.defErr }

func (m *Machine) recordConfigErr(err error) {
	if m.defErr == nil {
		m.defErr = err
		m.logger.Errorf("state machine %s: configuration error: %v", m.name, err)
	}
}

// AddExtension registers an extension. Extensions are notified in
// registration order.
func (m *Machine) AddExtension(e Extension) {
	m.notifier.extensions = append(m.notifier.extensions, e)
}

// ClearExtensions removes all registered extensions.
func (m *Machine) ClearExtensions() {
	m.notifier.extensions = nil
}

// OnTransitionBegin registers a callback invoked once a firing transition is
// confirmed, before any exit action runs.
func (m *Machine) OnTransitionBegin(fn func(ctx *TransitionContext)) {
	m.notifier.beginHandlers = append(m.notifier.beginHandlers, fn)
}

// OnTransitionCompleted registers a callback invoked after a transition
// finished and the new current state is published.
func (m *Machine) OnTransitionCompleted(fn func(ctx *TransitionContext, newState StateID)) {
	m.notifier.completedHandlers = append(m.notifier.completedHandlers, fn)
}

// OnTransitionDeclined registers a callback invoked when no transition fires
// for a dispatched event.
func (m *Machine) OnTransitionDeclined(fn func(ctx *TransitionContext)) {
	m.notifier.declinedHandlers = append(m.notifier.declinedHandlers, fn)
}

// OnTransitionException subscribes to the machine's exception channel. While
// at least one subscriber is registered, user-code failures are delivered
// here and swallowed; without subscribers the firing operation returns them
// wrapped.
func (m *Machine) OnTransitionException(fn func(ctx *TransitionContext, err error)) {
	m.notifier.exceptionHandlers = append(m.notifier.exceptionHandlers, fn)
}

// Initialize records the initial state. It must be called exactly once,
// before events are fired.
func (m *Machine) Initialize(id StateID) error {
	if m.defErr != nil {
		return m.defErr
	}
	if m.initialized {
		return newLifecycleError(ErrorCodeAlreadyInitialized, "state machine %s is already initialized", m.name)
	}
	initial := id
	m.notifier.each(nil, func(e Extension) { e.InitializingStateMachine(m, &initial) })
	if m.states.lookup(initial) == nil {
		return newConfigError(ErrorCodeUnknownState, initial, "unknown initial state %s", initial)
	}
	m.initial = initial
	m.initialized = true
	m.notifier.each(nil, func(e Extension) { e.InitializedStateMachine(m, initial) })
	return nil
}

// EnterInitialState walks the initial state's shallow-entry chain down to a
// leaf, which becomes the current state. It may only run once, after
// Initialize.
func (m *Machine) EnterInitialState() error {
	if m.defErr != nil {
		return m.defErr
	}
	if !m.initialized {
		return newLifecycleError(ErrorCodeNotInitialized, "state machine %s is not initialized", m.name)
	}
	if m.entered {
		return newLifecycleError(ErrorCodeAlreadyEntered, "state machine %s has already entered its initial state", m.name)
	}
	m.notifier.each(nil, func(e Extension) { e.EnteringInitialState(m, m.initial) })

	ctx := newTransitionContext("", "", false, nil, m.notifier)
	leaf := m.enterInitial(m.states.lookup(m.initial), ctx)
	m.current = leaf.id
	m.entered = true

	m.notifier.each(ctx, func(e Extension) { e.EnteredInitialState(m, m.initial, ctx) })
	m.logger.Debugf("state machine %s entered initial state %s", m.name, m.current)
	return m.consumeUnhandled(ctx)
}

// Fire dispatches one event through the execution engine.
func (m *Machine) Fire(event EventID, arg any) error {
	if m.defErr != nil {
		return m.defErr
	}
	if !m.initialized {
		return newLifecycleError(ErrorCodeNotInitialized, "state machine %s is not initialized", m.name)
	}
	if !m.entered {
		return newLifecycleError(ErrorCodeNotEntered, "state machine %s has not entered its initial state", m.name)
	}
	return m.fire(event, arg)
}

// consumeUnhandled drains the exceptions nobody subscribed to and returns
// them wrapped.
func (m *Machine) consumeUnhandled(ctx *TransitionContext) error {
	if len(ctx.unhandled) == 0 {
		return nil
	}
	err := errors.Join(ctx.unhandled...)
	ctx.unhandled = nil
	return fmt.Errorf("state machine %s: unhandled exception: %w", m.name, err)
}

// Reporter consumes the machine's graph for diagnostic output.
type Reporter interface {
	// Report receives the machine name, every state in declaration order and
	// the configured initial state (initialSet is false when Initialize has
	// not run).
	Report(name string, states []*State, initial StateID, initialSet bool) error
}

// Report hands the state graph to the given reporter.
func (m *Machine) Report(r Reporter) error {
	return r.Report(m.name, m.states.all(), m.initial, m.initial != "")
}
