// Package logging provides an extension that logs machine lifecycle and
// transition activity through a core.Logger.
package logging

import (
	"github.com/fluxorio/hsm/pkg/core"
	"github.com/fluxorio/hsm/pkg/hsm"
)

// Extension logs lifecycle notifications. Transitions and lifecycle changes
// log at Info, queueing and skipped transitions at Debug, user-code
// failures at Error.
type Extension struct {
	hsm.ExtensionBase
	logger core.Logger
}

// New creates a logging extension. Passing nil uses the default logger.
func New(logger core.Logger) *Extension {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Extension{logger: logger}
}

func (e *Extension) StartedStateMachine(m hsm.MachineInfo) {
	e.logger.Infof("state machine %s started", m.Name())
}

func (e *Extension) StoppedStateMachine(m hsm.MachineInfo) {
	e.logger.Infof("state machine %s stopped", m.Name())
}

func (e *Extension) InitializedStateMachine(m hsm.MachineInfo, initial hsm.StateID) {
	e.logger.Infof("state machine %s initialized to %s", m.Name(), initial)
}

func (e *Extension) EnteredInitialState(m hsm.MachineInfo, initial hsm.StateID, ctx *hsm.TransitionContext) {
	current, _ := m.CurrentStateID()
	e.logger.Infof("state machine %s entered initial state %s (leaf %s)", m.Name(), initial, current)
}

func (e *Extension) EventQueued(m hsm.MachineInfo, event hsm.EventID, arg any) {
	e.logger.Debugf("state machine %s queued event %s", m.Name(), event)
}

func (e *Extension) EventQueuedWithPriority(m hsm.MachineInfo, event hsm.EventID, arg any) {
	e.logger.Debugf("state machine %s queued priority event %s", m.Name(), event)
}

func (e *Extension) SwitchedState(m hsm.MachineInfo, from, to hsm.StateID) {
	e.logger.Infof("state machine %s switched from %s to %s", m.Name(), from, to)
}

func (e *Extension) SkippedTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	e.logger.Debugf("state machine %s skipped transition %s on %s (guard declined)",
		m.Name(), tr.EventID(), tr.SourceID())
}

func (e *Extension) HandledGuardException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.logger.Errorf("state machine %s: guard failed on %s: %v", m.Name(), tr.SourceID(), err)
}

func (e *Extension) HandledTransitionException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.logger.Errorf("state machine %s: transition action failed on %s: %v", m.Name(), tr.SourceID(), err)
}

func (e *Extension) HandledEntryActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.logger.Errorf("state machine %s: entry action failed in %s: %v", m.Name(), state, err)
}

func (e *Extension) HandledExitActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.logger.Errorf("state machine %s: exit action failed in %s: %v", m.Name(), state, err)
}
