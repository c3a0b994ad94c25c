package hsm

import (
	"fmt"

	"github.com/fluxorio/hsm/pkg/core"
)

// notifier fans machine notifications out to the registered extensions and
// lifecycle callbacks. Exceptions reaching the machine go through raise: with
// no exception subscriber they accumulate on the context and the firing
// operation returns them wrapped; otherwise they are delivered and
// swallowed.
type notifier struct {
	machine MachineInfo
	logger  core.Logger

	extensions []Extension

	beginHandlers     []func(ctx *TransitionContext)
	completedHandlers []func(ctx *TransitionContext, newState StateID)
	declinedHandlers  []func(ctx *TransitionContext)
	exceptionHandlers []func(ctx *TransitionContext, err error)
}

func newNotifier(machine MachineInfo, logger core.Logger) *notifier {
	return &notifier{machine: machine, logger: logger}
}

// each invokes fn for every extension in registration order. A panicking
// extension is recovered and its failure funnelled through raise.
func (n *notifier) each(ctx *TransitionContext, fn func(Extension)) {
	for _, e := range n.extensions {
		n.invoke(ctx, e, fn)
	}
}

func (n *notifier) invoke(ctx *TransitionContext, e Extension, fn func(Extension)) {
	defer func() {
		if r := recover(); r != nil {
			n.raise(ctx, fmt.Errorf("extension %T panicked: %v", e, r))
		}
	}()
	fn(e)
}

// raise delivers err to the exception subscribers, or records it on the
// context when nobody listens so the firing operation can return it.
func (n *notifier) raise(ctx *TransitionContext, err error) {
	if len(n.exceptionHandlers) == 0 {
		if ctx != nil {
			ctx.unhandled = append(ctx.unhandled, err)
		} else {
			n.logger.Errorf("state machine %s: unhandled exception outside dispatch: %v", n.machine.Name(), err)
		}
		return
	}
	for _, h := range n.exceptionHandlers {
		h(ctx, err)
	}
}

func (n *notifier) transitionBegin(ctx *TransitionContext) {
	for _, h := range n.beginHandlers {
		h(ctx)
	}
}

func (n *notifier) transitionCompleted(ctx *TransitionContext, newState StateID) {
	for _, h := range n.completedHandlers {
		h(ctx, newState)
	}
}

func (n *notifier) transitionDeclined(ctx *TransitionContext) {
	for _, h := range n.declinedHandlers {
		h(ctx)
	}
}
