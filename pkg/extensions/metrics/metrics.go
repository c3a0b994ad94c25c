// Package metrics provides an extension exporting Prometheus metrics for a
// machine: fired events, transitions, skipped transitions, user-code
// failures and transition duration.
package metrics

import (
	"time"

	"github.com/fluxorio/hsm/pkg/hsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extension collects machine metrics. One dispatch is in flight per machine
// at a time, so the transition timer needs no synchronization.
type Extension struct {
	hsm.ExtensionBase

	eventsFired        *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	skippedTransitions *prometheus.CounterVec
	exceptions         *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec

	transitionStart time.Time
}

// New creates a metrics extension registering with the given registerer.
// Passing nil uses the default registerer.
func New(registerer prometheus.Registerer) *Extension {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Extension{
		eventsFired: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_events_fired_total",
				Help: "Total number of events dispatched",
			},
			[]string{"machine", "event"},
		),
		transitions: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_transitions_total",
				Help: "Total number of completed state switches",
			},
			[]string{"machine", "from", "to"},
		),
		skippedTransitions: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_transitions_skipped_total",
				Help: "Total number of transitions skipped because a guard declined",
			},
			[]string{"machine", "event"},
		),
		exceptions: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_exceptions_total",
				Help: "Total number of user-code failures by origin",
			},
			[]string{"machine", "origin"},
		),
		transitionDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hsm_transition_duration_seconds",
				Help:    "Duration of transition execution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"machine"},
		),
	}
}

func (e *Extension) FiringEvent(m hsm.MachineInfo, event *hsm.EventID, arg *any) {
	e.eventsFired.WithLabelValues(m.Name(), string(*event)).Inc()
}

func (e *Extension) SwitchedState(m hsm.MachineInfo, from, to hsm.StateID) {
	e.transitions.WithLabelValues(m.Name(), string(from), string(to)).Inc()
}

func (e *Extension) SkippedTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	e.skippedTransitions.WithLabelValues(m.Name(), string(tr.EventID())).Inc()
}

func (e *Extension) ExecutingTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	e.transitionStart = time.Now()
}

func (e *Extension) ExecutedTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	e.transitionDuration.WithLabelValues(m.Name()).Observe(time.Since(e.transitionStart).Seconds())
}

func (e *Extension) HandledGuardException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.exceptions.WithLabelValues(m.Name(), "guard").Inc()
}

func (e *Extension) HandledTransitionException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.exceptions.WithLabelValues(m.Name(), "transition").Inc()
}

func (e *Extension) HandledEntryActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.exceptions.WithLabelValues(m.Name(), "entry").Inc()
}

func (e *Extension) HandledExitActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.exceptions.WithLabelValues(m.Name(), "exit").Inc()
}
