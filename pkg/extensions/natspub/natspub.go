// Package natspub provides an extension that publishes machine lifecycle
// events to NATS subjects, so other processes can follow a machine's
// progress.
//
// Subject mapping:
//   - state switches:      <prefix>.transitions
//   - declined/skipped:    <prefix>.skipped
//   - user-code failures:  <prefix>.errors
//   - driver lifecycle:    <prefix>.lifecycle
package natspub

import (
	"encoding/json"
	"time"

	"github.com/fluxorio/hsm/pkg/core"
	"github.com/fluxorio/hsm/pkg/hsm"
	"github.com/nats-io/nats.go"
)

// Config configures the NATS publisher.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Prefix is prepended to all subjects. Default: "hsm".
	Prefix string

	// Name is an optional NATS connection name.
	Name string
}

// Extension publishes lifecycle notifications to NATS.
type Extension struct {
	hsm.ExtensionBase

	nc     *nats.Conn
	prefix string
	logger core.Logger
}

// TransitionMessage is the payload published on state switches.
type TransitionMessage struct {
	Machine string      `json:"machine"`
	From    hsm.StateID `json:"from"`
	To      hsm.StateID `json:"to"`
	At      time.Time   `json:"at"`
}

// LifecycleMessage is the payload published on driver start/stop.
type LifecycleMessage struct {
	Machine string    `json:"machine"`
	Phase   string    `json:"phase"`
	At      time.Time `json:"at"`
}

// ErrorMessage is the payload published on user-code failures.
type ErrorMessage struct {
	Machine string    `json:"machine"`
	Origin  string    `json:"origin"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// New connects to NATS and creates the publishing extension.
func New(cfg Config, logger core.Logger) (*Extension, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "hsm"
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Extension{nc: nc, prefix: prefix, logger: logger}, nil
}

// Close flushes and closes the NATS connection.
func (e *Extension) Close() {
	if err := e.nc.Flush(); err != nil {
		e.logger.Warnf("natspub: flush failed: %v", err)
	}
	e.nc.Close()
}

func (e *Extension) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Errorf("natspub: failed to marshal payload: %v", err)
		return
	}
	if err := e.nc.Publish(e.prefix+"."+subject, data); err != nil {
		e.logger.Errorf("natspub: failed to publish to %s.%s: %v", e.prefix, subject, err)
	}
}

func (e *Extension) StartedStateMachine(m hsm.MachineInfo) {
	e.publish("lifecycle", LifecycleMessage{Machine: m.Name(), Phase: "started", At: time.Now()})
}

func (e *Extension) StoppedStateMachine(m hsm.MachineInfo) {
	e.publish("lifecycle", LifecycleMessage{Machine: m.Name(), Phase: "stopped", At: time.Now()})
}

func (e *Extension) SwitchedState(m hsm.MachineInfo, from, to hsm.StateID) {
	e.publish("transitions", TransitionMessage{Machine: m.Name(), From: from, To: to, At: time.Now()})
}

func (e *Extension) SkippedTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	e.publish("skipped", map[string]any{
		"machine": m.Name(),
		"event":   tr.EventID(),
		"source":  tr.SourceID(),
	})
}

func (e *Extension) HandledGuardException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.publish("errors", ErrorMessage{Machine: m.Name(), Origin: "guard", Error: err.Error(), At: time.Now()})
}

func (e *Extension) HandledTransitionException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.publish("errors", ErrorMessage{Machine: m.Name(), Origin: "transition", Error: err.Error(), At: time.Now()})
}

func (e *Extension) HandledEntryActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.publish("errors", ErrorMessage{Machine: m.Name(), Origin: "entry", Error: err.Error(), At: time.Now()})
}

func (e *Extension) HandledExitActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.publish("errors", ErrorMessage{Machine: m.Name(), Origin: "exit", Error: err.Error(), At: time.Now()})
}
