// Package tracing provides an extension that opens an OpenTelemetry span
// per executed transition and records user-code failures on it.
package tracing

import (
	"context"

	"github.com/fluxorio/hsm/pkg/hsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxorio/hsm"

// Extension traces transition execution. Dispatches are serial per machine,
// so a single span slot suffices.
type Extension struct {
	hsm.ExtensionBase

	tracer trace.Tracer
	span   trace.Span
}

// New creates a tracing extension. Passing nil uses the global tracer
// provider.
func New(tp trace.TracerProvider) *Extension {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Extension{tracer: tp.Tracer(tracerName)}
}

func (e *Extension) ExecutingTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	attrs := []attribute.KeyValue{
		attribute.String("hsm.machine", m.Name()),
		attribute.String("hsm.source", string(tr.SourceID())),
		attribute.String("hsm.event", string(tr.EventID())),
		attribute.Bool("hsm.internal", tr.IsInternal()),
	}
	if target, ok := tr.TargetID(); ok {
		attrs = append(attrs, attribute.String("hsm.target", string(target)))
	}
	_, e.span = e.tracer.Start(context.Background(), "hsm.transition",
		trace.WithAttributes(attrs...))
}

func (e *Extension) ExecutedTransition(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext) {
	if e.span == nil {
		return
	}
	if current, ok := m.CurrentStateID(); ok {
		e.span.SetAttributes(attribute.String("hsm.leaf", string(current)))
	}
	e.span.End()
	e.span = nil
}

func (e *Extension) HandledGuardException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.recordError(err)
}

func (e *Extension) HandledTransitionException(m hsm.MachineInfo, tr *hsm.Transition, ctx *hsm.TransitionContext, err error) {
	e.recordError(err)
}

func (e *Extension) HandledEntryActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.recordError(err)
}

func (e *Extension) HandledExitActionException(m hsm.MachineInfo, state hsm.StateID, ctx *hsm.TransitionContext, err error) {
	e.recordError(err)
}

func (e *Extension) recordError(err error) {
	if e.span == nil {
		return
	}
	e.span.RecordError(err)
}
