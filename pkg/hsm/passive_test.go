package hsm

import (
	"testing"

	"github.com/fluxorio/hsm/pkg/core"
)

func buildPassive(t *testing.T, log *[]StateID) *PassiveMachine {
	t.Helper()

	pm := NewPassive("passive", WithLogger(core.NopLogger()))
	pm.In("a").On("next").Goto("b")
	pm.In("b").On("next").Goto("c")
	pm.In("c").On("next").Goto("a")
	pm.OnTransitionCompleted(func(ctx *TransitionContext, newState StateID) {
		*log = append(*log, newState)
	})
	if err := pm.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := pm.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}
	return pm
}

func TestPassiveAccumulatesUntilStart(t *testing.T) {
	var log []StateID
	pm := buildPassive(t, &log)

	if err := pm.Fire("next", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if err := pm.Fire("next", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("events were processed before Start: %v", log)
	}
	assertCurrent(t, pm.Machine, "a")

	// Start drains everything queued before startup.
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("Start drained %d events, want 2", len(log))
	}
	assertCurrent(t, pm.Machine, "c")
}

func TestPassiveFiresImmediatelyWhileRunning(t *testing.T) {
	var log []StateID
	pm := buildPassive(t, &log)
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := pm.Fire("next", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	assertCurrent(t, pm.Machine, "b")
}

func TestPassiveStopSuspendsProcessing(t *testing.T) {
	var log []StateID
	pm := buildPassive(t, &log)
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pm.Stop()

	if err := pm.Fire("next", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	assertCurrent(t, pm.Machine, "a")

	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	assertCurrent(t, pm.Machine, "b")
}

func TestPassiveReentrantFire(t *testing.T) {
	var order []string
	pm := NewPassive("reentrant", WithLogger(core.NopLogger()))
	pm.In("a").On("first").Goto("b").Execute(ActionFunc("chain", func(any) error {
		// Firing from inside an action only enqueues; the outer pump picks
		// the event up after this transition completes.
		if err := pm.Fire("second", nil); err != nil {
			return err
		}
		order = append(order, "action done")
		return nil
	}))
	pm.In("b").On("second").Goto("c")
	pm.OnTransitionCompleted(func(ctx *TransitionContext, newState StateID) {
		order = append(order, "completed "+string(newState))
	})
	if err := pm.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := pm.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := pm.Fire("first", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	want := []string{"action done", "completed b", "completed c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	assertCurrent(t, pm.Machine, "c")
}

func TestPassiveFirePriority(t *testing.T) {
	var log []StateID
	pm := NewPassive("priority", WithLogger(core.NopLogger()))
	pm.In("a").On("x").Goto("b")
	pm.In("a").On("p").Goto("c")
	pm.In("b").On("p").Goto("c")
	pm.In("c").On("x").Goto("a")
	pm.OnTransitionCompleted(func(ctx *TransitionContext, newState StateID) {
		log = append(log, newState)
	})
	if err := pm.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := pm.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}

	// Queue x first, then p with priority; p has to be processed first.
	if err := pm.Fire("x", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if err := pm.FirePriority("p", nil); err != nil {
		t.Fatalf("FirePriority: %v", err)
	}
	if err := pm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(log) != 2 || log[0] != "c" || log[1] != "a" {
		t.Fatalf("processing order = %v, want [c a]", log)
	}
}

func TestPassiveQueuedEventsNotified(t *testing.T) {
	counter := &queueCountingExtension{}
	pm := NewPassive("notify", WithLogger(core.NopLogger()))
	pm.In("a").On("x").Goto("b")
	pm.AddExtension(counter)
	if err := pm.Initialize("a"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := pm.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}

	if err := pm.Fire("x", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if err := pm.FirePriority("x", nil); err != nil {
		t.Fatalf("FirePriority: %v", err)
	}

	if counter.queued != 1 || counter.priority != 1 {
		t.Errorf("queued=%d priority=%d, want 1 and 1", counter.queued, counter.priority)
	}
}

type queueCountingExtension struct {
	ExtensionBase
	queued   int
	priority int
}

func (e *queueCountingExtension) EventQueued(MachineInfo, EventID, any) {
	e.queued++
}

func (e *queueCountingExtension) EventQueuedWithPriority(MachineInfo, EventID, any) {
	e.priority++
}
