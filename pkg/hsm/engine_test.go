package hsm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fluxorio/hsm/pkg/core"
)

// buildFamily wires the graph used by most engine tests:
// A is parent of {B, C}, B is A's initial sub-state, D is a separate root.
func buildFamily(t *testing.T, trace *[]string) *Machine {
	t.Helper()

	m := NewMachine("family", WithLogger(core.NopLogger()))
	for _, id := range []StateID{"A", "B", "C", "D"} {
		m.In(id).
			ExecuteOnEntry(traceAction(trace, "enter "+string(id))).
			ExecuteOnExit(traceAction(trace, "exit "+string(id)))
	}
	m.DefineHierarchyOn("A").
		WithInitialSubState("B").
		WithSubState("C")
	if err := m.Err(); err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return m
}

func traceAction(trace *[]string, msg string) Action {
	return ActionFunc(msg, func(any) error {
		*trace = append(*trace, msg)
		return nil
	})
}

func start(t *testing.T, m *Machine, initial StateID) {
	t.Helper()
	if err := m.Initialize(initial); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.EnterInitialState(); err != nil {
		t.Fatalf("EnterInitialState: %v", err)
	}
}

func assertTrace(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("trace mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}

func assertCurrent(t *testing.T, m *Machine, want StateID) {
	t.Helper()
	current, ok := m.CurrentStateID()
	if !ok {
		t.Fatalf("machine has no current state, want %s", want)
	}
	if current != want {
		t.Fatalf("current state is %s, want %s", current, want)
	}
}

func TestEnterInitialState_ShallowChain(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)

	start(t, m, "A")

	assertTrace(t, trace, []string{"enter A", "enter B"})
	assertCurrent(t, m, "B")
}

func TestEnterInitialState_NestedInitial(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)

	// Initializing to a nested state enters its ancestors first.
	start(t, m, "C")

	assertTrace(t, trace, []string{"enter A", "enter C"})
	assertCurrent(t, m, "C")
}

func TestSiblingTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").On("e1").Goto("C")

	start(t, m, "A")
	trace = nil

	if err := m.Fire("e1", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	assertTrace(t, trace, []string{"exit B", "enter C"})
	assertCurrent(t, m, "C")

	snapshot := NewMemorySnapshot()
	if err := m.Save(snapshot); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snapshot.History["A"] != "C" {
		t.Errorf("A.lastActiveChild is %s, want C", snapshot.History["A"])
	}
}

func TestAncestorToDescendantTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("A").On("e2").Goto("C")

	start(t, m, "A")
	trace = nil

	// The dispatch ascends B -> A to find the edge; A is neither exited
	// nor re-entered.
	if err := m.Fire("e2", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	assertTrace(t, trace, []string{"exit B", "enter C"})
	assertCurrent(t, m, "C")
}

func TestDescendantToAncestorTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").On("e1").Goto("C")
	m.In("C").On("e3").Goto("A")

	start(t, m, "A")
	if err := m.Fire("e1", nil); err != nil {
		t.Fatalf("Fire e1: %v", err)
	}
	trace = nil

	// A is exited and re-entered, then history None descends to its
	// initial sub-state.
	if err := m.Fire("e3", nil); err != nil {
		t.Fatalf("Fire e3: %v", err)
	}

	assertTrace(t, trace, []string{"exit C", "exit A", "enter A", "enter B"})
	assertCurrent(t, m, "B")
}

func TestSelfTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("D").On("again").Goto("D").Execute(traceAction(&trace, "action"))

	start(t, m, "D")
	trace = nil

	if err := m.Fire("again", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	assertTrace(t, trace, []string{"exit D", "action", "enter D"})
	assertCurrent(t, m, "D")
}

func TestCrossHierarchyTransition(t *testing.T) {
	var trace []string
	m := NewMachine("cross", WithLogger(core.NopLogger()))
	for _, id := range []StateID{"P", "P1", "Q", "Q1"} {
		m.In(id).
			ExecuteOnEntry(traceAction(&trace, "enter "+string(id))).
			ExecuteOnExit(traceAction(&trace, "exit "+string(id)))
	}
	m.DefineHierarchyOn("P").WithInitialSubState("P1")
	m.DefineHierarchyOn("Q").WithInitialSubState("Q1")
	m.In("P1").On("hop").Goto("Q1").Execute(traceAction(&trace, "action"))
	if err := m.Err(); err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	start(t, m, "P")
	trace = nil

	if err := m.Fire("hop", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	// Same depth, different parents: the recursion crosses over at the
	// parents, where the actions run exactly once.
	assertTrace(t, trace, []string{"exit P1", "exit P", "action", "enter Q", "enter Q1"})
	assertCurrent(t, m, "Q1")
}

func TestInternalTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").On("tick").Execute(traceAction(&trace, "internal action"))

	start(t, m, "A")
	trace = nil

	var records []TraceRecord
	m.OnTransitionCompleted(func(ctx *TransitionContext, newState StateID) {
		records = ctx.Records()
	})

	if err := m.Fire("tick", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	assertTrace(t, trace, []string{"internal action"})
	assertCurrent(t, m, "B")
	if len(records) != 0 {
		t.Errorf("internal transition recorded %v, want no enter/exit", records)
	}
}

func TestDeepHistory(t *testing.T) {
	var trace []string
	m := NewMachine("history", WithLogger(core.NopLogger()))
	for _, id := range []StateID{"A", "B", "C", "C1", "C2", "D"} {
		m.In(id).
			ExecuteOnEntry(traceAction(&trace, "enter "+string(id))).
			ExecuteOnExit(traceAction(&trace, "exit "+string(id)))
	}
	m.DefineHierarchyOn("A").
		WithHistoryType(HistoryDeep).
		WithInitialSubState("B").
		WithSubState("C")
	m.DefineHierarchyOn("C").
		WithInitialSubState("C2").
		WithSubState("C1")
	m.In("B").On("down").Goto("C1")
	m.In("C1").On("away").Goto("D")
	m.In("D").On("back").Goto("A")
	if err := m.Err(); err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	start(t, m, "A")
	if err := m.Fire("down", nil); err != nil {
		t.Fatalf("Fire down: %v", err)
	}
	if err := m.Fire("away", nil); err != nil {
		t.Fatalf("Fire away: %v", err)
	}
	assertCurrent(t, m, "D")
	trace = nil

	// Deep history restores the remembered chain A/C/C1, not C's initial
	// sub-state C2.
	if err := m.Fire("back", nil); err != nil {
		t.Fatalf("Fire back: %v", err)
	}

	assertTrace(t, trace, []string{"exit D", "enter A", "enter C", "enter C1"})
	assertCurrent(t, m, "C1")
}

func TestShallowHistory(t *testing.T) {
	var trace []string
	m := NewMachine("history", WithLogger(core.NopLogger()))
	for _, id := range []StateID{"A", "B", "C", "C1", "C2", "D"} {
		m.In(id).
			ExecuteOnEntry(traceAction(&trace, "enter "+string(id))).
			ExecuteOnExit(traceAction(&trace, "exit "+string(id)))
	}
	m.DefineHierarchyOn("A").
		WithHistoryType(HistoryShallow).
		WithInitialSubState("B").
		WithSubState("C")
	m.DefineHierarchyOn("C").
		WithInitialSubState("C2").
		WithSubState("C1")
	m.In("B").On("down").Goto("C1")
	m.In("C1").On("away").Goto("D")
	m.In("D").On("back").Goto("A")
	if err := m.Err(); err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	start(t, m, "A")
	if err := m.Fire("down", nil); err != nil {
		t.Fatalf("Fire down: %v", err)
	}
	if err := m.Fire("away", nil); err != nil {
		t.Fatalf("Fire away: %v", err)
	}
	trace = nil

	// Shallow history remembers the direct child C but then follows C's
	// initial chain to C2, not the deeper memo C1.
	if err := m.Fire("back", nil); err != nil {
		t.Fatalf("Fire back: %v", err)
	}

	assertTrace(t, trace, []string{"exit D", "enter A", "enter C", "enter C2"})
	assertCurrent(t, m, "C2")
}

func TestGuardFallthrough(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)

	firstEvaluated := false
	m.In("B").
		On("e1").If(GuardFunc("never", func(any) (bool, error) {
		firstEvaluated = true
		return false, nil
	})).Goto("D").
		On("e1").Goto("C")

	start(t, m, "A")
	trace = nil

	if err := m.Fire("e1", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	if !firstEvaluated {
		t.Error("first guard was not evaluated")
	}
	assertCurrent(t, m, "C")
}

func TestGuardErrorCountsAsFalse(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").
		On("e1").If(GuardFunc("broken", func(any) (bool, error) {
		return false, errors.New("guard blew up")
	})).Goto("D").
		On("e1").Goto("C")

	start(t, m, "A")

	// Without an exception subscriber the guard failure comes back wrapped,
	// but the dispatch still falls through to the next transition.
	err := m.Fire("e1", nil)
	if err == nil {
		t.Fatal("expected the guard failure to be returned")
	}
	assertCurrent(t, m, "C")

	// With a subscriber the failure is delivered and swallowed.
	var delivered error
	m.OnTransitionException(func(ctx *TransitionContext, err error) {
		delivered = err
	})
	if err := m.Fire("e3", nil); err != nil { // declined, no guards involved
		t.Fatalf("Fire e3: %v", err)
	}
	m.In("C").On("e2").If(GuardFunc("broken", func(any) (bool, error) {
		return false, errors.New("guard blew up")
	})).Goto("D")
	if err := m.Fire("e2", nil); err != nil {
		t.Fatalf("Fire e2 should swallow the guard failure, got %v", err)
	}
	if delivered == nil {
		t.Error("guard failure was not delivered to the exception subscriber")
	}
}

func TestActionErrorDoesNotAbortTransition(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").ExecuteOnExit(
		ActionFunc("boom", func(any) error { return errors.New("boom") }),
		traceAction(&trace, "second exit action"),
	)
	m.In("B").On("e1").Goto("C")

	var delivered []error
	m.OnTransitionException(func(ctx *TransitionContext, err error) {
		delivered = append(delivered, err)
	})

	start(t, m, "A")
	trace = nil

	if err := m.Fire("e1", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	// The failing exit action does not stop the remaining actions or the
	// transition.
	assertTrace(t, trace, []string{"exit B", "second exit action", "enter C"})
	assertCurrent(t, m, "C")
	if len(delivered) != 1 {
		t.Fatalf("expected 1 delivered exception, got %d", len(delivered))
	}
}

func TestTransitionDeclined(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)

	declined := false
	m.OnTransitionDeclined(func(ctx *TransitionContext) {
		declined = true
	})

	start(t, m, "A")

	if err := m.Fire("unknown", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if !declined {
		t.Error("TransitionDeclined was not raised")
	}
	assertCurrent(t, m, "B")
}

func TestActionCountLaw(t *testing.T) {
	m := NewMachine("deep", WithLogger(core.NopLogger()))
	for _, id := range []StateID{"R", "R1", "R2", "S", "S1", "S2"} {
		m.In(id)
	}
	m.DefineHierarchyOn("R").WithInitialSubState("R1")
	m.DefineHierarchyOn("R1").WithInitialSubState("R2")
	m.DefineHierarchyOn("S").WithInitialSubState("S1")
	m.DefineHierarchyOn("S1").WithInitialSubState("S2")

	count := 0
	m.In("R2").On("jump").Goto("S2").Execute(ActionFunc("count", func(any) error {
		count++
		return nil
	}))
	if err := m.Err(); err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	start(t, m, "R")
	if err := m.Fire("jump", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	if count != 1 {
		t.Errorf("transition actions ran %d times, want exactly 1", count)
	}
	assertCurrent(t, m, "S2")
}

func TestTraceRecords(t *testing.T) {
	var trace []string
	m := buildFamily(t, &trace)
	m.In("B").On("e1").Goto("C")

	var records []TraceRecord
	m.OnTransitionCompleted(func(ctx *TransitionContext, newState StateID) {
		records = ctx.Records()
	})

	start(t, m, "A")
	if err := m.Fire("e1", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	want := []TraceRecord{
		{Kind: RecordExit, State: "B"},
		{Kind: RecordEnter, State: "C"},
	}
	if len(records) != len(want) {
		t.Fatalf("records mismatch: got %v, want %v", records, want)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Fatalf("record %d is %v, want %v", i, records[i], want[i])
		}
	}
}

func TestTransitionBeginBeforeExit(t *testing.T) {
	var order []string
	m := NewMachine("order", WithLogger(core.NopLogger()))
	m.In("X").ExecuteOnExit(ActionFunc("exit", func(any) error {
		order = append(order, "exit action")
		return nil
	}))
	m.In("X").On("go").Goto("Y")
	m.OnTransitionBegin(func(ctx *TransitionContext) {
		order = append(order, "begin")
	})

	start(t, m, "X")
	if err := m.Fire("go", nil); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	if fmt.Sprint(order) != fmt.Sprint([]string{"begin", "exit action"}) {
		t.Errorf("TransitionBegin must precede the first exit action, got %v", order)
	}
}
