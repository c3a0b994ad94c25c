package hsm

// The execution engine. Given the current state and an event it walks the
// hierarchy to find the firing transition, executes the hierarchical
// exit/action/entry sequence and performs the history-aware descent into the
// target.

// fire runs one dispatch. Lifecycle checks have already happened.
func (m *Machine) fire(event EventID, arg any) error {
	// Extensions may rewrite the event before dispatch starts.
	ev, a := event, arg
	m.notifier.each(nil, func(e Extension) { e.FiringEvent(m, &ev, &a) })

	ctx := newTransitionContext(m.current, ev, true, a, m.notifier)

	tr := m.findFiringTransition(ctx)
	if tr == nil {
		m.logger.Debugf("state machine %s: no transition for event %s in state %s", m.name, ev, m.current)
		m.notifier.transitionDeclined(ctx)
		return m.consumeUnhandled(ctx)
	}

	m.performTransition(tr, ctx)
	m.notifier.each(ctx, func(e Extension) { e.FiredEvent(m, ctx) })
	return m.consumeUnhandled(ctx)
}

// findFiringTransition looks the event up starting at the current state and
// ascending to the root. Transitions are evaluated in declaration order; the
// first one whose guard passes fires. A guard failure counts as false.
func (m *Machine) findFiringTransition(ctx *TransitionContext) *Transition {
	for s := m.states.lookup(m.current); s != nil; s = m.states.parentOf(s) {
		for _, tr := range s.transitions[ctx.event] {
			if m.guardPasses(tr, ctx) {
				return tr
			}
			m.notifier.each(ctx, func(e Extension) { e.SkippedTransition(m, tr, ctx) })
		}
	}
	return nil
}

func (m *Machine) guardPasses(tr *Transition, ctx *TransitionContext) bool {
	if tr.guard == nil {
		return true
	}
	ok, err := tr.guard.Evaluate(ctx.argument)
	if err != nil {
		m.notifier.each(ctx, func(e Extension) { e.HandlingGuardException(m, tr, ctx, &err) })
		m.notifier.raise(ctx, err)
		m.notifier.each(ctx, func(e Extension) { e.HandledGuardException(m, tr, ctx, err) })
		return false
	}
	return ok
}

// performTransition executes the chosen transition. For external transitions
// it unwinds from the current leaf to the transition's source, resolves the
// source-to-target traversal, and descends into the target by history.
func (m *Machine) performTransition(tr *Transition, ctx *TransitionContext) {
	m.notifier.each(ctx, func(e Extension) { e.ExecutingTransition(m, tr, ctx) })
	m.notifier.transitionBegin(ctx)

	if tr.IsInternal() {
		m.runTransitionActions(tr, ctx)
		m.notifier.each(ctx, func(e Extension) { e.ExecutedTransition(m, tr, ctx) })
		m.notifier.transitionCompleted(ctx, m.current)
		return
	}

	src := m.states.lookup(tr.source)
	tgt := m.states.lookup(tr.target)

	// The dispatch may have ascended through parents to find the
	// transition; exit everything between the current leaf and the source.
	for s := m.states.lookup(m.current); s != src; s = m.states.parentOf(s) {
		m.exitState(s, ctx)
	}

	m.traverse(src, tgt, tgt, tr, ctx)
	leaf := m.enterByHistory(tgt, ctx)

	old := m.current
	m.current = leaf.id

	m.notifier.each(ctx, func(e Extension) { e.ExecutedTransition(m, tr, ctx) })
	m.notifier.each(ctx, func(e Extension) { e.SwitchedState(m, old, leaf.id) })
	m.notifier.transitionCompleted(ctx, leaf.id)
	m.logger.Debugf("state machine %s: %s -> %s (event %s)", m.name, old, leaf.id, ctx.event)
}

// traverse resolves the source-to-target walk of an external transition.
// original is the transition's target as chosen by the dispatch; it is
// passed through the recursion so the termination check does not depend on
// which cursor the recursion currently holds.
//
// The transition's actions run exactly once, at the point where the
// recursion bottoms out.
func (m *Machine) traverse(src, tgt, original *State, tr *Transition, ctx *TransitionContext) {
	switch {
	case src == original:
		// Self-transition, or a descendant-to-ancestor walk that has
		// arrived at the target.
		m.exitState(src, ctx)
		m.runTransitionActions(tr, ctx)
		m.enterState(src, ctx)
	case src == tgt:
		// Ancestor-to-descendant walk arrived at the source; the descent
		// happens while the recursion unwinds.
		m.runTransitionActions(tr, ctx)
	case src.parent == tgt.parent:
		// Siblings, or two roots.
		m.exitState(src, ctx)
		m.runTransitionActions(tr, ctx)
		m.enterState(tgt, ctx)
	default:
		switch {
		case src.depth > tgt.depth:
			m.exitState(src, ctx)
			m.traverse(m.states.parentOf(src), tgt, original, tr, ctx)
		case src.depth < tgt.depth:
			m.traverse(src, m.states.parentOf(tgt), original, tr, ctx)
			m.enterState(tgt, ctx)
		default:
			m.exitState(src, ctx)
			m.traverse(m.states.parentOf(src), m.states.parentOf(tgt), original, tr, ctx)
			m.enterState(tgt, ctx)
		}
	}
}

// enterByHistory descends from the already-entered target to a leaf
// according to the target's history mode.
func (m *Machine) enterByHistory(tgt *State, ctx *TransitionContext) *State {
	switch tgt.history {
	case HistoryShallow:
		if tgt.lastActive != "" {
			return m.enterShallow(m.states.lookup(tgt.lastActive), ctx)
		}
	case HistoryDeep:
		if tgt.lastActive != "" {
			return m.enterDeep(m.states.lookup(tgt.lastActive), ctx)
		}
	}
	return m.enterInitialChain(tgt, ctx)
}

// enterInitialChain descends along initial sub-states without entering tgt
// itself.
func (m *Machine) enterInitialChain(tgt *State, ctx *TransitionContext) *State {
	leaf := tgt
	for leaf.initial != "" {
		leaf = m.states.lookup(leaf.initial)
		m.enterState(leaf, ctx)
	}
	return leaf
}

// enterShallow enters s and then follows its initial chain.
func (m *Machine) enterShallow(s *State, ctx *TransitionContext) *State {
	m.enterState(s, ctx)
	return m.enterInitialChain(s, ctx)
}

// enterDeep enters s and recursively follows the last-active chain.
func (m *Machine) enterDeep(s *State, ctx *TransitionContext) *State {
	m.enterState(s, ctx)
	if s.lastActive == "" {
		return s
	}
	return m.enterDeep(m.states.lookup(s.lastActive), ctx)
}

// enterInitial performs the initial entry: every ancestor of the initial
// state is entered from the root down, then the shallow chain descends to a
// leaf.
func (m *Machine) enterInitial(initial *State, ctx *TransitionContext) *State {
	var path []*State
	for s := initial; s != nil; s = m.states.parentOf(s) {
		path = append(path, s)
	}
	for i := len(path) - 1; i >= 0; i-- {
		m.enterState(path[i], ctx)
	}
	return m.enterInitialChain(initial, ctx)
}

// enterState records the entry, marks s as its parent's active child and
// runs the state's entry actions in order. A failing action does not stop
// the remaining ones.
func (m *Machine) enterState(s *State, ctx *TransitionContext) {
	ctx.addRecord(RecordEnter, s.id)
	if parent := m.states.parentOf(s); parent != nil {
		parent.lastActive = s.id
	}
	for _, a := range s.entryActions {
		if err := a.Execute(ctx.argument); err != nil {
			m.notifier.each(ctx, func(e Extension) { e.HandlingEntryActionException(m, s.id, ctx, &err) })
			m.notifier.raise(ctx, err)
			m.notifier.each(ctx, func(e Extension) { e.HandledEntryActionException(m, s.id, ctx, err) })
		}
	}
}

// exitState records the exit, runs the state's exit actions in order and
// refreshes the parent's last-active-child memo. Together with enterState
// the memo always names the parent's current (or most recent) active
// child, so a transition between siblings that never exits the superstate
// still leaves the new sibling in the memo.
func (m *Machine) exitState(s *State, ctx *TransitionContext) {
	ctx.addRecord(RecordExit, s.id)
	for _, a := range s.exitActions {
		if err := a.Execute(ctx.argument); err != nil {
			m.notifier.each(ctx, func(e Extension) { e.HandlingExitActionException(m, s.id, ctx, &err) })
			m.notifier.raise(ctx, err)
			m.notifier.each(ctx, func(e Extension) { e.HandledExitActionException(m, s.id, ctx, err) })
		}
	}
	if parent := m.states.parentOf(s); parent != nil {
		parent.lastActive = s.id
	}
}

func (m *Machine) runTransitionActions(tr *Transition, ctx *TransitionContext) {
	for _, a := range tr.actions {
		if err := a.Execute(ctx.argument); err != nil {
			m.notifier.each(ctx, func(e Extension) { e.HandlingTransitionException(m, tr, ctx, &err) })
			m.notifier.raise(ctx, err)
			m.notifier.each(ctx, func(e Extension) { e.HandledTransitionException(m, tr, ctx, err) })
		}
	}
}
