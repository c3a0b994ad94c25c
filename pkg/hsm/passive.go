package hsm

// PassiveMachine pumps events on the caller's goroutine. Firing an event
// from within an action is safe: the nested call only enqueues and the
// outer pump drains the queue. While the machine is stopped events
// accumulate; Start drains everything queued so far.
type PassiveMachine struct {
	*Machine

	queue     []*EventInfo
	executing bool
	running   bool
}

// NewPassive creates a machine driven by the passive, caller-thread pump.
func NewPassive(name string, opts ...Option) *PassiveMachine {
	return &PassiveMachine{Machine: NewMachine(name, opts...)}
}

// Start begins processing: queued events are pumped and future Fire calls
// execute immediately.
func (pm *PassiveMachine) Start() error {
	if pm.running {
		return nil
	}
	pm.running = true
	pm.notifier.each(nil, func(e Extension) { e.StartedStateMachine(pm) })
	return pm.execute()
}

// Stop suspends processing; events fired while stopped are queued.
func (pm *PassiveMachine) Stop() {
	if !pm.running {
		return
	}
	pm.running = false
	pm.notifier.each(nil, func(e Extension) { e.StoppedStateMachine(pm) })
}

// IsRunning reports whether the pump is active.
func (pm *PassiveMachine) IsRunning() bool { return pm.running }

// Fire appends the event to the queue and pumps it.
func (pm *PassiveMachine) Fire(event EventID, arg any) error {
	pm.queue = append(pm.queue, &EventInfo{Event: event, Argument: arg})
	pm.notifier.each(nil, func(e Extension) { e.EventQueued(pm, event, arg) })
	return pm.execute()
}

// FirePriority inserts the event at the head of the queue and pumps it.
func (pm *PassiveMachine) FirePriority(event EventID, arg any) error {
	pm.queue = append([]*EventInfo{{Event: event, Argument: arg}}, pm.queue...)
	pm.notifier.each(nil, func(e Extension) { e.EventQueuedWithPriority(pm, event, arg) })
	return pm.execute()
}

// execute drains the queue. The guard flag keeps the pump from re-entering
// itself when an action fires another event.
func (pm *PassiveMachine) execute() error {
	if pm.executing || !pm.running {
		return nil
	}
	pm.executing = true
	defer func() { pm.executing = false }()

	for len(pm.queue) > 0 {
		ev := pm.queue[0]
		pm.queue = pm.queue[1:]
		if err := pm.Machine.Fire(ev.Event, ev.Argument); err != nil {
			return err
		}
	}
	return nil
}
