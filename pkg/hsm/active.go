package hsm

import (
	"fmt"
	"sync"
)

// ActiveMachine processes events on a dedicated worker goroutine. Producers
// may call Fire and FirePriority from any goroutine; both insert under the
// queue mutex, signal the worker and return immediately. Stop is
// cooperative: the in-flight dispatch completes and queued events are
// retained for the next Start.
type ActiveMachine struct {
	*Machine

	mu   sync.Mutex
	cond *sync.Cond

	queue       []*EventInfo
	running     bool
	stopping    bool
	pendingInit bool

	done      chan struct{}
	workerErr error
}

// NewActive creates a machine driven by a dedicated worker goroutine.
func NewActive(name string, opts ...Option) *ActiveMachine {
	am := &ActiveMachine{Machine: NewMachine(name, opts...)}
	am.cond = sync.NewCond(&am.mu)
	return am
}

// EnterInitialState schedules the initial entry; the worker performs it
// before processing any queued event.
func (am *ActiveMachine) EnterInitialState() error {
	if !am.initialized {
		return newLifecycleError(ErrorCodeNotInitialized, "state machine %s is not initialized", am.name)
	}
	am.mu.Lock()
	am.pendingInit = true
	am.cond.Signal()
	am.mu.Unlock()
	return nil
}

// Fire appends the event to the queue and wakes the worker.
func (am *ActiveMachine) Fire(event EventID, arg any) error {
	am.mu.Lock()
	am.queue = append(am.queue, &EventInfo{Event: event, Argument: arg})
	am.cond.Signal()
	am.mu.Unlock()
	am.notifier.each(nil, func(e Extension) { e.EventQueued(am, event, arg) })
	return nil
}

// FirePriority inserts the event at the head of the queue and wakes the
// worker. Priority events are processed before anything enqueued after
// them; among themselves they are LIFO.
func (am *ActiveMachine) FirePriority(event EventID, arg any) error {
	am.mu.Lock()
	am.queue = append([]*EventInfo{{Event: event, Argument: arg}}, am.queue...)
	am.cond.Signal()
	am.mu.Unlock()
	am.notifier.each(nil, func(e Extension) { e.EventQueuedWithPriority(am, event, arg) })
	return nil
}

// QueuedEvents returns the number of events waiting in the queue.
func (am *ActiveMachine) QueuedEvents() int {
	am.mu.Lock()
	defer am.mu.Unlock()
	return len(am.queue)
}

// IsRunning reports whether the worker is running.
func (am *ActiveMachine) IsRunning() bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.running
}

// Start spawns the worker.
func (am *ActiveMachine) Start() error {
	am.mu.Lock()
	if am.running {
		am.mu.Unlock()
		return nil
	}
	am.running = true
	am.stopping = false
	am.done = make(chan struct{})
	done := am.done
	am.mu.Unlock()

	am.notifier.each(nil, func(e Extension) { e.StartedStateMachine(am) })
	go am.work(done)
	return nil
}

// Stop signals cancellation, wakes a waiting worker and joins it. A worker
// that terminated abnormally propagates its fault out of Stop. Events still
// queued are retained.
func (am *ActiveMachine) Stop() error {
	am.mu.Lock()
	if !am.running {
		am.mu.Unlock()
		return nil
	}
	// Flip the flag and pulse the condition variable under the queue lock,
	// otherwise the worker can re-check and wait between the two steps.
	am.stopping = true
	am.cond.Broadcast()
	done := am.done
	am.mu.Unlock()

	<-done

	am.mu.Lock()
	am.running = false
	err := am.workerErr
	am.workerErr = nil
	am.mu.Unlock()

	am.notifier.each(nil, func(e Extension) { e.StoppedStateMachine(am) })
	if err != nil {
		return fmt.Errorf("state machine %s: worker terminated: %w", am.name, err)
	}
	return nil
}

// work is the worker loop: perform a pending initialization, pop the queue
// or wait on the condition variable, and dispatch outside the lock.
func (am *ActiveMachine) work(done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			am.mu.Lock()
			am.workerErr = fmt.Errorf("worker panicked: %v", r)
			am.mu.Unlock()
		}
	}()

	for {
		am.mu.Lock()
		for len(am.queue) == 0 && !am.pendingInit && !am.stopping {
			am.cond.Wait()
		}
		if am.stopping {
			am.mu.Unlock()
			return
		}
		if am.pendingInit {
			am.pendingInit = false
			am.mu.Unlock()
			if err := am.Machine.EnterInitialState(); err != nil {
				am.fail(err)
				return
			}
			continue
		}
		ev := am.queue[0]
		am.queue = am.queue[1:]
		am.mu.Unlock()

		if err := am.Machine.Fire(ev.Event, ev.Argument); err != nil {
			am.fail(err)
			return
		}
	}
}

func (am *ActiveMachine) fail(err error) {
	am.mu.Lock()
	am.workerErr = err
	am.mu.Unlock()
}
