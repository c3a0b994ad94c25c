package report

import (
	"fmt"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// Stats summarizes a state graph.
type Stats struct {
	Name            string
	StateCount      int
	TransitionCount int
	SuperstateCount int
	MaxDepth        int
}

// Collect gathers graph statistics. It implements hsm.Reporter so it can be
// filled in via Machine.Report.
type Collect struct {
	Stats Stats
}

// Report implements hsm.Reporter.
func (c *Collect) Report(name string, states []*hsm.State, initial hsm.StateID, initialSet bool) error {
	byParent := childIndex(states)
	c.Stats = Stats{Name: name}
	c.Stats.StateCount = len(states)
	for _, s := range states {
		c.Stats.TransitionCount += len(s.Transitions())
		if len(byParent[s.ID()]) > 0 {
			c.Stats.SuperstateCount++
		}
		if s.Depth() > c.Stats.MaxDepth {
			c.Stats.MaxDepth = s.Depth()
		}
	}
	return nil
}

// Check lints a state graph and returns human-readable findings: states
// unreachable from the initial state and superstates without an initial
// sub-state. It implements hsm.Reporter.
type Check struct {
	Findings []string
}

// Report implements hsm.Reporter.
func (c *Check) Report(name string, states []*hsm.State, initial hsm.StateID, initialSet bool) error {
	byParent := childIndex(states)

	for _, s := range states {
		if len(byParent[s.ID()]) > 0 {
			if _, ok := s.InitialChildID(); !ok {
				c.Findings = append(c.Findings,
					fmt.Sprintf("superstate %s has no initial sub-state; entering it will not reach a leaf", s.ID()))
			}
		}
	}

	if !initialSet {
		return nil
	}

	// Breadth-first over transition targets, widened by hierarchy: entering
	// a state makes its ancestors and its initial chain active too.
	reachable := make(map[hsm.StateID]bool)
	index := make(map[hsm.StateID]*hsm.State, len(states))
	for _, s := range states {
		index[s.ID()] = s
	}

	var visit func(id hsm.StateID)
	visit = func(id hsm.StateID) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		s := index[id]
		if s == nil {
			return
		}
		if parent, ok := s.ParentID(); ok {
			visit(parent)
		}
		if init, ok := s.InitialChildID(); ok {
			visit(init)
		}
	}

	visit(initial)
	for changed := true; changed; {
		changed = false
		for _, s := range states {
			if !reachable[s.ID()] {
				continue
			}
			for _, tr := range s.Transitions() {
				if target, ok := tr.TargetID(); ok && !reachable[target] {
					visit(target)
					changed = true
				}
			}
		}
	}

	for _, s := range states {
		if !reachable[s.ID()] {
			c.Findings = append(c.Findings, fmt.Sprintf("state %s is unreachable", s.ID()))
		}
	}
	return nil
}
