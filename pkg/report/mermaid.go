package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// Mermaid renders the graph as a Mermaid stateDiagram-v2 with nested
// composite states and history markers.
type Mermaid struct {
	w io.Writer
}

// NewMermaid creates a Mermaid reporter writing to w.
func NewMermaid(w io.Writer) *Mermaid {
	return &Mermaid{w: w}
}

// Report implements hsm.Reporter.
func (r *Mermaid) Report(name string, states []*hsm.State, initial hsm.StateID, initialSet bool) error {
	var sb strings.Builder

	sb.WriteString("stateDiagram-v2\n")
	if initialSet {
		fmt.Fprintf(&sb, "    [*] --> %s\n", initial)
	}

	byParent := childIndex(states)
	for _, state := range states {
		if _, ok := state.ParentID(); !ok {
			writeMermaidState(&sb, state, byParent, 1)
		}
	}

	for _, state := range states {
		for _, tr := range state.Transitions() {
			target, external := tr.TargetID()
			label := string(tr.EventID())
			if guard, ok := tr.GuardDescription(); ok {
				label += fmt.Sprintf(" [%s]", guard)
			}
			if !external {
				// Mermaid has no internal-transition notation; a self-loop
				// with a marker is the closest rendering.
				fmt.Fprintf(&sb, "    %s --> %s : %s (internal)\n", state.ID(), state.ID(), label)
				continue
			}
			fmt.Fprintf(&sb, "    %s --> %s : %s\n", state.ID(), target, label)
		}
	}

	_, err := io.WriteString(r.w, sb.String())
	return err
}

func writeMermaidState(sb *strings.Builder, state *hsm.State, byParent map[hsm.StateID][]*hsm.State, depth int) {
	indent := strings.Repeat("    ", depth)
	children := byParent[state.ID()]
	if len(children) == 0 {
		fmt.Fprintf(sb, "%s%s\n", indent, state.ID())
		return
	}

	fmt.Fprintf(sb, "%sstate %s {\n", indent, state.ID())
	if initial, ok := state.InitialChildID(); ok {
		fmt.Fprintf(sb, "%s    [*] --> %s\n", indent, initial)
	}
	for _, child := range children {
		writeMermaidState(sb, child, byParent, depth+1)
	}
	switch state.HistoryType() {
	case hsm.HistoryShallow:
		fmt.Fprintf(sb, "%s    state %s_history <<history>>\n", indent, state.ID())
	case hsm.HistoryDeep:
		fmt.Fprintf(sb, "%s    state %s_history <<deepHistory>>\n", indent, state.ID())
	}
	fmt.Fprintf(sb, "%s}\n", indent)
}

// childIndex groups states by parent id.
func childIndex(states []*hsm.State) map[hsm.StateID][]*hsm.State {
	byParent := make(map[hsm.StateID][]*hsm.State)
	for _, s := range states {
		if parent, ok := s.ParentID(); ok {
			byParent[parent] = append(byParent[parent], s)
		}
	}
	return byParent
}
