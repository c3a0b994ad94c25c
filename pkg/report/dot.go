package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// DOT renders the graph in Graphviz DOT, with superstates as clusters.
type DOT struct {
	w io.Writer
}

// NewDOT creates a DOT reporter writing to w.
func NewDOT(w io.Writer) *DOT {
	return &DOT{w: w}
}

// Report implements hsm.Reporter.
func (r *DOT) Report(name string, states []*hsm.State, initial hsm.StateID, initialSet bool) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", name)
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=Mrecord];\n\n")

	if initialSet {
		sb.WriteString("  __start [shape=point];\n")
		fmt.Fprintf(&sb, "  __start -> %q;\n\n", initial)
	}

	byParent := childIndex(states)
	for _, state := range states {
		if _, ok := state.ParentID(); !ok {
			writeDOTState(&sb, state, byParent, 1)
		}
	}
	sb.WriteString("\n")

	for _, state := range states {
		for _, tr := range state.Transitions() {
			label := string(tr.EventID())
			if guard, ok := tr.GuardDescription(); ok {
				label += fmt.Sprintf("\\n[%s]", guard)
			}
			if actions := tr.ActionDescriptions(); len(actions) > 0 {
				label += "\\n/ " + strings.Join(actions, ", ")
			}
			target, external := tr.TargetID()
			if !external {
				fmt.Fprintf(&sb, "  %q -> %q [label=\"%s\" style=dashed];\n", state.ID(), state.ID(), label)
				continue
			}
			fmt.Fprintf(&sb, "  %q -> %q [label=\"%s\"];\n", state.ID(), target, label)
		}
	}

	sb.WriteString("}\n")
	_, err := io.WriteString(r.w, sb.String())
	return err
}

func writeDOTState(sb *strings.Builder, state *hsm.State, byParent map[hsm.StateID][]*hsm.State, depth int) {
	indent := strings.Repeat("  ", depth)
	children := byParent[state.ID()]
	if len(children) == 0 {
		fmt.Fprintf(sb, "%s%q;\n", indent, state.ID())
		return
	}

	fmt.Fprintf(sb, "%ssubgraph \"cluster_%s\" {\n", indent, state.ID())
	fmt.Fprintf(sb, "%s  label=%q;\n", indent, state.ID())
	if state.HistoryType() != hsm.HistoryNone {
		fmt.Fprintf(sb, "%s  \"%s_history\" [shape=circle label=\"H%s\"];\n",
			indent, state.ID(), historySuffix(state.HistoryType()))
	}
	for _, child := range children {
		writeDOTState(sb, child, byParent, depth+1)
	}
	fmt.Fprintf(sb, "%s}\n", indent)
}

func historySuffix(h hsm.HistoryType) string {
	if h == hsm.HistoryDeep {
		return "*"
	}
	return ""
}
