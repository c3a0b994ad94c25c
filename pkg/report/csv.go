// Package report renders a machine's state graph for humans and tooling:
// CSV transition tables, Mermaid state diagrams and Graphviz DOT. Every
// renderer implements hsm.Reporter and is handed the graph via
// Machine.Report.
package report

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// CSV writes one row per declared transition with the header
// Source;Event;Guard;Target;Actions. Internal transitions carry
// "internal transition" in the target column; guard and action names come
// from their Describe.
type CSV struct {
	w io.Writer
}

// NewCSV creates a CSV reporter writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: w}
}

// Report implements hsm.Reporter.
func (r *CSV) Report(name string, states []*hsm.State, initial hsm.StateID, initialSet bool) error {
	cw := csv.NewWriter(r.w)
	cw.Comma = ';'

	if err := cw.Write([]string{"Source", "Event", "Guard", "Target", "Actions"}); err != nil {
		return err
	}
	for _, state := range states {
		for _, tr := range state.Transitions() {
			target := "internal transition"
			if id, ok := tr.TargetID(); ok {
				target = string(id)
			}
			guard := ""
			if desc, ok := tr.GuardDescription(); ok {
				guard = desc
			}
			row := []string{
				string(state.ID()),
				string(tr.EventID()),
				guard,
				target,
				strings.Join(tr.ActionDescriptions(), ", "),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
