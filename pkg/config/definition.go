// Package config loads declarative machine definitions from YAML and
// applies them to a machine through the builder. Entry/exit actions, guards
// and transition actions are referenced by name and resolved through a
// Registry.
package config

import (
	"fmt"
	"os"

	"github.com/fluxorio/hsm/pkg/hsm"
	"gopkg.in/yaml.v3"
)

// Definition is the root of a YAML machine description.
type Definition struct {
	Name    string      `yaml:"name"`
	Initial hsm.StateID `yaml:"initial,omitempty"`
	States  []StateDef  `yaml:"states"`
}

// StateDef describes one state; sub-states nest under States.
type StateDef struct {
	ID          hsm.StateID     `yaml:"id"`
	History     string          `yaml:"history,omitempty"`
	Initial     hsm.StateID     `yaml:"initial,omitempty"`
	Entry       []string        `yaml:"entry,omitempty"`
	Exit        []string        `yaml:"exit,omitempty"`
	States      []StateDef      `yaml:"states,omitempty"`
	Transitions []TransitionDef `yaml:"transitions,omitempty"`
}

// TransitionDef describes one transition; an empty target makes it
// internal.
type TransitionDef struct {
	On      hsm.EventID `yaml:"on"`
	Target  hsm.StateID `yaml:"target,omitempty"`
	Guard   string      `yaml:"guard,omitempty"`
	Actions []string    `yaml:"actions,omitempty"`
}

// Load reads a Definition from a YAML file.
func Load(path string) (*Definition, error) {
	// #nosec G304 -- path is provided by the caller (library function); callers should validate/lock down inputs if untrusted.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}
	def := &Definition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return def, nil
}

// Save writes a Definition to a YAML file.
func Save(def *Definition, path string) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write definition %s: %w", path, err)
	}
	return nil
}

// Definable is the slice of the machine API the config layer drives. All
// machine flavours satisfy it.
type Definable interface {
	In(id hsm.StateID) *hsm.StateBuilder
	DefineHierarchyOn(id hsm.StateID) *hsm.HierarchyBuilder
	Initialize(id hsm.StateID) error
	Err() error
}

// Apply configures machine from def, resolving named actions and guards
// through reg. When the definition names an initial state the machine is
// initialized as well.
func Apply(def *Definition, machine Definable, reg *Registry) error {
	for i := range def.States {
		if err := applyState(&def.States[i], machine, reg); err != nil {
			return err
		}
	}
	if err := machine.Err(); err != nil {
		return err
	}
	if def.Initial != "" {
		return machine.Initialize(def.Initial)
	}
	return nil
}

func applyState(sd *StateDef, machine Definable, reg *Registry) error {
	if sd.ID == "" {
		return fmt.Errorf("state without id")
	}

	sb := machine.In(sd.ID)
	for _, name := range sd.Entry {
		action, err := reg.action(name)
		if err != nil {
			return err
		}
		sb.ExecuteOnEntry(action)
	}
	for _, name := range sd.Exit {
		action, err := reg.action(name)
		if err != nil {
			return err
		}
		sb.ExecuteOnExit(action)
	}

	for _, td := range sd.Transitions {
		if td.On == "" {
			return fmt.Errorf("state %s: transition without event", sd.ID)
		}
		tb := machine.In(sd.ID).On(td.On)
		if td.Guard != "" {
			guard, err := reg.guard(td.Guard)
			if err != nil {
				return err
			}
			tb.If(guard)
		}
		if td.Target != "" {
			tb.Goto(td.Target)
		}
		for _, name := range td.Actions {
			action, err := reg.action(name)
			if err != nil {
				return err
			}
			tb.Execute(action)
		}
	}

	if len(sd.States) > 0 {
		history, err := parseHistory(sd.History)
		if err != nil {
			return fmt.Errorf("state %s: %w", sd.ID, err)
		}
		hb := machine.DefineHierarchyOn(sd.ID).WithHistoryType(history)
		for i := range sd.States {
			child := &sd.States[i]
			if child.ID == sd.Initial {
				hb.WithInitialSubState(child.ID)
			} else {
				hb.WithSubState(child.ID)
			}
		}
		for i := range sd.States {
			if err := applyState(&sd.States[i], machine, reg); err != nil {
				return err
			}
		}
	} else if sd.History != "" {
		return fmt.Errorf("state %s: history on a state without sub-states", sd.ID)
	}

	return nil
}

func parseHistory(s string) (hsm.HistoryType, error) {
	switch s {
	case "", "none":
		return hsm.HistoryNone, nil
	case "shallow":
		return hsm.HistoryShallow, nil
	case "deep":
		return hsm.HistoryDeep, nil
	default:
		return hsm.HistoryNone, fmt.Errorf("unknown history mode %q", s)
	}
}
