package config

import (
	"fmt"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// Registry resolves the action and guard names used in definitions.
type Registry struct {
	actions map[string]hsm.Action
	guards  map[string]hsm.Guard

	// allowUnknown substitutes named stubs for unresolved references, which
	// lets reporting tools render a definition without its behavior.
	allowUnknown bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]hsm.Action),
		guards:  make(map[string]hsm.Guard),
	}
}

// AllowUnknown makes unresolved action and guard names resolve to named
// stubs: the stub action does nothing, the stub guard declines.
func (r *Registry) AllowUnknown() *Registry {
	r.allowUnknown = true
	return r
}

// RegisterAction registers a named action.
func (r *Registry) RegisterAction(name string, fn func(arg any) error) *Registry {
	r.actions[name] = hsm.ActionFunc(name, fn)
	return r
}

// RegisterGuard registers a named guard.
func (r *Registry) RegisterGuard(name string, fn func(arg any) (bool, error)) *Registry {
	r.guards[name] = hsm.GuardFunc(name, fn)
	return r
}

func (r *Registry) action(name string) (hsm.Action, error) {
	if a, ok := r.actions[name]; ok {
		return a, nil
	}
	if r.allowUnknown {
		return hsm.ActionFunc(name, func(any) error { return nil }), nil
	}
	return nil, fmt.Errorf("unknown action %q", name)
}

func (r *Registry) guard(name string) (hsm.Guard, error) {
	if g, ok := r.guards[name]; ok {
		return g, nil
	}
	if r.allowUnknown {
		return hsm.GuardFunc(name, func(any) (bool, error) { return false, nil }), nil
	}
	return nil, fmt.Errorf("unknown guard %q", name)
}
