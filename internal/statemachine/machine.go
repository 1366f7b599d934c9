// Package statemachine declares the legal states, actions and transitions for
// every mutable entity kind. All lookups are pure; nothing here touches storage.
package statemachine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindAsset          Kind = "asset"
	KindAdAccount      Kind = "ad_account"
	KindCampaignIntent Kind = "campaign_intent"
	KindCampaign       Kind = "campaign"
	KindAutomationRule Kind = "automation_rule"
)

// ErrInvalidTransition matches every *TransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid transition")

// Definition is one row of a kind's table.
type Definition struct {
	AllowedActions    []string
	AllowedNextStates []string
}

// Machine is the static table for one entity kind.
type Machine struct {
	kind    Kind
	initial string
	states  map[string]Definition
	// targets maps state-changing actions to the state they lead to.
	targets map[string]string
}

func (m *Machine) Kind() Kind { return m.kind }
func (m *Machine) Initial() string { return m.initial }

func (m *Machine) HasState(state string) bool {
	_, ok := m.states[state]
	return ok
}

// States returns every declared state in a stable order.
func (m *Machine) States() []string {
	out := make([]string, 0, len(m.states))
	for s := range m.states {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *Machine) AllowedActions(state string) []string {
	return append([]string(nil), m.states[state].AllowedActions...)
}

func (m *Machine) AllowedNextStates(state string) []string {
	return append([]string(nil), m.states[state].AllowedNextStates...)
}

func (m *Machine) IsTerminal(state string) bool {
	def, ok := m.states[state]
	return ok && len(def.AllowedNextStates) == 0
}

func (m *Machine) IsActionAllowed(state, action string) bool {
	def, ok := m.states[state]
	if !ok {
		return false
	}
	return contains(def.AllowedActions, action)
}

func (m *Machine) CanTransition(from, to string) bool {
	def, ok := m.states[from]
	if !ok {
		return false
	}
	return contains(def.AllowedNextStates, to)
}

// TargetOf returns the state a state-changing action leads to.
func (m *Machine) TargetOf(action string) (string, bool) {
	s, ok := m.targets[action]
	return s, ok
}

// CheckAction returns a *TransitionError when action is not allowed in state.
func (m *Machine) CheckAction(state, action string) error {
	if m.IsActionAllowed(state, action) {
		return nil
	}
	return &TransitionError{
		Kind:              m.kind,
		CurrentState:      state,
		Action:            action,
		AllowedActions:    m.AllowedActions(state),
		AllowedNextStates: m.AllowedNextStates(state),
	}
}

// CheckTransition returns a *TransitionError when from -> to is not declared.
func (m *Machine) CheckTransition(from, to string) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return &TransitionError{
		Kind:              m.kind,
		CurrentState:      from,
		Target:            to,
		AllowedActions:    m.AllowedActions(from),
		AllowedNextStates: m.AllowedNextStates(from),
	}
}

// TransitionError is the structured rejection for an action or transition the
// current state does not permit.
type TransitionError struct {
	Kind              Kind     `json:"kind"`
	CurrentState      string   `json:"current_state"`
	Action            string   `json:"action,omitempty"`
	Target            string   `json:"target,omitempty"`
	AllowedActions    []string `json:"allowed_actions"`
	AllowedNextStates []string `json:"allowed_next_states"`
}

func (e *TransitionError) Error() string {
	allowed := "none"
	if len(e.AllowedActions) > 0 {
		allowed = strings.Join(e.AllowedActions, ", ")
	}
	if e.Action != "" {
		return fmt.Sprintf("%s in state %s cannot %s (allowed actions: %s)", e.Kind, e.CurrentState, e.Action, allowed)
	}
	return fmt.Sprintf("%s cannot move from %s to %s (allowed actions: %s)", e.Kind, e.CurrentState, e.Target, allowed)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
