package statemachine

import (
	"fmt"

	"github.com/adpilot/backend/internal/models"
)

// capabilityActions are the ad account actions gated by a granted permission.
var capabilityActions = map[string]func(models.Permissions) bool{
	ActionAccountAnalyze: func(p models.Permissions) bool { return p.CanAnalyze },
	ActionLaunch:         func(p models.Permissions) bool { return p.CanLaunch },
	ActionOptimize:       func(p models.Permissions) bool { return p.CanOptimize },
}

// Registry holds one Machine per entity kind. It is immutable after NewRegistry
// and safe for concurrent use.
type Registry struct {
	machines map[Kind]*Machine
}

func NewRegistry() *Registry {
	r := &Registry{machines: make(map[Kind]*Machine)}
	for _, m := range []*Machine{
		assetMachine(),
		adAccountMachine(),
		campaignIntentMachine(),
		campaignMachine(),
		automationRuleMachine(),
	} {
		r.machines[m.kind] = m
	}
	return r
}

// Machine returns the table for kind. Unknown kinds panic: they are programmer errors.
func (r *Registry) Machine(kind Kind) *Machine {
	m, ok := r.machines[kind]
	if !ok {
		panic(fmt.Sprintf("statemachine: unknown kind %q", kind))
	}
	return m
}

func (r *Registry) Kinds() []Kind {
	return []Kind{KindAsset, KindAdAccount, KindCampaignIntent, KindCampaign, KindAutomationRule}
}

func (r *Registry) IsActionAllowed(kind Kind, state, action string) bool {
	return r.Machine(kind).IsActionAllowed(state, action)
}

func (r *Registry) CanTransition(kind Kind, from, to string) bool {
	return r.Machine(kind).CanTransition(from, to)
}

func (r *Registry) CheckAction(kind Kind, state, action string) error {
	return r.Machine(kind).CheckAction(state, action)
}

func (r *Registry) CheckTransition(kind Kind, from, to string) error {
	return r.Machine(kind).CheckTransition(from, to)
}

// AllowedActionsWithCapabilities narrows the ad account actions for state to
// those the granted permissions cover. Actions without a capability gate pass through.
func (r *Registry) AllowedActionsWithCapabilities(state models.ConnectionState, perms models.Permissions) []string {
	base := r.Machine(KindAdAccount).AllowedActions(string(state))
	out := base[:0]
	for _, a := range base {
		if gate, ok := capabilityActions[a]; ok && !gate(perms) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// IsAdAccountActionAllowed is the permission-aware variant of IsActionAllowed.
func (r *Registry) IsAdAccountActionAllowed(state models.ConnectionState, perms models.Permissions, action string) bool {
	return contains(r.AllowedActionsWithCapabilities(state, perms), action)
}
