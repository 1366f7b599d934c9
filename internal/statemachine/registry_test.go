package statemachine

import (
	"errors"
	"testing"

	"github.com/adpilot/backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		kind     Kind
		from     string
		to       string
		expected bool
	}{
		// Asset lifecycle
		{KindAsset, "UPLOADED", "ANALYZING", true},
		{KindAsset, "ANALYZING", "APPROVED", true},
		{KindAsset, "ANALYZING", "BLOCKED", true},
		{KindAsset, "BLOCKED", "ANALYZING", true},
		{KindAsset, "APPROVED", "READY_FOR_LAUNCH", true},
		{KindAsset, "READY_FOR_LAUNCH", "USED_IN_CAMPAIGN", true},
		{KindAsset, "BLOCKED", "APPROVED", false},
		{KindAsset, "UPLOADED", "APPROVED", false},
		{KindAsset, "USED_IN_CAMPAIGN", "APPROVED", false},

		// Ad account lifecycle
		{KindAdAccount, "DISCONNECTED", "CONNECTING", true},
		{KindAdAccount, "CONNECTING", "FULL_ACCESS", true},
		{KindAdAccount, "CONNECTING", "LIMITED_PERMISSION", true},
		{KindAdAccount, "CONNECTING", "DISCONNECTED", true},
		{KindAdAccount, "FULL_ACCESS", "LIMITED_PERMISSION", true},
		{KindAdAccount, "LIMITED_PERMISSION", "FULL_ACCESS", true},
		{KindAdAccount, "FULL_ACCESS", "DISCONNECTED", true},
		{KindAdAccount, "DISCONNECTED", "FULL_ACCESS", false},
		{KindAdAccount, "FULL_ACCESS", "CONNECTING", false},

		// Intent lifecycle
		{KindCampaignIntent, "DRAFT", "VALIDATING", true},
		{KindCampaignIntent, "VALIDATING", "READY_TO_PUBLISH", true},
		{KindCampaignIntent, "VALIDATING", "DRAFT", true},
		{KindCampaignIntent, "PUBLISHING", "LAUNCHED", true},
		{KindCampaignIntent, "PUBLISHING", "FAILED", true},
		{KindCampaignIntent, "FAILED", "PUBLISHING", true},
		{KindCampaignIntent, "DRAFT", "PUBLISHING", false},
		{KindCampaignIntent, "LAUNCHED", "DRAFT", false},

		// Campaign lifecycle
		{KindCampaign, "ACTIVE", "PAUSED", true},
		{KindCampaign, "PAUSED", "ACTIVE", true},
		{KindCampaign, "ACTIVE", "RECOVERY", true},
		{KindCampaign, "RECOVERY", "ACTIVE", true},
		{KindCampaign, "USER_PAUSED", "ACTIVE", true},
		{KindCampaign, "DISAPPROVED", "ACTIVE", false},
		{KindCampaign, "STOPPED", "ACTIVE", false},
		{KindCampaign, "USER_PAUSED", "PAUSED", false},

		// Rules
		{KindAutomationRule, "ACTIVE", "DISABLED", true},
		{KindAutomationRule, "DISABLED", "ACTIVE", true},
		{KindAutomationRule, "ACTIVE", "ACTIVE", false},

		{KindCampaign, "nonexistent", "ACTIVE", false},
		{KindCampaign, "ACTIVE", "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+":"+tt.from+"->"+tt.to, func(t *testing.T) {
			result := reg.CanTransition(tt.kind, tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("CanTransition(%s, %q, %q) = %v, want %v", tt.kind, tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsActionAllowed(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		kind     Kind
		state    string
		action   string
		expected bool
	}{
		{KindAsset, "APPROVED", ActionMarkReady, true},
		{KindAsset, "BLOCKED", ActionMarkReady, false},
		{KindAsset, "BLOCKED", ActionReanalyze, true},
		{KindCampaign, "ACTIVE", string(models.ActionIncreaseBudget), true},
		{KindCampaign, "RECOVERY", string(models.ActionIncreaseBudget), false},
		{KindCampaign, "RECOVERY", string(models.ActionDecreaseBudget), true},
		{KindCampaign, "PAUSED", string(models.ActionResumeCampaign), true},
		{KindCampaign, "USER_PAUSED", string(models.ActionResumeCampaign), false},
		{KindCampaign, "STOPPED", ActionStop, false},
		{KindCampaignIntent, "READY_TO_PUBLISH", ActionPublish, true},
		{KindCampaignIntent, "DRAFT", ActionPublish, false},
		{KindAdAccount, "FULL_ACCESS", ActionOptimize, true},
		{KindAdAccount, "LIMITED_PERMISSION", ActionOptimize, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+":"+tt.state+":"+tt.action, func(t *testing.T) {
			if got := reg.IsActionAllowed(tt.kind, tt.state, tt.action); got != tt.expected {
				t.Errorf("IsActionAllowed(%s, %q, %q) = %v, want %v", tt.kind, tt.state, tt.action, got, tt.expected)
			}
		})
	}
}

func TestEveryNextStateIsDeclared(t *testing.T) {
	reg := NewRegistry()
	for _, kind := range reg.Kinds() {
		m := reg.Machine(kind)
		if !m.HasState(m.Initial()) {
			t.Errorf("%s: initial state %q not declared", kind, m.Initial())
		}
		for _, st := range m.States() {
			for _, next := range m.AllowedNextStates(st) {
				if !m.HasState(next) {
					t.Errorf("%s: %s lists undeclared next state %q", kind, st, next)
				}
			}
		}
		for action, target := range m.targets {
			if !m.HasState(target) {
				t.Errorf("%s: action %s targets undeclared state %q", kind, action, target)
			}
		}
	}
}

func TestTargetsAreReachableFromEveryStateAllowingTheAction(t *testing.T) {
	reg := NewRegistry()
	for _, kind := range reg.Kinds() {
		m := reg.Machine(kind)
		for _, st := range m.States() {
			for _, action := range m.AllowedActions(st) {
				target, ok := m.TargetOf(action)
				if !ok {
					continue
				}
				if !m.CanTransition(st, target) {
					t.Errorf("%s: %s allows %s but cannot move to %s", kind, st, action, target)
				}
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	reg := NewRegistry()
	terminal := map[Kind]string{
		KindAsset:          "USED_IN_CAMPAIGN",
		KindCampaign:       "STOPPED",
		KindCampaignIntent: "LAUNCHED",
	}
	for kind, st := range terminal {
		if !reg.Machine(kind).IsTerminal(st) {
			t.Errorf("%s: %s should be terminal", kind, st)
		}
		if acts := reg.Machine(kind).AllowedActions(st); len(acts) != 0 {
			t.Errorf("%s: terminal %s allows %v", kind, st, acts)
		}
	}
	if reg.Machine(KindCampaign).IsTerminal("ACTIVE") {
		t.Error("ACTIVE must not be terminal")
	}
}

func TestCheckActionReturnsStructuredError(t *testing.T) {
	reg := NewRegistry()

	err := reg.CheckAction(KindAsset, "BLOCKED", ActionMarkReady)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error %v does not match ErrInvalidTransition", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a *TransitionError", err)
	}
	if te.CurrentState != "BLOCKED" || te.Action != ActionMarkReady {
		t.Errorf("unexpected error fields: %+v", te)
	}
	if len(te.AllowedActions) != 2 {
		t.Errorf("allowed actions = %v, want REANALYZE and DELETE", te.AllowedActions)
	}

	if err := reg.CheckTransition(KindCampaign, "ACTIVE", "PAUSED"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAllowedActionsWithCapabilities(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		state   models.ConnectionState
		perms   models.Permissions
		action  string
		allowed bool
	}{
		{"full access can optimize", models.ConnectionStateFullAccess, models.Permissions{CanAnalyze: true, CanLaunch: true, CanOptimize: true}, ActionOptimize, true},
		{"full access without optimize grant", models.ConnectionStateFullAccess, models.Permissions{CanAnalyze: true, CanLaunch: true}, ActionOptimize, false},
		{"limited can launch", models.ConnectionStateLimitedPermission, models.Permissions{CanLaunch: true}, ActionLaunch, true},
		{"limited without launch grant", models.ConnectionStateLimitedPermission, models.Permissions{CanAnalyze: true}, ActionLaunch, false},
		{"analyze needs grant", models.ConnectionStateConnected, models.Permissions{}, ActionAccountAnalyze, false},
		{"ungated action passes", models.ConnectionStateConnected, models.Permissions{}, ActionDisconnect, true},
		{"grant does not add actions", models.ConnectionStateConnected, models.Permissions{CanLaunch: true}, ActionLaunch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reg.IsAdAccountActionAllowed(tt.state, tt.perms, tt.action); got != tt.allowed {
				t.Errorf("IsAdAccountActionAllowed(%s, %+v, %s) = %v, want %v", tt.state, tt.perms, tt.action, got, tt.allowed)
			}
		})
	}

	// the base table must not be mutated by filtering
	if !reg.IsActionAllowed(KindAdAccount, string(models.ConnectionStateFullAccess), ActionOptimize) {
		t.Error("capability filtering mutated the base table")
	}
}
