package statemachine

import "github.com/adpilot/backend/internal/models"

// Asset actions
const (
	ActionAnalyze       = "ANALYZE"
	ActionApprove       = "APPROVE"
	ActionBlock         = "BLOCK"
	ActionReanalyze     = "REANALYZE"
	ActionMarkReady     = "MARK_READY"
	ActionUnmarkReady   = "UNMARK_READY"
	ActionUseInCampaign = "USE_IN_CAMPAIGN"
	ActionDeleteAsset   = "DELETE"
)

// Ad account actions
const (
	ActionConnect            = "CONNECT"
	ActionCompleteConnect    = "COMPLETE_CONNECT"
	ActionCancelConnect      = "CANCEL_CONNECT"
	ActionDisconnect         = "DISCONNECT"
	ActionRefreshToken       = "REFRESH_TOKEN"
	ActionRefreshPermissions = "REFRESH_PERMISSIONS"
	ActionAccountAnalyze     = "ANALYZE"
	ActionLaunch             = "LAUNCH"
	ActionOptimize           = "OPTIMIZE"
)

// Campaign intent actions
const (
	ActionEditIntent = "EDIT"
	ActionValidate   = "VALIDATE"
	ActionPublish    = "PUBLISH"
	ActionRetry      = "RETRY"
)

// Campaign actions; automation actions share their names with models.ActionType.
const (
	ActionUserPause        = "USER_PAUSE"
	ActionUserResume       = "USER_RESUME"
	ActionStop             = "STOP"
	ActionMarkDisapproved  = "MARK_DISAPPROVED"
	ActionStartRecovery    = "START_RECOVERY"
	ActionCompleteRecovery = "COMPLETE_RECOVERY"
)

// Automation rule actions
const (
	ActionEnableRule   = "ENABLE"
	ActionDisableRule  = "DISABLE"
	ActionEditRule     = "EDIT"
	ActionEvaluateRule = "EVALUATE"
)

func s(states ...any) []string {
	out := make([]string, 0, len(states))
	for _, st := range states {
		switch v := st.(type) {
		case string:
			out = append(out, v)
		case models.AssetState:
			out = append(out, string(v))
		case models.ConnectionState:
			out = append(out, string(v))
		case models.IntentState:
			out = append(out, string(v))
		case models.CampaignState:
			out = append(out, string(v))
		case models.RuleState:
			out = append(out, string(v))
		case models.ActionType:
			out = append(out, string(v))
		}
	}
	return out
}

func assetMachine() *Machine {
	return &Machine{
		kind:    KindAsset,
		initial: string(models.AssetStateUploaded),
		states: map[string]Definition{
			string(models.AssetStateUploaded): {
				AllowedActions:    s(ActionAnalyze, ActionDeleteAsset),
				AllowedNextStates: s(models.AssetStateAnalyzing),
			},
			string(models.AssetStateAnalyzing): {
				AllowedActions:    s(ActionApprove, ActionBlock),
				AllowedNextStates: s(models.AssetStateApproved, models.AssetStateBlocked),
			},
			string(models.AssetStateApproved): {
				AllowedActions:    s(ActionMarkReady, ActionReanalyze, ActionDeleteAsset),
				AllowedNextStates: s(models.AssetStateReadyForLaunch, models.AssetStateAnalyzing),
			},
			string(models.AssetStateBlocked): {
				AllowedActions:    s(ActionReanalyze, ActionDeleteAsset),
				AllowedNextStates: s(models.AssetStateAnalyzing),
			},
			string(models.AssetStateReadyForLaunch): {
				AllowedActions:    s(ActionUseInCampaign, ActionUnmarkReady),
				AllowedNextStates: s(models.AssetStateUsedInCampaign, models.AssetStateApproved),
			},
			string(models.AssetStateUsedInCampaign): {},
		},
		targets: map[string]string{
			ActionAnalyze:       string(models.AssetStateAnalyzing),
			ActionReanalyze:     string(models.AssetStateAnalyzing),
			ActionApprove:       string(models.AssetStateApproved),
			ActionBlock:         string(models.AssetStateBlocked),
			ActionMarkReady:     string(models.AssetStateReadyForLaunch),
			ActionUnmarkReady:   string(models.AssetStateApproved),
			ActionUseInCampaign: string(models.AssetStateUsedInCampaign),
		},
	}
}

func adAccountMachine() *Machine {
	operational := s(ActionDisconnect, ActionRefreshToken, ActionRefreshPermissions, ActionAccountAnalyze)
	return &Machine{
		kind:    KindAdAccount,
		initial: string(models.ConnectionStateDisconnected),
		states: map[string]Definition{
			string(models.ConnectionStateDisconnected): {
				AllowedActions:    s(ActionConnect),
				AllowedNextStates: s(models.ConnectionStateConnecting),
			},
			string(models.ConnectionStateConnecting): {
				AllowedActions: s(ActionCompleteConnect, ActionCancelConnect),
				AllowedNextStates: s(
					models.ConnectionStateConnected,
					models.ConnectionStateLimitedPermission,
					models.ConnectionStateFullAccess,
					models.ConnectionStateDisconnected,
				),
			},
			string(models.ConnectionStateConnected): {
				AllowedActions: operational,
				AllowedNextStates: s(
					models.ConnectionStateLimitedPermission,
					models.ConnectionStateFullAccess,
					models.ConnectionStateDisconnected,
				),
			},
			string(models.ConnectionStateLimitedPermission): {
				AllowedActions:    append(append([]string(nil), operational...), ActionLaunch),
				AllowedNextStates: s(models.ConnectionStateFullAccess, models.ConnectionStateDisconnected),
			},
			string(models.ConnectionStateFullAccess): {
				AllowedActions:    append(append([]string(nil), operational...), ActionLaunch, ActionOptimize),
				AllowedNextStates: s(models.ConnectionStateLimitedPermission, models.ConnectionStateDisconnected),
			},
		},
		targets: map[string]string{
			ActionConnect:       string(models.ConnectionStateConnecting),
			ActionCancelConnect: string(models.ConnectionStateDisconnected),
			ActionDisconnect:    string(models.ConnectionStateDisconnected),
		},
	}
}

func campaignIntentMachine() *Machine {
	return &Machine{
		kind:    KindCampaignIntent,
		initial: string(models.IntentStateDraft),
		states: map[string]Definition{
			string(models.IntentStateDraft): {
				AllowedActions:    s(ActionEditIntent, ActionValidate),
				AllowedNextStates: s(models.IntentStateValidating),
			},
			string(models.IntentStateValidating): {
				AllowedNextStates: s(models.IntentStateReadyToPublish, models.IntentStateDraft),
			},
			string(models.IntentStateReadyToPublish): {
				AllowedActions:    s(ActionEditIntent, ActionPublish),
				AllowedNextStates: s(models.IntentStatePublishing, models.IntentStateDraft),
			},
			string(models.IntentStatePublishing): {
				AllowedNextStates: s(models.IntentStateLaunched, models.IntentStateFailed),
			},
			string(models.IntentStateFailed): {
				AllowedActions:    s(ActionEditIntent, ActionRetry),
				AllowedNextStates: s(models.IntentStateDraft, models.IntentStatePublishing),
			},
			string(models.IntentStateLaunched): {},
		},
		targets: map[string]string{
			ActionValidate: string(models.IntentStateValidating),
			ActionPublish:  string(models.IntentStatePublishing),
			ActionRetry:    string(models.IntentStatePublishing),
		},
	}
}

func campaignMachine() *Machine {
	return &Machine{
		kind:    KindCampaign,
		initial: string(models.CampaignStateActive),
		states: map[string]Definition{
			string(models.CampaignStateActive): {
				AllowedActions: s(
					models.ActionPauseCampaign, models.ActionIncreaseBudget, models.ActionDecreaseBudget,
					models.ActionAdjustBid, models.ActionSendAlert, models.ActionEnableSoftLaunch,
					ActionUserPause, ActionStop, ActionMarkDisapproved, ActionStartRecovery,
				),
				AllowedNextStates: s(
					models.CampaignStatePaused, models.CampaignStateUserPaused, models.CampaignStateStopped,
					models.CampaignStateDisapproved, models.CampaignStateRecovery,
				),
			},
			string(models.CampaignStatePaused): {
				AllowedActions: s(
					models.ActionResumeCampaign, models.ActionSendAlert,
					ActionUserPause, ActionUserResume, ActionStop,
				),
				AllowedNextStates: s(models.CampaignStateActive, models.CampaignStateUserPaused, models.CampaignStateStopped),
			},
			string(models.CampaignStateUserPaused): {
				AllowedActions:    s(ActionUserResume, ActionStop),
				AllowedNextStates: s(models.CampaignStateActive, models.CampaignStateStopped),
			},
			string(models.CampaignStateDisapproved): {
				AllowedActions:    s(ActionStartRecovery, ActionStop),
				AllowedNextStates: s(models.CampaignStateRecovery, models.CampaignStateStopped),
			},
			string(models.CampaignStateRecovery): {
				AllowedActions: s(
					ActionCompleteRecovery, models.ActionPauseCampaign, models.ActionDecreaseBudget,
					models.ActionSendAlert, ActionStop,
				),
				AllowedNextStates: s(models.CampaignStateActive, models.CampaignStatePaused, models.CampaignStateStopped),
			},
			string(models.CampaignStateStopped): {},
		},
		targets: map[string]string{
			string(models.ActionPauseCampaign):  string(models.CampaignStatePaused),
			string(models.ActionResumeCampaign): string(models.CampaignStateActive),
			ActionUserPause:                     string(models.CampaignStateUserPaused),
			ActionUserResume:                    string(models.CampaignStateActive),
			ActionStop:                          string(models.CampaignStateStopped),
			ActionMarkDisapproved:               string(models.CampaignStateDisapproved),
			ActionStartRecovery:                 string(models.CampaignStateRecovery),
			ActionCompleteRecovery:              string(models.CampaignStateActive),
		},
	}
}

func automationRuleMachine() *Machine {
	return &Machine{
		kind:    KindAutomationRule,
		initial: string(models.RuleStateActive),
		states: map[string]Definition{
			string(models.RuleStateActive): {
				AllowedActions:    s(ActionDisableRule, ActionEditRule, ActionEvaluateRule),
				AllowedNextStates: s(models.RuleStateDisabled),
			},
			string(models.RuleStateDisabled): {
				AllowedActions:    s(ActionEnableRule, ActionEditRule),
				AllowedNextStates: s(models.RuleStateActive),
			},
		},
		targets: map[string]string{
			ActionEnableRule:  string(models.RuleStateActive),
			ActionDisableRule: string(models.RuleStateDisabled),
		},
	}
}
