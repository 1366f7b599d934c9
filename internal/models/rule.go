package models

import (
	"time"

	"github.com/google/uuid"
)

type RuleState string

const (
	RuleStateActive   RuleState = "ACTIVE"
	RuleStateDisabled RuleState = "DISABLED"
)

// ActionType is a platform-side mutation an automation rule may request.
type ActionType string

const (
	ActionPauseCampaign        ActionType = "PAUSE_CAMPAIGN"
	ActionResumeCampaign       ActionType = "RESUME_CAMPAIGN"
	ActionIncreaseBudget       ActionType = "INCREASE_BUDGET"
	ActionDecreaseBudget       ActionType = "DECREASE_BUDGET"
	ActionAdjustBid            ActionType = "ADJUST_BID"
	ActionSendAlert            ActionType = "SEND_ALERT"
	ActionEnableSoftLaunch     ActionType = "ENABLE_SOFT_LAUNCH"
	ActionEnablePausedCampaign ActionType = "ENABLE_PAUSED_CAMPAIGN"
	ActionResumeUserPaused     ActionType = "RESUME_USER_PAUSED"
)

var AllActionTypes = []ActionType{
	ActionPauseCampaign, ActionResumeCampaign, ActionIncreaseBudget, ActionDecreaseBudget,
	ActionAdjustBid, ActionSendAlert, ActionEnableSoftLaunch, ActionEnablePausedCampaign,
	ActionResumeUserPaused,
}

func IsValidActionType(a string) bool {
	for _, v := range AllActionTypes {
		if string(v) == a {
			return true
		}
	}
	return false
}

// IsResumeType reports whether the action brings a stopped delivery back online.
func (a ActionType) IsResumeType() bool {
	switch a {
	case ActionResumeCampaign, ActionEnablePausedCampaign, ActionResumeUserPaused:
		return true
	}
	return false
}

type AutomationRule struct {
	ID              uuid.UUID      `json:"id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	UserID          uuid.UUID      `json:"user_id"`
	Name            string         `json:"name"`
	Condition       string         `json:"condition"` // CEL expression over campaign metrics
	Action          ActionType     `json:"action"`
	ActionParams    map[string]any `json:"action_params,omitempty"`
	CampaignIDs     []uuid.UUID    `json:"campaign_ids,omitempty"` // empty = every campaign in the project
	State           RuleState      `json:"state"`
	CooldownMinutes int            `json:"cooldown_minutes"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	CooldownEndsAt  *time.Time     `json:"cooldown_ends_at,omitempty"`
	ActionsToday    int            `json:"actions_today"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AppliesTo reports whether the rule targets the given campaign.
func (r *AutomationRule) AppliesTo(campaignID uuid.UUID) bool {
	if len(r.CampaignIDs) == 0 {
		return true
	}
	for _, id := range r.CampaignIDs {
		if id == campaignID {
			return true
		}
	}
	return false
}

// Percent returns the "percent" action parameter, accepting any JSON number shape.
func (r *AutomationRule) Percent() float64 {
	switch v := r.ActionParams["percent"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
