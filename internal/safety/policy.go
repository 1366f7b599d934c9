// Package safety decides whether an unattended automation action may run.
// Every check is pure; counters and cooldowns are persisted by the caller only
// after the action succeeds.
package safety

import (
	"time"

	"github.com/adpilot/backend/internal/models"
)

// DefaultCooldowns is the minimum gap between two executions of an action type.
var DefaultCooldowns = map[models.ActionType]time.Duration{
	models.ActionPauseCampaign:    60 * time.Minute,
	models.ActionResumeCampaign:   120 * time.Minute,
	models.ActionIncreaseBudget:   1440 * time.Minute,
	models.ActionDecreaseBudget:   360 * time.Minute,
	models.ActionAdjustBid:        240 * time.Minute,
	models.ActionSendAlert:        30 * time.Minute,
	models.ActionEnableSoftLaunch: 1440 * time.Minute,
}

// AlwaysForbidden actions are never executed by automation.
var AlwaysForbidden = []models.ActionType{
	models.ActionEnablePausedCampaign,
	models.ActionResumeUserPaused,
}

type Policy struct {
	// AutomationEnabled is the process-wide kill switch; false rejects everything.
	AutomationEnabled           bool
	MinDataAge                  time.Duration
	MinImpressions              int64
	MaxActionsPerCampaignPerDay int
	MaxBudgetIncreasePercent    float64
	Cooldowns                   map[models.ActionType]time.Duration
	ForbiddenActions            []models.ActionType
	SoftLaunchWindow            time.Duration
}

func DefaultPolicy() Policy {
	cooldowns := make(map[models.ActionType]time.Duration, len(DefaultCooldowns))
	for k, v := range DefaultCooldowns {
		cooldowns[k] = v
	}
	return Policy{
		AutomationEnabled:           true,
		MinDataAge:                  60 * time.Minute,
		MinImpressions:              1000,
		MaxActionsPerCampaignPerDay: 3,
		MaxBudgetIncreasePercent:    20,
		Cooldowns:                   cooldowns,
		ForbiddenActions:            append([]models.ActionType(nil), AlwaysForbidden...),
		SoftLaunchWindow:            24 * time.Hour,
	}
}

// CooldownFor returns the rule override when positive, else the table value.
func (p Policy) CooldownFor(action models.ActionType, ruleCooldownMinutes int) time.Duration {
	if ruleCooldownMinutes > 0 {
		return time.Duration(ruleCooldownMinutes) * time.Minute
	}
	if d, ok := p.Cooldowns[action]; ok {
		return d
	}
	return DefaultCooldowns[action]
}

func (p Policy) isForbidden(action models.ActionType) bool {
	for _, a := range AlwaysForbidden {
		if a == action {
			return true
		}
	}
	for _, a := range p.ForbiddenActions {
		if a == action {
			return true
		}
	}
	return false
}
