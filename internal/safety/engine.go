package safety

import (
	"fmt"
	"time"

	"github.com/adpilot/backend/internal/guards"
	"github.com/adpilot/backend/internal/models"
)

// Skip reasons
const (
	ReasonKillSwitchActive      = "KILL_SWITCH_ACTIVE"
	ReasonInsufficientData      = "INSUFFICIENT_DATA"
	ReasonRecoveryState         = "RECOVERY_STATE"
	ReasonUserPaused            = "USER_PAUSED"
	ReasonBlockedState          = "CAMPAIGN_IN_BLOCKED_STATE"
	ReasonForbiddenAction       = "FORBIDDEN_ACTION"
	ReasonPermissionDenied      = "ACCOUNT_PERMISSION_DENIED"
	ReasonCooldownActive        = "COOLDOWN_ACTIVE"
	ReasonDailyLimitExceeded    = "DAILY_LIMIT_EXCEEDED"
	ReasonBudgetLimitExceeded   = "BUDGET_LIMIT_EXCEEDED"
	ReasonAlreadyActedThisCycle = "ALREADY_ACTED_THIS_CYCLE"
)

// Input is everything the engine needs about one prospective action.
type Input struct {
	Campaign *models.Campaign
	// Rule is nil for system-initiated actions such as soft launch.
	Rule             *models.AutomationRule
	Action           models.ActionType
	RequestedPercent float64
	AccountState     models.ConnectionState
	// KillSwitchActive is the per-project switch read from settings.
	KillSwitchActive bool
	Now              time.Time
}

type Decision struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	SkipReason  string `json:"skip_reason,omitempty"`
	FailedCheck string `json:"failed_check,omitempty"`
}

func fromResult(r guards.Result) Decision {
	if r.Allowed {
		return Decision{Allowed: true}
	}
	return Decision{Reason: r.Reason, SkipReason: r.Code, FailedCheck: r.Guard}
}

// Engine runs the automation checks in fixed order and stops at the first rejection.
type Engine struct {
	policy     Policy
	checks     *guards.Set[Input]
	softLaunch *guards.Set[Input]
}

func NewEngine(policy Policy) *Engine {
	e := &Engine{policy: policy}
	e.checks = guards.NewSet("automation_safety",
		guards.Guard[Input]{Name: "kill_switch", Check: e.checkKillSwitch},
		guards.Guard[Input]{Name: "data_floor", Check: e.checkDataFloor},
		guards.Guard[Input]{Name: "campaign_state", Check: e.checkCampaignState},
		guards.Guard[Input]{Name: "forbidden_action", Check: e.checkForbidden},
		guards.Guard[Input]{Name: "account_permission", Check: e.checkPermission},
		guards.Guard[Input]{Name: "cooldown", Check: e.checkCooldown},
		guards.Guard[Input]{Name: "daily_limit", Check: e.checkDailyLimit},
		guards.Guard[Input]{Name: "budget_increase", Check: e.checkBudget},
	)
	// Soft launch targets campaigns that have not produced data yet, so the
	// data floor and counters do not apply.
	e.softLaunch = guards.NewSet("soft_launch_safety",
		guards.Guard[Input]{Name: "kill_switch", Check: e.checkKillSwitch},
		guards.Guard[Input]{Name: "campaign_state", Check: e.checkCampaignState},
		guards.Guard[Input]{Name: "forbidden_action", Check: e.checkForbidden},
		guards.Guard[Input]{Name: "account_permission", Check: e.checkPermission},
	)
	return e
}

func (e *Engine) Policy() Policy { return e.policy }

// Checks lists the check names in evaluation order.
func (e *Engine) Checks() []string { return e.checks.Names() }

func (e *Engine) Evaluate(in Input) Decision {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.Campaign == nil {
		return Decision{Reason: "campaign missing", SkipReason: ReasonBlockedState, FailedCheck: "campaign_state"}
	}
	return fromResult(e.checks.Evaluate(in))
}

func (e *Engine) EvaluateSoftLaunch(in Input) Decision {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	in.Action = models.ActionEnableSoftLaunch
	if in.Campaign == nil {
		return Decision{Reason: "campaign missing", SkipReason: ReasonBlockedState, FailedCheck: "campaign_state"}
	}
	return fromResult(e.softLaunch.Evaluate(in))
}

func (e *Engine) checkKillSwitch(in Input) guards.Result {
	if !e.policy.AutomationEnabled || in.KillSwitchActive {
		return guards.Deny(ReasonKillSwitchActive, "automation is disabled")
	}
	return guards.Allow()
}

func (e *Engine) checkDataFloor(in Input) guards.Result {
	c := in.Campaign
	if c.Impressions >= e.policy.MinImpressions {
		return guards.Allow()
	}
	if c.FirstSpendAt != nil && in.Now.Sub(*c.FirstSpendAt) >= e.policy.MinDataAge {
		return guards.Allow()
	}
	return guards.Deny(ReasonInsufficientData, fmt.Sprintf(
		"need %s since first spend or %d impressions, have %d impressions",
		e.policy.MinDataAge, e.policy.MinImpressions, c.Impressions))
}

func (e *Engine) checkCampaignState(in Input) guards.Result {
	c := in.Campaign
	switch {
	case c.State == models.CampaignStateRecovery:
		return guards.Deny(ReasonRecoveryState, "campaign is in recovery")
	case c.State == models.CampaignStateUserPaused || c.PausedByUser:
		return guards.Deny(ReasonUserPaused, "campaign was paused by the user")
	case c.State == models.CampaignStateStopped || c.State == models.CampaignStateDisapproved:
		return guards.Deny(ReasonBlockedState, fmt.Sprintf("campaign is %s", c.State))
	}
	return guards.Allow()
}

func (e *Engine) checkForbidden(in Input) guards.Result {
	if e.policy.isForbidden(in.Action) {
		return guards.Deny(ReasonForbiddenAction, fmt.Sprintf("%s is never executed by automation", in.Action))
	}
	if in.Campaign.State == models.CampaignStateRecovery &&
		(in.Action == models.ActionIncreaseBudget || in.Action.IsResumeType()) {
		return guards.Deny(ReasonForbiddenAction, fmt.Sprintf("%s is not allowed during recovery", in.Action))
	}
	return guards.Allow()
}

func (e *Engine) checkPermission(in Input) guards.Result {
	if in.AccountState != models.ConnectionStateFullAccess {
		return guards.Deny(ReasonPermissionDenied, fmt.Sprintf("ad account is %s, automation needs FULL_ACCESS", orUnknown(string(in.AccountState))))
	}
	return guards.Allow()
}

func (e *Engine) checkCooldown(in Input) guards.Result {
	ruleCooldown := 0
	if in.Rule != nil {
		ruleCooldown = in.Rule.CooldownMinutes
	}
	cooldown := e.policy.CooldownFor(in.Action, ruleCooldown)
	if in.Rule != nil && in.Rule.LastTriggeredAt != nil {
		elapsed := in.Now.Sub(*in.Rule.LastTriggeredAt)
		if elapsed < cooldown {
			return guards.Deny(ReasonCooldownActive, fmt.Sprintf(
				"rule cooldown %s has %s remaining", cooldown, (cooldown - elapsed).Round(time.Second)))
		}
	}
	if c := in.Campaign; c.CooldownEndsAt != nil && in.Now.Before(*c.CooldownEndsAt) {
		return guards.Deny(ReasonCooldownActive, fmt.Sprintf(
			"campaign cooldown ends in %s", c.CooldownEndsAt.Sub(in.Now).Round(time.Second)))
	}
	return guards.Allow()
}

func (e *Engine) checkDailyLimit(in Input) guards.Result {
	if in.Campaign.ActionsToday >= e.policy.MaxActionsPerCampaignPerDay {
		return guards.Deny(ReasonDailyLimitExceeded, fmt.Sprintf(
			"campaign already had %d of %d actions today", in.Campaign.ActionsToday, e.policy.MaxActionsPerCampaignPerDay))
	}
	return guards.Allow()
}

func (e *Engine) checkBudget(in Input) guards.Result {
	if in.Action != models.ActionIncreaseBudget {
		return guards.Allow()
	}
	requested := in.RequestedPercent
	if requested == 0 && in.Rule != nil {
		requested = in.Rule.Percent()
	}
	if requested <= 0 {
		return guards.Deny(ReasonBudgetLimitExceeded, "budget increase needs a positive percent")
	}
	total := in.Campaign.BudgetIncreasedTodayPercent + requested
	if total > e.policy.MaxBudgetIncreasePercent {
		return guards.Deny(ReasonBudgetLimitExceeded, fmt.Sprintf(
			"increase of %.1f%% on top of %.1f%% today exceeds the %.1f%% daily limit",
			requested, in.Campaign.BudgetIncreasedTodayPercent, e.policy.MaxBudgetIncreasePercent))
	}
	return guards.Allow()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
