package models

import (
	"time"

	"github.com/google/uuid"
)

type CampaignState string

// Campaign states
const (
	CampaignStateActive      CampaignState = "ACTIVE"
	CampaignStatePaused      CampaignState = "PAUSED"
	CampaignStateStopped     CampaignState = "STOPPED"
	CampaignStateDisapproved CampaignState = "DISAPPROVED"
	CampaignStateRecovery    CampaignState = "RECOVERY"
	CampaignStateUserPaused  CampaignState = "USER_PAUSED"
)

type Campaign struct {
	ID                          uuid.UUID     `json:"id"`
	ProjectID                   uuid.UUID     `json:"project_id"`
	IntentID                    uuid.UUID     `json:"intent_id"`
	AccountID                   uuid.UUID     `json:"account_id"` // ad account connection
	Platform                    Platform      `json:"platform"`
	ExternalID                  string        `json:"external_id"`
	State                       CampaignState `json:"state"`
	DailyBudget                 float64       `json:"daily_budget"`
	ActionsToday                int           `json:"actions_today"`
	BudgetIncreasedTodayPercent float64       `json:"budget_increased_today_percent"`
	PausedByUser                bool          `json:"paused_by_user"`
	SoftLaunch                  bool          `json:"soft_launch"`
	FirstSpendAt                *time.Time    `json:"first_spend_at,omitempty"`
	Impressions                 int64         `json:"impressions"`
	Clicks                      int64         `json:"clicks"`
	Conversions                 int64         `json:"conversions"`
	Spend                       float64       `json:"spend"`
	Revenue                     float64       `json:"revenue"`
	CooldownEndsAt              *time.Time    `json:"cooldown_ends_at,omitempty"`
	LastActionAt                *time.Time    `json:"last_action_at,omitempty"`
	LaunchedAt                  *time.Time    `json:"launched_at,omitempty"`
	CreatedAt                   time.Time     `json:"created_at"`
	UpdatedAt                   time.Time     `json:"updated_at"`
}

// Metrics derives the rule-condition inputs from the campaign's delivery counters.
func (c *Campaign) Metrics(now time.Time) CampaignMetrics {
	m := CampaignMetrics{
		Spend:       c.Spend,
		Impressions: c.Impressions,
		Clicks:      c.Clicks,
		Conversions: c.Conversions,
		DailyBudget: c.DailyBudget,
	}
	if c.Impressions > 0 {
		m.CTR = float64(c.Clicks) / float64(c.Impressions) * 100
	}
	if c.Clicks > 0 {
		m.CPC = c.Spend / float64(c.Clicks)
	}
	if c.Conversions > 0 {
		m.CPA = c.Spend / float64(c.Conversions)
	}
	if c.Spend > 0 {
		m.ROAS = c.Revenue / c.Spend
	}
	if c.LaunchedAt != nil {
		m.HoursSinceLaunch = now.Sub(*c.LaunchedAt).Hours()
	}
	return m
}

type CampaignMetrics struct {
	Spend            float64 `json:"spend"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	Conversions      int64   `json:"conversions"`
	CTR              float64 `json:"ctr"`
	CPC              float64 `json:"cpc"`
	CPA              float64 `json:"cpa"`
	ROAS             float64 `json:"roas"`
	DailyBudget      float64 `json:"daily_budget"`
	HoursSinceLaunch float64 `json:"hours_since_launch"`
}
