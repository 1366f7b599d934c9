package models

import (
	"time"

	"github.com/google/uuid"
)

type IntentState string

// Campaign intent states
const (
	IntentStateDraft          IntentState = "DRAFT"
	IntentStateValidating     IntentState = "VALIDATING"
	IntentStateReadyToPublish IntentState = "READY_TO_PUBLISH"
	IntentStatePublishing     IntentState = "PUBLISHING"
	IntentStateFailed         IntentState = "FAILED"
	IntentStateLaunched       IntentState = "LAUNCHED"
)

type Objective string

const (
	ObjectiveConversions Objective = "CONVERSIONS"
	ObjectiveTraffic     Objective = "TRAFFIC"
	ObjectiveAwareness   Objective = "AWARENESS"
)

type Audience struct {
	Countries []string `json:"countries"`
	Languages []string `json:"languages"`
	AgeMin    *int     `json:"age_min,omitempty"`
	AgeMax    *int     `json:"age_max,omitempty"`
}

type AccountSelection struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Platform     Platform  `json:"platform"`
}

type CampaignIntent struct {
	ID                uuid.UUID          `json:"id"`
	ProjectID         uuid.UUID          `json:"project_id"`
	UserID            uuid.UUID          `json:"user_id"`
	AssetIDs          []uuid.UUID        `json:"asset_ids"`
	AccountSelections []AccountSelection `json:"account_selections"`
	Audience          Audience           `json:"audience"`
	Objective         Objective          `json:"objective"`
	DailyBudget       float64            `json:"daily_budget"`
	State             IntentState        `json:"state"`
	LastError         *string            `json:"last_error,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Platforms returns the distinct platforms selected on the intent, in selection order.
func (i *CampaignIntent) Platforms() []Platform {
	seen := make(map[Platform]bool)
	var out []Platform
	for _, s := range i.AccountSelections {
		if !seen[s.Platform] {
			seen[s.Platform] = true
			out = append(out, s.Platform)
		}
	}
	return out
}
