package models

import (
	"time"

	"github.com/google/uuid"
)

// AutomationLock is an advisory mutual-exclusion token with expiry.
type AutomationLock struct {
	ProjectID  uuid.UUID `json:"project_id"`
	LockKey    string    `json:"lock_key"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type GlobalActionLimit struct {
	ProjectID                  uuid.UUID `json:"project_id"`
	UserID                     uuid.UUID `json:"user_id"`
	ActionsToday               int       `json:"actions_today"`
	ActionsResetAt             time.Time `json:"actions_reset_at"`
	MaxActionsPerDay           int       `json:"max_actions_per_day"`
	MaxActionsPerAccountPerDay int       `json:"max_actions_per_account_per_day"`
}
