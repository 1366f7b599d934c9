package models

import (
	"time"

	"github.com/google/uuid"
)

type EventSource string

const (
	SourceUI         EventSource = "UI"
	SourceSystem     EventSource = "SYSTEM"
	SourceAutomation EventSource = "AUTOMATION"
	SourceAI         EventSource = "AI"
)

// Audit event types
const (
	EventStateTransition = "STATE_TRANSITION"
	EventGuardBlocked    = "GUARD_BLOCKED"
	EventSkipped         = "SKIPPED"
	EventActionExecuted  = "ACTION_EXECUTED"
	EventActionFailed    = "ACTION_FAILED"

	EventOAuthConnectStart = "oauth_connect_start"
	EventOAuthCallback     = "oauth_callback"
	EventOAuthRefresh      = "oauth_refresh"
	EventOAuthRevoke       = "oauth_revoke"
	EventOAuthPermissions  = "oauth_permissions"
)

// Audit outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePending = "pending"
)

// Audit entity types
const (
	EntityAsset          = "asset"
	EntityAdAccount      = "ad_account"
	EntityCampaignIntent = "campaign_intent"
	EntityCampaign       = "campaign"
	EntityAutomationRule = "automation_rule"
	EntityProject        = "project"
)

// AuditEvent is an append-only record of a guard decision or transition.
type AuditEvent struct {
	EventID       uuid.UUID      `json:"event_id"`
	EventType     string         `json:"event_type"`
	Source        EventSource    `json:"source"`
	ProjectID     *uuid.UUID     `json:"project_id,omitempty"`
	EntityType    string         `json:"entity_type"`
	EntityID      uuid.UUID      `json:"entity_id"`
	PreviousState *string        `json:"previous_state,omitempty"`
	NewState      *string        `json:"new_state,omitempty"`
	Action        *string        `json:"action,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	Outcome       *string        `json:"outcome,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// StrPtr is a small helper for the optional audit fields.
func StrPtr(s string) *string {
	return &s
}
