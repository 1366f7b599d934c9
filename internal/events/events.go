package events

import "context"

// Streams
const (
	StreamAudit = "events:audit"
)

// Event types
const (
	EventAuditRecorded     = "audit_recorded"
	EventCampaignChanged   = "campaign_state_changed"
	EventConnectionChanged = "connection_state_changed"
)

type Event struct {
	Type string `json:"type"`
	// ProjectID routes the event to the project's websocket subscribers.
	ProjectID string         `json:"project_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
