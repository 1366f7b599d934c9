package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/models"
)

// Recorder appends one event to the audit trail.
type Recorder interface {
	Record(ctx context.Context, e models.AuditEvent) error
}

// Store is the persistence side of the trail.
type Store interface {
	Log(ctx context.Context, e *models.AuditEvent) error
}

// Logger persists audit events and fans them out to live subscribers.
// A failed publish is logged and otherwise ignored; a failed insert is returned.
type Logger struct {
	store     Store
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewLogger(store Store, publisher events.Publisher, log *zap.Logger) *Logger {
	return &Logger{store: store, publisher: publisher, log: log, now: time.Now}
}

func (l *Logger) Record(ctx context.Context, e models.AuditEvent) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if e.Source == "" {
		e.Source = models.SourceSystem
	}

	if err := l.store.Log(ctx, &e); err != nil {
		l.log.Error("failed to write audit event",
			zap.String("event_type", e.EventType),
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID.String()),
			zap.Error(err),
		)
		return err
	}

	fields := []zap.Field{
		zap.String("event_type", e.EventType),
		zap.String("source", string(e.Source)),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID.String()),
	}
	if e.Action != nil {
		fields = append(fields, zap.String("action", *e.Action))
	}
	if e.Reason != nil {
		fields = append(fields, zap.String("reason", *e.Reason))
	}
	l.log.Info("audit", fields...)

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, events.StreamAudit, toEvent(e)); err != nil {
			l.log.Warn("failed to publish audit event", zap.String("event_id", e.EventID.String()), zap.Error(err))
		}
	}
	return nil
}

func toEvent(e models.AuditEvent) events.Event {
	payload := map[string]any{
		"event_id":    e.EventID.String(),
		"event_type":  e.EventType,
		"source":      string(e.Source),
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID.String(),
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	setOpt(payload, "previous_state", e.PreviousState)
	setOpt(payload, "new_state", e.NewState)
	setOpt(payload, "action", e.Action)
	setOpt(payload, "reason", e.Reason)
	setOpt(payload, "outcome", e.Outcome)
	if len(e.Metadata) > 0 {
		payload["metadata"] = e.Metadata
	}

	ev := events.Event{Type: events.EventAuditRecorded, Payload: payload}
	if e.ProjectID != nil {
		ev.ProjectID = e.ProjectID.String()
	}
	return ev
}

func setOpt(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

// Nop discards events. Used where no trail is wired, such as dry-run evaluation.
type Nop struct{}

func (Nop) Record(context.Context, models.AuditEvent) error { return nil }

// Memory keeps events in memory for tests and local tooling.
type Memory struct {
	mu     sync.Mutex
	Events []models.AuditEvent
}

func (m *Memory) Record(_ context.Context, e models.AuditEvent) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	m.mu.Lock()
	m.Events = append(m.Events, e)
	m.mu.Unlock()
	return nil
}

// OfType returns the recorded events with the given type.
func (m *Memory) OfType(eventType string) []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEvent
	for _, e := range m.Events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
