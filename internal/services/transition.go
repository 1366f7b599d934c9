package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/guards"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/statemachine"
)

var ErrLaunchFailed = errors.New("campaign launch failed")

// GuardError is a policy rejection. It is never used for storage or
// transport failures.
type GuardError struct {
	Guard  string `json:"guard"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func guardError(r guards.Result) *GuardError {
	return &GuardError{Guard: r.Guard, Code: r.Code, Reason: r.Reason}
}

// change describes one entity state change for the audit trail.
type change struct {
	entityType string
	entityID   uuid.UUID
	projectID  uuid.UUID
	from       string
	to         string
	action     string
	source     models.EventSource
	meta       map[string]any
}

func (c change) event(eventType string) models.AuditEvent {
	ev := models.AuditEvent{
		EventType:  eventType,
		Source:     c.source,
		EntityType: c.entityType,
		EntityID:   c.entityID,
		Metadata:   c.meta,
	}
	if c.projectID != uuid.Nil {
		pid := c.projectID
		ev.ProjectID = &pid
	}
	if c.from != "" {
		ev.PreviousState = models.StrPtr(c.from)
	}
	if c.to != "" {
		ev.NewState = models.StrPtr(c.to)
	}
	if c.action != "" {
		ev.Action = models.StrPtr(c.action)
	}
	return ev
}

// trail writes transition and rejection events. Audit failures are logged and
// never fail the operation that produced them.
type trail struct {
	recorder audit.Recorder
	log      *zap.Logger
}

func (t trail) transitioned(ctx context.Context, c change) {
	ev := c.event(models.EventStateTransition)
	ev.Outcome = models.StrPtr(models.OutcomeSuccess)
	t.record(ctx, ev)
}

func (t trail) blocked(ctx context.Context, c change, res guards.Result) {
	ev := c.event(models.EventGuardBlocked)
	ev.Reason = models.StrPtr(res.Reason)
	ev.Outcome = models.StrPtr(models.OutcomeFailure)
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	ev.Metadata["skip_reason"] = res.Code
	if res.Guard != "" {
		ev.Metadata["guard"] = res.Guard
	}
	t.record(ctx, ev)
}

// rejected records an action the state machine does not permit.
func (t trail) rejected(ctx context.Context, c change, err error) {
	var te *statemachine.TransitionError
	meta := map[string]any{}
	for k, v := range c.meta {
		meta[k] = v
	}
	if errors.As(err, &te) {
		meta["allowed_actions"] = te.AllowedActions
	}
	c.meta = meta
	t.blocked(ctx, c, guards.Result{Code: "INVALID_TRANSITION", Reason: err.Error(), Guard: "state_machine"})
}

func (t trail) record(ctx context.Context, ev models.AuditEvent) {
	if err := t.recorder.Record(ctx, ev); err != nil {
		t.log.Error("failed to record audit event",
			zap.String("event_type", ev.EventType),
			zap.String("entity_type", ev.EntityType),
			zap.String("entity_id", ev.EntityID.String()),
			zap.Error(err),
		)
	}
}
