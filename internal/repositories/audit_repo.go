package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
)

// AuditRepo is append-only: there is no update or delete.
type AuditRepo struct {
	db DB
}

func NewAuditRepo(db DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Log(ctx context.Context, e *models.AuditEvent) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_events (event_id, event_type, source, project_id, entity_type, entity_id,
		                          previous_state, new_state, action, reason, outcome, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, e.EventID, e.EventType, e.Source, e.ProjectID, e.EntityType, e.EntityID,
		e.PreviousState, e.NewState, e.Action, e.Reason, e.Outcome, e.Metadata,
	).Scan(&e.Timestamp)
	return wrapErr("log audit event", err)
}

func (r *AuditRepo) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT event_id, event_type, source, project_id, entity_type, entity_id,
		       previous_state, new_state, action, reason, outcome, metadata, created_at
		FROM audit_events WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, entityType, entityID, limit, offset)
	if err != nil {
		return nil, wrapErr("list audit events", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.EventID, &e.EventType, &e.Source, &e.ProjectID, &e.EntityType, &e.EntityID,
			&e.PreviousState, &e.NewState, &e.Action, &e.Reason, &e.Outcome, &e.Metadata, &e.Timestamp); err != nil {
			return nil, wrapErr("scan audit event", err)
		}
		events = append(events, e)
	}
	return events, wrapErr("list audit events", rows.Err())
}
