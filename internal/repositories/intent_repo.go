package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
)

type IntentRepo struct {
	db DB
}

func NewIntentRepo(db DB) *IntentRepo {
	return &IntentRepo{db: db}
}

func (r *IntentRepo) Create(ctx context.Context, i *models.CampaignIntent) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO campaign_intents (project_id, user_id, asset_ids, account_selections, audience, objective, daily_budget, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'DRAFT')
		RETURNING id, state, created_at, updated_at
	`, i.ProjectID, i.UserID, i.AssetIDs, i.AccountSelections, i.Audience, i.Objective, i.DailyBudget,
	).Scan(&i.ID, &i.State, &i.CreatedAt, &i.UpdatedAt)
	return wrapErr("create intent", err)
}

func (r *IntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CampaignIntent, error) {
	var i models.CampaignIntent
	err := r.db.QueryRow(ctx, `
		SELECT id, project_id, user_id, asset_ids, account_selections, audience, objective,
		       daily_budget, state, last_error, created_at, updated_at
		FROM campaign_intents WHERE id = $1
	`, id).Scan(&i.ID, &i.ProjectID, &i.UserID, &i.AssetIDs, &i.AccountSelections, &i.Audience, &i.Objective,
		&i.DailyBudget, &i.State, &i.LastError, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, wrapErr("get intent", err)
	}
	return &i, nil
}

// UpdateState moves the intent only if it is still in from. lastError is
// stored as given, so nil clears a previous failure.
func (r *IntentRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to models.IntentState, lastError *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaign_intents SET state = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to, lastError)
	if err != nil {
		return wrapErr("update intent state", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}
