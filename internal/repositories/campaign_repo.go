package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpilot/backend/internal/models"
)

type CampaignRepo struct {
	db DB
}

func NewCampaignRepo(db DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

// Counter columns read back as zero once their day has passed.
const campaignColumns = `id, project_id, intent_id, account_id, platform, external_id, state, daily_budget,
	CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE actions_today END,
	CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE budget_increased_today_percent END,
	paused_by_user, soft_launch, first_spend_at, impressions, clicks, conversions, spend, revenue,
	cooldown_ends_at, last_action_at, launched_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.ProjectID, &c.IntentID, &c.AccountID, &c.Platform, &c.ExternalID, &c.State,
		&c.DailyBudget, &c.ActionsToday, &c.BudgetIncreasedTodayPercent, &c.PausedByUser, &c.SoftLaunch,
		&c.FirstSpendAt, &c.Impressions, &c.Clicks, &c.Conversions, &c.Spend, &c.Revenue,
		&c.CooldownEndsAt, &c.LastActionAt, &c.LaunchedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO campaigns (project_id, intent_id, account_id, platform, external_id, state, daily_budget, launched_at)
		VALUES ($1, $2, $3, $4, $5, 'ACTIVE', $6, now())
		RETURNING id, state, launched_at, created_at, updated_at
	`, c.ProjectID, c.IntentID, c.AccountID, c.Platform, c.ExternalID, c.DailyBudget,
	).Scan(&c.ID, &c.State, &c.LaunchedAt, &c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create campaign", err)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get campaign", err)
	}
	return c, nil
}

type CampaignFilter struct {
	ProjectID uuid.UUID
	States    []models.CampaignState
	Limit     int
	Offset    int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []any{f.ProjectID}
	argIdx := 2
	where := []string{"project_id = $1"}

	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		where = append(where, fmt.Sprintf("state = ANY($%d)", argIdx))
		args = append(args, states)
		argIdx++
	}
	query += " WHERE " + strings.Join(where, " AND ")

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list campaigns", err)
	}
	defer rows.Close()

	var out []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrapErr("scan campaign", err)
		}
		out = append(out, c)
	}
	return out, wrapErr("list campaigns", rows.Err())
}

// UpdateState moves the campaign only if it is still in from and records who paused it.
func (r *CampaignRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to models.CampaignState, pausedByUser bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaigns SET state = $3, paused_by_user = $4, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to, pausedByUser)
	if err != nil {
		return wrapErr("update campaign state", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *CampaignRepo) UpdateDailyBudget(ctx context.Context, id uuid.UUID, budget float64) error {
	_, err := r.db.Exec(ctx, `UPDATE campaigns SET daily_budget = $2, updated_at = now() WHERE id = $1`, id, budget)
	return wrapErr("update campaign budget", err)
}

func (r *CampaignRepo) MarkSoftLaunch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE campaigns SET soft_launch = true, updated_at = now() WHERE id = $1`, id)
	return wrapErr("mark soft launch", err)
}
