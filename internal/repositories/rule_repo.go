package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpilot/backend/internal/models"
)

type RuleRepo struct {
	db DB
}

func NewRuleRepo(db DB) *RuleRepo {
	return &RuleRepo{db: db}
}

const ruleColumns = `id, project_id, user_id, name, condition, action, action_params, campaign_ids, state,
	cooldown_minutes, last_triggered_at, cooldown_ends_at,
	CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE actions_today END,
	created_at, updated_at`

func scanRule(row pgx.Row) (*models.AutomationRule, error) {
	var r models.AutomationRule
	err := row.Scan(&r.ID, &r.ProjectID, &r.UserID, &r.Name, &r.Condition, &r.Action, &r.ActionParams,
		&r.CampaignIDs, &r.State, &r.CooldownMinutes, &r.LastTriggeredAt, &r.CooldownEndsAt, &r.ActionsToday,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RuleRepo) Create(ctx context.Context, rule *models.AutomationRule) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO automation_rules (project_id, user_id, name, condition, action, action_params, campaign_ids, state, cooldown_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', $8)
		RETURNING id, state, created_at, updated_at
	`, rule.ProjectID, rule.UserID, rule.Name, rule.Condition, rule.Action, rule.ActionParams, rule.CampaignIDs,
		rule.CooldownMinutes).Scan(&rule.ID, &rule.State, &rule.CreatedAt, &rule.UpdatedAt)
	return wrapErr("create rule", err)
}

func (r *RuleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get rule", err)
	}
	return rule, nil
}

func (r *RuleRepo) ListActive(ctx context.Context, projectID uuid.UUID) ([]*models.AutomationRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ruleColumns+` FROM automation_rules
		WHERE project_id = $1 AND state = 'ACTIVE'
		ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, wrapErr("list rules", err)
	}
	defer rows.Close()

	var out []*models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, wrapErr("scan rule", err)
		}
		out = append(out, rule)
	}
	return out, wrapErr("list rules", rows.Err())
}

func (r *RuleRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to models.RuleState) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE automation_rules SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to)
	if err != nil {
		return wrapErr("update rule state", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}
