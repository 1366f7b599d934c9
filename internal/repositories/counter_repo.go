package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CounterResult is the outcome of a ceiling-guarded increment.
type CounterResult struct {
	Success         bool       `json:"success"`
	NewActionsToday int        `json:"new_actions_today"`
	CooldownEndsAt  *time.Time `json:"cooldown_ends_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

type GlobalResult struct {
	Success         bool      `json:"success"`
	NewActionsToday int       `json:"new_actions_today"`
	ActionsResetAt  time.Time `json:"actions_reset_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	// Token identifies the reservation for RollbackGlobalAction.
	Token uuid.UUID `json:"token"`
}

type CooldownStatus struct {
	InCooldown       bool       `json:"in_cooldown"`
	CooldownEndsAt   *time.Time `json:"cooldown_ends_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

type BudgetResult struct {
	Success            bool    `json:"success"`
	NewIncreasePercent float64 `json:"new_increase_percent"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// CounterRepo mutates every automation counter in a single statement so that
// concurrent sweeps cannot read-decide-write past a ceiling. Daily counters
// reset lazily when counters_reset_on is before the current date.
type CounterRepo struct {
	db          DB
	globalLimit int
}

func NewCounterRepo(db DB, globalLimit int) *CounterRepo {
	return &CounterRepo{db: db, globalLimit: globalLimit}
}

// IncrementRuleAction refuses while the rule cooldown is running or the daily
// ceiling is reached; otherwise it counts the action and starts a new cooldown.
func (r *CounterRepo) IncrementRuleAction(ctx context.Context, ruleID uuid.UUID, cooldownMinutes, max int) (CounterResult, error) {
	var res CounterResult
	err := r.db.QueryRow(ctx, `
		WITH updated AS (
			UPDATE automation_rules
			SET actions_today = CASE WHEN counters_reset_on < CURRENT_DATE THEN 1 ELSE actions_today + 1 END,
			    counters_reset_on = CURRENT_DATE,
			    last_triggered_at = now(),
			    cooldown_ends_at = now() + ($2::int * interval '1 minute'),
			    updated_at = now()
			WHERE id = $1
			  AND (cooldown_ends_at IS NULL OR cooldown_ends_at <= now())
			  AND (CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE actions_today END) < $3
			RETURNING actions_today, cooldown_ends_at
		)
		SELECT true, u.actions_today, u.cooldown_ends_at, '' FROM updated u
		UNION ALL
		SELECT false,
		       CASE WHEN r.counters_reset_on < CURRENT_DATE THEN 0 ELSE r.actions_today END,
		       r.cooldown_ends_at,
		       CASE WHEN r.cooldown_ends_at > now() THEN 'rule cooldown active' ELSE 'rule daily action limit reached' END
		FROM automation_rules r
		WHERE r.id = $1 AND NOT EXISTS (SELECT 1 FROM updated)
	`, ruleID, cooldownMinutes, max).Scan(&res.Success, &res.NewActionsToday, &res.CooldownEndsAt, &res.ErrorMessage)
	if err != nil {
		return CounterResult{}, wrapErr("increment rule action", err)
	}
	return res, nil
}

// IncrementCampaignAction counts an executed action against the campaign's daily
// ceiling and stamps the campaign cooldown.
func (r *CounterRepo) IncrementCampaignAction(ctx context.Context, campaignID uuid.UUID, cooldownMinutes, max int) (CounterResult, error) {
	var res CounterResult
	err := r.db.QueryRow(ctx, `
		WITH updated AS (
			UPDATE campaigns
			SET actions_today = CASE WHEN counters_reset_on < CURRENT_DATE THEN 1 ELSE actions_today + 1 END,
			    budget_increased_today_percent = CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE budget_increased_today_percent END,
			    counters_reset_on = CURRENT_DATE,
			    last_action_at = now(),
			    cooldown_ends_at = now() + ($2::int * interval '1 minute'),
			    updated_at = now()
			WHERE id = $1
			  AND (CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE actions_today END) < $3
			RETURNING actions_today, cooldown_ends_at
		)
		SELECT true, u.actions_today, u.cooldown_ends_at, '' FROM updated u
		UNION ALL
		SELECT false,
		       CASE WHEN c.counters_reset_on < CURRENT_DATE THEN 0 ELSE c.actions_today END,
		       c.cooldown_ends_at,
		       'campaign daily action limit reached'
		FROM campaigns c
		WHERE c.id = $1 AND NOT EXISTS (SELECT 1 FROM updated)
	`, campaignID, cooldownMinutes, max).Scan(&res.Success, &res.NewActionsToday, &res.CooldownEndsAt, &res.ErrorMessage)
	if err != nil {
		return CounterResult{}, wrapErr("increment campaign action", err)
	}
	return res, nil
}

// IncrementGlobalAction reserves one slot of the project-wide daily budget. The
// upsert refuses at the ceiling, so a rejected call never overshoots. A
// successful call records a reservation row keyed by the returned token.
func (r *CounterRepo) IncrementGlobalAction(ctx context.Context, projectID, userID uuid.UUID) (GlobalResult, error) {
	res := GlobalResult{Token: uuid.New()}
	err := r.db.QueryRow(ctx, `
		WITH upsert AS (
			INSERT INTO global_action_limits (project_id, user_id, actions_today, actions_reset_at, max_actions_per_day)
			VALUES ($1, $2, 1, date_trunc('day', now()) + interval '1 day', $3)
			ON CONFLICT (project_id, user_id) DO UPDATE
			SET actions_today = CASE WHEN global_action_limits.actions_reset_at <= now() THEN 1
			                         ELSE global_action_limits.actions_today + 1 END,
			    actions_reset_at = CASE WHEN global_action_limits.actions_reset_at <= now()
			                            THEN date_trunc('day', now()) + interval '1 day'
			                            ELSE global_action_limits.actions_reset_at END
			WHERE global_action_limits.actions_reset_at <= now()
			   OR global_action_limits.actions_today < global_action_limits.max_actions_per_day
			RETURNING actions_today, actions_reset_at
		), reservation AS (
			INSERT INTO global_action_reservations (token, project_id, user_id, window_reset_at)
			SELECT $4, $1, $2, actions_reset_at FROM upsert
			RETURNING token
		)
		SELECT true, u.actions_today, u.actions_reset_at, '' FROM upsert u
		UNION ALL
		SELECT false, g.actions_today, g.actions_reset_at, 'global daily action limit reached'
		FROM global_action_limits g
		WHERE g.project_id = $1 AND g.user_id = $2 AND NOT EXISTS (SELECT 1 FROM upsert)
	`, projectID, userID, r.globalLimit, res.Token).Scan(&res.Success, &res.NewActionsToday, &res.ActionsResetAt, &res.ErrorMessage)
	if err != nil {
		return GlobalResult{}, wrapErr("increment global action", err)
	}
	if !res.Success {
		res.Token = uuid.Nil
	}
	return res, nil
}

// RollbackGlobalAction releases a reservation taken by IncrementGlobalAction.
// The decrement is relative and happens only if the reservation row still
// exists and belongs to the current window, so repeating it is a no-op and a
// count that rolled over at midnight is left alone.
func (r *CounterRepo) RollbackGlobalAction(ctx context.Context, projectID, userID, token uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		WITH released AS (
			DELETE FROM global_action_reservations
			WHERE token = $3 AND project_id = $1 AND user_id = $2
			RETURNING project_id, user_id, window_reset_at
		)
		UPDATE global_action_limits g
		SET actions_today = GREATEST(g.actions_today - 1, 0)
		FROM released rel
		WHERE g.project_id = rel.project_id
		  AND g.user_id = rel.user_id
		  AND g.actions_reset_at = rel.window_reset_at
	`, projectID, userID, token)
	if err != nil {
		return false, wrapErr("rollback global action", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CounterRepo) CheckRuleCooldown(ctx context.Context, ruleID uuid.UUID) (CooldownStatus, error) {
	var st CooldownStatus
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(cooldown_ends_at > now(), false),
		       cooldown_ends_at,
		       COALESCE(GREATEST(CEIL(EXTRACT(EPOCH FROM (cooldown_ends_at - now()))), 0), 0)::int
		FROM automation_rules WHERE id = $1
	`, ruleID).Scan(&st.InCooldown, &st.CooldownEndsAt, &st.RemainingSeconds)
	if err != nil {
		return CooldownStatus{}, wrapErr("check rule cooldown", err)
	}
	return st, nil
}

// AddBudgetIncrease accumulates an executed budget increase against maxPercent.
func (r *CounterRepo) AddBudgetIncrease(ctx context.Context, campaignID uuid.UUID, percent, maxPercent float64) (BudgetResult, error) {
	var res BudgetResult
	err := r.db.QueryRow(ctx, `
		WITH updated AS (
			UPDATE campaigns
			SET budget_increased_today_percent = CASE WHEN counters_reset_on < CURRENT_DATE THEN $2
			                                          ELSE budget_increased_today_percent + $2 END,
			    actions_today = CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE actions_today END,
			    counters_reset_on = CURRENT_DATE,
			    updated_at = now()
			WHERE id = $1
			  AND (CASE WHEN counters_reset_on < CURRENT_DATE THEN 0 ELSE budget_increased_today_percent END) + $2 <= $3
			RETURNING budget_increased_today_percent
		)
		SELECT true, u.budget_increased_today_percent, '' FROM updated u
		UNION ALL
		SELECT false,
		       CASE WHEN c.counters_reset_on < CURRENT_DATE THEN 0 ELSE c.budget_increased_today_percent END,
		       'daily budget increase limit reached'
		FROM campaigns c
		WHERE c.id = $1 AND NOT EXISTS (SELECT 1 FROM updated)
	`, campaignID, percent, maxPercent).Scan(&res.Success, &res.NewIncreasePercent, &res.ErrorMessage)
	if err != nil {
		return BudgetResult{}, wrapErr("add budget increase", err)
	}
	return res, nil
}

// ResetDailyCounters zeroes counters whose day has passed and drops stale
// reservations. Increments also reset lazily, so this only keeps reads tidy.
func (r *CounterRepo) ResetDailyCounters(ctx context.Context) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`UPDATE campaigns SET actions_today = 0, budget_increased_today_percent = 0, counters_reset_on = CURRENT_DATE
		 WHERE counters_reset_on < CURRENT_DATE`,
		`UPDATE automation_rules SET actions_today = 0, counters_reset_on = CURRENT_DATE
		 WHERE counters_reset_on < CURRENT_DATE`,
		`UPDATE global_action_limits SET actions_today = 0, actions_reset_at = date_trunc('day', now()) + interval '1 day'
		 WHERE actions_reset_at <= now()`,
		`DELETE FROM global_action_reservations WHERE window_reset_at <= now()`,
	} {
		tag, err := r.db.Exec(ctx, stmt)
		if err != nil {
			return total, wrapErr("reset daily counters", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
