package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterRows(success bool, count int, cooldown *time.Time, msg string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"success", "actions_today", "cooldown_ends_at", "error_message"}).
		AddRow(success, count, cooldown, msg)
}

func TestIncrementCampaignActionCeiling(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	ctx := context.Background()
	campaign := uuid.New()
	ends := time.Now().Add(time.Hour)

	for i := 1; i <= 3; i++ {
		mock.ExpectQuery("UPDATE campaigns").
			WithArgs(campaign, 60, 3).
			WillReturnRows(counterRows(true, i, &ends, ""))
	}
	mock.ExpectQuery("UPDATE campaigns").
		WithArgs(campaign, 60, 3).
		WillReturnRows(counterRows(false, 3, &ends, "campaign daily action limit reached"))

	var results []CounterResult
	for i := 0; i < 4; i++ {
		res, err := repo.IncrementCampaignAction(ctx, campaign, 60, 3)
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, 3, results[2].NewActionsToday)
	assert.False(t, results[3].Success)
	assert.Equal(t, 3, results[3].NewActionsToday)
	assert.NotEmpty(t, results[3].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRuleActionCooldown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	rule := uuid.New()
	ends := time.Now().Add(20 * time.Minute)

	mock.ExpectQuery("UPDATE automation_rules").
		WithArgs(rule, 60, 10).
		WillReturnRows(counterRows(false, 1, &ends, "rule cooldown active"))

	res, err := repo.IncrementRuleAction(context.Background(), rule, 60, 10)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "rule cooldown active", res.ErrorMessage)
	require.NotNil(t, res.CooldownEndsAt)
	assert.Equal(t, ends, *res.CooldownEndsAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRuleActionMissingRule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	mock.ExpectQuery("UPDATE automation_rules").WillReturnError(pgx.ErrNoRows)

	_, err = repo.IncrementRuleAction(context.Background(), uuid.New(), 60, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementGlobalAction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	ctx := context.Background()
	project, user := uuid.New(), uuid.New()
	reset := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	cols := []string{"success", "actions_today", "actions_reset_at", "error_message"}

	mock.ExpectQuery("INSERT INTO global_action_limits").
		WithArgs(project, user, 50, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(true, 7, reset, ""))
	mock.ExpectQuery("INSERT INTO global_action_limits").
		WithArgs(project, user, 50, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(false, 50, reset, "global daily action limit reached"))

	res, err := repo.IncrementGlobalAction(ctx, project, user)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 7, res.NewActionsToday)
	assert.NotEqual(t, uuid.Nil, res.Token)

	res, err = repo.IncrementGlobalAction(ctx, project, user)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, uuid.Nil, res.Token, "a refused increment has nothing to roll back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackGlobalActionIsIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	ctx := context.Background()
	project, user, token := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec("DELETE FROM global_action_reservations").
		WithArgs(project, user, token).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM global_action_reservations").
		WithArgs(project, user, token).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.RollbackGlobalAction(ctx, project, user, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RollbackGlobalAction(ctx, project, user, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckRuleCooldown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	rule := uuid.New()
	ends := time.Now().Add(90 * time.Second)

	mock.ExpectQuery("FROM automation_rules WHERE id").
		WithArgs(rule).
		WillReturnRows(pgxmock.NewRows([]string{"in_cooldown", "cooldown_ends_at", "remaining"}).AddRow(true, &ends, 90))

	st, err := repo.CheckRuleCooldown(context.Background(), rule)
	require.NoError(t, err)
	assert.True(t, st.InCooldown)
	assert.Equal(t, 90, st.RemainingSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddBudgetIncrease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCounterRepo(mock, 50)
	campaign := uuid.New()
	cols := []string{"success", "percent", "error_message"}

	mock.ExpectQuery("UPDATE campaigns").
		WithArgs(campaign, 10.0, 20.0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(false, 15.0, "daily budget increase limit reached"))
	mock.ExpectQuery("UPDATE campaigns").
		WithArgs(campaign, 5.0, 20.0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(true, 20.0, ""))

	res, err := repo.AddBudgetIncrease(context.Background(), campaign, 10, 20)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 15.0, res.NewIncreasePercent)

	res, err = repo.AddBudgetIncrease(context.Background(), campaign, 5, 20)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 20.0, res.NewIncreasePercent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
