package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRepoAcquire(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLockRepo(mock)
	ctx := context.Background()
	project := uuid.New()
	expires := time.Now().Add(30 * time.Second)

	mock.ExpectQuery("INSERT INTO automation_locks").
		WithArgs(project, "automation_sweep", "worker-a", 30).
		WillReturnRows(pgxmock.NewRows([]string{"holder_id", "expires_at"}).AddRow("worker-a", expires))

	res, err := repo.Acquire(ctx, project, "automation_sweep", "worker-a", 30)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Equal(t, "worker-a", res.HolderID)
	assert.Equal(t, expires, res.ExpiresAt)

	// a live lock held by someone else makes the conditional upsert return nothing
	mock.ExpectQuery("INSERT INTO automation_locks").
		WithArgs(project, "automation_sweep", "worker-b", 30).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT holder_id, expires_at FROM automation_locks").
		WithArgs(project, "automation_sweep").
		WillReturnRows(pgxmock.NewRows([]string{"holder_id", "expires_at"}).AddRow("worker-a", expires))

	res, err = repo.Acquire(ctx, project, "automation_sweep", "worker-b", 30)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "worker-a", res.HolderID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRepoAcquireStoreFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLockRepo(mock)
	mock.ExpectQuery("INSERT INTO automation_locks").
		WillReturnError(errors.New("connection refused"))

	_, err = repo.Acquire(context.Background(), uuid.New(), "k", "h", 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLockRepoRelease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLockRepo(mock)
	ctx := context.Background()
	project := uuid.New()

	mock.ExpectExec("DELETE FROM automation_locks").
		WithArgs(project, "automation_sweep", "worker-a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM automation_locks").
		WithArgs(project, "automation_sweep", "worker-b").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ok, err := repo.Release(ctx, project, "automation_sweep", "worker-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Release(ctx, project, "automation_sweep", "worker-b")
	require.NoError(t, err)
	assert.False(t, ok, "a non-holder must not release the lock")

	assert.NoError(t, mock.ExpectationsWereMet())
}
