package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LockResult struct {
	Acquired  bool      `json:"acquired"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LockRepo keeps advisory locks in automation_locks. A lock whose expires_at
// has passed is abandoned and may be taken over by any caller.
type LockRepo struct {
	db DB
}

func NewLockRepo(db DB) *LockRepo {
	return &LockRepo{db: db}
}

// Acquire inserts the lock, or takes it over when the existing one expired or
// is already ours. It reports the current holder when someone else has it.
func (r *LockRepo) Acquire(ctx context.Context, projectID uuid.UUID, lockKey, holderID string, ttlSeconds int) (LockResult, error) {
	var res LockResult
	err := r.db.QueryRow(ctx, `
		INSERT INTO automation_locks (project_id, lock_key, holder_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, now(), now() + ($4::int * interval '1 second'))
		ON CONFLICT (project_id, lock_key) DO UPDATE
		SET holder_id = EXCLUDED.holder_id,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at
		WHERE automation_locks.expires_at <= now()
		   OR automation_locks.holder_id = EXCLUDED.holder_id
		RETURNING holder_id, expires_at
	`, projectID, lockKey, holderID, ttlSeconds).Scan(&res.HolderID, &res.ExpiresAt)
	if err == nil {
		res.Acquired = true
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return LockResult{}, wrapErr("acquire lock", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT holder_id, expires_at FROM automation_locks
		WHERE project_id = $1 AND lock_key = $2
	`, projectID, lockKey).Scan(&res.HolderID, &res.ExpiresAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return LockResult{}, wrapErr("read lock holder", err)
	}
	return res, nil
}

// Release deletes the lock only if holderID still owns it.
func (r *LockRepo) Release(ctx context.Context, projectID uuid.UUID, lockKey, holderID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM automation_locks
		WHERE project_id = $1 AND lock_key = $2 AND holder_id = $3
	`, projectID, lockKey, holderID)
	if err != nil {
		return false, wrapErr("release lock", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired removes abandoned locks. Takeover does not depend on it.
func (r *LockRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM automation_locks WHERE expires_at <= now()`)
	if err != nil {
		return 0, wrapErr("delete expired locks", err)
	}
	return tag.RowsAffected(), nil
}
