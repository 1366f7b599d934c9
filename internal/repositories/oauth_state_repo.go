package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
)

type OAuthStateRepo struct {
	db DB
}

func NewOAuthStateRepo(db DB) *OAuthStateRepo {
	return &OAuthStateRepo{db: db}
}

// Create stores a fresh single-use nonce for an authorization attempt.
func (r *OAuthStateRepo) Create(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform, ttl time.Duration) (*models.OAuthState, error) {
	s := &models.OAuthState{
		Nonce:     generateNonce(32),
		UserID:    userID,
		ProjectID: projectID,
		Platform:  platform,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO oauth_states (nonce, user_id, project_id, platform, expires_at)
		VALUES ($1, $2, $3, $4, now() + ($5::int * interval '1 second'))
		RETURNING created_at, expires_at
	`, s.Nonce, userID, projectID, platform, int(ttl.Seconds())).Scan(&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, wrapErr("create oauth state", err)
	}
	return s, nil
}

// Consume marks the nonce used. Only the first call for an unexpired nonce
// returns it; every later call gets ErrNotFound.
func (r *OAuthStateRepo) Consume(ctx context.Context, nonce string) (*models.OAuthState, error) {
	var s models.OAuthState
	err := r.db.QueryRow(ctx, `
		UPDATE oauth_states
		SET used = true
		WHERE nonce = $1 AND used = false AND expires_at > now()
		RETURNING nonce, user_id, project_id, platform, created_at, expires_at, used
	`, nonce).Scan(&s.Nonce, &s.UserID, &s.ProjectID, &s.Platform, &s.CreatedAt, &s.ExpiresAt, &s.Used)
	if err != nil {
		return nil, wrapErr("consume oauth state", err)
	}
	return &s, nil
}

func (r *OAuthStateRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at <= now() OR used = true`)
	if err != nil {
		return 0, wrapErr("delete expired oauth states", err)
	}
	return tag.RowsAffected(), nil
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
