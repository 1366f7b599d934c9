package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpilot/backend/internal/models"
)

type ConnectionRepo struct {
	db DB
}

func NewConnectionRepo(db DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

const connectionColumns = `id, user_id, project_id, platform, state, status, can_analyze, can_launch, can_optimize,
	ad_account_ids, access_token_enc, refresh_token_enc, scope, token_expires_at, last_refresh_at, last_error,
	created_at, updated_at`

func scanConnection(row pgx.Row) (*models.AdAccountConnection, error) {
	var c models.AdAccountConnection
	err := row.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.Platform, &c.State, &c.Status,
		&c.Permissions.CanAnalyze, &c.Permissions.CanLaunch, &c.Permissions.CanOptimize,
		&c.AdAccountIDs, &c.EncryptedAccessToken, &c.EncryptedRefreshToken, &c.Scope,
		&c.TokenExpiresAt, &c.LastRefreshAt, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreatePending inserts the CONNECTING placeholder for an authorization attempt.
// An older pending attempt for the same user, project and platform is replaced.
func (r *ConnectionRepo) CreatePending(ctx context.Context, c *models.AdAccountConnection) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ad_account_connections (user_id, project_id, platform, state, status)
		VALUES ($1, $2, $3, 'CONNECTING', 'active')
		ON CONFLICT (user_id, project_id, platform) WHERE state = 'CONNECTING' DO UPDATE
		SET updated_at = now()
		RETURNING id, state, status, created_at, updated_at
	`, c.UserID, c.ProjectID, c.Platform).Scan(&c.ID, &c.State, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create pending connection", err)
}

func (r *ConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AdAccountConnection, error) {
	c, err := scanConnection(r.db.QueryRow(ctx, `SELECT `+connectionColumns+` FROM ad_account_connections WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get connection", err)
	}
	return c, nil
}

// FindPending returns the newest CONNECTING connection for the user/project/platform.
func (r *ConnectionRepo) FindPending(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform) (*models.AdAccountConnection, error) {
	c, err := scanConnection(r.db.QueryRow(ctx, `
		SELECT `+connectionColumns+` FROM ad_account_connections
		WHERE user_id = $1 AND project_id = $2 AND platform = $3 AND state = 'CONNECTING'
		ORDER BY created_at DESC LIMIT 1
	`, userID, projectID, platform))
	if err != nil {
		return nil, wrapErr("find pending connection", err)
	}
	return c, nil
}

func (r *ConnectionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.AdAccountConnection, error) {
	return r.list(ctx, "list connections", `
		SELECT `+connectionColumns+` FROM ad_account_connections
		WHERE project_id = $1 ORDER BY created_at DESC
	`, projectID)
}

func (r *ConnectionRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.AdAccountConnection, error) {
	return r.list(ctx, "list connections", `
		SELECT `+connectionColumns+` FROM ad_account_connections WHERE id = ANY($1)
	`, ids)
}

// ListExpiring returns usable connections whose access token expires before the cutoff.
func (r *ConnectionRepo) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*models.AdAccountConnection, error) {
	return r.list(ctx, "list expiring connections", `
		SELECT `+connectionColumns+` FROM ad_account_connections
		WHERE status = 'active'
		  AND state IN ('CONNECTED', 'LIMITED_PERMISSION', 'FULL_ACCESS')
		  AND token_expires_at IS NOT NULL AND token_expires_at <= $1
		ORDER BY token_expires_at LIMIT $2
	`, before, limit)
}

func (r *ConnectionRepo) list(ctx context.Context, op, query string, args ...any) ([]*models.AdAccountConnection, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []*models.AdAccountConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, c)
	}
	return out, wrapErr(op, rows.Err())
}

// Activate completes a pending connection with its tokens, accounts and
// permission-derived state. It only succeeds from CONNECTING.
func (r *ConnectionRepo) Activate(ctx context.Context, c *models.AdAccountConnection) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections
		SET state = $2, status = 'active',
		    can_analyze = $3, can_launch = $4, can_optimize = $5,
		    ad_account_ids = $6, access_token_enc = $7, refresh_token_enc = $8, scope = $9,
		    token_expires_at = $10, last_refresh_at = now(), last_error = NULL, updated_at = now()
		WHERE id = $1 AND state = 'CONNECTING'
	`, c.ID, c.State, c.Permissions.CanAnalyze, c.Permissions.CanLaunch, c.Permissions.CanOptimize,
		c.AdAccountIDs, c.EncryptedAccessToken, c.EncryptedRefreshToken, c.Scope, c.TokenExpiresAt)
	if err != nil {
		return wrapErr("activate connection", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

// MarkFailed moves a connection to DISCONNECTED with the given status and error.
func (r *ConnectionRepo) MarkFailed(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections
		SET state = 'DISCONNECTED', status = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, id, status, reason)
	return wrapErr("mark connection failed", err)
}

// SetStatus changes credential health without touching the lifecycle state.
func (r *ConnectionRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, reason *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections SET status = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, id, status, reason)
	return wrapErr("set connection status", err)
}

func (r *ConnectionRepo) SaveTokens(ctx context.Context, id uuid.UUID, accessEnc, refreshEnc string, expiresAt *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections
		SET access_token_enc = $2, refresh_token_enc = $3, token_expires_at = $4,
		    last_refresh_at = now(), status = 'active', last_error = NULL, updated_at = now()
		WHERE id = $1
	`, id, accessEnc, refreshEnc, expiresAt)
	return wrapErr("save connection tokens", err)
}

// UpdatePermissions applies a permission refresh, moving between
// LIMITED_PERMISSION and FULL_ACCESS only from the expected state.
func (r *ConnectionRepo) UpdatePermissions(ctx context.Context, id uuid.UUID, from, to models.ConnectionState, perms models.Permissions) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections
		SET state = $3, can_analyze = $4, can_launch = $5, can_optimize = $6, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to, perms.CanAnalyze, perms.CanLaunch, perms.CanOptimize)
	if err != nil {
		return wrapErr("update connection permissions", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

// Disconnect clears credentials locally. It always applies, whatever the remote revoke did.
func (r *ConnectionRepo) Disconnect(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE ad_account_connections
		SET state = 'DISCONNECTED', status = 'revoked', access_token_enc = '', refresh_token_enc = '',
		    token_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return wrapErr("disconnect connection", err)
}
