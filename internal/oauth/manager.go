package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/statemachine"
)

// DefaultRefreshWindow is how close to expiry an access token is refreshed
// before being handed out.
const DefaultRefreshWindow = 5 * time.Minute

// Error codes
const (
	CodeInvalidState        = "INVALID_STATE"
	CodeNoPendingConnection = "NO_PENDING_CONNECTION"
	CodeNoAdAccounts        = "NO_AD_ACCOUNTS"
	CodeTokenExchangeFailed = "TOKEN_EXCHANGE_FAILED"
	CodePlatformDenied      = "PLATFORM_DENIED"
	CodeDiscoveryFailed     = "ACCOUNT_DISCOVERY_FAILED"
	CodeStoreError          = "STORE_ERROR"
	CodeUnknownPlatform     = "UNKNOWN_PLATFORM"
	CodeConnectionNotFound  = "CONNECTION_NOT_FOUND"
	CodeConnectionInactive  = "CONNECTION_NOT_ACTIVE"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_MISSING"
	CodeRefreshFailed       = "TOKEN_REFRESH_FAILED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeStateChanged        = "STATE_CHANGED"
)

// ConnectionStore is the persistence the manager needs.
type ConnectionStore interface {
	CreatePending(ctx context.Context, c *models.AdAccountConnection) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdAccountConnection, error)
	FindPending(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform) (*models.AdAccountConnection, error)
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]*models.AdAccountConnection, error)
	Activate(ctx context.Context, c *models.AdAccountConnection) error
	MarkFailed(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, reason string) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ConnectionStatus, reason *string) error
	SaveTokens(ctx context.Context, id uuid.UUID, accessEnc, refreshEnc string, expiresAt *time.Time) error
	UpdatePermissions(ctx context.Context, id uuid.UUID, from, to models.ConnectionState, perms models.Permissions) error
	Disconnect(ctx context.Context, id uuid.UUID) error
}

// Result is the outcome of a lifecycle operation. Expected failures are
// reported here, never as a panic or a raw error.
type Result struct {
	Success      bool                   `json:"success"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	Error        string                 `json:"error,omitempty"`
	ConnectionID uuid.UUID              `json:"connection_id,omitempty"`
	Platform     models.Platform        `json:"platform,omitempty"`
	State        models.ConnectionState `json:"state,omitempty"`
	AuthURL      string                 `json:"auth_url,omitempty"`
	AccountIDs   []string               `json:"account_ids,omitempty"`
	Permissions  *models.Permissions    `json:"permissions,omitempty"`
}

func failure(code, msg string) Result {
	return Result{ErrorCode: code, Error: msg}
}

// Err converts a failed result into an error carrying its code.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &Error{Code: r.ErrorCode, Message: r.Error}
}

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Manager struct {
	providers     Providers
	states        *StateStore
	conns         ConnectionStore
	cipher        *TokenCipher
	discoverer    AccountDiscoverer
	registry      *statemachine.Registry
	audit         audit.Recorder
	log           *zap.Logger
	refreshWindow time.Duration
	now           func() time.Time
}

func NewManager(
	providers Providers,
	states *StateStore,
	conns ConnectionStore,
	cipher *TokenCipher,
	discoverer AccountDiscoverer,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	log *zap.Logger,
) *Manager {
	return &Manager{
		providers:     providers,
		states:        states,
		conns:         conns,
		cipher:        cipher,
		discoverer:    discoverer,
		registry:      registry,
		audit:         recorder,
		log:           log,
		refreshWindow: DefaultRefreshWindow,
		now:           time.Now,
	}
}

// Initiate opens a CONNECTING connection and returns the consent URL.
func (m *Manager) Initiate(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform) Result {
	ev := m.event(models.EventOAuthConnectStart, projectID, uuid.Nil, platform)

	provider, err := m.providers.Get(platform)
	if err != nil {
		return m.finish(ctx, ev, failure(CodeUnknownPlatform, fmt.Sprintf("platform %q is not configured", platform)))
	}

	// issue first so a failure here leaves no CONNECTING row behind
	state, err := m.states.Issue(ctx, userID, projectID, platform)
	if err != nil {
		return m.finish(ctx, ev, m.storeFailure("issue oauth state", err))
	}

	conn := &models.AdAccountConnection{UserID: userID, ProjectID: projectID, Platform: platform}
	if err := m.conns.CreatePending(ctx, conn); err != nil {
		return m.finish(ctx, ev, m.storeFailure("create pending connection", err))
	}
	ev.EntityID = conn.ID

	ev.PreviousState = models.StrPtr(string(models.ConnectionStateDisconnected))
	ev.NewState = models.StrPtr(string(models.ConnectionStateConnecting))
	ev.Outcome = models.StrPtr(models.OutcomePending)
	return m.finish(ctx, ev, Result{
		Success:      true,
		ConnectionID: conn.ID,
		Platform:     platform,
		State:        models.ConnectionStateConnecting,
		AuthURL:      provider.AuthURL(state),
	})
}

// HandleCallback completes the authorization started by Initiate. platform is
// the platform the callback arrived for; errorParam is the platform's own
// error parameter, set when the user declined consent.
func (m *Manager) HandleCallback(ctx context.Context, platform models.Platform, state, code, errorParam string) Result {
	ev := m.event(models.EventOAuthCallback, uuid.Nil, uuid.Nil, platform)

	rec, err := m.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return m.finish(ctx, ev, failure(CodeInvalidState, err.Error()))
		}
		return m.finish(ctx, ev, m.storeFailure("consume oauth state", err))
	}
	ev.ProjectID = &rec.ProjectID
	if rec.Platform != platform {
		msg := "state was issued for another platform"
		m.abandonPending(ctx, rec, &ev, msg)
		return m.finish(ctx, ev, failure(CodeInvalidState, msg))
	}

	conn, err := m.conns.FindPending(ctx, rec.UserID, rec.ProjectID, rec.Platform)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return m.finish(ctx, ev, failure(CodeNoPendingConnection, "no connection is waiting for this authorization"))
		}
		return m.finish(ctx, ev, m.storeFailure("find pending connection", err))
	}
	ev.EntityID = conn.ID
	ev.PreviousState = models.StrPtr(string(conn.State))

	fail := func(code, msg string) Result {
		if err := m.conns.MarkFailed(ctx, conn.ID, models.ConnectionStatusFailed, msg); err != nil {
			m.log.Error("failed to mark connection failed", zap.String("connection_id", conn.ID.String()), zap.Error(err))
		}
		ev.NewState = models.StrPtr(string(models.ConnectionStateDisconnected))
		return m.finish(ctx, ev, failure(code, msg))
	}

	if errorParam != "" {
		return fail(CodePlatformDenied, "platform denied authorization: "+errorParam)
	}
	if code == "" {
		return fail(CodeTokenExchangeFailed, "authorization code is missing")
	}

	provider, err := m.providers.Get(platform)
	if err != nil {
		return fail(CodeUnknownPlatform, fmt.Sprintf("platform %q is not configured", platform))
	}

	tokens, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return fail(CodeTokenExchangeFailed, err.Error())
	}

	accounts := tokens.AdvertiserIDs
	if len(accounts) == 0 && m.discoverer != nil {
		accounts, err = m.discoverer.Discover(ctx, platform, tokens.AccessToken)
		if err != nil {
			return fail(CodeDiscoveryFailed, err.Error())
		}
	}
	if len(accounts) == 0 {
		return fail(CodeNoAdAccounts, "the authorized user has no ad accounts")
	}

	perms := provider.Permissions(tokens.GrantedScopes())
	target := StateFor(perms)
	if err := m.registry.CheckTransition(statemachine.KindAdAccount, string(conn.State), string(target)); err != nil {
		return fail(CodeInvalidTransition, err.Error())
	}

	accessEnc, err := m.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return fail(CodeStoreError, err.Error())
	}
	refreshEnc, err := m.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return fail(CodeStoreError, err.Error())
	}

	conn.State = target
	conn.Permissions = perms
	conn.AdAccountIDs = accounts
	conn.EncryptedAccessToken = accessEnc
	conn.EncryptedRefreshToken = refreshEnc
	conn.Scope = tokens.Scope
	conn.TokenExpiresAt = tokens.ExpiresAt()

	if err := m.conns.Activate(ctx, conn); err != nil {
		if errors.Is(err, repositories.ErrStateChanged) {
			return m.finish(ctx, ev, failure(CodeNoPendingConnection, "connection is no longer pending"))
		}
		res := m.storeFailure("activate connection", err)
		if merr := m.conns.MarkFailed(ctx, conn.ID, models.ConnectionStatusFailed, res.Error); merr != nil {
			m.log.Error("failed to mark connection failed", zap.String("connection_id", conn.ID.String()), zap.Error(merr))
		} else {
			ev.NewState = models.StrPtr(string(models.ConnectionStateDisconnected))
		}
		return m.finish(ctx, ev, res)
	}

	ev.NewState = models.StrPtr(string(target))
	ev.Metadata["account_count"] = len(accounts)
	ev.Metadata["scope"] = tokens.Scope
	return m.finish(ctx, ev, Result{
		Success:      true,
		ConnectionID: conn.ID,
		Platform:     platform,
		State:        target,
		AccountIDs:   accounts,
		Permissions:  &perms,
	})
}

// abandonPending fails the CONNECTING row a consumed state belonged to, so a
// callback that cannot complete never leaves it dangling.
func (m *Manager) abandonPending(ctx context.Context, rec *models.OAuthState, ev *models.AuditEvent, reason string) {
	conn, err := m.conns.FindPending(ctx, rec.UserID, rec.ProjectID, rec.Platform)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			m.log.Error("failed to find pending connection", zap.String("project_id", rec.ProjectID.String()), zap.Error(err))
		}
		return
	}
	ev.EntityID = conn.ID
	ev.PreviousState = models.StrPtr(string(conn.State))
	if err := m.conns.MarkFailed(ctx, conn.ID, models.ConnectionStatusFailed, reason); err != nil {
		m.log.Error("failed to mark connection failed", zap.String("connection_id", conn.ID.String()), zap.Error(err))
		return
	}
	ev.NewState = models.StrPtr(string(models.ConnectionStateDisconnected))
}

// GetAccessToken returns a decrypted access token, refreshing it first when it
// expires within the refresh window.
func (m *Manager) GetAccessToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	conn, err := m.conns.GetByID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", &Error{Code: CodeConnectionNotFound, Message: "connection not found"}
		}
		return "", err
	}
	if !conn.IsUsable() {
		return "", &Error{Code: CodeConnectionInactive, Message: fmt.Sprintf("connection is %s/%s", conn.State, conn.Status)}
	}

	if conn.NeedsRefresh(m.now(), m.refreshWindow) {
		token, res := m.refresh(ctx, conn)
		if !res.Success {
			return "", res.Err()
		}
		return token, nil
	}

	token, err := m.cipher.Decrypt(conn.EncryptedAccessToken)
	if err != nil {
		return "", &Error{Code: CodeStoreError, Message: err.Error()}
	}
	return token, nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context, connectionID uuid.UUID) Result {
	conn, err := m.conns.GetByID(ctx, connectionID)
	if err != nil {
		ev := m.event(models.EventOAuthRefresh, uuid.Nil, connectionID, "")
		return m.finish(ctx, ev, m.lookupFailure(err))
	}
	_, res := m.refresh(ctx, conn)
	return res
}

func (m *Manager) refresh(ctx context.Context, conn *models.AdAccountConnection) (string, Result) {
	ev := m.event(models.EventOAuthRefresh, conn.ProjectID, conn.ID, conn.Platform)

	if err := m.registry.CheckAction(statemachine.KindAdAccount, string(conn.State), statemachine.ActionRefreshToken); err != nil {
		return "", m.finish(ctx, ev, failure(CodeConnectionInactive, err.Error()))
	}
	provider, err := m.providers.Get(conn.Platform)
	if err != nil {
		return "", m.finish(ctx, ev, failure(CodeUnknownPlatform, fmt.Sprintf("platform %q is not configured", conn.Platform)))
	}

	refreshToken, err := m.cipher.Decrypt(conn.EncryptedRefreshToken)
	if err != nil {
		return "", m.finish(ctx, ev, failure(CodeStoreError, err.Error()))
	}
	if refreshToken == "" {
		msg := "no refresh token stored, reconnect required"
		if err := m.conns.SetStatus(ctx, conn.ID, models.ConnectionStatusExpired, &msg); err != nil {
			return "", m.finish(ctx, ev, m.storeFailure("set connection status", err))
		}
		ev.Metadata["status"] = string(models.ConnectionStatusExpired)
		return "", m.finish(ctx, ev, failure(CodeRefreshTokenMissing, msg))
	}

	tokens, err := provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		msg := err.Error()
		status := models.ConnectionStatusActive
		if conn.TokenExpiresAt != nil && !conn.TokenExpiresAt.After(m.now()) {
			status = models.ConnectionStatusExpired
		}
		if serr := m.conns.SetStatus(ctx, conn.ID, status, &msg); serr != nil {
			m.log.Error("failed to record refresh failure", zap.String("connection_id", conn.ID.String()), zap.Error(serr))
		}
		ev.Metadata["status"] = string(status)
		return "", m.finish(ctx, ev, failure(CodeRefreshFailed, msg))
	}

	// platforms may rotate the refresh token or leave it out
	newRefresh := tokens.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	accessEnc, err := m.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", m.finish(ctx, ev, failure(CodeStoreError, err.Error()))
	}
	refreshEnc, err := m.cipher.Encrypt(newRefresh)
	if err != nil {
		return "", m.finish(ctx, ev, failure(CodeStoreError, err.Error()))
	}
	if err := m.conns.SaveTokens(ctx, conn.ID, accessEnc, refreshEnc, tokens.ExpiresAt()); err != nil {
		return "", m.finish(ctx, ev, m.storeFailure("save refreshed tokens", err))
	}

	if exp := tokens.ExpiresAt(); exp != nil {
		ev.Metadata["expires_at"] = exp.UTC().Format(time.RFC3339)
	}
	ev.Metadata["rotated"] = tokens.RefreshToken != ""
	return tokens.AccessToken, m.finish(ctx, ev, Result{
		Success:      true,
		ConnectionID: conn.ID,
		Platform:     conn.Platform,
		State:        conn.State,
	})
}

// Disconnect revokes the token on the platform when it can and always clears
// the credentials locally. A pending connection is cancelled; one that is
// already disconnected is refused.
func (m *Manager) Disconnect(ctx context.Context, connectionID uuid.UUID) Result {
	conn, err := m.conns.GetByID(ctx, connectionID)
	if err != nil {
		ev := m.event(models.EventOAuthRevoke, uuid.Nil, connectionID, "")
		return m.finish(ctx, ev, m.lookupFailure(err))
	}
	ev := m.event(models.EventOAuthRevoke, conn.ProjectID, conn.ID, conn.Platform)
	ev.PreviousState = models.StrPtr(string(conn.State))

	action := statemachine.ActionDisconnect
	if conn.State == models.ConnectionStateConnecting {
		action = statemachine.ActionCancelConnect
	}
	if err := m.registry.CheckAction(statemachine.KindAdAccount, string(conn.State), action); err != nil {
		return m.finish(ctx, ev, failure(CodeInvalidTransition, err.Error()))
	}

	if provider, err := m.providers.Get(conn.Platform); err == nil {
		m.revoke(ctx, provider, conn, ev.Metadata)
	}

	if err := m.conns.Disconnect(ctx, conn.ID); err != nil {
		return m.finish(ctx, ev, m.storeFailure("disconnect connection", err))
	}
	ev.NewState = models.StrPtr(string(models.ConnectionStateDisconnected))
	return m.finish(ctx, ev, Result{
		Success:      true,
		ConnectionID: conn.ID,
		Platform:     conn.Platform,
		State:        models.ConnectionStateDisconnected,
	})
}

func (m *Manager) revoke(ctx context.Context, provider Provider, conn *models.AdAccountConnection, meta map[string]any) {
	enc := conn.EncryptedRefreshToken
	if enc == "" {
		enc = conn.EncryptedAccessToken
	}
	token, err := m.cipher.Decrypt(enc)
	if err != nil || token == "" {
		meta["revoked"] = false
		return
	}
	if err := provider.RevokeToken(ctx, token); err != nil {
		m.log.Warn("token revoke failed, disconnecting locally",
			zap.String("connection_id", conn.ID.String()),
			zap.String("platform", string(conn.Platform)),
			zap.Error(err),
		)
		meta["revoked"] = false
		meta["revoke_error"] = err.Error()
		return
	}
	meta["revoked"] = true
}

// RefreshPermissions applies newly reported capabilities, moving the
// connection between LIMITED_PERMISSION and FULL_ACCESS as needed.
func (m *Manager) RefreshPermissions(ctx context.Context, connectionID uuid.UUID, perms models.Permissions) Result {
	conn, err := m.conns.GetByID(ctx, connectionID)
	if err != nil {
		ev := m.event(models.EventOAuthPermissions, uuid.Nil, connectionID, "")
		return m.finish(ctx, ev, m.lookupFailure(err))
	}
	ev := m.event(models.EventOAuthPermissions, conn.ProjectID, conn.ID, conn.Platform)
	ev.PreviousState = models.StrPtr(string(conn.State))

	if err := m.registry.CheckAction(statemachine.KindAdAccount, string(conn.State), statemachine.ActionRefreshPermissions); err != nil {
		return m.finish(ctx, ev, failure(CodeConnectionInactive, err.Error()))
	}
	target := StateFor(perms)
	if target != conn.State {
		if err := m.registry.CheckTransition(statemachine.KindAdAccount, string(conn.State), string(target)); err != nil {
			return m.finish(ctx, ev, failure(CodeInvalidTransition, err.Error()))
		}
	}

	if err := m.conns.UpdatePermissions(ctx, conn.ID, conn.State, target, perms); err != nil {
		if errors.Is(err, repositories.ErrStateChanged) {
			return m.finish(ctx, ev, failure(CodeStateChanged, "connection changed state concurrently"))
		}
		return m.finish(ctx, ev, m.storeFailure("update permissions", err))
	}

	ev.NewState = models.StrPtr(string(target))
	ev.Metadata["can_analyze"] = perms.CanAnalyze
	ev.Metadata["can_launch"] = perms.CanLaunch
	ev.Metadata["can_optimize"] = perms.CanOptimize
	return m.finish(ctx, ev, Result{
		Success:      true,
		ConnectionID: conn.ID,
		Platform:     conn.Platform,
		State:        target,
		Permissions:  &perms,
	})
}

// RefreshExpiring refreshes every usable connection whose token expires
// within the given window. Individual failures are counted, not returned.
func (m *Manager) RefreshExpiring(ctx context.Context, within time.Duration, limit int) (refreshed, failed int, err error) {
	conns, err := m.conns.ListExpiring(ctx, m.now().Add(within), limit)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range conns {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if _, res := m.refresh(ctx, c); res.Success {
			refreshed++
		} else {
			failed++
		}
	}
	return refreshed, failed, nil
}

func (m *Manager) event(eventType string, projectID, connectionID uuid.UUID, platform models.Platform) models.AuditEvent {
	ev := models.AuditEvent{
		EventType:  eventType,
		Source:     models.SourceSystem,
		EntityType: models.EntityAdAccount,
		EntityID:   connectionID,
		Metadata:   map[string]any{},
	}
	if projectID != uuid.Nil {
		ev.ProjectID = &projectID
	}
	if platform != "" {
		ev.Metadata["platform"] = string(platform)
	}
	return ev
}

// finish writes the single audit event for an operation and returns res.
func (m *Manager) finish(ctx context.Context, ev models.AuditEvent, res Result) Result {
	if res.Success {
		if ev.Outcome == nil {
			ev.Outcome = models.StrPtr(models.OutcomeSuccess)
		}
	} else {
		ev.Outcome = models.StrPtr(models.OutcomeFailure)
		ev.Reason = models.StrPtr(res.Error)
		ev.Metadata["error_code"] = res.ErrorCode
	}
	if err := m.audit.Record(ctx, ev); err != nil {
		m.log.Error("failed to record oauth audit event", zap.String("event_type", ev.EventType), zap.Error(err))
	}
	return res
}

func (m *Manager) storeFailure(op string, err error) Result {
	m.log.Error("oauth store failure", zap.String("op", op), zap.Error(err))
	return failure(CodeStoreError, op+": "+err.Error())
}

func (m *Manager) lookupFailure(err error) Result {
	if errors.Is(err, repositories.ErrNotFound) {
		return failure(CodeConnectionNotFound, "connection not found")
	}
	return m.storeFailure("get connection", err)
}
