package models

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionState string

// Ad account connection states
const (
	ConnectionStateDisconnected      ConnectionState = "DISCONNECTED"
	ConnectionStateConnecting        ConnectionState = "CONNECTING"
	ConnectionStateConnected         ConnectionState = "CONNECTED"
	ConnectionStateLimitedPermission ConnectionState = "LIMITED_PERMISSION"
	ConnectionStateFullAccess        ConnectionState = "FULL_ACCESS"
)

// ConnectionStatus tracks credential health independently of the lifecycle state.
type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusExpired ConnectionStatus = "expired"
	ConnectionStatusFailed  ConnectionStatus = "failed"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
)

type Permissions struct {
	CanAnalyze  bool `json:"can_analyze"`
	CanLaunch   bool `json:"can_launch"`
	CanOptimize bool `json:"can_optimize"`
}

// IsFull reports whether every capability is granted.
func (p Permissions) IsFull() bool {
	return p.CanAnalyze && p.CanLaunch && p.CanOptimize
}

type AdAccountConnection struct {
	ID                    uuid.UUID        `json:"id"`
	UserID                uuid.UUID        `json:"user_id"`
	ProjectID             uuid.UUID        `json:"project_id"`
	Platform              Platform         `json:"platform"`
	State                 ConnectionState  `json:"state"`
	Status                ConnectionStatus `json:"status"`
	Permissions           Permissions      `json:"permissions"`
	AdAccountIDs          []string         `json:"ad_account_ids"`
	EncryptedAccessToken  string           `json:"-"`
	EncryptedRefreshToken string           `json:"-"`
	Scope                 string           `json:"scope,omitempty"`
	TokenExpiresAt        *time.Time       `json:"token_expires_at,omitempty"`
	LastRefreshAt         *time.Time       `json:"last_refresh_at,omitempty"`
	LastError             *string          `json:"last_error,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NeedsRefresh reports whether the access token expires within window of now.
// Connections without an expiry (long-lived tokens) never need a refresh.
func (c *AdAccountConnection) NeedsRefresh(now time.Time, window time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return !c.TokenExpiresAt.After(now.Add(window))
}

// IsUsable reports whether the connection can currently act on the platform.
func (c *AdAccountConnection) IsUsable() bool {
	if c.Status != ConnectionStatusActive {
		return false
	}
	switch c.State {
	case ConnectionStateConnected, ConnectionStateLimitedPermission, ConnectionStateFullAccess:
		return true
	}
	return false
}

// OAuthState is a persisted CSRF state nonce for one authorization attempt.
type OAuthState struct {
	Nonce     string    `json:"nonce"`
	UserID    uuid.UUID `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}
