package oauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/adpilot/backend/internal/models"
)

var (
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrRefreshUnsupported  = errors.New("platform does not issue refresh tokens")
	ErrPlatformUnavailable = errors.New("platform request failed")
)

// TokenSet is a provider's answer to a code exchange or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time // zero for tokens that do not expire
	Scope        string    // space separated
	// AdvertiserIDs is filled by platforms that return the authorized
	// accounts inline with the token.
	AdvertiserIDs []string
}

// GrantedScopes splits Scope on spaces and commas.
func (t *TokenSet) GrantedScopes() []string {
	return strings.FieldsFunc(t.Scope, func(r rune) bool { return r == ' ' || r == ',' })
}

func (t *TokenSet) ExpiresAt() *time.Time {
	if t.Expiry.IsZero() {
		return nil
	}
	e := t.Expiry
	return &e
}

// Provider is one ad platform's OAuth surface.
type Provider interface {
	Platform() models.Platform
	Scopes() []string
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
	RevokeToken(ctx context.Context, token string) error
	// Permissions maps granted scopes onto product capabilities.
	Permissions(granted []string) models.Permissions
}

// AccountDiscoverer lists the ad accounts an access token can reach.
type AccountDiscoverer interface {
	Discover(ctx context.Context, platform models.Platform, accessToken string) ([]string, error)
}

// Providers is the platform lookup table.
type Providers map[models.Platform]Provider

func NewProviders(ps ...Provider) Providers {
	out := make(Providers, len(ps))
	for _, p := range ps {
		out[p.Platform()] = p
	}
	return out
}

func (ps Providers) Get(platform models.Platform) (Provider, error) {
	p, ok := ps[platform]
	if !ok {
		return nil, ErrUnknownPlatform
	}
	return p, nil
}

// capabilityScopes maps each granted scope to the capabilities it unlocks.
type capabilityScopes map[string]models.Permissions

func (c capabilityScopes) permissions(granted []string) models.Permissions {
	var p models.Permissions
	for _, s := range granted {
		g, ok := c[s]
		if !ok {
			continue
		}
		p.CanAnalyze = p.CanAnalyze || g.CanAnalyze
		p.CanLaunch = p.CanLaunch || g.CanLaunch
		p.CanOptimize = p.CanOptimize || g.CanOptimize
	}
	return p
}

// StateFor derives the post-connect lifecycle state from granted capabilities.
func StateFor(p models.Permissions) models.ConnectionState {
	switch {
	case p.IsFull():
		return models.ConnectionStateFullAccess
	case p.CanLaunch:
		return models.ConnectionStateLimitedPermission
	default:
		return models.ConnectionStateConnected
	}
}
