package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/adpilot/backend/internal/models"
)

// ClientConfig is the app registration for one platform.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RPS          float64

	// Endpoint overrides, for platform sandboxes. Empty keeps the production URL.
	AuthURL   string
	TokenURL  string
	RevokeURL string
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// codeFlowProvider implements Provider for platforms that follow the
// standard authorization code grant.
type codeFlowProvider struct {
	platform  models.Platform
	cfg       *oauth2.Config
	authOpts  []oauth2.AuthCodeOption
	revokeURL string
	caps      capabilityScopes
	http      *platformHTTP
}

func (p *codeFlowProvider) Platform() models.Platform { return p.platform }

func (p *codeFlowProvider) Scopes() []string { return p.cfg.Scopes }

func (p *codeFlowProvider) AuthURL(state string) string {
	return p.cfg.AuthCodeURL(state, p.authOpts...)
}

func (p *codeFlowProvider) Permissions(granted []string) models.Permissions {
	return p.caps.permissions(granted)
}

func (p *codeFlowProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http.Client())
}

func (p *codeFlowProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	tok, err := p.cfg.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange: %w", p.platform, describeTokenError(err))
	}
	return p.tokenSet(tok), nil
}

func (p *codeFlowProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	src := p.cfg.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%s token refresh: %w", p.platform, describeTokenError(err))
	}
	return p.tokenSet(tok), nil
}

func (p *codeFlowProvider) RevokeToken(ctx context.Context, token string) error {
	if p.revokeURL == "" {
		return nil
	}
	req, err := postForm(ctx, p.revokeURL, url.Values{"token": {token}}.Encode())
	if err != nil {
		return err
	}
	if _, err := p.http.Do(req); err != nil {
		return fmt.Errorf("%s revoke: %w", p.platform, err)
	}
	return nil
}

func (p *codeFlowProvider) tokenSet(tok *oauth2.Token) *TokenSet {
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	if ts.Scope == "" {
		// Platforms omit scope when everything requested was granted.
		ts.Scope = strings.Join(p.cfg.Scopes, " ")
	}
	return ts
}

// describeTokenError shortens a token endpoint failure to the platform's own message.
func describeTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	msg := re.ErrorCode
	if re.ErrorDescription != "" {
		msg += ": " + re.ErrorDescription
	}
	if msg == "" && re.Response != nil {
		msg = fmt.Sprintf("HTTP %d: %s", re.Response.StatusCode,
			summarizeBody(re.Response.Header.Get("Content-Type"), re.Body))
	}
	return fmt.Errorf("%w: %s", ErrPlatformUnavailable, msg)
}
