package oauth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
)

type fakeNonces struct {
	mu        sync.Mutex
	states    map[string]*models.OAuthState
	createErr error
}

func newFakeNonces() *fakeNonces {
	return &fakeNonces{states: make(map[string]*models.OAuthState)}
}

func (f *fakeNonces) Create(_ context.Context, userID, projectID uuid.UUID, platform models.Platform, ttl time.Duration) (*models.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	now := time.Now()
	s := &models.OAuthState{
		Nonce:     uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Platform:  platform,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	f.states[s.Nonce] = s
	return s, nil
}

func (f *fakeNonces) Consume(_ context.Context, nonce string) (*models.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[nonce]
	if !ok || s.Used || !s.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("consume oauth state: %w", repositories.ErrNotFound)
	}
	s.Used = true
	cp := *s
	return &cp, nil
}

type fakeConns struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*models.AdAccountConnection
	saved       int
	disconnects int
	activateErr error
}

func newFakeConns() *fakeConns {
	return &fakeConns{byID: make(map[uuid.UUID]*models.AdAccountConnection)}
}

func (f *fakeConns) put(c *models.AdAccountConnection) *models.AdAccountConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byID[c.ID] = c
	return c
}

func (f *fakeConns) get(id uuid.UUID) *models.AdAccountConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.byID[id]
	return &cp
}

func (f *fakeConns) CreatePending(_ context.Context, c *models.AdAccountConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.UserID == c.UserID && existing.ProjectID == c.ProjectID &&
			existing.Platform == c.Platform && existing.State == models.ConnectionStateConnecting {
			c.ID = existing.ID
			c.State = existing.State
			c.Status = existing.Status
			return nil
		}
	}
	c.ID = uuid.New()
	c.State = models.ConnectionStateConnecting
	c.Status = models.ConnectionStatusActive
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConns) GetByID(_ context.Context, id uuid.UUID) (*models.AdAccountConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("get connection: %w", repositories.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConns) FindPending(_ context.Context, userID, projectID uuid.UUID, platform models.Platform) (*models.AdAccountConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.UserID == userID && c.ProjectID == projectID && c.Platform == platform && c.State == models.ConnectionStateConnecting {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find pending connection: %w", repositories.ErrNotFound)
}

func (f *fakeConns) ListExpiring(_ context.Context, before time.Time, limit int) ([]*models.AdAccountConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AdAccountConnection
	for _, c := range f.byID {
		if c.IsUsable() && c.TokenExpiresAt != nil && !c.TokenExpiresAt.After(before) {
			cp := *c
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConns) Activate(_ context.Context, c *models.AdAccountConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activateErr != nil {
		return f.activateErr
	}
	cur, ok := f.byID[c.ID]
	if !ok || cur.State != models.ConnectionStateConnecting {
		return repositories.ErrStateChanged
	}
	cp := *c
	cp.Status = models.ConnectionStatusActive
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeConns) MarkFailed(_ context.Context, id uuid.UUID, status models.ConnectionStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.State = models.ConnectionStateDisconnected
	c.Status = status
	c.LastError = &reason
	return nil
}

func (f *fakeConns) SetStatus(_ context.Context, id uuid.UUID, status models.ConnectionStatus, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.Status = status
	c.LastError = reason
	return nil
}

func (f *fakeConns) SaveTokens(_ context.Context, id uuid.UUID, accessEnc, refreshEnc string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.EncryptedAccessToken = accessEnc
	c.EncryptedRefreshToken = refreshEnc
	c.TokenExpiresAt = expiresAt
	c.Status = models.ConnectionStatusActive
	f.saved++
	return nil
}

func (f *fakeConns) UpdatePermissions(_ context.Context, id uuid.UUID, from, to models.ConnectionState, perms models.Permissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	if c.State != from {
		return repositories.ErrStateChanged
	}
	c.State = to
	c.Permissions = perms
	return nil
}

func (f *fakeConns) Disconnect(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	c := f.byID[id]
	c.State = models.ConnectionStateDisconnected
	c.Status = models.ConnectionStatusRevoked
	c.EncryptedAccessToken = ""
	c.EncryptedRefreshToken = ""
	c.TokenExpiresAt = nil
	return nil
}

type fakeProvider struct {
	platform  models.Platform
	exchange  func(code string) (*TokenSet, error)
	refresh   func(token string) (*TokenSet, error)
	revokeErr error
	revoked   []string
	refreshes int
}

func (p *fakeProvider) Platform() models.Platform { return p.platform }
func (p *fakeProvider) Scopes() []string          { return []string{"ads"} }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://auth.example.com/consent?" + url.Values{"state": {state}}.Encode()
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*TokenSet, error) {
	return p.exchange(code)
}

func (p *fakeProvider) RefreshToken(_ context.Context, token string) (*TokenSet, error) {
	p.refreshes++
	return p.refresh(token)
}

func (p *fakeProvider) RevokeToken(_ context.Context, token string) error {
	p.revoked = append(p.revoked, token)
	return p.revokeErr
}

func (p *fakeProvider) Permissions(granted []string) models.Permissions {
	return capabilityScopes{
		"ads":     {CanAnalyze: true, CanLaunch: true, CanOptimize: true},
		"launch":  {CanAnalyze: true, CanLaunch: true},
		"reports": {CanAnalyze: true},
	}.permissions(granted)
}

type fakeDiscoverer struct {
	accounts []string
	err      error
}

func (d *fakeDiscoverer) Discover(context.Context, models.Platform, string) ([]string, error) {
	return d.accounts, d.err
}
