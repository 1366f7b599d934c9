package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adpilot/backend/internal/models"
)

const (
	tiktokAuthURL = "https://business-api.tiktok.com/portal/auth"
	tiktokAPIBase = "https://business-api.tiktok.com/open_api/v1.3"

	// permission ids as reported in the token response scope array
	tiktokScopeAdAccount      = "1"
	tiktokScopeAdsManagement  = "2"
	tiktokScopeReporting      = "4"
	tiktokScopeAudienceManage = "5"
)

// TikTokProvider speaks the Business API's own JSON token protocol. Tokens are
// long-lived and come back together with the authorized advertiser ids.
type TikTokProvider struct {
	appID       string
	secret      string
	redirectURL string
	authURL     string
	apiBase     string
	caps        capabilityScopes
	http        *platformHTTP
}

func NewTikTokProvider(c ClientConfig) *TikTokProvider {
	return &TikTokProvider{
		appID:       c.ClientID,
		secret:      c.ClientSecret,
		redirectURL: c.RedirectURL,
		authURL:     orDefault(c.AuthURL, tiktokAuthURL),
		apiBase:     strings.TrimRight(orDefault(c.TokenURL, tiktokAPIBase), "/"),
		caps: capabilityScopes{
			tiktokScopeAdAccount:      {CanAnalyze: true},
			tiktokScopeReporting:      {CanAnalyze: true},
			tiktokScopeAdsManagement:  {CanLaunch: true, CanOptimize: true},
			tiktokScopeAudienceManage: {CanOptimize: true},
		},
		http: newPlatformHTTP(c.RPS, 1, 0),
	}
}

func (p *TikTokProvider) Platform() models.Platform { return models.PlatformTikTok }

func (p *TikTokProvider) Scopes() []string {
	return []string{tiktokScopeAdAccount, tiktokScopeAdsManagement, tiktokScopeReporting}
}

func (p *TikTokProvider) AuthURL(state string) string {
	q := url.Values{
		"app_id":       {p.appID},
		"state":        {state},
		"redirect_uri": {p.redirectURL},
	}
	return p.authURL + "?" + q.Encode()
}

func (p *TikTokProvider) Permissions(granted []string) models.Permissions {
	return p.caps.permissions(granted)
}

type tiktokEnvelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type tiktokTokenData struct {
	AccessToken   string   `json:"access_token"`
	AdvertiserIDs []string `json:"advertiser_ids"`
	Scope         []any    `json:"scope"`
}

func (p *TikTokProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	var data tiktokTokenData
	err := p.call(ctx, "/oauth2/access_token/", map[string]string{
		"app_id":    p.appID,
		"secret":    p.secret,
		"auth_code": code,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("tiktok code exchange: %w", err)
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("tiktok code exchange: %w: empty access token", ErrPlatformUnavailable)
	}

	scopes := make([]string, 0, len(data.Scope))
	for _, s := range data.Scope {
		scopes = append(scopes, fmt.Sprint(s))
	}
	return &TokenSet{
		AccessToken:   data.AccessToken,
		TokenType:     "Bearer",
		Scope:         strings.Join(scopes, " "),
		AdvertiserIDs: data.AdvertiserIDs,
	}, nil
}

func (p *TikTokProvider) RefreshToken(context.Context, string) (*TokenSet, error) {
	return nil, ErrRefreshUnsupported
}

func (p *TikTokProvider) RevokeToken(ctx context.Context, token string) error {
	err := p.call(ctx, "/oauth2/revoke_token/", map[string]string{
		"app_id":       p.appID,
		"secret":       p.secret,
		"access_token": token,
	}, nil)
	if err != nil {
		return fmt.Errorf("tiktok revoke: %w", err)
	}
	return nil
}

func (p *TikTokProvider) call(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := p.http.Do(req)
	if err != nil {
		return err
	}
	var env tiktokEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrPlatformUnavailable, err)
	}
	// the Business API reports failures with HTTP 200 and a non-zero code
	if env.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrPlatformUnavailable, env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode data: %v", ErrPlatformUnavailable, err)
		}
	}
	return nil
}
