package oauth

import (
	"golang.org/x/oauth2"

	"github.com/adpilot/backend/internal/models"
)

const (
	googleAuthURL   = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	googleRevokeURL = "https://oauth2.googleapis.com/revoke"

	googleAdsScope = "https://www.googleapis.com/auth/adwords"
)

func NewGoogleProvider(c ClientConfig) Provider {
	return &codeFlowProvider{
		platform: models.PlatformGoogle,
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{googleAdsScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(c.AuthURL, googleAuthURL),
				TokenURL:  orDefault(c.TokenURL, googleTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		// offline access plus forced consent so a refresh token is always issued
		authOpts: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
			oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		},
		revokeURL: orDefault(c.RevokeURL, googleRevokeURL),
		caps: capabilityScopes{
			googleAdsScope: {CanAnalyze: true, CanLaunch: true, CanOptimize: true},
		},
		http: newPlatformHTTP(c.RPS, 2, 0),
	}
}
