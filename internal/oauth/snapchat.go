package oauth

import (
	"golang.org/x/oauth2"

	"github.com/adpilot/backend/internal/models"
)

const (
	snapchatAuthURL   = "https://accounts.snapchat.com/login/oauth2/authorize"
	snapchatTokenURL  = "https://accounts.snapchat.com/login/oauth2/access_token"
	snapchatRevokeURL = "https://accounts.snapchat.com/login/oauth2/revoke_token"

	snapchatMarketingScope = "snapchat-marketing-api"
	snapchatProfileScope   = "snapchat-profile-api"
)

func NewSnapchatProvider(c ClientConfig) Provider {
	return &codeFlowProvider{
		platform: models.PlatformSnapchat,
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{snapchatMarketingScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(c.AuthURL, snapchatAuthURL),
				TokenURL:  orDefault(c.TokenURL, snapchatTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		revokeURL: orDefault(c.RevokeURL, snapchatRevokeURL),
		caps: capabilityScopes{
			snapchatMarketingScope: {CanAnalyze: true, CanLaunch: true, CanOptimize: true},
			snapchatProfileScope:   {CanAnalyze: true},
		},
		http: newPlatformHTTP(c.RPS, 2, 0),
	}
}
