package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adpilot/backend/internal/models"
)

// GatewayClient talks to the internal platform gateway, the service that holds
// the per-network SDKs and performs campaign mutations, launches, account
// discovery and creative analysis.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

func NewGatewayClient(baseURL string, rps float64, log *zap.Logger) *GatewayClient {
	if rps <= 0 {
		rps = 10
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log,
	}
}

type executeRequest struct {
	CampaignID  string         `json:"campaign_id"`
	ExternalID  string         `json:"external_id"`
	Platform    string         `json:"platform"`
	Action      string         `json:"action"`
	Params      map[string]any `json:"params,omitempty"`
	NewBudget   *float64       `json:"new_budget,omitempty"`
	AccessToken string         `json:"access_token"`
}

// Execute performs one automation action on the campaign's platform.
func (c *GatewayClient) Execute(ctx context.Context, req ActionRequest) error {
	body := executeRequest{
		CampaignID:  req.Campaign.ID.String(),
		ExternalID:  req.Campaign.ExternalID,
		Platform:    string(req.Campaign.Platform),
		Action:      string(req.Action),
		Params:      req.Params,
		NewBudget:   req.NewBudget,
		AccessToken: req.AccessToken,
	}
	return c.post(ctx, "/internal/campaigns/actions", body, nil)
}

type launchRequest struct {
	IntentID    string          `json:"intent_id"`
	Platform    string          `json:"platform"`
	AccountIDs  []string        `json:"ad_account_ids"`
	Objective   string          `json:"objective"`
	DailyBudget float64         `json:"daily_budget"`
	Audience    models.Audience `json:"audience"`
	AssetIDs    []string        `json:"asset_ids"`
	AccessToken string          `json:"access_token"`
}

type launchResponse struct {
	ExternalID string `json:"external_id"`
}

// Launch creates the campaign on the account's platform and returns its platform id.
func (c *GatewayClient) Launch(ctx context.Context, req LaunchRequest) (string, error) {
	body := launchRequest{
		IntentID:    req.Intent.ID.String(),
		Platform:    string(req.Account.Platform),
		AccountIDs:  req.Account.AdAccountIDs,
		Objective:   string(req.Intent.Objective),
		DailyBudget: req.Intent.DailyBudget,
		Audience:    req.Intent.Audience,
		AccessToken: req.AccessToken,
	}
	for _, a := range req.Assets {
		body.AssetIDs = append(body.AssetIDs, a.ID.String())
	}

	var resp launchResponse
	if err := c.post(ctx, "/internal/campaigns/launch", body, &resp); err != nil {
		return "", err
	}
	if resp.ExternalID == "" {
		return "", fmt.Errorf("platform gateway returned no campaign id")
	}
	return resp.ExternalID, nil
}

// Discover lists the ad accounts the access token can manage.
func (c *GatewayClient) Discover(ctx context.Context, platform models.Platform, accessToken string) ([]string, error) {
	var resp struct {
		AccountIDs []string `json:"ad_account_ids"`
	}
	body := map[string]string{"platform": string(platform), "access_token": accessToken}
	if err := c.post(ctx, "/internal/accounts/discover", body, &resp); err != nil {
		return nil, err
	}
	return resp.AccountIDs, nil
}

// Submit queues an asset for creative analysis. The verdict is delivered back
// through the analysis callback endpoint.
func (c *GatewayClient) Submit(ctx context.Context, asset *models.Asset) error {
	body := map[string]string{
		"asset_id":   asset.ID.String(),
		"project_id": asset.ProjectID.String(),
		"type":       string(asset.Type),
	}
	return c.post(ctx, "/internal/assets/analyze", body, nil)
}

func (c *GatewayClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("platform gateway request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("platform gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
