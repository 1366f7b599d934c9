package guards

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/statemachine"
)

func intPtr(v int) *int { return &v }

func TestSetShortCircuits(t *testing.T) {
	calls := 0
	set := NewSet("test",
		Guard[int]{Name: "first", Check: func(int) Result { calls++; return Deny("A", "first failed") }},
		Guard[int]{Name: "second", Check: func(int) Result { calls++; return Deny("B", "second failed") }},
	)

	res := set.Evaluate(0)
	assert.False(t, res.Allowed)
	assert.Equal(t, "A", res.Code)
	assert.Equal(t, "first", res.Guard)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"first", "second"}, set.Names())
}

func TestAssetReadyGuard(t *testing.T) {
	google := models.PlatformGoogle
	tiktok := models.PlatformTikTok

	tests := []struct {
		name     string
		asset    models.Asset
		platform *models.Platform
		code     string
	}{
		{"approved low risk", models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(20)}, nil, ""},
		{"at threshold", models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(50)}, nil, ""},
		{"not approved", models.Asset{State: models.AssetStateAnalyzing}, nil, CodeAssetNotApproved},
		{"risk above threshold", models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(51)}, nil, CodeRiskTooHigh},
		{"no risk score yet", models.Asset{State: models.AssetStateApproved}, nil, ""},
		{"compatible platform", models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(10), PlatformCompatibility: []models.Platform{google}}, &google, ""},
		{"incompatible platform", models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(10), PlatformCompatibility: []models.Platform{google}}, &tiktok, CodePlatformIncompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := tt.asset
			res := AssetReady.Evaluate(AssetReadyContext{Asset: &asset, RiskThreshold: intPtr(50), TargetPlatform: tt.platform})
			if tt.code == "" {
				assert.True(t, res.Allowed, res.Reason)
				return
			}
			assert.False(t, res.Allowed)
			assert.Equal(t, tt.code, res.Code)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestAssetReadyAfterReanalysis(t *testing.T) {
	asset := &models.Asset{ID: uuid.New(), State: models.AssetStateBlocked, RiskScore: intPtr(85)}

	res := AssetReady.Evaluate(AssetReadyContext{Asset: asset, RiskThreshold: intPtr(50)})
	require.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "85")

	asset.State = models.AssetStateApproved
	asset.RiskScore = intPtr(20)

	res = AssetReady.Evaluate(AssetReadyContext{Asset: asset, RiskThreshold: intPtr(50)})
	assert.True(t, res.Allowed)
}

func TestAssetReadyRiskThresholdBounds(t *testing.T) {
	clean := &models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(0)}
	slight := &models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(1)}

	assert.True(t, AssetReady.Evaluate(AssetReadyContext{Asset: clean, RiskThreshold: intPtr(0)}).Allowed)
	res := AssetReady.Evaluate(AssetReadyContext{Asset: slight, RiskThreshold: intPtr(0)})
	assert.False(t, res.Allowed)
	assert.Equal(t, CodeRiskTooHigh, res.Code)

	assert.True(t, AssetReady.Evaluate(AssetReadyContext{Asset: slight}).Allowed, "unset threshold falls back to the default")
	over := &models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(DefaultRiskThreshold + 1)}
	assert.False(t, AssetReady.Evaluate(AssetReadyContext{Asset: over}).Allowed)
}

func TestRiskReasonMentionsScore(t *testing.T) {
	asset := &models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(85)}
	res := AssetReady.Evaluate(AssetReadyContext{Asset: asset})
	require.False(t, res.Allowed)
	assert.Equal(t, "risk score 85 exceeds threshold 50", res.Reason)
}

func publishFixture() PublishContext {
	accID := uuid.New()
	return PublishContext{
		Intent: &models.CampaignIntent{
			ID:                uuid.New(),
			AccountSelections: []models.AccountSelection{{ConnectionID: accID, Platform: models.PlatformGoogle}},
			Audience:          models.Audience{Countries: []string{"US"}, Languages: []string{"en"}},
			Objective:         models.ObjectiveConversions,
			State:             models.IntentStateValidating,
		},
		Assets: []*models.Asset{{
			ID:                    uuid.New(),
			State:                 models.AssetStateReadyForLaunch,
			PlatformCompatibility: []models.Platform{models.PlatformGoogle},
		}},
		Accounts: map[uuid.UUID]*models.AdAccountConnection{
			accID: {
				ID:          accID,
				Platform:    models.PlatformGoogle,
				State:       models.ConnectionStateFullAccess,
				Status:      models.ConnectionStatusActive,
				Permissions: models.Permissions{CanAnalyze: true, CanLaunch: true, CanOptimize: true},
			},
		},
	}
}

func TestPublishGuard(t *testing.T) {
	guard := NewPublishGuard(statemachine.NewRegistry(), nil)

	tests := []struct {
		name   string
		mutate func(*PublishContext)
		code   string
	}{
		{"valid", func(*PublishContext) {}, ""},
		{"no ready assets", func(c *PublishContext) { c.Assets[0].State = models.AssetStateApproved }, CodeNoReadyAssets},
		{"account limited without launch", func(c *PublishContext) {
			for _, a := range c.Accounts {
				a.State = models.ConnectionStateLimitedPermission
				a.Permissions = models.Permissions{CanAnalyze: true}
			}
		}, CodeAccountCannotLaunch},
		{"account revoked", func(c *PublishContext) {
			for _, a := range c.Accounts {
				a.Status = models.ConnectionStatusRevoked
			}
		}, CodeAccountCannotLaunch},
		{"missing account", func(c *PublishContext) { c.Accounts = nil }, CodeAccountCannotLaunch},
		{"no language", func(c *PublishContext) { c.Intent.Audience.Languages = nil }, CodeAudienceIncomplete},
		{"no country", func(c *PublishContext) { c.Intent.Audience.Countries = nil }, CodeAudienceIncomplete},
		{"traffic objective", func(c *PublishContext) { c.Intent.Objective = models.ObjectiveTraffic }, CodeUnsupportedObjective},
		{"no compatible asset", func(c *PublishContext) {
			c.Assets[0].PlatformCompatibility = []models.Platform{models.PlatformTikTok}
		}, CodeNoCompatibleAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := publishFixture()
			tt.mutate(&ctx)
			res := guard.Evaluate(ctx)
			if tt.code == "" {
				assert.True(t, res.Allowed, res.Reason)
				return
			}
			assert.False(t, res.Allowed)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestPublishGuardPlatformObjectiveTable(t *testing.T) {
	guard := NewPublishGuard(statemachine.NewRegistry(), map[models.Platform][]models.Objective{
		models.PlatformGoogle: {models.ObjectiveTraffic},
	})

	res := guard.Evaluate(publishFixture())
	assert.False(t, res.Allowed)
	assert.Equal(t, CodePlatformObjectiveUnsupported, res.Code)
}
