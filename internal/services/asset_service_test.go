package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/guards"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/statemachine"
)

func newAssetService(t *testing.T, assets ...*models.Asset) (*AssetService, *fakeAssets, *fakeAnalyzer, *audit.Memory) {
	t.Helper()
	store := newFakeAssets(assets...)
	analyzer := &fakeAnalyzer{}
	rec := &audit.Memory{}
	svc := NewAssetService(store, analyzer, statemachine.NewRegistry(), rec, guards.DefaultRiskThreshold, zap.NewNop())
	return svc, store, analyzer, rec
}

func TestAssetBlockedThenReanalyzedToReady(t *testing.T) {
	ctx := context.Background()
	asset := &models.Asset{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Type:      models.AssetTypeVideo,
		State:     models.AssetStateAnalyzing,
	}
	svc, store, analyzer, rec := newAssetService(t, asset)

	// first verdict: rejected with a high risk score
	blocked, err := svc.ApplyAnalysis(ctx, asset.ID, models.AnalysisResult{
		Approved:  false,
		RiskScore: intPtr(85),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateBlocked, blocked.State)

	_, err = svc.MarkReady(ctx, asset.ID, nil, models.SourceUI)
	var ge *GuardError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, guards.CodeAssetNotApproved, ge.Code)
	assert.Contains(t, ge.Reason, "85")
	assert.Equal(t, models.AssetStateBlocked, store.state(asset.ID))

	blockedEvents := rec.OfType(models.EventGuardBlocked)
	require.Len(t, blockedEvents, 1)
	assert.Contains(t, *blockedEvents[0].Reason, "85")

	// re-analysis after the creative was fixed
	_, err = svc.StartAnalysis(ctx, asset.ID, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateAnalyzing, store.state(asset.ID))
	assert.Equal(t, []uuid.UUID{asset.ID}, analyzer.submitted)

	approved, err := svc.ApplyAnalysis(ctx, asset.ID, models.AnalysisResult{
		Approved:              true,
		RiskScore:             intPtr(20),
		QualityScore:          intPtr(90),
		PlatformCompatibility: []models.Platform{models.PlatformGoogle, models.PlatformTikTok},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateApproved, approved.State)

	google := models.PlatformGoogle
	ready, err := svc.MarkReady(ctx, asset.ID, &google, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateReadyForLaunch, ready.State)
	assert.Equal(t, models.AssetStateReadyForLaunch, store.state(asset.ID))

	var path []string
	for _, e := range rec.OfType(models.EventStateTransition) {
		path = append(path, *e.NewState)
	}
	assert.Equal(t, []string{"BLOCKED", "ANALYZING", "APPROVED", "READY_FOR_LAUNCH"}, path)
}

func TestMarkReadyZeroRiskThreshold(t *testing.T) {
	ctx := context.Background()
	clean := &models.Asset{ID: uuid.New(), State: models.AssetStateApproved, RiskScore: intPtr(0)}
	slight := &models.Asset{ID: uuid.New(), State: models.AssetStateApproved, RiskScore: intPtr(5)}
	store := newFakeAssets(clean, slight)
	svc := NewAssetService(store, &fakeAnalyzer{}, statemachine.NewRegistry(), &audit.Memory{}, 0, zap.NewNop())

	ready, err := svc.MarkReady(ctx, clean.ID, nil, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateReadyForLaunch, ready.State)

	_, err = svc.MarkReady(ctx, slight.ID, nil, models.SourceUI)
	var ge *GuardError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, guards.CodeRiskTooHigh, ge.Code)
	assert.Equal(t, models.AssetStateApproved, store.state(slight.ID))
}

func TestMarkReadyGuards(t *testing.T) {
	snap := models.PlatformSnapchat
	tests := []struct {
		name     string
		asset    models.Asset
		platform *models.Platform
		code     string
	}{
		{
			name:  "not approved",
			asset: models.Asset{State: models.AssetStateUploaded},
			code:  guards.CodeAssetNotApproved,
		},
		{
			name:  "risk above threshold",
			asset: models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(51)},
			code:  guards.CodeRiskTooHigh,
		},
		{
			name:     "incompatible platform",
			asset:    models.Asset{State: models.AssetStateApproved, RiskScore: intPtr(10), PlatformCompatibility: []models.Platform{models.PlatformGoogle}},
			platform: &snap,
			code:     guards.CodePlatformIncompatible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.asset
			a.ID = uuid.New()
			svc, store, _, rec := newAssetService(t, &a)

			_, err := svc.MarkReady(context.Background(), a.ID, tt.platform, models.SourceUI)
			var ge *GuardError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.code, ge.Code)
			assert.Equal(t, tt.asset.State, store.state(a.ID))
			assert.Len(t, rec.OfType(models.EventGuardBlocked), 1)
			assert.Empty(t, rec.OfType(models.EventStateTransition))
		})
	}
}

func TestAssetInvalidActionIsRecorded(t *testing.T) {
	a := &models.Asset{ID: uuid.New(), State: models.AssetStateReadyForLaunch}
	svc, _, _, rec := newAssetService(t, a)

	_, err := svc.ApplyAnalysis(context.Background(), a.ID, models.AnalysisResult{Approved: true})
	require.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	events := rec.OfType(models.EventGuardBlocked)
	require.Len(t, events, 1)
	assert.Equal(t, "INVALID_TRANSITION", events[0].Metadata["skip_reason"])
	assert.NotNil(t, events[0].Metadata["allowed_actions"])
}

func TestStartAnalysisResubmitsWithoutTransition(t *testing.T) {
	a := &models.Asset{ID: uuid.New(), State: models.AssetStateAnalyzing}
	svc, _, analyzer, rec := newAssetService(t, a)

	_, err := svc.StartAnalysis(context.Background(), a.ID, models.SourceSystem)
	require.NoError(t, err)
	assert.Len(t, analyzer.submitted, 1)
	assert.Empty(t, rec.Events)
}

func TestUnmarkReady(t *testing.T) {
	a := &models.Asset{ID: uuid.New(), State: models.AssetStateReadyForLaunch}
	svc, store, _, _ := newAssetService(t, a)

	_, err := svc.UnmarkReady(context.Background(), a.ID, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateApproved, store.state(a.ID))
}

func TestRegisterStartsUploaded(t *testing.T) {
	svc, store, _, rec := newAssetService(t)
	project := uuid.New()

	asset, err := svc.Register(context.Background(), project, models.AssetTypeImage, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateUploaded, store.state(asset.ID))
	assert.Equal(t, project, asset.ProjectID)

	events := rec.OfType(models.EventStateTransition)
	require.Len(t, events, 1)
	assert.Equal(t, models.EntityAsset, events[0].EntityType)
	assert.Equal(t, string(models.AssetStateUploaded), *events[0].NewState)

	// the upload is followed by analysis
	_, err = svc.StartAnalysis(context.Background(), asset.ID, models.SourceUI)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStateAnalyzing, store.state(asset.ID))
}
