package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/guards"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/statemachine"
)

type AssetStore interface {
	Create(ctx context.Context, a *models.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Asset, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.AssetState) error
	ApplyAnalysis(ctx context.Context, id uuid.UUID, from, to models.AssetState, res models.AnalysisResult) error
}

// AssetAnalyzer submits an asset to the creative-compliance analyzer. The
// verdict arrives later through AssetService.ApplyAnalysis.
type AssetAnalyzer interface {
	Submit(ctx context.Context, asset *models.Asset) error
}

type AssetService struct {
	assets        AssetStore
	analyzer      AssetAnalyzer
	registry      *statemachine.Registry
	trail         trail
	riskThreshold int
	log           *zap.Logger
}

func NewAssetService(
	assets AssetStore,
	analyzer AssetAnalyzer,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	riskThreshold int,
	log *zap.Logger,
) *AssetService {
	if riskThreshold < 0 || riskThreshold > 100 {
		riskThreshold = guards.DefaultRiskThreshold
	}
	return &AssetService{
		assets:        assets,
		analyzer:      analyzer,
		registry:      registry,
		trail:         trail{recorder: recorder, log: log},
		riskThreshold: riskThreshold,
		log:           log,
	}
}

func (s *AssetService) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return s.assets.GetByID(ctx, id)
}

// Register stores a freshly uploaded asset in UPLOADED. Platform
// compatibility stays empty until the analyzer reports.
func (s *AssetService) Register(ctx context.Context, projectID uuid.UUID, typ models.AssetType, source models.EventSource) (*models.Asset, error) {
	asset := &models.Asset{
		ProjectID: projectID,
		Type:      typ,
		State:     models.AssetStateUploaded,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, err
	}

	s.trail.transitioned(ctx, change{
		entityType: models.EntityAsset,
		entityID:   asset.ID,
		projectID:  projectID,
		to:         string(models.AssetStateUploaded),
		action:     "UPLOAD",
		source:     source,
		meta:       map[string]any{"type": typ},
	})
	return asset, nil
}

// StartAnalysis sends an uploaded asset, or a blocked or approved one for
// re-analysis, to the analyzer. An asset already ANALYZING is resubmitted
// without a state change.

func (s *AssetService) StartAnalysis(ctx context.Context, assetID uuid.UUID, source models.EventSource) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if asset.State != models.AssetStateAnalyzing {
		action := statemachine.ActionReanalyze
		if asset.State == models.AssetStateUploaded {
			action = statemachine.ActionAnalyze
		}
		if err := s.move(ctx, asset, action, models.AssetStateAnalyzing, source, nil); err != nil {
			return nil, err
		}
	}

	if s.analyzer != nil {
		if err := s.analyzer.Submit(ctx, asset); err != nil {
			s.log.Error("failed to submit asset for analysis", zap.String("asset_id", asset.ID.String()), zap.Error(err))
			return asset, fmt.Errorf("submit asset for analysis: %w", err)
		}
	}
	return asset, nil
}

// ApplyAnalysis records the analyzer verdict and moves the asset to APPROVED or BLOCKED.
func (s *AssetService) ApplyAnalysis(ctx context.Context, assetID uuid.UUID, res models.AnalysisResult) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	action, target := statemachine.ActionBlock, models.AssetStateBlocked
	if res.Approved {
		action, target = statemachine.ActionApprove, models.AssetStateApproved
	}
	c := change{
		entityType: models.EntityAsset,
		entityID:   asset.ID,
		projectID:  asset.ProjectID,
		from:       string(asset.State),
		to:         string(target),
		action:     action,
		source:     models.SourceAI,
		meta:       map[string]any{},
	}
	if res.RiskScore != nil {
		c.meta["risk_score"] = *res.RiskScore
	}
	if res.QualityScore != nil {
		c.meta["quality_score"] = *res.QualityScore
	}

	if err := s.registry.CheckAction(statemachine.KindAsset, string(asset.State), action); err != nil {
		s.trail.rejected(ctx, c, err)
		return nil, err
	}
	if err := s.assets.ApplyAnalysis(ctx, asset.ID, asset.State, target, res); err != nil {
		return nil, err
	}
	s.trail.transitioned(ctx, c)

	asset.State = target
	asset.RiskScore = res.RiskScore
	asset.QualityScore = res.QualityScore
	asset.PlatformCompatibility = res.PlatformCompatibility
	return asset, nil
}

// MarkReady runs the asset-ready guard and moves an approved asset to
// READY_FOR_LAUNCH. platform, when set, must be in the asset's compatibility list.
func (s *AssetService) MarkReady(ctx context.Context, assetID uuid.UUID, platform *models.Platform, source models.EventSource) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	res := guards.AssetReady.Evaluate(guards.AssetReadyContext{
		Asset:          asset,
		RiskThreshold:  &s.riskThreshold,
		TargetPlatform: platform,
	})
	if !res.Allowed {
		c := change{
			entityType: models.EntityAsset,
			entityID:   asset.ID,
			projectID:  asset.ProjectID,
			from:       string(asset.State),
			action:     statemachine.ActionMarkReady,
			source:     source,
			meta:       map[string]any{},
		}
		if asset.RiskScore != nil {
			c.meta["risk_score"] = *asset.RiskScore
		}
		s.trail.blocked(ctx, c, res)
		return nil, guardError(res)
	}

	if err := s.move(ctx, asset, statemachine.ActionMarkReady, models.AssetStateReadyForLaunch, source, nil); err != nil {
		return nil, err
	}
	return asset, nil
}

// UnmarkReady returns a ready asset to APPROVED.
func (s *AssetService) UnmarkReady(ctx context.Context, assetID uuid.UUID, source models.EventSource) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err := s.move(ctx, asset, statemachine.ActionUnmarkReady, models.AssetStateApproved, source, nil); err != nil {
		return nil, err
	}
	return asset, nil
}

// move checks action against the registry, applies the conditional update and
// records the transition. asset.State is updated in place on success.
func (s *AssetService) move(ctx context.Context, asset *models.Asset, action string, to models.AssetState, source models.EventSource, meta map[string]any) error {
	c := change{
		entityType: models.EntityAsset,
		entityID:   asset.ID,
		projectID:  asset.ProjectID,
		from:       string(asset.State),
		to:         string(to),
		action:     action,
		source:     source,
		meta:       meta,
	}
	if err := s.registry.CheckAction(statemachine.KindAsset, string(asset.State), action); err != nil {
		s.trail.rejected(ctx, c, err)
		return err
	}
	if err := s.assets.UpdateState(ctx, asset.ID, asset.State, to); err != nil {
		return err
	}
	s.trail.transitioned(ctx, c)
	asset.State = to
	return nil
}
