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

type IntentStore interface {
	Create(ctx context.Context, i *models.CampaignIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CampaignIntent, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.IntentState, lastError *string) error
}

type ConnectionLister interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.AdAccountConnection, error)
}

type CampaignCreator interface {
	Create(ctx context.Context, c *models.Campaign) error
}

// CampaignLauncher creates the campaign on one ad platform and returns the
// platform's campaign id.
type CampaignLauncher interface {
	Launch(ctx context.Context, req LaunchRequest) (string, error)
}

type LaunchRequest struct {
	Intent      *models.CampaignIntent
	Account     *models.AdAccountConnection
	Assets      []*models.Asset
	AccessToken string
}

type PublishResult struct {
	Intent    *models.CampaignIntent `json:"intent"`
	Campaigns []*models.Campaign     `json:"campaigns"`
}

type IntentService struct {
	intents   IntentStore
	assets    AssetStore
	accounts  ConnectionLister
	campaigns CampaignCreator
	launcher  CampaignLauncher
	tokens    TokenSource
	registry  *statemachine.Registry
	publish   *guards.Set[guards.PublishContext]
	trail     trail
	log       *zap.Logger
}

func NewIntentService(
	intents IntentStore,
	assets AssetStore,
	accounts ConnectionLister,
	campaigns CampaignCreator,
	launcher CampaignLauncher,
	tokens TokenSource,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	log *zap.Logger,
) *IntentService {
	return &IntentService{
		intents:   intents,
		assets:    assets,
		accounts:  accounts,
		campaigns: campaigns,
		launcher:  launcher,
		tokens:    tokens,
		registry:  registry,
		publish:   guards.NewPublishGuard(registry, nil),
		trail:     trail{recorder: recorder, log: log},
		log:       log,
	}
}

func (s *IntentService) GetByID(ctx context.Context, id uuid.UUID) (*models.CampaignIntent, error) {
	return s.intents.GetByID(ctx, id)
}

// CreateDraft stores a new intent in DRAFT. Assets, accounts and budget are
// only checked by the publish guard on Validate.
func (s *IntentService) CreateDraft(ctx context.Context, intent *models.CampaignIntent, source models.EventSource) (*models.CampaignIntent, error) {
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, err
	}
	c := s.change(intent, "CREATE", string(models.IntentStateDraft), source)
	c.from = ""
	s.trail.transitioned(ctx, c)
	return intent, nil
}

// Validate runs the publish guard on a draft. The intent passes through
// VALIDATING and lands in READY_TO_PUBLISH, or back in DRAFT with the
// rejection stored as its last error.
func (s *IntentService) Validate(ctx context.Context, intentID uuid.UUID, source models.EventSource) (*models.CampaignIntent, error) {
	intent, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, intent, source); err != nil {
		return intent, err
	}
	return intent, nil
}

func (s *IntentService) validate(ctx context.Context, intent *models.CampaignIntent, source models.EventSource) error {
	if err := s.move(ctx, intent, statemachine.ActionValidate, models.IntentStateValidating, nil, source); err != nil {
		return err
	}

	pc, err := s.publishContext(ctx, intent)
	if err != nil {
		// back to DRAFT so the intent is not stranded in VALIDATING
		msg := "validation aborted: " + err.Error()
		if merr := s.move(ctx, intent, "", models.IntentStateDraft, &msg, models.SourceSystem); merr != nil {
			s.log.Error("failed to return intent to draft", zap.String("intent_id", intent.ID.String()), zap.Error(merr))
		}
		return err
	}

	if res := s.publish.Evaluate(pc); !res.Allowed {
		s.trail.blocked(ctx, s.change(intent, statemachine.ActionValidate, "", source), res)
		if err := s.move(ctx, intent, "", models.IntentStateDraft, &res.Reason, models.SourceSystem); err != nil {
			return err
		}
		return guardError(res)
	}
	return s.move(ctx, intent, "", models.IntentStateReadyToPublish, nil, models.SourceSystem)
}

// Publish validates a draft if needed, re-checks the publish guard and
// launches one campaign per selected account. Any launcher failure moves the
// intent to FAILED; it can be retried from there.
func (s *IntentService) Publish(ctx context.Context, intentID uuid.UUID, source models.EventSource) (*PublishResult, error) {
	intent, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	result := &PublishResult{Intent: intent}

	if intent.State == models.IntentStateDraft {
		if err := s.validate(ctx, intent, source); err != nil {
			return result, err
		}
	}

	action := statemachine.ActionPublish
	if intent.State == models.IntentStateFailed {
		action = statemachine.ActionRetry
	}
	if err := s.registry.CheckAction(statemachine.KindCampaignIntent, string(intent.State), action); err != nil {
		s.trail.rejected(ctx, s.change(intent, action, "", source), err)
		return result, err
	}

	// accounts and assets can change between validation and publish
	pc, err := s.publishContext(ctx, intent)
	if err != nil {
		return result, err
	}
	if res := s.publish.Evaluate(pc); !res.Allowed {
		s.trail.blocked(ctx, s.change(intent, action, "", source), res)
		if err := s.move(ctx, intent, "", models.IntentStateDraft, &res.Reason, models.SourceSystem); err != nil {
			return result, err
		}
		return result, guardError(res)
	}

	if err := s.move(ctx, intent, action, models.IntentStatePublishing, nil, source); err != nil {
		return result, err
	}

	ready := readyAssets(pc.Assets)
	for _, sel := range intent.AccountSelections {
		acc := pc.Accounts[sel.ConnectionID]
		campaign, err := s.launchOne(ctx, intent, acc, compatibleAssets(ready, acc.Platform))
		if err != nil {
			msg := err.Error()
			if merr := s.move(ctx, intent, "", models.IntentStateFailed, &msg, models.SourceSystem); merr != nil {
				return result, merr
			}
			return result, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, acc.Platform, err)
		}
		result.Campaigns = append(result.Campaigns, campaign)
	}

	if err := s.move(ctx, intent, "", models.IntentStateLaunched, nil, models.SourceSystem); err != nil {
		return result, err
	}
	for _, a := range ready {
		s.markUsed(ctx, a)
	}
	return result, nil
}

func (s *IntentService) launchOne(ctx context.Context, intent *models.CampaignIntent, acc *models.AdAccountConnection, assets []*models.Asset) (*models.Campaign, error) {
	token := ""
	if s.tokens != nil {
		t, err := s.tokens.GetAccessToken(ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		token = t
	}
	externalID, err := s.launcher.Launch(ctx, LaunchRequest{Intent: intent, Account: acc, Assets: assets, AccessToken: token})
	if err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		ProjectID:   intent.ProjectID,
		IntentID:    intent.ID,
		AccountID:   acc.ID,
		Platform:    acc.Platform,
		ExternalID:  externalID,
		DailyBudget: intent.DailyBudget,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	s.trail.transitioned(ctx, change{
		entityType: models.EntityCampaign,
		entityID:   campaign.ID,
		projectID:  campaign.ProjectID,
		to:         string(models.CampaignStateActive),
		action:     statemachine.ActionLaunch,
		source:     models.SourceSystem,
		meta:       map[string]any{"intent_id": intent.ID.String(), "external_id": externalID, "platform": string(acc.Platform)},
	})
	return campaign, nil
}

func (s *IntentService) markUsed(ctx context.Context, a *models.Asset) {
	c := change{
		entityType: models.EntityAsset,
		entityID:   a.ID,
		projectID:  a.ProjectID,
		from:       string(a.State),
		to:         string(models.AssetStateUsedInCampaign),
		action:     statemachine.ActionUseInCampaign,
		source:     models.SourceSystem,
	}
	if err := s.registry.CheckAction(statemachine.KindAsset, string(a.State), statemachine.ActionUseInCampaign); err != nil {
		s.trail.rejected(ctx, c, err)
		return
	}
	if err := s.assets.UpdateState(ctx, a.ID, a.State, models.AssetStateUsedInCampaign); err != nil {
		s.log.Warn("failed to mark asset used", zap.String("asset_id", a.ID.String()), zap.Error(err))
		return
	}
	s.trail.transitioned(ctx, c)
	a.State = models.AssetStateUsedInCampaign
}

func (s *IntentService) publishContext(ctx context.Context, intent *models.CampaignIntent) (guards.PublishContext, error) {
	pc := guards.PublishContext{Intent: intent, Accounts: map[uuid.UUID]*models.AdAccountConnection{}}

	if len(intent.AssetIDs) > 0 {
		assets, err := s.assets.ListByIDs(ctx, intent.AssetIDs)
		if err != nil {
			return pc, err
		}
		pc.Assets = assets
	}

	ids := make([]uuid.UUID, 0, len(intent.AccountSelections))
	for _, sel := range intent.AccountSelections {
		ids = append(ids, sel.ConnectionID)
	}
	if len(ids) > 0 {
		accounts, err := s.accounts.ListByIDs(ctx, ids)
		if err != nil {
			return pc, err
		}
		for _, a := range accounts {
			pc.Accounts[a.ID] = a
		}
	}
	return pc, nil
}

// move changes the intent state. An empty action means a system-driven step
// checked against the transition table instead of the action list.
func (s *IntentService) move(ctx context.Context, intent *models.CampaignIntent, action string, to models.IntentState, lastError *string, source models.EventSource) error {
	c := s.change(intent, action, string(to), source)
	if lastError != nil {
		c.meta = map[string]any{"last_error": *lastError}
	}

	var err error
	if action != "" {
		err = s.registry.CheckAction(statemachine.KindCampaignIntent, string(intent.State), action)
	} else {
		err = s.registry.CheckTransition(statemachine.KindCampaignIntent, string(intent.State), string(to))
	}
	if err != nil {
		s.trail.rejected(ctx, c, err)
		return err
	}

	if err := s.intents.UpdateState(ctx, intent.ID, intent.State, to, lastError); err != nil {
		return err
	}
	s.trail.transitioned(ctx, c)
	intent.State = to
	intent.LastError = lastError
	return nil
}

func (s *IntentService) change(intent *models.CampaignIntent, action, to string, source models.EventSource) change {
	return change{
		entityType: models.EntityCampaignIntent,
		entityID:   intent.ID,
		projectID:  intent.ProjectID,
		from:       string(intent.State),
		to:         to,
		action:     action,
		source:     source,
	}
}

func readyAssets(assets []*models.Asset) []*models.Asset {
	var out []*models.Asset
	for _, a := range assets {
		if a.State == models.AssetStateReadyForLaunch {
			out = append(out, a)
		}
	}
	return out
}

func compatibleAssets(assets []*models.Asset, p models.Platform) []*models.Asset {
	var out []*models.Asset
	for _, a := range assets {
		if a.IsCompatibleWith(p) {
			out = append(out, a)
		}
	}
	return out
}
