package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/statemachine"
)

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, f repositories.CampaignFilter) ([]*models.Campaign, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.CampaignState, pausedByUser bool) error
	UpdateDailyBudget(ctx context.Context, id uuid.UUID, budget float64) error
	MarkSoftLaunch(ctx context.Context, id uuid.UUID) error
}

type CampaignService struct {
	campaigns CampaignStore
	registry  *statemachine.Registry
	trail     trail
	log       *zap.Logger
}

func NewCampaignService(
	campaigns CampaignStore,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		registry:  registry,
		trail:     trail{recorder: recorder, log: log},
		log:       log,
	}
}

func (s *CampaignService) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f repositories.CampaignFilter) ([]*models.Campaign, error) {
	return s.campaigns.List(ctx, f)
}

// Pause stops delivery on behalf of the user. Automation never resumes a
// user-paused campaign.
func (s *CampaignService) Pause(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.Transition(ctx, id, statemachine.ActionUserPause, models.SourceUI)
}

func (s *CampaignService) Resume(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.Transition(ctx, id, statemachine.ActionUserResume, models.SourceUI)
}

func (s *CampaignService) Stop(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.Transition(ctx, id, statemachine.ActionStop, models.SourceUI)
}

// Transition applies a state-changing campaign action. Actions without a target
// state, such as budget changes, are rejected here; they go through automation.
func (s *CampaignService) Transition(ctx context.Context, id uuid.UUID, action string, source models.EventSource) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := change{
		entityType: models.EntityCampaign,
		entityID:   c.ID,
		projectID:  c.ProjectID,
		from:       string(c.State),
		action:     action,
		source:     source,
	}
	if err := s.registry.CheckAction(statemachine.KindCampaign, string(c.State), action); err != nil {
		s.trail.rejected(ctx, ch, err)
		return nil, err
	}
	target, ok := s.registry.Machine(statemachine.KindCampaign).TargetOf(action)
	if !ok {
		m := s.registry.Machine(statemachine.KindCampaign)
		err := &statemachine.TransitionError{
			Kind:              statemachine.KindCampaign,
			CurrentState:      string(c.State),
			Action:            action,
			AllowedActions:    m.AllowedActions(string(c.State)),
			AllowedNextStates: m.AllowedNextStates(string(c.State)),
		}
		s.trail.rejected(ctx, ch, err)
		return nil, err
	}
	to := models.CampaignState(target)
	ch.to = target

	pausedByUser := c.PausedByUser
	switch action {
	case statemachine.ActionUserPause:
		pausedByUser = true
	case statemachine.ActionUserResume:
		pausedByUser = false
	}

	if err := s.campaigns.UpdateState(ctx, c.ID, c.State, to, pausedByUser); err != nil {
		return nil, err
	}
	ch.meta = map[string]any{"paused_by_user": pausedByUser}
	s.trail.transitioned(ctx, ch)

	s.log.Info("campaign state changed",
		zap.String("campaign_id", c.ID.String()),
		zap.String("from", string(c.State)),
		zap.String("to", target),
		zap.String("action", action),
	)
	c.State = to
	c.PausedByUser = pausedByUser
	return c, nil
}
