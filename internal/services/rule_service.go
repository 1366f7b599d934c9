package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/statemachine"
)

// ErrInvalidCondition wraps compile failures of a rule's condition.
var ErrInvalidCondition = errors.New("invalid rule condition")

type RuleStore interface {
	Create(ctx context.Context, rule *models.AutomationRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ListActive(ctx context.Context, projectID uuid.UUID) ([]*models.AutomationRule, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.RuleState) error
}

type CooldownChecker interface {
	CheckRuleCooldown(ctx context.Context, ruleID uuid.UUID) (repositories.CooldownStatus, error)
}

type RuleService struct {
	rules      RuleStore
	cooldowns  CooldownChecker
	conditions *ConditionEvaluator
	registry   *statemachine.Registry
	trail      trail
	log        *zap.Logger
}

func NewRuleService(
	rules RuleStore,
	cooldowns CooldownChecker,
	conditions *ConditionEvaluator,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	log *zap.Logger,
) *RuleService {
	return &RuleService{
		rules:      rules,
		cooldowns:  cooldowns,
		conditions: conditions,
		registry:   registry,
		trail:      trail{recorder: recorder, log: log},
		log:        log,
	}
}

func (s *RuleService) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	return s.rules.GetByID(ctx, id)
}

// Create stores a new ACTIVE rule after checking its condition compiles.
func (s *RuleService) Create(ctx context.Context, rule *models.AutomationRule) error {
	if err := s.conditions.Compile(rule.Condition); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}
	rule.State = models.RuleStateActive
	if err := s.rules.Create(ctx, rule); err != nil {
		return err
	}
	s.trail.transitioned(ctx, change{
		entityType: models.EntityAutomationRule,
		entityID:   rule.ID,
		projectID:  rule.ProjectID,
		to:         string(rule.State),
		action:     "CREATE",
		source:     models.SourceUI,
		meta:       map[string]any{"action": string(rule.Action), "condition": rule.Condition},
	})
	return nil
}

func (s *RuleService) Enable(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	return s.move(ctx, id, statemachine.ActionEnableRule, models.RuleStateActive)
}

func (s *RuleService) Disable(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	return s.move(ctx, id, statemachine.ActionDisableRule, models.RuleStateDisabled)
}

func (s *RuleService) Cooldown(ctx context.Context, id uuid.UUID) (repositories.CooldownStatus, error) {
	return s.cooldowns.CheckRuleCooldown(ctx, id)
}

func (s *RuleService) move(ctx context.Context, id uuid.UUID, action string, to models.RuleState) (*models.AutomationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := change{
		entityType: models.EntityAutomationRule,
		entityID:   rule.ID,
		projectID:  rule.ProjectID,
		from:       string(rule.State),
		to:         string(to),
		action:     action,
		source:     models.SourceUI,
	}
	if err := s.registry.CheckAction(statemachine.KindAutomationRule, string(rule.State), action); err != nil {
		s.trail.rejected(ctx, c, err)
		return nil, err
	}
	if err := s.rules.UpdateState(ctx, rule.ID, rule.State, to); err != nil {
		return nil, err
	}
	s.trail.transitioned(ctx, c)
	rule.State = to
	return rule, nil
}
