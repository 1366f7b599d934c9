package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/services"
)

type RuleHandler struct {
	ruleService *services.RuleService
	log         *zap.Logger
}

func NewRuleHandler(ruleService *services.RuleService, log *zap.Logger) *RuleHandler {
	return &RuleHandler{ruleService: ruleService, log: log}
}

func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.CreateRuleRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	rule := &models.AutomationRule{
		ProjectID:       middleware.GetProjectID(c),
		UserID:          middleware.GetUserID(c),
		Name:            req.Name,
		Condition:       req.Condition,
		Action:          models.ActionType(req.Action),
		ActionParams:    req.ActionParams,
		CooldownMinutes: req.CooldownMinutes,
	}
	for _, raw := range req.CampaignIDs {
		rule.CampaignIDs = append(rule.CampaignIDs, uuid.MustParse(raw))
	}

	if err := h.ruleService.Create(c.Context(), rule); err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: rule})
}

func (h *RuleHandler) Enable(c *fiber.Ctx) error {
	rule, err := h.load(c)
	if err != nil || rule == nil {
		return err
	}
	rule, err = h.ruleService.Enable(c.Context(), rule.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rule})
}

func (h *RuleHandler) Disable(c *fiber.Ctx) error {
	rule, err := h.load(c)
	if err != nil || rule == nil {
		return err
	}
	rule, err = h.ruleService.Disable(c.Context(), rule.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rule})
}

func (h *RuleHandler) Cooldown(c *fiber.Ctx) error {
	rule, err := h.load(c)
	if err != nil || rule == nil {
		return err
	}
	status, err := h.ruleService.Cooldown(c.Context(), rule.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: status})
}

func (h *RuleHandler) load(c *fiber.Ctx) (*models.AutomationRule, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, badRequest(c, "invalid rule id")
	}
	rule, err := h.ruleService.GetByID(c.Context(), id)
	if err != nil {
		return nil, respondError(c, h.log, err)
	}
	if notInProject(c, rule.ProjectID) {
		return nil, notFound(c, "rule")
	}
	return rule, nil
}
