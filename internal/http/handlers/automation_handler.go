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

type AutomationHandler struct {
	automationService *services.AutomationService
	campaignService   *services.CampaignService
	log               *zap.Logger
}

func NewAutomationHandler(automationService *services.AutomationService, campaignService *services.CampaignService, log *zap.Logger) *AutomationHandler {
	return &AutomationHandler{automationService: automationService, campaignService: campaignService, log: log}
}

// Evaluate returns the safety decision for a prospective action without
// executing it or touching any counter.
func (h *AutomationHandler) Evaluate(c *fiber.Ctx) error {
	var req dto.EvaluateActionRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	campaignID := uuid.MustParse(req.CampaignID)
	campaign, err := h.campaignService.GetByID(c.Context(), campaignID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if notInProject(c, campaign.ProjectID) {
		return notFound(c, "campaign")
	}

	var ruleID *uuid.UUID
	if req.RuleID != nil {
		id := uuid.MustParse(*req.RuleID)
		ruleID = &id
	}

	decision, err := h.automationService.EvaluateDryRun(c.Context(), campaignID, ruleID, models.ActionType(req.Action), req.Percent)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: decision})
}

// Sweep runs one automation pass for the project now. A sweep already held by
// another instance is reported, not waited for.
func (h *AutomationHandler) Sweep(c *fiber.Ctx) error {
	report, err := h.automationService.RunSweep(c.Context(), middleware.GetProjectID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if report.LockHeldBy != "" {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error:   "automation sweep already running",
			Code:    "LOCK_HELD",
			Details: report,
		})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: report})
}

func (h *AutomationHandler) GetKillSwitch(c *fiber.Ctx) error {
	projectID := middleware.GetProjectID(c)
	enabled, err := h.automationService.AutomationEnabled(c.Context(), projectID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.KillSwitchResponse{
		ProjectID:         projectID.String(),
		AutomationEnabled: enabled,
	}})
}

func (h *AutomationHandler) SetKillSwitch(c *fiber.Ctx) error {
	var req dto.KillSwitchRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	projectID := middleware.GetProjectID(c)
	if err := h.automationService.SetAutomationEnabled(c.Context(), projectID, *req.Enabled, models.SourceUI); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.KillSwitchResponse{
		ProjectID:         projectID.String(),
		AutomationEnabled: *req.Enabled,
	}})
}
