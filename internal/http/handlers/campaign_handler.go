package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/services"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, log: log}
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := repositories.CampaignFilter{
		ProjectID: middleware.GetProjectID(c),
		Limit:     20,
		Offset:    0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if v := c.Query("state"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.States = append(filter.States, models.CampaignState(strings.ToUpper(strings.TrimSpace(st))))
		}
	}

	campaigns, err := h.campaignService.List(c.Context(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.load(c)
	if err != nil || campaign == nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) Pause(c *fiber.Ctx) error {
	return h.apply(c, h.campaignService.Pause)
}

func (h *CampaignHandler) Resume(c *fiber.Ctx) error {
	return h.apply(c, h.campaignService.Resume)
}

func (h *CampaignHandler) Stop(c *fiber.Ctx) error {
	return h.apply(c, h.campaignService.Stop)
}

func (h *CampaignHandler) apply(c *fiber.Ctx, op func(ctx context.Context, id uuid.UUID) (*models.Campaign, error)) error {
	campaign, err := h.load(c)
	if err != nil || campaign == nil {
		return err
	}
	campaign, err = op(c.Context(), campaign.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) load(c *fiber.Ctx) (*models.Campaign, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, badRequest(c, "invalid campaign id")
	}
	campaign, err := h.campaignService.GetByID(c.Context(), id)
	if err != nil {
		return nil, respondError(c, h.log, err)
	}
	if notInProject(c, campaign.ProjectID) {
		return nil, notFound(c, "campaign")
	}
	return campaign, nil
}
