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

type IntentHandler struct {
	intentService *services.IntentService
	log           *zap.Logger
}

func NewIntentHandler(intentService *services.IntentService, log *zap.Logger) *IntentHandler {
	return &IntentHandler{intentService: intentService, log: log}
}

func (h *IntentHandler) CreateIntent(c *fiber.Ctx) error {
	var req dto.CreateIntentRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	intent := &models.CampaignIntent{
		ProjectID: middleware.GetProjectID(c),
		UserID:    middleware.GetUserID(c),
		Audience: models.Audience{
			Countries: req.Audience.Countries,
			Languages: req.Audience.Languages,
			AgeMin:    req.Audience.AgeMin,
			AgeMax:    req.Audience.AgeMax,
		},
		Objective:   models.Objective(req.Objective),
		DailyBudget: req.DailyBudget,
	}
	for _, raw := range req.AssetIDs {
		intent.AssetIDs = append(intent.AssetIDs, uuid.MustParse(raw))
	}
	for _, sel := range req.AccountSelections {
		intent.AccountSelections = append(intent.AccountSelections, models.AccountSelection{
			ConnectionID: uuid.MustParse(sel.ConnectionID),
			Platform:     models.Platform(sel.Platform),
		})
	}

	intent, err := h.intentService.CreateDraft(c.Context(), intent, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: intent})
}

func (h *IntentHandler) GetIntent(c *fiber.Ctx) error {
	intent, err := h.load(c)
	if err != nil || intent == nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: intent})
}

func (h *IntentHandler) Validate(c *fiber.Ctx) error {
	intent, err := h.load(c)
	if err != nil || intent == nil {
		return err
	}
	intent, err = h.intentService.Validate(c.Context(), intent.ID, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: intent})
}

// Publish validates a draft if needed and launches one campaign per selected account.
func (h *IntentHandler) Publish(c *fiber.Ctx) error {
	intent, err := h.load(c)
	if err != nil || intent == nil {
		return err
	}
	result, err := h.intentService.Publish(c.Context(), intent.ID, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: result})
}

func (h *IntentHandler) load(c *fiber.Ctx) (*models.CampaignIntent, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, badRequest(c, "invalid intent id")
	}
	intent, err := h.intentService.GetByID(c.Context(), id)
	if err != nil {
		return nil, respondError(c, h.log, err)
	}
	if notInProject(c, intent.ProjectID) {
		return nil, notFound(c, "intent")
	}
	return intent, nil
}
