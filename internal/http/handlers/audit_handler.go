package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
)

type AuditReader interface {
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditEvent, error)
}

var auditEntityTypes = map[string]bool{
	models.EntityAsset:          true,
	models.EntityAdAccount:      true,
	models.EntityCampaignIntent: true,
	models.EntityCampaign:       true,
	models.EntityAutomationRule: true,
	models.EntityProject:        true,
}

type AuditHandler struct {
	audit AuditReader
	log   *zap.Logger
}

func NewAuditHandler(audit AuditReader, log *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

// History lists an entity's audit trail, newest first. Events of other
// projects are filtered out.
func (h *AuditHandler) History(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	if !auditEntityTypes[entityType] {
		return badRequest(c, "unknown entity type")
	}
	entityID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid entity id")
	}

	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	events, err := h.audit.GetByEntity(c.Context(), entityType, entityID, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}

	projectID := middleware.GetProjectID(c)
	out := make([]models.AuditEvent, 0, len(events))
	for _, e := range events {
		if e.ProjectID != nil && *e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}
