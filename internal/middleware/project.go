package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/rbac"
	"github.com/adpilot/backend/internal/repositories"
)

const (
	CtxProjectID   = "project_id"
	CtxProjectRole = "project_role"
)

// MemberLookup resolves a user's role in a project.
type MemberLookup interface {
	GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error)
}

// ProjectMiddleware resolves :projectId and requires the caller to hold perm in it.
func ProjectMiddleware(members MemberLookup, perm string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := uuid.Parse(c.Params("projectId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
		}

		role, err := members.GetMemberRole(c.UserContext(), projectID, GetUserID(c))
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
		}
		if err != nil {
			log.Error("failed to resolve project role", zap.String("project_id", projectID.String()), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "store unavailable", Code: "STORE_ERROR"})
		}
		if !rbac.HasPermission(role, perm) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "insufficient permissions"})
		}

		c.Locals(CtxProjectID, projectID)
		c.Locals(CtxProjectRole, role)
		return c.Next()
	}
}

func GetProjectID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxProjectID).(uuid.UUID)
	return id
}
