package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/oauth"
)

// ConnectionReader is the read side of ad account connections.
type ConnectionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdAccountConnection, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.AdAccountConnection, error)
}

type ConnectionHandler struct {
	manager     *oauth.Manager
	connections ConnectionReader
	log         *zap.Logger
}

func NewConnectionHandler(manager *oauth.Manager, connections ConnectionReader, log *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{manager: manager, connections: connections, log: log}
}

func (h *ConnectionHandler) ListConnections(c *fiber.Ctx) error {
	conns, err := h.connections.ListByProject(c.Context(), middleware.GetProjectID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conns})
}

// Connect opens a CONNECTING connection and returns the platform consent URL.
func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	var req dto.ConnectRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	res := h.manager.Initiate(c.Context(), middleware.GetUserID(c), middleware.GetProjectID(c), models.Platform(req.Platform))
	return h.result(c, res, fiber.StatusCreated)
}

// Callback is the public redirect target registered with each platform. The
// signed state parameter stands in for the session.
func (h *ConnectionHandler) Callback(c *fiber.Ctx) error {
	platform := c.Params("platform")
	if !models.IsValidPlatform(platform) {
		return badRequest(c, "unknown platform")
	}

	errorParam := c.Query("error")
	if errorParam == "" {
		errorParam = c.Query("error_description")
	}
	code := c.Query("code")
	if code == "" {
		// tiktok names the code auth_code
		code = c.Query("auth_code")
	}

	res := h.manager.HandleCallback(c.Context(), models.Platform(platform), c.Query("state"), code, errorParam)
	return h.result(c, res, fiber.StatusOK)
}

func (h *ConnectionHandler) Refresh(c *fiber.Ctx) error {
	conn, err := h.load(c)
	if err != nil || conn == nil {
		return err
	}
	return h.result(c, h.manager.Refresh(c.Context(), conn.ID), fiber.StatusOK)
}

func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	conn, err := h.load(c)
	if err != nil || conn == nil {
		return err
	}
	return h.result(c, h.manager.Disconnect(c.Context(), conn.ID), fiber.StatusOK)
}

func (h *ConnectionHandler) UpdatePermissions(c *fiber.Ctx) error {
	var req dto.UpdatePermissionsRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	conn, err := h.load(c)
	if err != nil || conn == nil {
		return err
	}

	perms := models.Permissions{CanAnalyze: req.CanAnalyze, CanLaunch: req.CanLaunch, CanOptimize: req.CanOptimize}
	return h.result(c, h.manager.RefreshPermissions(c.Context(), conn.ID, perms), fiber.StatusOK)
}

func (h *ConnectionHandler) result(c *fiber.Ctx, res oauth.Result, okStatus int) error {
	if !res.Success {
		return respondError(c, h.log, res.Err())
	}
	return c.Status(okStatus).JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *ConnectionHandler) load(c *fiber.Ctx) (*models.AdAccountConnection, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, badRequest(c, "invalid connection id")
	}
	conn, err := h.connections.GetByID(c.Context(), id)
	if err != nil {
		return nil, respondError(c, h.log, err)
	}
	if notInProject(c, conn.ProjectID) {
		return nil, notFound(c, "connection")
	}
	return conn, nil
}
