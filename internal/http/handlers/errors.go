package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/oauth"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/services"
	"github.com/adpilot/backend/internal/statemachine"
)

// oauthStatus maps lifecycle result codes to HTTP statuses. Unlisted codes are 400.
var oauthStatus = map[string]int{
	oauth.CodeConnectionNotFound:  fiber.StatusNotFound,
	oauth.CodeInvalidTransition:   fiber.StatusConflict,
	oauth.CodeStateChanged:        fiber.StatusConflict,
	oauth.CodeConnectionInactive:  fiber.StatusConflict,
	oauth.CodeStoreError:          fiber.StatusServiceUnavailable,
	oauth.CodeTokenExchangeFailed: fiber.StatusBadGateway,
	oauth.CodeDiscoveryFailed:     fiber.StatusBadGateway,
	oauth.CodeRefreshFailed:       fiber.StatusBadGateway,
}

// respondError writes the error envelope for err. Expected rejections keep
// their structure; anything unrecognized is logged and reported as 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, body := classify(err)
	body.RequestID = middleware.GetRequestID(c)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", body.RequestID),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(body)
}

func classify(err error) (int, dto.ErrorResponse) {
	var (
		te *statemachine.TransitionError
		ge *services.GuardError
		oe *oauth.Error
	)
	switch {
	case errors.As(err, &te):
		return fiber.StatusConflict, dto.ErrorResponse{Error: te.Error(), Code: "INVALID_TRANSITION", Details: te}
	case errors.As(err, &ge):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Error: ge.Reason, Code: ge.Code, Details: ge}
	case errors.As(err, &oe):
		status, ok := oauthStatus[oe.Code]
		if !ok {
			status = fiber.StatusBadRequest
		}
		return status, dto.ErrorResponse{Error: oe.Message, Code: oe.Code}
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Error: "not found", Code: "NOT_FOUND"}
	case errors.Is(err, repositories.ErrStateChanged):
		return fiber.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "STATE_CHANGED"}
	case errors.Is(err, services.ErrInvalidCondition):
		return fiber.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "INVALID_CONDITION"}
	case errors.Is(err, services.ErrLaunchFailed):
		return fiber.StatusBadGateway, dto.ErrorResponse{Error: err.Error(), Code: "LAUNCH_FAILED"}
	case errors.Is(err, repositories.ErrStore):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Error: "store unavailable", Code: "STORE_ERROR"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "INTERNAL"}
}

func badRequest(c *fiber.Ctx, msg string) error {
	reqID := middleware.GetRequestID(c)
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, Code: "BAD_REQUEST", RequestID: reqID})
}

var errInvalidBody = errors.New("invalid request body")

// parseBody decodes and validates the request body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errInvalidBody
	}
	return dto.Validate(req)
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// notInProject hides entities of other projects behind a plain 404.
func notInProject(c *fiber.Ctx, projectID uuid.UUID) bool {
	return projectID != middleware.GetProjectID(c)
}

func notFound(c *fiber.Ctx, what string) error {
	reqID := middleware.GetRequestID(c)
	return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: what + " not found", Code: "NOT_FOUND", RequestID: reqID})
}
