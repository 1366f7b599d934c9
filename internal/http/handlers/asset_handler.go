package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/services"
)

type AssetHandler struct {
	assetService *services.AssetService
	log          *zap.Logger
}

func NewAssetHandler(assetService *services.AssetService, log *zap.Logger) *AssetHandler {
	return &AssetHandler{assetService: assetService, log: log}
}

func (h *AssetHandler) RegisterAsset(c *fiber.Ctx) error {
	var req dto.RegisterAssetRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	asset, err := h.assetService.Register(c.Context(), middleware.GetProjectID(c), models.AssetType(req.Type), models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: asset})
}

func (h *AssetHandler) GetAsset(c *fiber.Ctx) error {
	asset, err := h.load(c)
	if err != nil || asset == nil {
		return err
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: asset})
}

func (h *AssetHandler) Analyze(c *fiber.Ctx) error {
	asset, err := h.load(c)
	if err != nil || asset == nil {
		return err
	}
	asset, err = h.assetService.StartAnalysis(c.Context(), asset.ID, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{OK: true, Data: asset})
}

func (h *AssetHandler) MarkReady(c *fiber.Ctx) error {
	var req dto.MarkReadyRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	asset, err := h.load(c)
	if err != nil || asset == nil {
		return err
	}

	var platform *models.Platform
	if req.Platform != nil {
		p := models.Platform(*req.Platform)
		platform = &p
	}
	asset, err = h.assetService.MarkReady(c.Context(), asset.ID, platform, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: asset})
}

func (h *AssetHandler) UnmarkReady(c *fiber.Ctx) error {
	asset, err := h.load(c)
	if err != nil || asset == nil {
		return err
	}
	asset, err = h.assetService.UnmarkReady(c.Context(), asset.ID, models.SourceUI)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: asset})
}

// AnalysisCallback receives the analyzer's verdict. It is mounted on the
// internal router, not under a project.
func (h *AssetHandler) AnalysisCallback(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid asset id")
	}
	var req dto.AnalysisResultRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	res := models.AnalysisResult{
		Approved:     req.Approved,
		RiskScore:    req.RiskScore,
		QualityScore: req.QualityScore,
	}
	for _, p := range req.PlatformCompatibility {
		res.PlatformCompatibility = append(res.PlatformCompatibility, models.Platform(p))
	}

	asset, err := h.assetService.ApplyAnalysis(c.Context(), id, res)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: asset})
}

// load resolves :id within the caller's project. A nil asset with nil error
// means a response was already written.
func (h *AssetHandler) load(c *fiber.Ctx) (*models.Asset, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, badRequest(c, "invalid asset id")
	}
	asset, err := h.assetService.GetByID(c.Context(), id)
	if err != nil {
		return nil, respondError(c, h.log, err)
	}
	if notInProject(c, asset.ProjectID) {
		return nil, notFound(c, "asset")
	}
	return asset, nil
}
