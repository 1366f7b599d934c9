package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/http/handlers"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/rbac"
)

type Handlers struct {
	Asset      *handlers.AssetHandler
	Intent     *handlers.IntentHandler
	Campaign   *handlers.CampaignHandler
	Rule       *handlers.RuleHandler
	Automation *handlers.AutomationHandler
	Connection *handlers.ConnectionHandler
	Audit      *handlers.AuditHandler
	WS         *handlers.WSHub
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb redis.UniversalClient,
	members middleware.MemberLookup,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// OAuth redirect target (public, the signed state authenticates it)
	api.Get("/oauth/:platform/callback", h.Connection.Callback)

	// Service-to-service callbacks
	internal := api.Group("/internal", middleware.InternalKeyMiddleware(cfg.InternalAPIKey))
	internal.Post("/assets/:id/analysis", h.Asset.AnalysisCallback)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	perm := func(p string) fiber.Handler {
		return middleware.ProjectMiddleware(members, p, log)
	}
	project := protected.Group("/projects/:projectId")

	// Assets
	project.Post("/assets", perm(rbac.PermManageAssets), h.Asset.RegisterAsset)
	project.Get("/assets/:id", perm(rbac.PermView), h.Asset.GetAsset)
	project.Post("/assets/:id/analyze", perm(rbac.PermManageAssets), h.Asset.Analyze)
	project.Post("/assets/:id/mark-ready", perm(rbac.PermManageAssets), h.Asset.MarkReady)
	project.Post("/assets/:id/unmark-ready", perm(rbac.PermManageAssets), h.Asset.UnmarkReady)

	// Intents
	project.Post("/intents", perm(rbac.PermManageCampaigns), h.Intent.CreateIntent)
	project.Get("/intents/:id", perm(rbac.PermView), h.Intent.GetIntent)
	project.Post("/intents/:id/validate", perm(rbac.PermManageCampaigns), h.Intent.Validate)
	project.Post("/intents/:id/publish", perm(rbac.PermManageCampaigns), h.Intent.Publish)

	// Campaigns
	project.Get("/campaigns", perm(rbac.PermView), h.Campaign.ListCampaigns)
	project.Get("/campaigns/:id", perm(rbac.PermView), h.Campaign.GetCampaign)
	project.Post("/campaigns/:id/pause", perm(rbac.PermManageCampaigns), h.Campaign.Pause)
	project.Post("/campaigns/:id/resume", perm(rbac.PermManageCampaigns), h.Campaign.Resume)
	project.Post("/campaigns/:id/stop", perm(rbac.PermManageCampaigns), h.Campaign.Stop)

	// Rules
	project.Post("/rules", perm(rbac.PermManageRules), h.Rule.CreateRule)
	project.Post("/rules/:id/enable", perm(rbac.PermManageRules), h.Rule.Enable)
	project.Post("/rules/:id/disable", perm(rbac.PermManageRules), h.Rule.Disable)
	project.Get("/rules/:id/cooldown", perm(rbac.PermView), h.Rule.Cooldown)

	// Automation
	project.Post("/automation/evaluate", perm(rbac.PermView), h.Automation.Evaluate)
	project.Post("/automation/sweep", perm(rbac.PermManageAutomation), h.Automation.Sweep)
	project.Get("/automation/kill-switch", perm(rbac.PermView), h.Automation.GetKillSwitch)
	project.Put("/automation/kill-switch", perm(rbac.PermManageAutomation), h.Automation.SetKillSwitch)

	// Ad account connections
	project.Get("/connections", perm(rbac.PermView), h.Connection.ListConnections)
	project.Post("/connections", perm(rbac.PermManageConnections), h.Connection.Connect)
	project.Post("/connections/:id/refresh", perm(rbac.PermManageConnections), h.Connection.Refresh)
	project.Post("/connections/:id/permissions", perm(rbac.PermManageConnections), h.Connection.UpdatePermissions)
	project.Delete("/connections/:id", perm(rbac.PermManageConnections), h.Connection.Disconnect)

	// Audit
	project.Get("/audit/:entityType/:id", perm(rbac.PermViewAudit), h.Audit.History)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
