package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/app"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/db"
	apphttp "github.com/adpilot/backend/internal/http"
	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/http/handlers"
	"github.com/adpilot/backend/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Options{File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB, MaxBackups: cfg.LogMaxBackups})
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConns)}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	c, err := app.Build(cfg, pool, rdb, log)
	if err != nil {
		log.Fatal("failed to build services", zap.Error(err))
	}

	// Handlers
	h := apphttp.Handlers{
		Asset:      handlers.NewAssetHandler(c.Services.Assets, log),
		Intent:     handlers.NewIntentHandler(c.Services.Intents, log),
		Campaign:   handlers.NewCampaignHandler(c.Services.Campaigns, log),
		Rule:       handlers.NewRuleHandler(c.Services.Rules, log),
		Automation: handlers.NewAutomationHandler(c.Services.Automation, c.Services.Campaigns, log),
		Connection: handlers.NewConnectionHandler(c.Services.OAuth, c.Repos.Connections, log),
		Audit:      handlers.NewAuditHandler(c.Repos.Audit, log),
		WS:         handlers.NewWSHub(cfg, c.Subscriber, c.Repos.Projects, log),
	}

	// Start WS hub
	if err := h.WS.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to audit stream", zap.Error(err))
	}

	// Fiber app
	server := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
		},
	})

	apphttp.SetupRouter(server, cfg, log, rdb, c.Repos.Projects, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = server.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := server.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
