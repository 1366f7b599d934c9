package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/app"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/db"
	"github.com/adpilot/backend/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Options{File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB, MaxBackups: cfg.LogMaxBackups})
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConns)}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	c, err := app.Build(cfg, pool, rdb, log)
	if err != nil {
		log.Fatal("failed to build services", zap.Error(err))
	}

	log.Info("worker started",
		zap.String("instance_id", cfg.InstanceID),
		zap.String("lock_backend", cfg.LockBackend),
		zap.Duration("sweep_interval", cfg.SweepInterval),
	)

	// Run jobs on tickers
	sweepTicker := time.NewTicker(cfg.SweepInterval)
	refreshTicker := time.NewTicker(max(cfg.TokenRefreshWindow/2, time.Minute))
	cleanupTicker := time.NewTicker(cfg.CleanupInterval)
	defer sweepTicker.Stop()
	defer refreshTicker.Stop()
	defer cleanupTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runSweeps(ctx, c, log)
		case <-refreshTicker.C:
			runTokenRefresh(ctx, c, cfg, log)
		case <-cleanupTicker.C:
			runCleanup(ctx, c, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSweeps sweeps every project with an active rule. Projects with the kill
// switch on are included so the rules they would have fired are still audited.
func runSweeps(ctx context.Context, c *app.Container, log *zap.Logger) {
	reports, err := c.Services.Automation.SweepAll(ctx)
	if err != nil {
		log.Error("automation sweeps aborted", zap.Error(err))
	}
	for _, report := range reports {
		if report.LockHeldBy != "" {
			log.Debug("sweep lock held elsewhere",
				zap.String("project_id", report.ProjectID.String()),
				zap.String("holder", report.LockHeldBy),
			)
			continue
		}
		log.Info("automation sweep finished",
			zap.String("project_id", report.ProjectID.String()),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("executed", report.Executed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Int("store_errors", report.StoreErrors),
			zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
		)
	}
}

func runTokenRefresh(ctx context.Context, c *app.Container, cfg *config.Config, log *zap.Logger) {
	refreshed, failed, err := c.Services.OAuth.RefreshExpiring(ctx, cfg.TokenRefreshWindow, cfg.TokenRefreshBatch)
	if err != nil {
		log.Error("failed to list expiring connections", zap.Error(err))
		return
	}
	if refreshed > 0 || failed > 0 {
		log.Info("token refresh pass", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	}
}

// runCleanup drops expired locks and states and zeroes counters whose day has passed.
func runCleanup(ctx context.Context, c *app.Container, log *zap.Logger) {
	if n, err := c.Repos.Locks.DeleteExpired(ctx); err != nil {
		log.Error("failed to delete expired locks", zap.Error(err))
	} else if n > 0 {
		log.Info("expired locks removed", zap.Int64("count", n))
	}

	if n, err := c.Repos.OAuthStates.DeleteExpired(ctx); err != nil {
		log.Error("failed to delete expired oauth states", zap.Error(err))
	} else if n > 0 {
		log.Info("expired oauth states removed", zap.Int64("count", n))
	}

	if n, err := c.Repos.Counters.ResetDailyCounters(ctx); err != nil {
		log.Error("failed to reset daily counters", zap.Error(err))
	} else if n > 0 {
		log.Info("daily counters reset", zap.Int64("rows", n))
	}
}
