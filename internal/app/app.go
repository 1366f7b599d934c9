package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/oauth"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/safety"
	"github.com/adpilot/backend/internal/services"
	"github.com/adpilot/backend/internal/statemachine"
)

// Locker is the sweep lock backend selected by LOCK_BACKEND.
type Locker interface {
	services.Locker
	DeleteExpired(ctx context.Context) (int64, error)
}

type Repos struct {
	Assets      *repositories.AssetRepo
	Intents     *repositories.IntentRepo
	Campaigns   *repositories.CampaignRepo
	Rules       *repositories.RuleRepo
	Connections *repositories.ConnectionRepo
	Counters    *repositories.CounterRepo
	OAuthStates *repositories.OAuthStateRepo
	Projects    *repositories.ProjectRepo
	Audit       *repositories.AuditRepo
	Locks       Locker
}

type Services struct {
	Assets     *services.AssetService
	Intents    *services.IntentService
	Campaigns  *services.CampaignService
	Rules      *services.RuleService
	Automation *services.AutomationService
	OAuth      *oauth.Manager
}

// Container holds everything both binaries share.
type Container struct {
	Repos      Repos
	Services   Services
	Publisher  *events.RedisPublisher
	Subscriber *events.RedisSubscriber
	Registry   *statemachine.Registry
}

func Build(cfg *config.Config, pool *pgxpool.Pool, rdb redis.UniversalClient, log *zap.Logger) (*Container, error) {
	registry := statemachine.NewRegistry()

	// Repositories
	repos := Repos{
		Assets:      repositories.NewAssetRepo(pool),
		Intents:     repositories.NewIntentRepo(pool),
		Campaigns:   repositories.NewCampaignRepo(pool),
		Rules:       repositories.NewRuleRepo(pool),
		Connections: repositories.NewConnectionRepo(pool),
		Counters:    repositories.NewCounterRepo(pool, cfg.GlobalActionLimit),
		OAuthStates: repositories.NewOAuthStateRepo(pool),
		Projects:    repositories.NewProjectRepo(pool),
		Audit:       repositories.NewAuditRepo(pool),
	}
	switch cfg.LockBackend {
	case "redis":
		repos.Locks = repositories.NewRedisLockStore(rdb)
	default:
		repos.Locks = repositories.NewLockRepo(pool)
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	recorder := audit.NewLogger(repos.Audit, publisher, log)

	// OAuth
	cipher, err := oauth.NewTokenCipher([]byte(cfg.TokenEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("token cipher: %w", err)
	}
	gateway := services.NewGatewayClient(cfg.PlatformGatewayURL, cfg.GatewayRPS, log)
	providers := oauth.NewProviders(
		oauth.NewGoogleProvider(clientConfig(cfg, cfg.Google, models.PlatformGoogle)),
		oauth.NewTikTokProvider(clientConfig(cfg, cfg.TikTok, models.PlatformTikTok)),
		oauth.NewSnapchatProvider(clientConfig(cfg, cfg.Snapchat, models.PlatformSnapchat)),
	)
	states := oauth.NewStateStore(cfg.StateSecret, cfg.OAuthStateTTL, repos.OAuthStates)
	manager := oauth.NewManager(providers, states, repos.Connections, cipher, gateway, registry, recorder, log)

	// Services
	conditions, err := services.NewConditionEvaluator()
	if err != nil {
		return nil, fmt.Errorf("condition evaluator: %w", err)
	}
	svcs := Services{
		Assets:    services.NewAssetService(repos.Assets, gateway, registry, recorder, cfg.RiskThreshold, log),
		Intents:   services.NewIntentService(repos.Intents, repos.Assets, repos.Connections, repos.Campaigns, gateway, manager, registry, recorder, log),
		Campaigns: services.NewCampaignService(repos.Campaigns, registry, recorder, log),
		Rules:     services.NewRuleService(repos.Rules, repos.Counters, conditions, registry, recorder, log),
		Automation: services.NewAutomationService(
			safety.NewEngine(cfg.Policy),
			conditions,
			repos.Rules,
			repos.Campaigns,
			repos.Connections,
			repos.Projects,
			repos.Counters,
			repos.Locks,
			manager,
			gateway,
			registry,
			recorder,
			services.AutomationConfig{
				InstanceID:     cfg.InstanceID,
				LockTTL:        cfg.LockTTL,
				RuleDailyLimit: cfg.RuleDailyLimit,
			},
			log,
		),
		OAuth: manager,
	}

	return &Container{
		Repos:      repos,
		Services:   svcs,
		Publisher:  publisher,
		Subscriber: subscriber,
		Registry:   registry,
	}, nil
}

func clientConfig(cfg *config.Config, c config.OAuthClient, platform models.Platform) oauth.ClientConfig {
	return oauth.ClientConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  cfg.RedirectURL(string(platform)),
		RPS:          cfg.PlatformRPS,
	}
}
