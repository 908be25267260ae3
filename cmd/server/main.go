package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"caelex/internal/api"
	"caelex/internal/api/handlers"
	"caelex/internal/api/middleware"
	"caelex/internal/engine/keys"
	"caelex/internal/engine/ratelimit"
	"caelex/internal/engine/webhooks"
	"caelex/internal/pkg/logger"
	"caelex/internal/platform/audit"
	"caelex/internal/platform/auth"
	"caelex/internal/platform/config"
	"caelex/internal/platform/database"
	"caelex/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	// Repositories
	keyRepo := repositories.NewAPIKeyRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	// Services
	keySvc := keys.NewService(keyRepo, cfg.RateLimit.DefaultLimit)
	registry := webhooks.NewRegistry(webhookRepo)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveryRepo, cfg.Webhooks)
	auditLog := audit.NewLogger(db)
	tokenSvc := auth.NewTokenService(cfg.JWT)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.Window)
	} else {
		limiter = ratelimit.NewSQLLimiter(keyRepo, cfg.RateLimit.Window)
	}

	// Middleware
	session := middleware.NewSessionMiddleware(tokenSvc)
	gate := middleware.NewAPIKeyMiddleware(keySvc, limiter, auditLog)

	deps := &api.Dependencies{
		APIKeyHandler:     handlers.NewAPIKeyHandler(keySvc),
		WebhookHandler:    handlers.NewWebhookHandler(registry),
		DeliveryHandler:   handlers.NewDeliveryHandler(registry, dispatcher, deliveryRepo),
		AuditHandler:      handlers.NewAuditHandler(auditLog),
		SpacecraftHandler: handlers.NewSpacecraftHandler(dispatcher),
		ComplianceHandler: handlers.NewComplianceHandler(),
		HealthHandler:     handlers.NewHealthHandler(db),
		Session:           session,
		APIKeyGate:        gate,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info().Str("addr", addr).Str("rate_limit_backend", cfg.RateLimit.Backend).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
