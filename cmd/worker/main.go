package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"caelex/internal/engine/ratelimit"
	"caelex/internal/engine/webhooks"
	"caelex/internal/pkg/logger"
	"caelex/internal/platform/config"
	"caelex/internal/platform/database"
	"caelex/internal/platform/repositories"
)

// The worker owns everything that runs off the request path: the
// webhook retry scheduler, stuck-delivery reaping, and pruning of the
// rate-limit request ledger.
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

	keyRepo := repositories.NewAPIKeyRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	dispatcher := webhooks.NewDispatcher(webhookRepo, deliveryRepo, cfg.Webhooks)
	scheduler := webhooks.NewScheduler(dispatcher, webhookRepo, deliveryRepo, cfg.Webhooks)
	limiter := ratelimit.NewSQLLimiter(keyRepo, cfg.RateLimit.Window)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	c.AddFunc("@hourly", func() {
		n, err := limiter.Prune()
		if err != nil {
			log.Error().Err(err).Msg("request ledger prune failed")
			return
		}
		log.Info().Int64("pruned", n).Msg("request ledger pruned")
	})
	c.AddFunc("@every 1m", scheduler.Reap)
	c.Start()
	defer c.Stop()

	log.Info().Msg("worker started")
	scheduler.Run(ctx)
}
