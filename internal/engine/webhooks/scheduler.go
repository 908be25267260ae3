package webhooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"caelex/internal/platform/config"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

// Scheduler re-dispatches deliveries whose retry time has elapsed.
// Several instances may run concurrently; the conditional claim in the
// delivery store guarantees each due delivery is picked up by at most
// one of them.
type Scheduler struct {
	dispatcher *Dispatcher
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	interval   time.Duration
	batchSize  int
	stuckAfter time.Duration
}

func NewScheduler(dispatcher *Dispatcher, webhooks *repositories.WebhookRepository, deliveries *repositories.DeliveryRepository, cfg config.WebhooksConfig) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		webhooks:   webhooks,
		deliveries: deliveries,
		interval:   cfg.SchedulerInterval,
		batchSize:  cfg.SchedulerBatchSize,
		stuckAfter: cfg.StuckAfter,
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("webhook retry scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook retry scheduler stopped")
			return
		case <-ticker.C:
			if n := s.Tick(ctx); n > 0 {
				log.Debug().Int("dispatched", n).Msg("retry scheduler tick")
			}
		}
	}
}

// Tick claims and re-dispatches one batch of due deliveries, returning
// how many it dispatched.
func (s *Scheduler) Tick(ctx context.Context) int {
	due, err := s.deliveries.ListDue(time.Now().Unix(), s.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to list due deliveries")
		return 0
	}

	dispatched := 0
	for _, delivery := range due {
		claimed, err := s.deliveries.Claim(delivery.ID)
		if err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			// Another worker got there first.
			continue
		}

		webhook, err := s.webhooks.GetByID(delivery.WebhookID)
		if err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("webhook lookup failed")
			continue
		}
		if webhook == nil || !webhook.Active {
			// Subscription removed or paused since the delivery was
			// scheduled; stop retrying without spending the budget.
			s.deliveries.RecordAttempt(delivery.ID, models.DeliveryFailed, 0, "", 0, "webhook no longer active", nil)
			continue
		}

		s.dispatcher.DeliverOnce(ctx, delivery, webhook)
		dispatched++
	}
	return dispatched
}

// Reap returns stuck claims to the retry queue. Run this periodically
// from the worker so a crashed instance's claims are not lost.
func (s *Scheduler) Reap() {
	cutoff := time.Now().Add(-s.stuckAfter).Unix()
	n, err := s.deliveries.ReapStuck(cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to reap stuck deliveries")
		return
	}
	if n > 0 {
		log.Warn().Int64("count", n).Msg("requeued stuck deliveries")
	}
}
